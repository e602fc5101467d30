package log

import (
	"errors"
	"sync"
	"testing"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	var logger Logger = &r

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Debug("tick")
		}()
	}
	wg.Wait()
	logger.Error("cycle failed", String("source", "llama"), Err(errors.New("timeout")))

	if got := len(r.Entries()); got != 5 {
		t.Fatalf("entries = %d, want 5", got)
	}
	e, ok := r.Find("error", "cycle failed")
	if !ok {
		t.Fatal("error entry not recorded")
	}
	if v, _ := e.Field("source"); v != "llama" {
		t.Errorf("source = %v, want llama", v)
	}
	if _, ok := e.Field("missing"); ok {
		t.Error("Field(missing) reported as set")
	}
	if _, ok := r.Find("warn", "cycle failed"); ok {
		t.Error("Find matched the wrong level")
	}
}

func TestNoopLogger(t *testing.T) {
	var logger Logger = NewNoopLogger()
	logger.Info("discarded", Int("n", 1))
}
