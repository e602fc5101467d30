package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(zerolog.New(&buf))

	adapter.Info("poll complete",
		String("source", "llama"),
		Int("rates", 3),
		Float64("spread", 1.25),
		Bool("once", true),
		Duration("took", 2*time.Second),
		Strings("chains", []string{"arbitrum", "polygon"}),
		Err(errors.New("boom")),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}

	if got["message"] != "poll complete" {
		t.Errorf("message = %v, want poll complete", got["message"])
	}
	if got["source"] != "llama" {
		t.Errorf("source = %v, want llama", got["source"])
	}
	if got["rates"] != float64(3) {
		t.Errorf("rates = %v, want 3", got["rates"])
	}
	if got["spread"] != 1.25 {
		t.Errorf("spread = %v, want 1.25", got["spread"])
	}
	if got["error"] != "boom" {
		t.Errorf("error = %v, want boom", got["error"])
	}
	if chains, ok := got["chains"].([]interface{}); !ok || len(chains) != 2 {
		t.Errorf("chains = %v, want 2 entries", got["chains"])
	}
}

func TestZerologAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	adapter.Debug("hidden")
	adapter.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn level, got %q", buf.String())
	}

	adapter.Warn("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("expected warn output, got %q", buf.String())
	}
}

func TestNoopLoggerAllLevels(t *testing.T) {
	var l Logger = NewNoopLogger()
	l.Debug("x")
	l.Info("x", String("k", "v"))
	l.Warn("x")
	l.Error("x", Err(errors.New("e")))
}
