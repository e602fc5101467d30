package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/pkg/log"
)

// mockEmitter tracks state change events for testing.
type mockEmitter struct {
	mu     sync.Mutex
	events []stateChangeEvent
}

type stateChangeEvent struct {
	previous State
	current  State
	reason   string
}

func (m *mockEmitter) OnStateChange(previous, current State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, stateChangeEvent{previous, current, reason})
}

func (m *mockEmitter) path() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, 0, len(m.events)+1)
	for i, e := range m.events {
		if i == 0 {
			out = append(out, e.previous)
		}
		out = append(out, e.current)
	}
	return out
}

func samePath(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
		{State(-1), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateStopped, StateStarting, true},
		{StateStopped, StateRunning, false},
		{StateStarting, StateRunning, true},
		{StateStarting, StateStopping, true},
		{StateStarting, StateStopped, false},
		{StateRunning, StateCrashed, true},
		{StateRunning, StateStarting, false},
		{StateStopping, StateStopped, true},
		{StateStopping, StateRunning, false},
		{StateCrashed, StateStopping, true},
		{StateCrashed, StateStarting, true},
		{StateCrashed, StateRunning, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestLifecycle_CleanRun(t *testing.T) {
	emitter := &mockEmitter{}
	l := NewLifecycle(&log.Recorder{}, emitter)

	ctx, err := l.Begin(context.Background(), "start")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := l.Begin(context.Background(), "again"); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Begin() = %v, want ErrAlreadyRunning", err)
	}

	l.Go("poll", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	l.Go("serve", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	if err := l.Ready("workers started"); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	if !l.CanStop() || l.CanStart() {
		t.Errorf("running: CanStop=%v CanStart=%v", l.CanStop(), l.CanStart())
	}

	cleaned := false
	if err := l.Shutdown(time.Second, func() { cleaned = true }); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if ctx.Err() == nil {
		t.Error("run context not canceled by Shutdown")
	}
	if !cleaned {
		t.Error("cleanup not called")
	}
	if l.State() != StateStopped || l.Err() != nil {
		t.Errorf("after shutdown: state=%v err=%v", l.State(), l.Err())
	}
	if err := l.Shutdown(time.Second, nil); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("second Shutdown() = %v, want ErrNotRunning", err)
	}

	want := []State{StateStopped, StateStarting, StateRunning, StateStopping, StateStopped}
	if got := emitter.path(); !samePath(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestLifecycle_WorkerFailureCrashesRun(t *testing.T) {
	emitter := &mockEmitter{}
	logger := &log.Recorder{}
	l := NewLifecycle(logger, emitter)

	ctx, err := l.Begin(context.Background(), "start")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := l.Ready("workers started"); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}

	serveStopped := make(chan struct{})
	l.Go("serve", func(ctx context.Context) error {
		defer close(serveStopped)
		<-ctx.Done()
		return nil
	})
	boom := errors.New("all rate sources failed")
	l.Go("poll", func(context.Context) error { return boom })

	select {
	case <-serveStopped:
	case <-time.After(2 * time.Second):
		t.Fatal("failing worker did not cancel its siblings")
	}
	if ctx.Err() == nil {
		t.Error("run context not canceled")
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(emitter.path()) < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if l.State() != StateCrashed {
		t.Errorf("state = %v, want Crashed", l.State())
	}
	if !errors.Is(l.Err(), boom) {
		t.Errorf("Err() = %v, want %v", l.Err(), boom)
	}
	if l.CanStart() {
		t.Error("crashed run must be shut down before restarting")
	}
	if entry, ok := logger.Find("error", "worker failed"); !ok {
		t.Error("worker failure not logged")
	} else if name, _ := entry.Field("worker"); name != "poll" {
		t.Errorf("worker field = %v, want poll", name)
	}

	if err := l.Shutdown(time.Second, nil); !errors.Is(err, boom) {
		t.Fatalf("Shutdown() = %v, want %v", err, boom)
	}
	if l.State() != StateCrashed {
		t.Errorf("state after shutdown = %v, want Crashed", l.State())
	}

	want := []State{StateStopped, StateStarting, StateRunning, StateCrashed, StateStopping, StateCrashed}
	if got := emitter.path(); !samePath(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}

	if _, err := l.Begin(context.Background(), "restart"); err != nil {
		t.Fatalf("Begin() after crash = %v", err)
	}
	if l.Err() != nil {
		t.Errorf("Err() after restart = %v, want nil", l.Err())
	}
	if err := l.Shutdown(time.Second, nil); err != nil {
		t.Errorf("Shutdown() of restarted run = %v", err)
	}
}

func TestLifecycle_FailureDuringShutdown(t *testing.T) {
	l := NewLifecycle(nil, nil)
	if _, err := l.Begin(context.Background(), "start"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	flushErr := errors.New("flush failed")
	l.Go("poll", func(ctx context.Context) error {
		<-ctx.Done()
		return flushErr
	})
	if err := l.Ready("started"); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}

	if err := l.Shutdown(time.Second, nil); !errors.Is(err, flushErr) {
		t.Errorf("Shutdown() = %v, want %v", err, flushErr)
	}
	if l.State() != StateCrashed {
		t.Errorf("state = %v, want Crashed", l.State())
	}
}

func TestLifecycle_ShutdownTimeout(t *testing.T) {
	l := NewLifecycle(nil, nil)
	if _, err := l.Begin(context.Background(), "start"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	release := make(chan struct{})
	l.Go("stuck", func(context.Context) error {
		<-release
		return nil
	})
	if err := l.Ready("started"); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}

	err := l.Shutdown(10*time.Millisecond, nil)
	close(release)
	if !errors.Is(err, domain.ErrShutdownTimeout) {
		t.Fatalf("Shutdown() = %v, want ErrShutdownTimeout", err)
	}
	if l.State() != StateCrashed {
		t.Errorf("state = %v, want Crashed", l.State())
	}
	l.wg.Wait()
}

func TestLifecycle_Abort(t *testing.T) {
	emitter := &mockEmitter{}
	l := NewLifecycle(nil, emitter)

	ctx, err := l.Begin(context.Background(), "start")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	listenErr := errors.New("address already in use")
	l.Abort("api listen failed", listenErr)

	if ctx.Err() == nil {
		t.Error("run context not canceled by Abort")
	}
	if l.State() != StateCrashed || !errors.Is(l.Err(), listenErr) {
		t.Errorf("state=%v err=%v", l.State(), l.Err())
	}
	if l.CanStop() {
		t.Error("aborted run has nothing to stop")
	}
	if !l.CanStart() {
		t.Error("aborted run should be restartable")
	}

	want := []State{StateStopped, StateStarting, StateCrashed}
	if got := emitter.path(); !samePath(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestLifecycle_ReadyWithoutBegin(t *testing.T) {
	l := NewLifecycle(nil, nil)
	if err := l.Ready("early"); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Ready() = %v, want ErrNotRunning", err)
	}
	if err := l.Shutdown(time.Second, nil); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Shutdown() = %v, want ErrNotRunning", err)
	}
}

func TestLifecycle_Concurrency(t *testing.T) {
	l := NewLifecycle(nil, nil)
	if _, err := l.Begin(context.Background(), "start"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.State()
				_ = l.CanStart()
				_ = l.CanStop()
				_ = l.Err()
			}
		}()
	}
	for i := 0; i < 5; i++ {
		l.Go("worker", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}
	_ = l.Ready("started")
	wg.Wait()

	if err := l.Shutdown(time.Second, nil); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}
