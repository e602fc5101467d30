package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/pkg/log"
)

// ShutdownTimeout is the maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of the agent.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

var stateNames = [...]string{"Stopped", "Starting", "Running", "Stopping", "Crashed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// transitions lists the states reachable from each state. A crashed run
// still holds workers and goes through Stopping before it can restart.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting, StateStopping},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle drives one agent run: Begin, named workers started with Go,
// Ready once startup is complete, and Shutdown. The first worker failure
// cancels the run, moves it to Crashed and is reported by Err and Shutdown.
type Lifecycle struct {
	mu      sync.Mutex
	state   State
	active  bool
	cancel  context.CancelFunc
	runCtx  context.Context
	err     error
	wg      sync.WaitGroup
	logger  ports.Logger
	emitter EventEmitter
}

// NewLifecycle creates a lifecycle in StateStopped.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Lifecycle{logger: logger, emitter: emitter}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error that ended the current or last run, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// CanStart reports whether Begin would succeed.
func (l *Lifecycle) CanStart() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.active && canTransition(l.state, StateStarting)
}

// CanStop reports whether a run is in progress, crashed runs included.
func (l *Lifecycle) CanStop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active && l.state != StateStopping
}

// move changes state with l.mu held and returns the previous state.
func (l *Lifecycle) move(to State) (State, error) {
	from := l.state
	if !canTransition(from, to) {
		if from == StateStopped || from == StateCrashed {
			return from, domain.ErrNotRunning
		}
		return from, domain.ErrAlreadyRunning
	}
	l.state = to
	return from, nil
}

// announce reports a state change. Called without l.mu held.
func (l *Lifecycle) announce(from, to State, reason string) {
	if l.emitter != nil {
		l.emitter.OnStateChange(from, to, reason)
	}
	l.logger.Info("state transition",
		log.String("from", from.String()),
		log.String("to", to.String()),
		log.String("reason", reason),
	)
}

// Begin starts a run and returns its context, which is canceled by
// Shutdown, Abort or the first failing worker.
func (l *Lifecycle) Begin(parent context.Context, reason string) (context.Context, error) {
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return nil, domain.ErrAlreadyRunning
	}
	from, err := l.move(StateStarting)
	if err != nil {
		l.mu.Unlock()
		return nil, domain.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(parent)
	l.active, l.err = true, nil
	l.runCtx, l.cancel = ctx, cancel
	l.mu.Unlock()

	l.announce(from, StateStarting, reason)
	return ctx, nil
}

// Ready marks startup as complete.
func (l *Lifecycle) Ready(reason string) error {
	l.mu.Lock()
	from, err := l.move(StateRunning)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.announce(from, StateRunning, reason)
	return nil
}

// Go runs fn as a named worker of the current run. A worker returning an
// error other than context cancellation crashes the run.
func (l *Lifecycle) Go(name string, fn func(ctx context.Context) error) {
	l.mu.Lock()
	ctx := l.runCtx
	l.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.fail(name, err)
		}
	}()
}

// fail records the first worker error and cancels the run.
func (l *Lifecycle) fail(name string, err error) {
	l.logger.Error("worker failed", log.String("worker", name), log.Err(err))

	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	if l.cancel != nil {
		l.cancel()
	}
	var (
		from    State
		crashed bool
	)
	if l.state == StateStarting || l.state == StateRunning {
		from, _ = l.move(StateCrashed)
		crashed = true
	}
	l.mu.Unlock()

	if crashed {
		l.announce(from, StateCrashed, name+": "+err.Error())
	}
}

// Abort ends a run that failed during startup. Workers already started are
// canceled and waited for.
func (l *Lifecycle) Abort(reason string, err error) {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	if l.err == nil {
		l.err = err
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	_ = l.wait(ShutdownTimeout)

	l.mu.Lock()
	l.active = false
	from, moveErr := l.move(StateCrashed)
	l.mu.Unlock()
	if moveErr == nil {
		l.announce(from, StateCrashed, reason)
	}
}

// Shutdown cancels the run, waits up to timeout for its workers and then
// calls cleanup. It returns the run's error or ErrShutdownTimeout; the final
// state is Stopped only when both are nil.
func (l *Lifecycle) Shutdown(timeout time.Duration, cleanup func()) error {
	l.mu.Lock()
	if !l.active || l.state == StateStopping {
		l.mu.Unlock()
		return domain.ErrNotRunning
	}
	from, err := l.move(StateStopping)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	cancel := l.cancel
	l.mu.Unlock()

	l.announce(from, StateStopping, "shutdown requested")
	if cancel != nil {
		cancel()
	}

	waitErr := l.wait(timeout)
	if cleanup != nil {
		cleanup()
	}

	l.mu.Lock()
	l.active = false
	runErr := l.err
	if waitErr != nil && runErr == nil {
		runErr = waitErr
		l.err = waitErr
	}
	final, reason := StateStopped, "graceful shutdown"
	if runErr != nil {
		final, reason = StateCrashed, runErr.Error()
	}
	from, _ = l.move(final)
	l.mu.Unlock()

	l.announce(from, final, reason)
	return runErr
}

// wait blocks until every worker has returned or timeout expires.
func (l *Lifecycle) wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		l.logger.Warn("shutdown timeout, forcing exit", log.Duration("timeout", timeout))
		return domain.ErrShutdownTimeout
	}
}
