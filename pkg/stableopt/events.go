package stableopt

import "time"

// EventHandler receives agent notifications. Methods are called
// synchronously from the poll goroutine and should return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnCycle(CycleEvent)
	OnSourceError(SourceErrorEvent)
}

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// CycleEvent reports a completed optimization cycle.
type CycleEvent struct {
	SnapshotID    string
	Rates         int
	Opportunities int
	// Best is nil when no pair reached the minimum spread.
	Best     *Opportunity
	Duration time.Duration
}

// SourceErrorEvent reports a failed rate source poll.
type SourceErrorEvent struct {
	Source string
	Error  error
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnCycle(CycleEvent)             {}
func (BaseEventHandler) OnSourceError(SourceErrorEvent) {}
