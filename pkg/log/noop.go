package log

import "sync"

// NoopLogger discards everything. It is the default when no logger is
// configured.
type NoopLogger struct{}

// NewNoopLogger returns a logger that discards all messages.
func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}

// Entry is one message captured by a Recorder.
type Entry struct {
	Level   string
	Message string
	Fields  []Field
}

// Field returns the value of the named field and whether it was set.
func (e Entry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Recorder keeps every message in memory. It is safe for concurrent use
// and meant for tests that assert on what was logged.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) record(level, msg string, fields []Field) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg, Fields: append([]Field(nil), fields...)})
	r.mu.Unlock()
}

func (r *Recorder) Debug(msg string, fields ...Field) { r.record("debug", msg, fields) }
func (r *Recorder) Info(msg string, fields ...Field)  { r.record("info", msg, fields) }
func (r *Recorder) Warn(msg string, fields ...Field)  { r.record("warn", msg, fields) }
func (r *Recorder) Error(msg string, fields ...Field) { r.record("error", msg, fields) }

// Entries returns a copy of the captured messages, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Find returns the first entry with the given level and message.
func (r *Recorder) Find(level, msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Level == level && e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}
