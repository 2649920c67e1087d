package monitoring

import "sync"

// Reporter is the user-facing message surface. The camera pipeline calls it
// for conditions an operator should see (for example a missing camera); the
// embedding application decides where the message goes.
type Reporter interface {
	Report(msg string)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(msg string)

// Report calls f(msg).
func (f ReporterFunc) Report(msg string) { f(msg) }

// LogReporter reports through Logf.
type LogReporter struct{}

// Report writes msg to the diagnostic log.
func (LogReporter) Report(msg string) {
	Logf("[report] %s", msg)
}

// OnceReporter forwards each distinct message to Next only the first time it
// is seen. A nil Next falls back to LogReporter.
type OnceReporter struct {
	Next Reporter

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewOnceReporter wraps next so repeated messages are reported once.
func NewOnceReporter(next Reporter) *OnceReporter {
	return &OnceReporter{Next: next}
}

// Report forwards msg if it has not been reported before.
func (r *OnceReporter) Report(msg string) {
	r.mu.Lock()
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, ok := r.seen[msg]; ok {
		r.mu.Unlock()
		return
	}
	r.seen[msg] = struct{}{}
	next := r.Next
	r.mu.Unlock()

	if next == nil {
		next = LogReporter{}
	}
	next.Report(msg)
}
