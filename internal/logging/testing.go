package logging

import (
	"sync"

	"github.com/juju/loggo/v2"
)

// Recorder is a loggo.Writer which keeps all entries in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []loggo.Entry
}

// Write implements loggo.Writer.
func (r *Recorder) Write(entry loggo.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Messages returns the messages logged at exactly level.
func (r *Recorder) Messages(level loggo.Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var msgs []string
	for _, e := range r.entries {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// Count returns the number of entries logged at level.
func (r *Recorder) Count(level loggo.Level) int {
	return len(r.Messages(level))
}

// NewRecorder returns a DEBUG level logger whose output is collected by the
// returned Recorder.
func NewRecorder(name string) (loggo.Logger, *Recorder) {
	rec := &Recorder{}
	ctx := loggo.NewContext(loggo.DEBUG)
	if err := ctx.AddWriter("recorder", rec); err != nil {
		panic(err)
	}
	return ctx.GetLogger(name), rec
}
