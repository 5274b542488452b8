// Package monitoring reports unexpected failures to an external error
// tracker. Domain errors (invalid input, infeasible jobs) are not reported.
package monitoring

import (
	"sync"
	"time"
)

// Monitor receives unexpected errors and panics.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover reports a value obtained from recover().
	Recover(r any)
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover(any)                               {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m as the process-wide monitor. A nil m is ignored.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Report captures err tagged with the component and operation that failed.
func Report(err error, component, op string) {
	CaptureException(err, map[string]string{"component": component, "op": op})
}

// Recover reports a panic in the calling goroutine and re-panics. It must be
// deferred directly.
func Recover() {
	if r := recover(); r != nil {
		m := get()
		m.Recover(r)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

// Flush waits up to d for buffered events to be sent.
func Flush(d time.Duration) {
	get().Flush(d)
}
