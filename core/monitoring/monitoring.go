// Package monitoring reports unexpected errors to an external tracker. A
// process-wide Monitor keeps call sites free of plumbing; tests swap it with
// Init and restore the no-op afterwards.
package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	current.CaptureException(err, tags)
}

// Recover forwards a goroutine panic to the tracker. Call it deferred.
func Recover() {
	current.Recover()
}

// Flush drains buffered events before shutdown.
func Flush(d time.Duration) {
	current.Flush(d)
}
