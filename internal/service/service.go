// Package service contains the business rules of the task list and the
// account directory.
//
// THE LAYERS:
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, enforces rules, stamps display times
//	Store           → in-memory collection mirrored to repository.KV
//
// Services take their collections as constructor arguments and never reach
// for globals, so every test builds its own isolated graph. They accept
// plain values, not HTTP types, and return apperror values that the handler
// layer maps to status codes.
package service

import "time"

// Display layouts for the timestamps stored on records. Records keep the
// human-readable form, not an instant.
const (
	// taskStampLayout renders e.g. "Mar 5, 2025 at 02:07 PM".
	taskStampLayout = "Jan 2, 2006 at 03:04 PM"

	// accountDateLayout renders e.g. "3/5/2025".
	accountDateLayout = "1/2/2006"

	// accountStampLayout renders e.g. "3/5/2025, 2:07:09 PM".
	accountStampLayout = "1/2/2006, 3:04:05 PM"

	// dueDateLayout is the stored due date format.
	dueDateLayout = "2006-01-02"

	// dueDateDisplayLayout renders a due date for people, e.g. "Mar 5, 2025".
	dueDateDisplayLayout = "Jan 2, 2006"
)

// Option configures a service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for the display timestamps a service writes.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
