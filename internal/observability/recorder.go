// Package observability provides the metrics recorders the index reports
// build, save and load activity to.
package observability

import (
	"context"
	"time"
)

// Recorder receives index metrics.
type Recorder interface {
	// Observe records the outcome and duration of an operation (build, save, load).
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	// AddRows counts rows consumed from a source query.
	AddRows(query string, n int)
	// SetEntries reports the current entry count of a table.
	SetEntries(table string, n int)
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) Observe(context.Context, string, bool, time.Duration) {}
func (Noop) AddRows(string, int)                                  {}
func (Noop) SetEntries(string, int)                               {}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
