// Package scheduler runs the two cooperating C5 loops: a heartbeat writer
// and a cron-expression job dispatcher that publishes scheduler.trigger
// events onto the event bus.
package scheduler

import "time"

// Job is one scheduled cron entry.
type Job struct {
	ID        string
	Name      string
	Expr      string
	Action    string
	Enabled   bool
	LastRun   *time.Time
	CreatedAt time.Time
}
