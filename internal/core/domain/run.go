package domain

import "time"

// RunAttempt records one start of the automation task by the supervisor.
type RunAttempt struct {
	ID           string     `json:"id"            db:"id"`
	Attempt      int        `json:"attempt"       db:"attempt"`
	Outcome      RunOutcome `json:"outcome"       db:"outcome"`
	Connectivity bool       `json:"connectivity"  db:"connectivity"`
	Errors       []string   `json:"errors"        db:"-"`
	StartedAt    time.Time  `json:"started_at"    db:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"   db:"finished_at"`
}

type RunOutcome string

const (
	RunOutcomeRunning   RunOutcome = "running"
	RunOutcomeSucceeded RunOutcome = "succeeded"
	RunOutcomeFailed    RunOutcome = "failed"
	RunOutcomeCancelled RunOutcome = "cancelled"
)

// Duration returns how long the attempt ran. Zero while still running.
func (r *RunAttempt) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
