package domain

// SupervisorState is a position in the supervisor lifecycle.
type SupervisorState string

const (
	StateIdle       SupervisorState = "idle"
	StateStarting   SupervisorState = "starting"
	StateRunning    SupervisorState = "running"
	StateSucceeded  SupervisorState = "succeeded"
	StateFailed     SupervisorState = "failed"
	StateRestarting SupervisorState = "restarting"
	StateStopped    SupervisorState = "stopped"
)

// StateOrdinal maps states to stable numbers for gauges.
var StateOrdinal = map[SupervisorState]float64{
	StateIdle:       0,
	StateStarting:   1,
	StateRunning:    2,
	StateSucceeded:  3,
	StateFailed:     4,
	StateRestarting: 5,
	StateStopped:    6,
}
