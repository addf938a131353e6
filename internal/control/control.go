package control

import "context"

// AutomationTask is the long-running bot process kept alive by the supervisor.
type AutomationTask interface {
	// Run blocks until the task ends or ctx is cancelled.
	Run(ctx context.Context) error

	// Log writes a line to the task's own log.
	Log(msg string)
}

// Messenger is the chat front end restarted together with the task.
type Messenger interface {
	// RunMain connects with token and serves until ctx is cancelled or it faults.
	RunMain(ctx context.Context, token string) error

	// Disconnect requests an orderly shutdown of the connection.
	Disconnect(ctx context.Context) error
}

// Integration is a fire-and-forget client started once per process.
type Integration interface {
	Name() string
	Run(ctx context.Context) error
}

// TaskFactory builds a fresh automation task for every start.
type TaskFactory func() AutomationTask

// MessengerFactory builds a fresh messenger bound to the given task.
type MessengerFactory func(task AutomationTask) Messenger

// Current exposes the live task and messenger to readers.
// Values may change between calls.
type Current interface {
	Task() AutomationTask
	Messenger() Messenger
}
