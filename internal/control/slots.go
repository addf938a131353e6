package control

import "sync/atomic"

type handles struct {
	task      AutomationTask
	messenger Messenger
}

// Slots holds the currently live task and messenger.
// The supervisor is the only writer; each write swaps in a new immutable pair.
type Slots struct {
	cur atomic.Pointer[handles]
}

var _ Current = (*Slots)(nil)

// NewSlots creates an empty cell.
func NewSlots() *Slots {
	return &Slots{}
}

// Task returns the live automation task, or nil before the first start.
func (s *Slots) Task() AutomationTask {
	if h := s.cur.Load(); h != nil {
		return h.task
	}
	return nil
}

// Messenger returns the live messenger, or nil when messaging is disabled.
func (s *Slots) Messenger() Messenger {
	if h := s.cur.Load(); h != nil {
		return h.messenger
	}
	return nil
}

func (s *Slots) publish(task AutomationTask, messenger Messenger) {
	s.cur.Store(&handles{task: task, messenger: messenger})
}
