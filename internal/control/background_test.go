package control

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestGoIsolated_SwallowsPanic(t *testing.T) {
	done := goIsolated(slog.Default(), "test", func() error {
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("isolated goroutine did not finish")
	}
}

func TestGoIsolated_SwallowsError(t *testing.T) {
	done := goIsolated(slog.Default(), "test", func() error {
		return errors.New("failed")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("isolated goroutine did not finish")
	}
}

func TestSlots_SwapIsVisible(t *testing.T) {
	slots := NewSlots()
	if slots.Task() != nil || slots.Messenger() != nil {
		t.Fatal("expected empty slots")
	}

	first := &fakeTask{}
	slots.publish(first, nil)
	if slots.Task() != AutomationTask(first) {
		t.Error("expected first task")
	}

	second := &fakeTask{}
	slots.publish(second, nil)
	if slots.Task() != AutomationTask(second) {
		t.Error("expected second task after swap")
	}
}
