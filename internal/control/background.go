package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/vietddude/botrunner/internal/metrics"
)

// goIsolated runs fn in its own goroutine. Errors and panics are logged and
// counted, never propagated. The returned channel closes when fn exits.
func goIsolated(log *slog.Logger, name string, fn func() error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				metrics.BackgroundErrorsTotal.WithLabelValues(name).Inc()
				log.Error("Background task panicked", "task", name, "panic", r)
			}
		}()

		err := fn()
		if err == nil || errors.Is(err, context.Canceled) {
			log.Debug("Background task exited", "task", name)
			return
		}
		metrics.BackgroundErrorsTotal.WithLabelValues(name).Inc()
		log.Error("Background task failed", "task", name, "error", err)
	}()
	return done
}

// PanicError is a recovered panic from the automation task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("automation task panicked: %v", e.Value)
}

// Format prints the stack with %+v.
func (e *PanicError) Format(f fmt.State, verb rune) {
	_, _ = io.WriteString(f, e.Error())
	if verb == 'v' && f.Flag('+') {
		_, _ = io.WriteString(f, "\n")
		_, _ = f.Write(e.Stack)
	}
}

// runGuarded calls fn and returns a recovered panic as a *PanicError.
func runGuarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
