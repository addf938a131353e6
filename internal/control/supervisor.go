package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/infra/storage"
	"github.com/vietddude/botrunner/internal/metrics"
	"github.com/vietddude/botrunner/internal/recovery"
)

// ErrConnectivityExhausted is returned by Run when the device link kept failing.
var ErrConnectivityExhausted = errors.New("connectivity retries exhausted")

// Config holds the supervisor configuration.
type Config struct {
	MessagingEnabled bool
	MessagingToken   string
	SkipTask         bool
	Policy           *recovery.RestartPolicy
}

// Dependencies are the collaborators wired into the supervisor.
type Dependencies struct {
	NewTask      TaskFactory
	NewMessenger MessengerFactory
	Integrations []Integration
	Runs         storage.RunRepository // optional
	Slots        *Slots                // optional, created when nil
	Logger       *slog.Logger          // optional
}

// Supervisor keeps the automation task running across failures.
type Supervisor struct {
	cfg  Config
	deps Dependencies
	log  *slog.Logger

	mu       sync.RWMutex
	state    domain.SupervisorState
	failures uint
}

// NewSupervisor creates a new Supervisor.
func NewSupervisor(cfg Config, deps Dependencies) (*Supervisor, error) {
	if deps.NewTask == nil {
		return nil, fmt.Errorf("task factory is required")
	}
	if cfg.MessagingEnabled && deps.NewMessenger == nil {
		return nil, fmt.Errorf("messaging enabled without a messenger factory")
	}
	if cfg.Policy == nil {
		cfg.Policy = recovery.DefaultPolicy(nil)
	}
	if cfg.Policy.Classifier == nil {
		cfg.Policy.Classifier = recovery.Classify
	}
	if deps.Slots == nil {
		deps.Slots = NewSlots()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Supervisor{
		cfg:   cfg,
		deps:  deps,
		log:   deps.Logger.With("component", "supervisor"),
		state: domain.StateIdle,
	}, nil
}

// Current returns the reader view of the live instances.
func (s *Supervisor) Current() Current {
	return s.deps.Slots
}

// AddIntegration registers another background client. Call before Run.
func (s *Supervisor) AddIntegration(integration Integration) {
	s.deps.Integrations = append(s.deps.Integrations, integration)
}

// State returns the current lifecycle state.
func (s *Supervisor) State() domain.SupervisorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ConsecutiveFailures returns the connectivity failure counter.
func (s *Supervisor) ConsecutiveFailures() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures
}

// Run drives the lifecycle until ctx is cancelled or connectivity retries run out.
// It returns nil on cancellation and ErrConnectivityExhausted otherwise.
func (s *Supervisor) Run(ctx context.Context) error {
	task, messenger := s.start(ctx)
	s.startIntegrations(ctx)

	if s.cfg.SkipTask {
		s.say(task, "Automation task is disabled in config, running integrations only.")
		<-ctx.Done()
		s.transition(task, domain.StateStopped, "Shutting down.")
		return nil
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			s.transition(task, domain.StateStopped, "Shutting down.")
			return nil
		}

		run := s.beginAttempt(ctx, attempt)
		s.transition(task, domain.StateRunning, "Starting bot loop.", "attempt", attempt)

		err := runGuarded(func() error { return task.Run(ctx) })
		if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			s.finishAttempt(ctx, run, domain.RunOutcomeCancelled, false, nil)
			s.transition(task, domain.StateStopped, "Bot loop cancelled.")
			return nil
		}

		if err == nil {
			s.setFailures(0)
			s.finishAttempt(ctx, run, domain.RunOutcomeSucceeded, false, nil)
			metrics.RunsTotal.WithLabelValues(string(domain.RunOutcomeSucceeded), "").Inc()
			s.transition(task, domain.StateSucceeded, "Bot has terminated. Restarting bot process.")
		} else {
			leaves := s.logFailure(task, err)
			category := s.cfg.Policy.Classifier(err)
			connectivity := category == recovery.CategoryConnectivity
			s.finishAttempt(ctx, run, domain.RunOutcomeFailed, connectivity, leaves)
			metrics.RunsTotal.WithLabelValues(string(domain.RunOutcomeFailed), category.String()).Inc()
			s.transition(task, domain.StateFailed, "Bot has terminated due to an error.", "category", category.String())

			if connectivity {
				failures := s.incFailures()
				s.say(task, fmt.Sprintf("Switch connection retry %d/%d.", failures, s.cfg.Policy.MaxConnectivityFailures))
				if s.cfg.Policy.ShouldGiveUp(failures) {
					s.log.Error("Connectivity retries exhausted", "failures", failures)
					s.say(task, fmt.Sprintf("Failed to connect to the Switch after %d retries. Exiting.", failures))
					s.transition(task, domain.StateStopped, "Supervisor stopped.")
					return ErrConnectivityExhausted
				}
			} else {
				s.setFailures(0)
			}
		}

		s.transition(task, domain.StateRestarting, "Waiting before restart.", "delay", s.cfg.Policy.RestartDelay)
		if !sleepCtx(ctx, s.cfg.Policy.RestartDelay) {
			s.transition(task, domain.StateStopped, "Shutting down.")
			return nil
		}
		s.say(task, "Bot is attempting a restart...")

		if s.cfg.MessagingEnabled && messenger != nil {
			if err := messenger.Disconnect(ctx); err != nil {
				s.log.Warn("Messenger disconnect failed", "error", err)
			}
			if ctx.Err() != nil {
				s.transition(task, domain.StateStopped, "Shutting down.")
				return nil
			}
		}

		task, messenger = s.start(ctx)
	}
}

// start builds and publishes a fresh task and messenger, and launches the messenger.
func (s *Supervisor) start(ctx context.Context) (AutomationTask, Messenger) {
	s.setState(domain.StateStarting)

	task := s.deps.NewTask()
	var messenger Messenger
	if s.cfg.MessagingEnabled {
		messenger = s.deps.NewMessenger(task)
	}
	s.deps.Slots.publish(task, messenger)

	if messenger == nil {
		s.say(task, "Messaging is disabled in config.")
		return task, nil
	}

	s.say(task, "Starting messaging.")
	token := s.cfg.MessagingToken
	goIsolated(s.log, "messaging", func() error {
		return messenger.RunMain(ctx, token)
	})
	return task, messenger
}

func (s *Supervisor) startIntegrations(ctx context.Context) {
	for _, integration := range s.deps.Integrations {
		s.log.Info("Starting integration", "name", integration.Name())
		goIsolated(s.log, integration.Name(), func() error {
			return integration.Run(ctx)
		})
	}
}

// logFailure writes every leaf cause of err and returns their messages.
func (s *Supervisor) logFailure(task AutomationTask, err error) []string {
	leaves := recovery.Flatten(err)
	messages := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		msg := leaf.Error()
		messages = append(messages, msg)
		task.Log(msg)

		// Errors formatting a richer %+v form carry their trace there.
		if detail := fmt.Sprintf("%+v", leaf); detail != msg {
			task.Log(detail)
			s.log.Error("Run failure cause", "error", msg, "detail", detail)
			continue
		}
		s.log.Error("Run failure cause", "error", msg)
	}
	return messages
}

func (s *Supervisor) transition(task AutomationTask, state domain.SupervisorState, msg string, attrs ...any) {
	s.setState(state)
	s.log.Info(msg, append([]any{"state", state}, attrs...)...)
	if task != nil {
		task.Log(msg)
	}
}

func (s *Supervisor) say(task AutomationTask, msg string) {
	s.log.Info(msg)
	if task != nil {
		task.Log(msg)
	}
}

func (s *Supervisor) setState(state domain.SupervisorState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	metrics.SupervisorState.Set(domain.StateOrdinal[state])
}

func (s *Supervisor) setFailures(n uint) {
	s.mu.Lock()
	s.failures = n
	s.mu.Unlock()
	metrics.ConnectivityFailures.Set(float64(n))
}

func (s *Supervisor) incFailures() uint {
	s.mu.Lock()
	s.failures++
	n := s.failures
	s.mu.Unlock()
	metrics.ConnectivityFailures.Set(float64(n))
	return n
}

func (s *Supervisor) beginAttempt(ctx context.Context, attempt int) *domain.RunAttempt {
	run := &domain.RunAttempt{
		ID:        uuid.New().String(),
		Attempt:   attempt,
		Outcome:   domain.RunOutcomeRunning,
		StartedAt: time.Now(),
	}
	s.record(ctx, run)
	return run
}

func (s *Supervisor) finishAttempt(
	ctx context.Context,
	run *domain.RunAttempt,
	outcome domain.RunOutcome,
	connectivity bool,
	errs []string,
) {
	run.Outcome = outcome
	run.Connectivity = connectivity
	run.Errors = errs
	run.FinishedAt = time.Now()
	s.record(ctx, run)
}

func (s *Supervisor) record(ctx context.Context, run *domain.RunAttempt) {
	if s.deps.Runs == nil {
		return
	}
	// History must still be written while shutting down.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.deps.Runs.Save(saveCtx, run); err != nil {
		s.log.Warn("Failed to record run attempt", "id", run.ID, "error", err)
	}
}

// sleepCtx waits for d and reports false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
