package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/botrunner/internal/control"
	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/infra/device"
)

const cacheTTL = 5 * time.Second

// Supervisor is the read side of control.Supervisor.
type Supervisor interface {
	State() domain.SupervisorState
	ConsecutiveFailures() uint
	Current() control.Current
}

// Check probes an external dependency such as the database.
type Check func(ctx context.Context) error

type deviceReporter interface {
	Health() device.Health
}

// Monitor aggregates health status from the supervisor, the live task and
// registered dependency checks.
type Monitor struct {
	supervisor Supervisor
	checks     map[string]Check

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport HealthReport
}

// NewMonitor creates a new health monitor.
func NewMonitor(supervisor Supervisor) *Monitor {
	return &Monitor{supervisor: supervisor, checks: make(map[string]Check)}
}

// AddCheck registers a named dependency check. Not safe after serving starts.
func (m *Monitor) AddCheck(name string, check Check) {
	m.checks[name] = check
}

// CheckHealth builds a report, reusing the previous one for a few seconds.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < cacheTTL {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Supervisor:   m.supervisorHealth(),
	}
	report.SystemStatus = worst(report.SystemStatus, report.Supervisor.Status)

	if task := m.supervisor.Current().Task(); task != nil {
		if r, ok := task.(deviceReporter); ok {
			h := r.Health()
			report.Device = &h
			if !h.Connected && report.Supervisor.State == domain.StateRunning {
				report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
			}
		}
	}

	if len(m.checks) > 0 {
		report.Components = make(map[string]ComponentHealth, len(m.checks))
		for name, check := range m.checks {
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := check(checkCtx)
			cancel()

			c := ComponentHealth{Status: StatusHealthy}
			if err != nil {
				c = ComponentHealth{Status: StatusDegraded, Error: err.Error()}
			}
			report.Components[name] = c
			report.SystemStatus = worst(report.SystemStatus, c.Status)
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) supervisorHealth() SupervisorHealth {
	h := SupervisorHealth{
		Status:              StatusHealthy,
		State:               m.supervisor.State(),
		ConsecutiveFailures: m.supervisor.ConsecutiveFailures(),
	}

	switch h.State {
	case domain.StateStopped:
		h.Status = StatusCritical
	case domain.StateFailed, domain.StateRestarting:
		h.Status = StatusDegraded
	}
	if h.ConsecutiveFailures > 0 {
		h.Status = worst(h.Status, StatusDegraded)
	}
	return h
}
