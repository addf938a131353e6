// Package health provides system health monitoring and status reporting.
package health

import (
	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/infra/device"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// SupervisorHealth describes the restart loop.
type SupervisorHealth struct {
	Status              SystemStatus           `json:"status"`
	State               domain.SupervisorState `json:"state"`
	ConsecutiveFailures uint                   `json:"consecutive_failures"`
}

// ComponentHealth is the result of a named dependency check.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Supervisor   SupervisorHealth           `json:"supervisor"`
	Device       *device.Health             `json:"device,omitempty"`
	Components   map[string]ComponentHealth `json:"components,omitempty"`
}

// worst returns the more severe of a and b.
func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
