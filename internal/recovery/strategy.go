package recovery

import "time"

// RestartPolicy decides how the supervisor reacts to a finished run.
type RestartPolicy struct {
	// RestartDelay is the pause before every restart.
	RestartDelay time.Duration
	// MaxConnectivityFailures consecutive connectivity failures stop the loop.
	MaxConnectivityFailures uint
	Classifier              Classifier
}

// DefaultPolicy returns a 10s delay and a limit of 3 connectivity failures.
func DefaultPolicy(classifier Classifier) *RestartPolicy {
	if classifier == nil {
		classifier = Classify
	}
	return &RestartPolicy{
		RestartDelay:            10 * time.Second,
		MaxConnectivityFailures: 3,
		Classifier:              classifier,
	}
}

// ShouldGiveUp reports whether the consecutive connectivity failure count
// has reached the limit.
func (p *RestartPolicy) ShouldGiveUp(consecutive uint) bool {
	return consecutive >= p.MaxConnectivityFailures
}
