package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const AlertLoginFailureSpike AlertType = "login_failure_spike"

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
)

// metricsCollector tracks a sliding window of login failures and raises an
// alert when the count in the window crosses the threshold. Observability
// only: it never blocks a request.
type metricsCollector struct {
	mu sync.Mutex

	loginFailures  []time.Time
	loginWindow    time.Duration
	loginThreshold int

	alertFn AlertFunc
}

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		loginWindow:    defaultLoginFailureWindow,
		loginThreshold: defaultLoginFailureThreshold,
		alertFn:        alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	if event == AuditLoginFailure {
		m.recordLoginFailure()
	}
}

func (m *metricsCollector) recordLoginFailure() {
	m.mu.Lock()
	now := time.Now()
	m.loginFailures = pruneWindow(append(m.loginFailures, now), now, m.loginWindow)
	count := len(m.loginFailures)
	fire := count >= m.loginThreshold
	if fire {
		// Reset so one sustained burst raises one alert, not one per attempt.
		m.loginFailures = m.loginFailures[:0]
	}
	alertFn := m.alertFn
	threshold := m.loginThreshold
	m.mu.Unlock()

	if fire {
		alertFn(AlertEvent{
			Type:      AlertLoginFailureSpike,
			Message:   "login failure spike detected",
			Count:     count,
			Threshold: threshold,
			Timestamp: now,
		})
	}
}

func pruneWindow(events []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
