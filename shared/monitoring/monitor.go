package monitoring

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Monitor tracks the outcome of the most recent run. It is written by the scheduler and read by
// the health server, so all access goes through mu.
type Monitor struct {
	mu              sync.RWMutex
	lastRunSuccess  bool
	lastRunTime     time.Time
	lastSummary     string
	partialFailures int
	now             func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{now: time.Now}
}

func (m *Monitor) RecordSuccess(summary string, duration time.Duration) {
	m.mu.Lock()
	m.lastRunSuccess = true
	m.lastRunTime = m.now()
	m.lastSummary = summary
	m.mu.Unlock()

	log.WithField("duration", duration).Infof("✅ Run completed successfully - %s", summary)
}

func (m *Monitor) RecordPartialFailure(err error, duration time.Duration) {
	// Partial failures do not change health status.
	m.mu.Lock()
	m.partialFailures++
	m.mu.Unlock()

	log.WithField("duration", duration).Warnf("⚠️  PARTIAL FAILURE: %v", err)
}

func (m *Monitor) RecordCriticalFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.lastRunSuccess = false
	m.lastRunTime = m.now()
	m.lastSummary = err.Error()
	failedAt := m.lastRunTime
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"duration":  duration,
		"failed_at": failedAt.Format("2006-01-02 15:04:05"),
	}).Errorf("🚨 CRITICAL FAILURE: %v", err)
}

func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastRunTime.IsZero() {
		return true // No runs yet
	}
	return m.lastRunSuccess
}

func (m *Monitor) GetStatusSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastRunTime.IsZero() {
		return "No runs yet"
	}

	status := fmt.Sprintf("✅ Last run: %s", m.lastRunTime.Format("Jan 2 15:04"))
	if !m.lastRunSuccess {
		status = fmt.Sprintf("❌ Last run failed: %s", m.lastRunTime.Format("Jan 2 15:04"))
	}
	if m.lastSummary != "" {
		status += " - " + m.lastSummary
	}
	if m.partialFailures > 0 {
		status += fmt.Sprintf(" (%d partial failures since start)", m.partialFailures)
	}
	return status
}
