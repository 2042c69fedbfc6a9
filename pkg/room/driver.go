package room

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultMaxRetries is the failure budget of a room's driver when none is configured.
const DefaultMaxRetries = 3

// DriverState is the state of a room's driver circuit breaker.
type DriverState string

const (
	DriverHealthy  DriverState = "HEALTHY"
	DriverRetrying DriverState = "RETRYING"
	DriverPaused   DriverState = "PAUSED"
)

// DriverStatus counts consecutive failures reported by the external driver.
//
// HEALTHY -> RETRYING on the first failure, -> PAUSED once the failure count
// reaches MaxRetries. Recovery returns to HEALTHY from any state. The retry
// budget is fixed at construction.
//
// Fields are unexported so the breaker is only driven through RecordFailure,
// RecordRecovery and AsPaused.
type DriverStatus struct {
	maxRetries          int
	consecutiveFailures int
	lastFailureAt       time.Time
	lastFailureReason   string
	state               DriverState
}

// NewDriverStatus returns a healthy breaker with the given budget.
// A budget below 1 falls back to DefaultMaxRetries.
func NewDriverStatus(maxRetries int) DriverStatus {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return DriverStatus{maxRetries: maxRetries, state: DriverHealthy}
}

// RecordFailure counts one more failure at the given time.
// Returns true when this failure tripped the breaker to PAUSED.
func (d *DriverStatus) RecordFailure(reason string, at time.Time) bool {
	wasPaused := d.state == DriverPaused
	d.consecutiveFailures++
	d.lastFailureAt = at
	d.lastFailureReason = strings.TrimSpace(reason)
	if d.consecutiveFailures >= d.maxRetries {
		d.state = DriverPaused
	} else {
		d.state = DriverRetrying
	}
	return d.state == DriverPaused && !wasPaused
}

// RecordRecovery clears the failure history and returns to HEALTHY.
func (d *DriverStatus) RecordRecovery() {
	d.consecutiveFailures = 0
	d.lastFailureAt = time.Time{}
	d.lastFailureReason = ""
	d.state = DriverHealthy
}

// AsPaused forces the breaker into PAUSED without touching the failure count.
func (d *DriverStatus) AsPaused() {
	d.state = DriverPaused
}

// MaxRetries returns the failure budget.
func (d DriverStatus) MaxRetries() int { return d.maxRetries }

// ConsecutiveFailures returns the number of failures since the last recovery.
func (d DriverStatus) ConsecutiveFailures() int { return d.consecutiveFailures }

// LastFailureAt returns the time of the last failure, zero if none.
func (d DriverStatus) LastFailureAt() time.Time { return d.lastFailureAt }

// LastFailureReason returns the trimmed reason of the last failure.
func (d DriverStatus) LastFailureReason() string { return d.lastFailureReason }

// State returns the current breaker state.
func (d DriverStatus) State() DriverState { return d.state }

// DriverSnapshot is the exported, serializable view of a DriverStatus.
type DriverSnapshot struct {
	MaxRetries          int         `json:"max_retries"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	LastFailureAt       *time.Time  `json:"last_failure_at,omitempty"`
	LastFailureReason   string      `json:"last_failure_reason,omitempty"`
	State               DriverState `json:"state"`
}

// Snapshot returns the serializable view of the breaker.
func (d DriverStatus) Snapshot() DriverSnapshot {
	s := DriverSnapshot{
		MaxRetries:          d.maxRetries,
		ConsecutiveFailures: d.consecutiveFailures,
		LastFailureReason:   d.lastFailureReason,
		State:               d.state,
	}
	if !d.lastFailureAt.IsZero() {
		at := d.lastFailureAt
		s.LastFailureAt = &at
	}
	return s
}

// MarshalJSON encodes the breaker as its DriverSnapshot.
func (d DriverStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Snapshot())
}

// UnmarshalJSON decodes a DriverSnapshot back into the breaker. A missing
// or non-positive max_retries falls back to DefaultMaxRetries and a missing
// state to HEALTHY, as NewDriverStatus does.
func (d *DriverStatus) UnmarshalJSON(data []byte) error {
	var s DriverSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = NewDriverStatus(s.MaxRetries)
	d.consecutiveFailures = s.ConsecutiveFailures
	d.lastFailureReason = s.LastFailureReason
	if s.State != "" {
		d.state = s.State
	}
	if s.LastFailureAt != nil {
		d.lastFailureAt = *s.LastFailureAt
	}
	return nil
}
