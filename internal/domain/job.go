package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action tags the kind of work a generation job performs.
type Action string

const (
	ActionGenerateTrip Action = "GENERATE_TRIP"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BillingStatus tracks the charge for a job independently of its status.
type BillingStatus string

const (
	BillingStatusPending      BillingStatus = "pending"
	BillingStatusCharged      BillingStatus = "charged"
	BillingStatusChargeFailed BillingStatus = "charge_failed"
)

var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusQueued: {
		JobStatusRunning: true,
		JobStatusFailed:  true,
	},
	JobStatusRunning: {
		JobStatusCompleted: true,
		JobStatusFailed:    true,
	},
}

// ValidateTransition returns ErrInvalidStateTransition unless from -> to is a
// forward edge of queued -> running -> {completed, failed}. Queued jobs may
// fail directly so abandoned work can be closed out without running it.
func ValidateTransition(from, to JobStatus) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidStateTransition, from)
	}
	if !allowedTransitions[from][to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
	}
	return nil
}

// Claim is an outstanding hand-off of a completed result. A job with a nil
// Claim is unclaimed; a deleted job is simply absent from the store.
type Claim struct {
	Token     string    `json:"token"`
	ClaimedAt time.Time `json:"claimedAt"`
}

// Expired reports whether the claim is older than ttl at now. A non-positive
// ttl never expires a claim.
func (c *Claim) Expired(now time.Time, ttl time.Duration) bool {
	if c == nil {
		return true
	}
	if ttl <= 0 {
		return false
	}
	return now.Sub(c.ClaimedAt) >= ttl
}

// GenerationJob is the durable record of one generation request and its outcome.
type GenerationJob struct {
	JobID           string          `json:"jobId"`
	UserID          string          `json:"userId"`
	ClientRequestID string          `json:"clientRequestId"`
	TripLocalID     string          `json:"tripLocalId,omitempty"`
	Action          Action          `json:"action"`
	TripInput       TripInput       `json:"tripInput"`
	Status          JobStatus       `json:"status"`
	BillingStatus   BillingStatus   `json:"billingStatus"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	Claim           *Claim          `json:"claim,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	BilledAt        *time.Time      `json:"billedAt,omitempty"`
	FinishedAt      *time.Time      `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy so callers never alias store-owned memory.
func (j *GenerationJob) Clone() *GenerationJob {
	if j == nil {
		return nil
	}
	out := *j
	out.TripInput = j.TripInput.Clone()
	if j.Result != nil {
		out.Result = append(json.RawMessage(nil), j.Result...)
	}
	if j.Claim != nil {
		claim := *j.Claim
		out.Claim = &claim
	}
	out.StartedAt = cloneTime(j.StartedAt)
	out.BilledAt = cloneTime(j.BilledAt)
	out.FinishedAt = cloneTime(j.FinishedAt)
	return &out
}

// HasResult reports whether a result payload is present.
func (j *GenerationJob) HasResult() bool {
	return j != nil && len(j.Result) > 0
}

// JobUpdate carries the fields a caller is transitioning. Nil pointers and
// unset flags leave the stored value untouched.
type JobUpdate struct {
	Status        *JobStatus
	BillingStatus *BillingStatus
	Result        json.RawMessage
	ClearResult   bool
	Error         *string
	ClearClaim    bool
	StartedAt     *time.Time
	BilledAt      *time.Time
	FinishedAt    *time.Time
}

// StatusPtr is a convenience for building JobUpdate literals.
func StatusPtr(s JobStatus) *JobStatus { return &s }

// BillingPtr is a convenience for building JobUpdate literals.
func BillingPtr(s BillingStatus) *BillingStatus { return &s }

// StringPtr is a convenience for building JobUpdate literals.
func StringPtr(s string) *string { return &s }

// TimePtr is a convenience for building JobUpdate literals.
func TimePtr(t time.Time) *time.Time { return &t }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
