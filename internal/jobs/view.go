package jobs

import (
	"encoding/json"
	"time"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
)

// PublicJob is the status view of a job. It never carries the claim token or
// the result payload.
type PublicJob struct {
	JobID           string           `json:"jobId"`
	UserID          string           `json:"userId"`
	ClientRequestID string           `json:"clientRequestId"`
	TripLocalID     string           `json:"tripLocalId,omitempty"`
	Action          domain.Action    `json:"action"`
	TripInput       domain.TripInput `json:"tripInput,omitempty"`
	Status          string           `json:"status"`
	BillingStatus   string           `json:"billingStatus"`
	Error           string           `json:"error,omitempty"`
	HasResult       bool             `json:"hasResult"`
	ClaimedAt       *time.Time       `json:"claimedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	BilledAt        *time.Time       `json:"billedAt,omitempty"`
	FinishedAt      *time.Time       `json:"finishedAt,omitempty"`
}

// ToPublicJob maps a job onto its public view field by field.
func ToPublicJob(job *domain.GenerationJob) PublicJob {
	view := PublicJob{
		JobID:           job.JobID,
		UserID:          job.UserID,
		ClientRequestID: job.ClientRequestID,
		TripLocalID:     job.TripLocalID,
		Action:          job.Action,
		TripInput:       job.TripInput.Clone(),
		Status:          string(job.Status),
		BillingStatus:   string(job.BillingStatus),
		Error:           job.Error,
		HasResult:       job.HasResult(),
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		BilledAt:        job.BilledAt,
		FinishedAt:      job.FinishedAt,
	}
	if job.Claim != nil {
		view.ClaimedAt = domain.TimePtr(job.Claim.ClaimedAt)
	}
	return view
}

// ClaimResponse is returned once per successful claim.
type ClaimResponse struct {
	JobID      string          `json:"jobId"`
	Status     string          `json:"status"`
	ClaimToken string          `json:"claimToken"`
	Result     json.RawMessage `json:"result"`
}

func ToClaimResponse(c *ClaimResult) ClaimResponse {
	return ClaimResponse{
		JobID:      c.JobID,
		Status:     string(c.Status),
		ClaimToken: c.ClaimToken,
		Result:     c.Result,
	}
}
