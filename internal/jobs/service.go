package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

// CreateRequest is the caller-facing input of Service.Create.
type CreateRequest struct {
	UserID          string
	RequestedUserID string
	AuthToken       string
	ClientRequestID string
	TripLocalID     string
	Action          domain.Action
	TripInput       domain.TripInput
	CostDescription string
}

// ClaimResult is what a successful claim hands to the consumer.
type ClaimResult struct {
	JobID      string
	Status     domain.JobStatus
	ClaimToken string
	Result     json.RawMessage
}

// ServiceOptions wires a Service.
type ServiceOptions struct {
	Store   *Store
	Runner  *Runner
	Logger  infra.Logger
	Metrics *Metrics
}

// Service is the boundary used by the HTTP layer: validation, ownership
// checks and asynchronous launch of the pipeline.
type Service struct {
	store   *Store
	runner  *Runner
	logger  infra.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(opts ServiceOptions) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:   opts.Store,
		runner:  opts.Runner,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Create registers a generation job and starts its pipeline in the
// background. A repeated request with the same client request id returns the
// existing job with created=false and launches nothing.
func (s *Service) Create(req CreateRequest) (*domain.GenerationJob, bool, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, false, domain.ErrUnauthorized
	}
	if requested := strings.TrimSpace(req.RequestedUserID); requested != "" && requested != userID {
		return nil, false, domain.ErrForbidden
	}
	if req.Action != domain.ActionGenerateTrip {
		return nil, false, fmt.Errorf("%w: Only GENERATE_TRIP supports durable generation job.", domain.ErrValidation)
	}
	if req.TripInput == nil {
		return nil, false, fmt.Errorf("%w: tripInput is required.", domain.ErrValidation)
	}
	clientRequestID := strings.TrimSpace(req.ClientRequestID)
	if clientRequestID == "" {
		return nil, false, fmt.Errorf("%w: clientRequestId is required.", domain.ErrValidation)
	}

	if existing, ok := s.store.FindByClientRequestID(userID, clientRequestID); ok {
		s.metrics.jobCreated(false)
		return existing, false, nil
	}
	if strings.TrimSpace(req.AuthToken) == "" {
		return nil, false, domain.ErrUnauthorized
	}

	job, created := s.store.Create(CreateParams{
		UserID:          userID,
		ClientRequestID: clientRequestID,
		TripLocalID:     strings.TrimSpace(req.TripLocalID),
		Action:          req.Action,
		TripInput:       req.TripInput,
	})
	s.metrics.jobCreated(created)
	if !created {
		return job, false, nil
	}

	description := strings.TrimSpace(req.CostDescription)
	if description == "" {
		description = DefaultCostDescription(job.TripInput)
	}
	s.logger.Info().Str("job_id", job.JobID).Str("user_id", userID).Msg("generation job created")
	s.launch(job.JobID, req.AuthToken, description)
	return job, true, nil
}

// DefaultCostDescription labels the ledger entry of a trip generation.
func DefaultCostDescription(input domain.TripInput) string {
	destination := input.Destination()
	if destination == "" {
		destination = "Unknown"
	}
	return "Generate Trip: " + destination
}

func (s *Service) launch(jobID, authToken, description string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runner.Run(s.ctx, jobID, authToken, description)
	}()
}

// Get returns the job when userID owns it.
func (s *Service) Get(jobID, userID string) (*domain.GenerationJob, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	job, ok := s.store.Get(jobID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if job.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

// Claim issues a one-time token for the completed result.
func (s *Service) Claim(jobID, userID string) (*ClaimResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrUnauthorized
	}
	job, token, err := s.store.Claim(jobID, userID)
	if err != nil {
		s.metrics.claim("rejected")
		return nil, err
	}
	s.metrics.claim("claimed")
	s.logger.Info().Str("job_id", jobID).Str("user_id", userID).Msg("generation job claimed")
	return &ClaimResult{
		JobID:      job.JobID,
		Status:     job.Status,
		ClaimToken: token,
		Result:     job.Result,
	}, nil
}

// Ack confirms receipt of a claimed result and removes the job.
func (s *Service) Ack(jobID, userID, claimToken string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(claimToken) == "" {
		return fmt.Errorf("%w: claimToken is required.", domain.ErrValidation)
	}
	if !s.store.Ack(jobID, userID, claimToken) {
		s.metrics.ack("rejected")
		return domain.ErrForbidden
	}
	s.metrics.ack("acked")
	s.logger.Info().Str("job_id", jobID).Str("user_id", userID).Msg("generation job acknowledged")
	return nil
}

// Wait blocks until every launched pipeline has returned. If ctx ends first
// the running pipelines are cancelled, which records them as failed.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// Len reports how many jobs the store currently holds.
func (s *Service) Len() int {
	return s.store.Len()
}
