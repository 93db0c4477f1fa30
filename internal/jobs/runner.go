package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

const (
	chargeFailedMessage   = "Point charge failed. Please retry generation."
	providerFailedMessage = "Generation failed."
)

// ChargeIdempotencyKey is the ledger key for the single charge of a job.
// Retrying the charge for the same job must always reuse it.
func ChargeIdempotencyKey(userID, jobID string) string {
	return fmt.Sprintf("tripgen:%s:%s:charge:v1", userID, jobID)
}

// ChargeTransactionID is the deterministic ledger transaction id for a job.
func ChargeTransactionID(jobID string) string {
	return "tripgen_charge_" + jobID
}

// RunnerOptions wires the collaborators of the execution pipeline.
type RunnerOptions struct {
	Store            *Store
	Guard            *InFlight
	Provider         domain.TripProvider
	Ledger           domain.Ledger
	Pricer           domain.Pricer
	Logger           infra.Logger
	Metrics          *Metrics
	ExecutionTimeout time.Duration
	Now              func() time.Time
}

// Runner drives one job from queued to a terminal state: generate, then
// charge, then publish the result.
type Runner struct {
	store    *Store
	guard    *InFlight
	provider domain.TripProvider
	ledger   domain.Ledger
	pricer   domain.Pricer
	logger   infra.Logger
	metrics  *Metrics
	timeout  time.Duration
	now      func() time.Time
}

func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		store:    opts.Store,
		guard:    opts.Guard,
		provider: opts.Provider,
		ledger:   opts.Ledger,
		pricer:   opts.Pricer,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		timeout:  opts.ExecutionTimeout,
		now:      opts.Now,
	}
	if r.guard == nil {
		r.guard = NewInFlight()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run executes the pipeline for jobID. It returns without doing anything when
// another pipeline holds the job or the job is no longer queued. All outcomes
// are recorded on the job; Run never returns an error.
func (r *Runner) Run(ctx context.Context, jobID, authToken, costDescription string) {
	release, ok := r.guard.Acquire(jobID)
	if !ok {
		r.logger.Debug().Str("job_id", jobID).Msg("pipeline already in flight")
		return
	}
	defer release()

	job, ok := r.store.Get(jobID)
	if !ok || job.Status != domain.JobStatusQueued {
		return
	}
	logger := r.logger.With().Str("job_id", jobID).Str("user_id", job.UserID).Logger()

	started := r.now()
	if _, err := r.store.Update(jobID, domain.JobUpdate{
		Status:        domain.StatusPtr(domain.JobStatusRunning),
		BillingStatus: domain.BillingPtr(domain.BillingStatusPending),
		Error:         domain.StringPtr(""),
		ClearResult:   true,
		ClearClaim:    true,
		StartedAt:     domain.TimePtr(started),
	}); err != nil {
		logger.Warn().Err(err).Msg("could not mark job running")
		return
	}
	logger.Info().Msg("generation started")

	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("generation pipeline panicked")
			r.finish(logger, jobID, started, domain.JobUpdate{
				Status: domain.StatusPtr(domain.JobStatusFailed),
				Error:  domain.StringPtr(fmt.Sprintf("Generation failed: %v", p)),
			})
		}
	}()

	trip, err := r.generate(ctx, job, authToken)
	if err != nil {
		logger.Warn().Err(err).Msg("trip provider failed")
		r.finish(logger, jobID, started, domain.JobUpdate{
			Status: domain.StatusPtr(domain.JobStatusFailed),
			Error:  domain.StringPtr(failureMessage(err)),
		})
		return
	}

	// The sweeper may have timed the job out while the provider was working.
	if !r.store.BeginCharge(jobID) {
		logger.Warn().Msg("job left running state during generation; discarding result uncharged")
		return
	}
	defer r.store.EndCharge(jobID)

	charge := domain.Charge{
		UserID:         job.UserID,
		Amount:         r.pricer.Cost(job.Action, domain.PriceParams{DateRange: job.TripInput.DateRange()}),
		Description:    costDescription,
		AuthToken:      authToken,
		IdempotencyKey: ChargeIdempotencyKey(job.UserID, jobID),
		TransactionID:  ChargeTransactionID(jobID),
		Metadata: map[string]any{
			"jobId":  jobID,
			"action": string(job.Action),
		},
	}
	if err := r.ledger.Charge(ctx, charge); err != nil {
		logger.Error().Err(err).Int("amount", charge.Amount).Msg("point charge failed")
		r.metrics.charge("failed")
		r.finish(logger, jobID, started, domain.JobUpdate{
			Status:        domain.StatusPtr(domain.JobStatusFailed),
			BillingStatus: domain.BillingPtr(domain.BillingStatusChargeFailed),
			Error:         domain.StringPtr(chargeFailedMessage),
		})
		return
	}
	r.metrics.charge("charged")

	billed := r.now()
	r.finish(logger, jobID, started, domain.JobUpdate{
		Status:        domain.StatusPtr(domain.JobStatusCompleted),
		BillingStatus: domain.BillingPtr(domain.BillingStatusCharged),
		Result:        trip,
		Error:         domain.StringPtr(""),
		BilledAt:      domain.TimePtr(billed),
	})
}

// generate calls the provider under the execution timeout and checks the
// output is a JSON object.
func (r *Runner) generate(ctx context.Context, job *domain.GenerationJob, authToken string) (trip json.RawMessage, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	trip, err = r.provider.GenerateTrip(ctx, job.TripInput, job.UserID, authToken)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("generation timed out after %s: %w", r.timeout, err)
		}
		return nil, err
	}

	trimmed := strings.TrimSpace(string(trip))
	if trimmed == "" || !json.Valid([]byte(trimmed)) || !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("%w: provider returned no usable trip", domain.ErrProviderFailure)
	}
	return json.RawMessage(trimmed), nil
}

func (r *Runner) finish(logger infra.Logger, jobID string, started time.Time, u domain.JobUpdate) {
	u.FinishedAt = domain.TimePtr(r.now())
	job, err := r.store.Update(jobID, u)
	if err != nil {
		if u.BillingStatus != nil && *u.BillingStatus == domain.BillingStatusCharged {
			logger.Error().Err(err).Msg("charged job could not be completed; reconcile manually")
		} else {
			logger.Warn().Err(err).Msg("could not record job outcome")
		}
		return
	}
	r.metrics.jobFinished(string(job.Status), string(job.BillingStatus), r.now().Sub(started))
	logger.Info().
		Str("status", string(job.Status)).
		Str("billing_status", string(job.BillingStatus)).
		Msg("generation finished")
}

func failureMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return providerFailedMessage
	}
	return msg
}
