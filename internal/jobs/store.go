package jobs

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

const (
	restartInterruptedMessage = "Generation interrupted by server restart."
	stuckTimeoutMessage       = "Generation timed out."
	snapshotSaveTimeout       = 10 * time.Second
)

// StoreOptions configures a Store. Zero durations disable the matching
// sweep rule; a zero ClaimTTL keeps claims outstanding until acked.
type StoreOptions struct {
	ClaimTTL   time.Duration
	Retention  time.Duration
	StuckAfter time.Duration
	Snapshots  domain.JobSnapshotRepository
	Logger     infra.Logger
	Now        func() time.Time
}

// CreateParams is the input to Store.Create.
type CreateParams struct {
	UserID          string
	ClientRequestID string
	TripLocalID     string
	Action          domain.Action
	TripInput       domain.TripInput
}

// PurgeReport counts what one sweep pass changed.
type PurgeReport struct {
	Purged         int
	ReleasedClaims int
	TimedOut       int
}

// Empty reports whether the pass changed nothing.
func (r PurgeReport) Empty() bool {
	return r.Purged == 0 && r.ReleasedClaims == 0 && r.TimedOut == 0
}

type requestKey struct {
	userID          string
	clientRequestID string
}

// Store is the in-memory generation job table. Every exported method is a
// single critical section and returns copies, never references into the table.
type Store struct {
	mu        sync.Mutex
	jobs      map[string]*domain.GenerationJob
	byRequest map[requestKey]string
	charging  map[string]struct{}

	saveMu    sync.Mutex
	snapshots domain.JobSnapshotRepository

	claimTTL   time.Duration
	retention  time.Duration
	stuckAfter time.Duration
	logger     infra.Logger
	now        func() time.Time
}

// NewStore builds a Store and, when a snapshot repository is configured,
// loads the previously saved table from it.
func NewStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	s := &Store{
		jobs:       make(map[string]*domain.GenerationJob),
		byRequest:  make(map[requestKey]string),
		charging:   make(map[string]struct{}),
		snapshots:  opts.Snapshots,
		claimTTL:   opts.ClaimTTL,
		retention:  opts.Retention,
		stuckAfter: opts.StuckAfter,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.snapshots == nil {
		return s, nil
	}

	saved, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load job snapshot: %w", err)
	}
	for i := range saved {
		job := saved[i]
		if job.JobID == "" || job.UserID == "" {
			s.logger.Warn().Str("job_id", job.JobID).Msg("skipping malformed job in snapshot")
			continue
		}
		s.jobs[job.JobID] = job.Clone()
		if job.ClientRequestID != "" {
			s.byRequest[requestKey{job.UserID, job.ClientRequestID}] = job.JobID
		}
	}
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("job table restored from snapshot")
	return s, nil
}

// Create inserts a queued job unless one already exists for the same
// (user, client request id); in that case the existing job is returned with
// created=false and nothing changes.
func (s *Store) Create(p CreateParams) (*domain.GenerationJob, bool) {
	s.mu.Lock()
	key := requestKey{p.UserID, p.ClientRequestID}
	if id, ok := s.byRequest[key]; ok {
		if existing, ok := s.jobs[id]; ok {
			out := existing.Clone()
			s.mu.Unlock()
			return out, false
		}
	}

	job := &domain.GenerationJob{
		JobID:           uuid.NewString(),
		UserID:          p.UserID,
		ClientRequestID: p.ClientRequestID,
		TripLocalID:     p.TripLocalID,
		Action:          p.Action,
		TripInput:       p.TripInput.Clone(),
		Status:          domain.JobStatusQueued,
		BillingStatus:   domain.BillingStatusPending,
		CreatedAt:       s.now().UTC(),
	}
	s.jobs[job.JobID] = job
	s.byRequest[key] = job.JobID
	out := job.Clone()
	s.mu.Unlock()

	s.persist()
	return out, true
}

// FindByClientRequestID returns the job created for (userID, clientRequestID).
func (s *Store) FindByClientRequestID(userID, clientRequestID string) (*domain.GenerationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRequest[requestKey{userID, clientRequestID}]
	if !ok {
		return nil, false
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Get returns a copy of the job.
func (s *Store) Get(jobID string) (*domain.GenerationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Update applies every field in u atomically and returns the new state.
func (s *Store) Update(jobID string, u domain.JobUpdate) (*domain.GenerationJob, error) {
	s.mu.Lock()
	current, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}

	next := current.Clone()
	if u.Status != nil && *u.Status != current.Status {
		if err := domain.ValidateTransition(current.Status, *u.Status); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("job %s: %w", jobID, err)
		}
		next.Status = *u.Status
	}
	if u.BillingStatus != nil {
		next.BillingStatus = *u.BillingStatus
	}
	if u.ClearResult {
		next.Result = nil
	}
	if len(u.Result) > 0 {
		next.Result = append([]byte(nil), u.Result...)
	}
	if u.Error != nil {
		next.Error = *u.Error
	}
	if u.ClearClaim {
		next.Claim = nil
	}
	if u.StartedAt != nil {
		next.StartedAt = domain.TimePtr(u.StartedAt.UTC())
	}
	if u.BilledAt != nil {
		next.BilledAt = domain.TimePtr(u.BilledAt.UTC())
	}
	if u.FinishedAt != nil {
		next.FinishedAt = domain.TimePtr(u.FinishedAt.UTC())
	}

	if err := checkJobInvariants(next); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	s.jobs[jobID] = next
	out := next.Clone()
	s.mu.Unlock()

	s.persist()
	return out, nil
}

func checkJobInvariants(job *domain.GenerationJob) error {
	switch {
	case job.Status == domain.JobStatusCompleted && !job.HasResult():
		return fmt.Errorf("%w: completed job without result", domain.ErrInvalidStateTransition)
	case job.Status != domain.JobStatusCompleted && job.HasResult():
		return fmt.Errorf("%w: result on %s job", domain.ErrInvalidStateTransition, job.Status)
	case job.Status == domain.JobStatusFailed && job.Error == "":
		return fmt.Errorf("%w: failed job without error", domain.ErrInvalidStateTransition)
	case job.BillingStatus == domain.BillingStatusChargeFailed && job.Status != domain.JobStatusFailed:
		return fmt.Errorf("%w: charge_failed on %s job", domain.ErrInvalidStateTransition, job.Status)
	case job.BillingStatus == domain.BillingStatusCharged && !job.HasResult():
		return fmt.Errorf("%w: charged without result", domain.ErrInvalidStateTransition)
	case job.Claim != nil && job.Status != domain.JobStatusCompleted:
		return fmt.Errorf("%w: claim on %s job", domain.ErrInvalidStateTransition, job.Status)
	}
	return nil
}

// BeginCharge marks a running job as being charged and reports whether it
// was still running. The sweeper leaves a charging job alone until EndCharge,
// so a successful charge is always followed by a recordable outcome.
func (s *Store) BeginCharge(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.JobStatusRunning {
		return false
	}
	s.charging[jobID] = struct{}{}
	return true
}

// EndCharge clears the mark set by BeginCharge.
func (s *Store) EndCharge(jobID string) {
	s.mu.Lock()
	delete(s.charging, jobID)
	s.mu.Unlock()
}

// Claim hands the completed result to one consumer. It fails with
// ErrNotClaimable unless the job exists, belongs to userID, is completed with
// a result, and has no unexpired claim outstanding.
func (s *Store) Claim(jobID, userID string) (*domain.GenerationJob, string, error) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID || job.Status != domain.JobStatusCompleted || !job.HasResult() {
		s.mu.Unlock()
		return nil, "", domain.ErrNotClaimable
	}
	now := s.now().UTC()
	if job.Claim != nil && !job.Claim.Expired(now, s.claimTTL) {
		s.mu.Unlock()
		return nil, "", domain.ErrNotClaimable
	}

	token := uuid.NewString()
	job.Claim = &domain.Claim{Token: token, ClaimedAt: now}
	out := job.Clone()
	s.mu.Unlock()

	s.persist()
	return out, token, nil
}

// Ack deletes the job when token matches the outstanding claim and userID
// owns the job. It reports whether the deletion happened.
func (s *Store) Ack(jobID, userID, token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.UserID != userID || job.Claim == nil {
		s.mu.Unlock()
		return false
	}
	if subtle.ConstantTimeCompare([]byte(job.Claim.Token), []byte(token)) != 1 {
		s.mu.Unlock()
		return false
	}
	s.deleteLocked(job)
	s.mu.Unlock()

	s.persist()
	return true
}

// PurgeExpired removes terminal jobs past retention, releases expired claims
// and fails queued or running jobs older than the stuck threshold unless they
// are mid-charge.
func (s *Store) PurgeExpired(verbose bool) PurgeReport {
	var report PurgeReport
	s.mu.Lock()
	now := s.now().UTC()
	for _, job := range s.jobs {
		if job.Status.Terminal() {
			ref := job.CreatedAt
			if job.FinishedAt != nil {
				ref = *job.FinishedAt
			}
			if s.retention > 0 && now.Sub(ref) >= s.retention {
				s.deleteLocked(job)
				report.Purged++
				if verbose {
					s.logger.Info().Str("job_id", job.JobID).Str("user_id", job.UserID).
						Str("status", string(job.Status)).Msg("purged expired job")
				}
				continue
			}
			if s.claimTTL > 0 && job.Claim != nil && job.Claim.Expired(now, s.claimTTL) {
				job.Claim = nil
				report.ReleasedClaims++
				if verbose {
					s.logger.Info().Str("job_id", job.JobID).Str("user_id", job.UserID).Msg("released expired claim")
				}
			}
			continue
		}

		if _, busy := s.charging[job.JobID]; busy {
			continue
		}
		ref := job.CreatedAt
		if job.StartedAt != nil {
			ref = *job.StartedAt
		}
		if s.stuckAfter > 0 && now.Sub(ref) >= s.stuckAfter {
			failLocked(job, stuckTimeoutMessage, now)
			report.TimedOut++
			if verbose {
				s.logger.Warn().Str("job_id", job.JobID).Str("user_id", job.UserID).Msg("failed stuck job")
			}
		}
	}
	s.mu.Unlock()

	if !report.Empty() {
		s.persist()
	}
	return report
}

// FailStuckOnStartup fails every queued or running job. Nothing can be
// executing yet when it runs, so any such job was abandoned by a previous
// process.
func (s *Store) FailStuckOnStartup() int {
	n := 0
	s.mu.Lock()
	now := s.now().UTC()
	for _, job := range s.jobs {
		if job.Status.Terminal() {
			continue
		}
		failLocked(job, restartInterruptedMessage, now)
		n++
	}
	s.mu.Unlock()

	if n > 0 {
		s.persist()
	}
	return n
}

// Len returns the number of jobs in the table.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func failLocked(job *domain.GenerationJob, message string, now time.Time) {
	job.Status = domain.JobStatusFailed
	job.Error = message
	job.Result = nil
	job.Claim = nil
	job.FinishedAt = domain.TimePtr(now)
}

func (s *Store) deleteLocked(job *domain.GenerationJob) {
	delete(s.jobs, job.JobID)
	key := requestKey{job.UserID, job.ClientRequestID}
	if s.byRequest[key] == job.JobID {
		delete(s.byRequest, key)
	}
}

// snapshot copies the table ordered by creation time.
func (s *Store) snapshot() []domain.GenerationJob {
	s.mu.Lock()
	out := make([]domain.GenerationJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// persist writes the current table. Holding saveMu across snapshot and save
// keeps a later mutation from being overwritten by an older snapshot.
func (s *Store) persist() {
	if s.snapshots == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), snapshotSaveTimeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, s.snapshot()); err != nil {
		s.logger.Error().Err(err).Msg("failed to save job snapshot")
	}
}
