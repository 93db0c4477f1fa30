package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	store := newTestStore(t, newFakeClock(), nil)
	if _, err := NewSweeper(store, "every hour", infra.NopLogger(), nil); err == nil {
		t.Fatalf("NewSweeper accepted an invalid schedule")
	}
	if _, err := NewSweeper(store, "*/5 * * * *", infra.NopLogger(), nil); err != nil {
		t.Fatalf("NewSweeper rejected a standard schedule: %v", err)
	}
}

// A restart leaves a running job behind; startup recovery fails it.
func TestSweeperStartRecoversInterruptedJobs(t *testing.T) {
	clock := newFakeClock()
	snapshots := &memorySnapshots{}
	before := newTestStore(t, clock, snapshots)
	job, _ := before.Create(tripParams("u1", "r3"))
	if _, err := before.Update(job.JobID, domain.JobUpdate{Status: domain.StatusPtr(domain.JobStatusRunning)}); err != nil {
		t.Fatalf("mark running: %v", err)
	}

	after := newTestStore(t, clock, snapshots)
	metrics := NewMetrics(prometheus.NewRegistry())
	sweeper, err := NewSweeper(after, "@every 1h", infra.NopLogger(), metrics)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	if err := sweeper.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sweeper.Stop(ctx)
	})

	got, ok := after.Get(job.JobID)
	if !ok {
		t.Fatalf("job missing after restart")
	}
	if got.Status != domain.JobStatusFailed || got.Error != "Generation interrupted by server restart." {
		t.Fatalf("job = %s (%q), want failed by restart", got.Status, got.Error)
	}
	if _, _, err := after.Claim(job.JobID, "u1"); err == nil {
		t.Fatalf("interrupted job is claimable")
	}
	if got := testutil.ToFloat64(metrics.swept.WithLabelValues("interrupted")); got != 1 {
		t.Fatalf("interrupted metric = %v, want 1", got)
	}

	if err := sweeper.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}

func TestSweeperRunOncePurges(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, nil)
	job, _ := store.Create(tripParams("u1", "r1"))
	if _, err := store.Update(job.JobID, domain.JobUpdate{
		Status: domain.StatusPtr(domain.JobStatusFailed),
		Error:  domain.StringPtr("provider down"),
	}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	clock.Advance(25 * time.Hour)

	sweeper, err := NewSweeper(store, "@every 1h", infra.NopLogger(), nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	if report := sweeper.RunOnce(); report.Purged != 1 {
		t.Fatalf("RunOnce() = %+v, want one purge", report)
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", store.Len())
	}
	sweeper.Stop(context.Background())
}
