package jobs

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
)

func TestToPublicJobHidesTokenAndResult(t *testing.T) {
	claimedAt := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	job := &domain.GenerationJob{
		JobID:           "job-1",
		UserID:          "u1",
		ClientRequestID: "r1",
		Action:          domain.ActionGenerateTrip,
		TripInput:       domain.TripInput{"destination": "Kyoto"},
		Status:          domain.JobStatusCompleted,
		BillingStatus:   domain.BillingStatusCharged,
		Result:          sampleTrip,
		Claim:           &domain.Claim{Token: "secret-token", ClaimedAt: claimedAt},
		CreatedAt:       claimedAt.Add(-time.Hour),
	}

	view := ToPublicJob(job)
	if !view.HasResult {
		t.Fatalf("HasResult = false for a completed job")
	}
	if view.ClaimedAt == nil || !view.ClaimedAt.Equal(claimedAt) {
		t.Fatalf("ClaimedAt = %v, want %v", view.ClaimedAt, claimedAt)
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	body := string(data)
	for _, leak := range []string{"secret-token", "Kyoto in autumn", `"result"`, `"claim"`} {
		if strings.Contains(body, leak) {
			t.Fatalf("public view leaks %q: %s", leak, body)
		}
	}
	for _, key := range []string{`"jobId":"job-1"`, `"status":"completed"`, `"billingStatus":"charged"`, `"hasResult":true`} {
		if !strings.Contains(body, key) {
			t.Fatalf("public view missing %s: %s", key, body)
		}
	}
}

func TestToClaimResponse(t *testing.T) {
	resp := ToClaimResponse(&ClaimResult{
		JobID:      "job-1",
		Status:     domain.JobStatusCompleted,
		ClaimToken: "tok",
		Result:     sampleTrip,
	})
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"jobId":"job-1","status":"completed","claimToken":"tok","result":` + string(sampleTrip) + `}`
	if string(data) != want {
		t.Fatalf("claim response = %s, want %s", data, want)
	}
}
