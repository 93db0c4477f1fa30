package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestChargePostsSpendTransaction(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotKey    string
		gotBody   transactionRequest
		decodeErr error
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		decodeErr = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	fixed := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	client := NewClient(Options{BaseURL: srv.URL + "/", Logger: infra.NopLogger(), Now: func() time.Time { return fixed }})
	err := client.Charge(context.Background(), domain.Charge{
		UserID:         "traveler@example.com",
		Amount:         70,
		Description:    "Generate Trip: Tokyo",
		AuthToken:      "tok-1",
		IdempotencyKey: "tripgen:traveler@example.com:job-1:charge:v1",
		TransactionID:  "tripgen_charge_job-1",
		Metadata:       map[string]any{"jobId": "job-1", "action": "GENERATE_TRIP"},
	})
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if decodeErr != nil {
		t.Fatalf("decode body: %v", decodeErr)
	}
	if gotPath != "/users/traveler@example.com/transaction" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotKey != "tripgen:traveler@example.com:job-1:charge:v1" {
		t.Fatalf("Idempotency-Key = %q", gotKey)
	}
	tx := gotBody.Transaction
	if tx.ID != "tripgen_charge_job-1" || tx.Amount != -70 || tx.Type != "spend" || tx.Date != fixed.UnixMilli() {
		t.Fatalf("transaction = %+v", tx)
	}
	if tx.Metadata["jobId"] != "job-1" {
		t.Fatalf("metadata = %v", tx.Metadata)
	}
}

func TestChargeRejectedStatus(t *testing.T) {
	client := NewClient(Options{
		BaseURL: "http://ledger.test",
		Logger:  infra.NopLogger(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusPaymentRequired,
				Body:       io.NopCloser(strings.NewReader("insufficient points")),
				Header:     make(http.Header),
			}, nil
		})},
	})
	err := client.Charge(context.Background(), domain.Charge{UserID: "u1", Amount: 10, AuthToken: "t"})
	if !errors.Is(err, domain.ErrChargeRejected) {
		t.Fatalf("Charge err = %v, want ErrChargeRejected", err)
	}
	if !strings.Contains(err.Error(), "insufficient points") {
		t.Fatalf("error does not carry the ledger message: %v", err)
	}
}

func TestChargeTransportError(t *testing.T) {
	client := NewClient(Options{
		BaseURL: "http://ledger.test",
		Logger:  infra.NopLogger(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})},
	})
	if err := client.Charge(context.Background(), domain.Charge{UserID: "u1", Amount: 10}); !errors.Is(err, domain.ErrChargeRejected) {
		t.Fatalf("Charge err = %v, want ErrChargeRejected", err)
	}
}

func TestChargeSkipsFreeAndAnonymous(t *testing.T) {
	var calls int
	client := NewClient(Options{
		Logger: infra.NopLogger(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("unexpected request")
		})},
	})
	for _, charge := range []domain.Charge{
		{UserID: "u1", Amount: 0},
		{UserID: "u1", Amount: -5},
		{UserID: "", Amount: 10},
	} {
		if err := client.Charge(context.Background(), charge); err != nil {
			t.Fatalf("Charge(%+v) = %v, want nil", charge, err)
		}
	}
	if calls != 0 {
		t.Fatalf("ledger contacted %d times", calls)
	}
}

func TestChargeRetryReusesIdempotencyKey(t *testing.T) {
	var (
		mu   sync.Mutex
		keys = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys[r.Header.Get("Idempotency-Key")]++
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, Logger: infra.NopLogger()})
	charge := domain.Charge{UserID: "u1", Amount: 10, IdempotencyKey: "tripgen:u1:j1:charge:v1"}
	for i := 0; i < 2; i++ {
		if err := client.Charge(context.Background(), charge); err != nil {
			t.Fatalf("Charge: %v", err)
		}
	}
	if len(keys) != 1 || keys["tripgen:u1:j1:charge:v1"] != 2 {
		t.Fatalf("idempotency keys seen = %v", keys)
	}
}
