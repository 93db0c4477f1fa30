package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

// Options controls how the ledger client is configured.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     infra.Logger
	Now        func() time.Time
}

// Client deducts points through the external user-data server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     infra.Logger
	now        func() time.Time
}

type transaction struct {
	ID          string         `json:"id"`
	Date        int64          `json:"date"`
	Amount      int            `json:"amount"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type transactionRequest struct {
	Transaction transaction `json:"transaction"`
}

func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:3002"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: client,
		logger:     opts.Logger,
		now:        now,
	}
}

// Charge posts a spend transaction. Zero-cost charges and anonymous users
// succeed without a request. Any non-2xx answer or transport error is
// reported as domain.ErrChargeRejected.
func (c *Client) Charge(ctx context.Context, charge domain.Charge) error {
	if charge.Amount <= 0 || strings.TrimSpace(charge.UserID) == "" {
		return nil
	}

	idempotencyKey := charge.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	transactionID := charge.TransactionID
	if transactionID == "" {
		transactionID = uuid.NewString()
	}

	body, err := json.Marshal(transactionRequest{Transaction: transaction{
		ID:          transactionID,
		Date:        c.now().UnixMilli(),
		Amount:      -charge.Amount,
		Type:        "spend",
		Description: charge.Description,
		Metadata:    charge.Metadata,
	}})
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/transaction", c.baseURL, url.PathEscape(charge.UserID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+charge.AuthToken)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("user_id", charge.UserID).Msg("ledger: request failed")
		return fmt.Errorf("%w: %v", domain.ErrChargeRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("user_id", charge.UserID).
			Str("idempotency_key", idempotencyKey).
			Msg("ledger: point deduction rejected")
		if msg := strings.TrimSpace(string(data)); msg != "" {
			return fmt.Errorf("%w: status %d: %s", domain.ErrChargeRejected, resp.StatusCode, msg)
		}
		return fmt.Errorf("%w: status %d", domain.ErrChargeRejected, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
