package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
	"github.com/JasonHongGG/TravelPlanner/internal/pricing"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     infra.Logger
}

// Client generates trip itineraries with Gemini. Without an API key it
// returns a deterministic synthetic itinerary so local and CI environments
// run the whole job pipeline.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount   int    `json:"candidateCount,omitempty"`
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; one with a generous timeout is created because trip
// generation routinely takes minutes.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     opts.Logger,
	}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client answers without calling Gemini.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// GenerateTrip returns the itinerary for input as a JSON object. Remote
// failures are returned to the caller; there is no synthetic fallback once an
// API key is configured.
func (c *Client) GenerateTrip(ctx context.Context, input domain.TripInput, userID, authToken string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Synthetic() {
		return c.syntheticTrip(input)
	}

	payload := geminiGenerateContentRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: tripSystemInstruction}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildTripPrompt(input)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}

	text := responseText(response)
	if text == "" {
		return nil, fmt.Errorf("%w: gemini returned no content", domain.ErrProviderFailure)
	}
	trip, err := extractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}

	c.logger.Debug().
		Str("user_id", userID).
		Str("model", c.model).
		Int("bytes", len(trip)).
		Msg("genai: generated remote trip")
	return trip, nil
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		if len(data) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func responseText(resp geminiGenerateContentResponse) string {
	for _, candidate := range resp.Candidates {
		var b strings.Builder
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text
		}
	}
	return ""
}

// extractJSONObject strips markdown fences and returns the object they held.
func extractJSONObject(text string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	cleaned = cleaned[start : end+1]
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return json.RawMessage(cleaned), nil
}

const tripSystemInstruction = "You are a travel planner. Answer with a single JSON object describing the itinerary: " +
	"title, destination, days (array of {day, title, activities}), and tips. Do not add prose outside the JSON."

func buildTripPrompt(input domain.TripInput) string {
	var b strings.Builder
	b.WriteString("Plan a trip")
	if dest := input.Destination(); dest != "" {
		b.WriteString(" to ")
		b.WriteString(dest)
	}
	if dates := input.DateRange(); dates != "" {
		b.WriteString(" for ")
		b.WriteString(dates)
	}
	b.WriteString(".")
	if lang := input.Language(); lang != "" {
		b.WriteString("\nWrite every text field in ")
		b.WriteString(lang)
		b.WriteString(".")
	}
	if raw, err := json.Marshal(input); err == nil {
		b.WriteString("\nTraveler preferences (JSON): ")
		b.Write(raw)
	}
	return b.String()
}

type syntheticActivity struct {
	Time  string `json:"time"`
	Title string `json:"title"`
}

type syntheticDay struct {
	Day        int                 `json:"day"`
	Title      string              `json:"title"`
	Activities []syntheticActivity `json:"activities"`
}

type syntheticItinerary struct {
	Title       string         `json:"title"`
	Destination string         `json:"destination"`
	DateRange   string         `json:"dateRange,omitempty"`
	Language    string         `json:"language,omitempty"`
	Days        []syntheticDay `json:"days"`
	Synthetic   bool           `json:"synthetic"`
	Seed        string         `json:"seed"`
}

func (c *Client) syntheticTrip(input domain.TripInput) (json.RawMessage, error) {
	destination := firstNonEmpty(input.Destination(), "Somewhere")
	days := pricing.TripDays(input.DateRange())
	seed := deterministicSeed(c.model, destination, input.DateRange(), input.Language())

	trip := syntheticItinerary{
		Title:       fmt.Sprintf("%d days in %s", days, destination),
		Destination: destination,
		DateRange:   input.DateRange(),
		Language:    input.Language(),
		Synthetic:   true,
		Seed:        seed,
	}
	for day := 1; day <= days; day++ {
		trip.Days = append(trip.Days, syntheticDay{
			Day:   day,
			Title: fmt.Sprintf("Day %d in %s", day, destination),
			Activities: []syntheticActivity{
				{Time: "09:00", Title: fmt.Sprintf("Morning walk around %s", destination)},
				{Time: "13:00", Title: "Local lunch"},
				{Time: "19:00", Title: "Evening free time"},
			},
		})
	}

	data, err := json.Marshal(trip)
	if err != nil {
		return nil, fmt.Errorf("marshal synthetic trip: %w", err)
	}
	c.logger.Debug().
		Str("destination", destination).
		Int("days", days).
		Msg("genai: generated synthetic trip")
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
