package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func candidateBody(t *testing.T, text string) string {
	t.Helper()
	resp := geminiGenerateContentResponse{Candidates: []geminiCandidate{{
		Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}},
	}}}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

var tokyo = domain.TripInput{"destination": "Tokyo", "dateRange": "5 days", "language": "en"}

func TestGenerateTripSyntheticIsDeterministic(t *testing.T) {
	client := NewClient(Options{Logger: infra.NopLogger()})
	if !client.Synthetic() {
		t.Fatalf("client without key should be synthetic")
	}

	first, err := client.GenerateTrip(context.Background(), tokyo, "u1", "tok")
	if err != nil {
		t.Fatalf("GenerateTrip: %v", err)
	}
	second, err := client.GenerateTrip(context.Background(), tokyo, "u2", "tok")
	if err != nil {
		t.Fatalf("GenerateTrip: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("synthetic trips differ:\n%s\n%s", first, second)
	}

	var trip syntheticItinerary
	if err := json.Unmarshal(first, &trip); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if trip.Destination != "Tokyo" || len(trip.Days) != 5 || !trip.Synthetic {
		t.Fatalf("trip = %+v", trip)
	}
}

func TestGenerateTripRemote(t *testing.T) {
	var gotURL string
	var gotBody geminiGenerateContentRequest
	client := NewClient(Options{
		APIKey:  "secret",
		BaseURL: "https://gemini.test/v1beta/",
		Model:   "gemini-test",
		Logger:  infra.NopLogger(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			gotURL = req.URL.String()
			if err := json.NewDecoder(req.Body).Decode(&gotBody); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			return jsonResponse(http.StatusOK, candidateBody(t, "```json\n{\"title\":\"Tokyo\",\"days\":[]}\n```")), nil
		})},
	})

	trip, err := client.GenerateTrip(context.Background(), tokyo, "u1", "tok")
	if err != nil {
		t.Fatalf("GenerateTrip: %v", err)
	}
	if string(trip) != `{"title":"Tokyo","days":[]}` {
		t.Fatalf("trip = %s", trip)
	}
	if gotURL != "https://gemini.test/v1beta/models/gemini-test:generateContent?key=secret" {
		t.Fatalf("url = %s", gotURL)
	}
	if gotBody.GenerationConfig == nil || gotBody.GenerationConfig.ResponseMimeType != "application/json" {
		t.Fatalf("generation config = %+v", gotBody.GenerationConfig)
	}
	if prompt := gotBody.Contents[0].Parts[0].Text; !strings.Contains(prompt, "Tokyo") || !strings.Contains(prompt, "5 days") {
		t.Fatalf("prompt = %q", prompt)
	}
}

func TestGenerateTripRemoteFailuresDoNotFallBack(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		err  error
	}{
		{name: "api error", resp: jsonResponse(http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`)},
		{name: "transport", err: errors.New("dial tcp: timeout")},
		{name: "empty candidates", resp: jsonResponse(http.StatusOK, `{"candidates":[]}`)},
		{name: "prose", resp: jsonResponse(http.StatusOK, candidateBody(t, "Sorry, I cannot help with that."))},
		{name: "broken json", resp: jsonResponse(http.StatusOK, candidateBody(t, `{"title": "Tokyo",`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(Options{
				APIKey: "secret",
				Logger: infra.NopLogger(),
				HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
					return tt.resp, tt.err
				})},
			})
			trip, err := client.GenerateTrip(context.Background(), tokyo, "u1", "tok")
			if !errors.Is(err, domain.ErrProviderFailure) {
				t.Fatalf("GenerateTrip err = %v, want ErrProviderFailure", err)
			}
			if trip != nil {
				t.Fatalf("failed generation returned a trip: %s", trip)
			}
		})
	}
}

func TestGenerateTripHonoursCancelledContext(t *testing.T) {
	client := NewClient(Options{Logger: infra.NopLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.GenerateTrip(ctx, tokyo, "u1", "tok"); !errors.Is(err, context.Canceled) {
		t.Fatalf("GenerateTrip err = %v, want context.Canceled", err)
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: `Here you go: {"a":{"b":2}} enjoy`, want: `{"a":{"b":2}}`},
		{in: `[1,2,3]`, wantErr: true},
		{in: `{"a":`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := extractJSONObject(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("extractJSONObject(%q) = %s, want error", tt.in, got)
			}
			continue
		}
		if err != nil || string(got) != tt.want {
			t.Errorf("extractJSONObject(%q) = %s, %v; want %s", tt.in, got, err, tt.want)
		}
	}
}
