package infra

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerProductionEmitsJSON(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "api")

	logger.Debug().Msg("hidden")
	logger.Info().Str("job_id", "job-1").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "api" {
		t.Fatalf("service = %v, want api", entry["service"])
	}
	if entry["job_id"] != "job-1" {
		t.Fatalf("job_id = %v, want job-1", entry["job_id"])
	}
}

func TestNewLoggerHonorsLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "api")

	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info log written at warn level: %q", buf.String())
	}
}
