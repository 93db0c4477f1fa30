package domain

import (
	"encoding/json"
	"strings"
)

// TripInput holds the client-supplied trip parameters as an opaque document.
// Only a handful of keys are read server-side; everything else is passed to
// the provider untouched.
type TripInput map[string]any

const (
	tripKeyDestination = "destination"
	tripKeyDateRange   = "dateRange"
	tripKeyLanguage    = "language"
)

// String returns the trimmed string value stored at key, or "".
func (t TripInput) String(key string) string {
	if t == nil {
		return ""
	}
	v, ok := t[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (t TripInput) Destination() string { return t.String(tripKeyDestination) }

func (t TripInput) DateRange() string { return t.String(tripKeyDateRange) }

func (t TripInput) Language() string { return t.String(tripKeyLanguage) }

// WithLanguage returns a copy carrying language when none was supplied.
func (t TripInput) WithLanguage(language string) TripInput {
	out := t.Clone()
	if out == nil {
		out = TripInput{}
	}
	if out.Language() == "" && strings.TrimSpace(language) != "" {
		out[tripKeyLanguage] = language
	}
	return out
}

// Clone deep-copies the document through a JSON round trip; trip inputs are
// small and always JSON-shaped.
func (t TripInput) Clone() TripInput {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		out := make(TripInput, len(t))
		for k, v := range t {
			out[k] = v
		}
		return out
	}
	var out TripInput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
