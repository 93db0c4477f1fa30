package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignAndVerifyJWT(t *testing.T) {
	secret := "test-secret"
	claims := TokenClaims{
		Sub:      "user-123",
		Email:    "traveler@example.com",
		Locale:   "ja",
		Exp:      time.Now().Add(time.Hour).Unix(),
		Issuer:   "tester",
		Audience: "clients",
	}
	token, err := SignJWT(secret, claims)
	if err != nil {
		t.Fatalf("SignJWT() unexpected error: %v", err)
	}
	parsed, err := VerifyJWT(secret, token)
	if err != nil {
		t.Fatalf("VerifyJWT() unexpected error: %v", err)
	}
	if *parsed != claims {
		t.Fatalf("VerifyJWT() returned %+v, want %+v", parsed, claims)
	}
	if parsed.UserID() != "traveler@example.com" {
		t.Fatalf("UserID() = %q, want the email", parsed.UserID())
	}
}

func TestVerifyJWTRejects(t *testing.T) {
	valid := TokenClaims{Sub: "user-123", Exp: time.Now().Add(time.Hour).Unix()}

	otherSecret, _ := SignJWT("secret-a", valid)
	expired, _ := SignJWT("secret", TokenClaims{Sub: "user-123", Exp: time.Now().Add(-time.Minute).Unix()})
	anonymous, _ := SignJWT("secret", TokenClaims{Exp: time.Now().Add(time.Hour).Unix()})

	tests := map[string]string{
		"invalid signature": otherSecret,
		"expired":           expired,
		"no subject":        anonymous,
		"malformed":         "not-a-jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := VerifyJWT("secret", token); err == nil {
				t.Fatalf("VerifyJWT() accepted %s token", name)
			}
		})
	}
}

func TestAuthJWTMiddleware(t *testing.T) {
	token, err := SignJWT("secret", TokenClaims{Sub: "u1", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	var gotUser, gotToken string
	handler := AuthJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotToken = AuthTokenFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, want: http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized {
				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error.Code != "unauthorized" {
					t.Fatalf("error body = %s (%v)", rec.Body.String(), err)
				}
			}
		})
	}
	if gotUser != "u1" || gotToken != token {
		t.Fatalf("context user = %q token = %q", gotUser, gotToken)
	}
}
