package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/jobs"
	"github.com/JasonHongGG/TravelPlanner/internal/middleware"
)

const (
	msgJobNotFound  = "Generation job not found."
	msgForbidden    = "Forbidden."
	msgUserMismatch = "User mismatch."
	msgBadClaim     = "Invalid claim token or forbidden."
)

type createGenerationJobRequest struct {
	UserID          string          `json:"userId"`
	Action          string          `json:"action"`
	TripInput       json.RawMessage `json:"tripInput"`
	TripLocalID     string          `json:"tripLocalId"`
	ClientRequestID string          `json:"clientRequestId"`
	Description     string          `json:"description"`
}

type ackGenerationJobRequest struct {
	ClaimToken string `json:"claimToken"`
}

// CreateGenerationJob answers 202 for a new job and 200 when the client
// request id was already seen.
func (a *App) CreateGenerationJob(w http.ResponseWriter, r *http.Request) {
	var req createGenerationJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	var input domain.TripInput
	if raw := strings.TrimSpace(string(req.TripInput)); raw != "" && raw != "null" {
		if err := json.Unmarshal(req.TripInput, &input); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "tripInput must be an object.")
			return
		}
		if input == nil {
			input = domain.TripInput{}
		}
		input = input.WithLanguage(middleware.LocaleFromContext(r.Context()))
	}

	job, created, err := a.Jobs.Create(jobs.CreateRequest{
		UserID:          a.currentUserID(r),
		RequestedUserID: req.UserID,
		AuthToken:       middleware.AuthTokenFromContext(r.Context()),
		ClientRequestID: req.ClientRequestID,
		TripLocalID:     req.TripLocalID,
		Action:          domain.Action(strings.TrimSpace(req.Action)),
		TripInput:       input,
		CostDescription: req.Description,
	})
	if err != nil {
		a.serviceError(w, err, msgUserMismatch, msgJobNotFound)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	a.json(w, status, jobs.ToPublicJob(job))
}

func (a *App) GetGenerationJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(chi.URLParam(r, "jobId"), a.currentUserID(r))
	if err != nil {
		a.serviceError(w, err, msgForbidden, msgJobNotFound)
		return
	}
	a.json(w, http.StatusOK, jobs.ToPublicJob(job))
}

func (a *App) ClaimGenerationJob(w http.ResponseWriter, r *http.Request) {
	claim, err := a.Jobs.Claim(chi.URLParam(r, "jobId"), a.currentUserID(r))
	if err != nil {
		a.serviceError(w, err, msgForbidden, msgJobNotFound)
		return
	}
	a.json(w, http.StatusOK, jobs.ToClaimResponse(claim))
}

func (a *App) AckGenerationJob(w http.ResponseWriter, r *http.Request) {
	var req ackGenerationJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}
	if err := a.Jobs.Ack(chi.URLParam(r, "jobId"), a.currentUserID(r), req.ClaimToken); err != nil {
		a.serviceError(w, err, msgBadClaim, msgJobNotFound)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}
