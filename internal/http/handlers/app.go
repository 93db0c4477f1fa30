package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
	"github.com/JasonHongGG/TravelPlanner/internal/jobs"
	"github.com/JasonHongGG/TravelPlanner/internal/middleware"
	"github.com/JasonHongGG/TravelPlanner/internal/pricing"
)

type App struct {
	Jobs    *jobs.Service
	Pricing *pricing.Service
	Logger  infra.Logger
}

func NewApp(jobService *jobs.Service, pricingService *pricing.Service, logger infra.Logger) *App {
	return &App{Jobs: jobService, Pricing: pricingService, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// serviceError maps a jobs.Service error onto a response. forbidden and
// notFound override the default messages of those two outcomes.
func (a *App) serviceError(w http.ResponseWriter, err error, forbidden, notFound string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", validationMessage(err))
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "Missing authenticated user.")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", forbidden)
	case errors.Is(err, domain.ErrNotClaimable):
		a.error(w, http.StatusNotFound, "not_claimable", "Generation job not claimable.")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", notFound)
	default:
		a.Logger.Error().Err(err).Msg("generation job request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// validationMessage strips the sentinel prefix off a wrapped validation error.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
}
