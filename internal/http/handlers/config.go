package handlers

import "net/http"

// Config serves the pricing summary clients show before generating.
func (a *App) Config(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, a.Pricing.Config())
}

func (a *App) Packages(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, a.Pricing.Packages())
}
