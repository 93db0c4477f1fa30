package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if a.Jobs != nil {
		resp["jobs"] = a.Jobs.Len()
	}
	a.json(w, http.StatusOK, resp)
}
