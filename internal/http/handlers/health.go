package handlers

import (
	"net/http"
)

// Health reports liveness only. Job queue depth and channel health show up
// on /metrics instead.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
