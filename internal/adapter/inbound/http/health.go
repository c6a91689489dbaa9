package http

import (
	"encoding/json"
	"net/http"
)

// statusResponse is the JSON response from GET /_status.
type statusResponse struct {
	Status string `json:"status"`
}

// statusHandler always reports "OK": the service has no external
// dependency check cheap enough to run on every request, and a failed
// storage connection already prevents startup (see OpenWithRetry).
func statusHandler() http.Handler {
	body, _ := json.Marshal(statusResponse{Status: "OK"})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}
