package api

import (
	"net/http"
	"time"
)

// HealthResponse is the liveness payload. It deliberately bypasses the
// envelope so load balancers can check it without parsing one.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// HealthCheckHandler reports process liveness. It takes no dependencies:
// a healthy response means the process serves requests, nothing more.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Unix(),
	})
}
