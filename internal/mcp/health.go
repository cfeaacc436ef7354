package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the vector-store probe so a hung backend cannot
// stall the endpoint.
const healthCheckTimeout = 3 * time.Second

// HealthChecker is the probe the health endpoint runs against the vector
// store. storage.QdrantStorage satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthResponse is the /health endpoint body.
type HealthResponse struct {
	Status    string `json:"status"`
	Qdrant    string `json:"qdrant"`
	Timestamp string `json:"timestamp"`
}

// NewHealthHandler serves /health: 200 with "healthy" when the vector store
// answers, 503 with "unhealthy" when it does not.
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := HealthResponse{
			Status:    "healthy",
			Qdrant:    "connected",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK

		if err := checker.Health(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Qdrant = "disconnected"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}
