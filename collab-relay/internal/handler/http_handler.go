package handler

import (
	"encoding/json"
	"net/http"

	"github.com/weiawesome/wes-io-collab/collab-relay/internal/hub"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

// HTTPHandler serves the relay's plain HTTP endpoints.
type HTTPHandler struct {
	hub    *hub.Hub
	broker pubsub.PubSub
}

func NewHTTPHandler(h *hub.Hub, broker pubsub.PubSub) *HTTPHandler {
	return &HTTPHandler{hub: h, broker: broker}
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Broker  string `json:"broker"`
	Clients int    `json:"clients"`
}

// HealthCheck handles GET /health. The relay stays up without its broker,
// so a failed ping degrades the report instead of failing the health check.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Broker: "ok", Clients: h.hub.ClientCount()}
	if err := h.broker.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Broker = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
