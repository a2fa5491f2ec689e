package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/dal"
)

// StoreProvider hands out the process-wide stores, connecting on first use
type StoreProvider interface {
	Stores(ctx context.Context) (*dal.Stores, error)
}

// Handlers serves the webhook endpoints
type Handlers struct {
	stores StoreProvider
}

// NewHandlers creates the webhook handlers over a store provider
func NewHandlers(stores StoreProvider) *Handlers {
	return &Handlers{stores: stores}
}

// HelloHandler answers the root path
func HelloHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Hello World"))
}

// HealthHandler reports whether the store connection can be obtained
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{"status": "ok"}
	status := http.StatusOK

	stores, err := h.stores.Stores(r.Context())
	if err == nil {
		response["store"] = stores.Backend
		err = stores.Ping(r.Context())
	}
	if err != nil {
		log.Warn().Err(err).Msg("Health check could not reach the store")
		response["status"] = "unavailable"
		response["error"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
