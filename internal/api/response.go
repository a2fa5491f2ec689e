package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/metrics"
)

// IntendedStatusHeader carries the semantic status of an envelope. The wire
// status is always 200 because the dialog platform discards anything else.
const IntendedStatusHeader = "X-Intended-Status"

// Envelope is the webhook response body
type Envelope struct {
	Success             bool                 `json:"success"`
	SessionInfo         SessionInfoResponse  `json:"sessionInfo"`
	FulfillmentResponse *FulfillmentResponse `json:"fulfillmentResponse,omitempty"`
	Message             string               `json:"message,omitempty"`
	Error               string               `json:"error,omitempty"`
}

// SessionInfoResponse holds the session parameters written back to the platform
type SessionInfoResponse struct {
	Parameters map[string]interface{} `json:"parameters"`
}

// FulfillmentResponse is the text the agent speaks back
type FulfillmentResponse struct {
	Messages []ResponseMessage `json:"messages"`
}

type ResponseMessage struct {
	Text MessageText `json:"text"`
}

type MessageText struct {
	Text []string `json:"text"`
}

// Messages builds a fulfillment response with one text message
func Messages(texts ...string) *FulfillmentResponse {
	return &FulfillmentResponse{
		Messages: []ResponseMessage{{Text: MessageText{Text: texts}}},
	}
}

// Success writes a success envelope. data is merged into the session
// parameters with isError=false.
func Success(w http.ResponseWriter, r *http.Request, data map[string]interface{}, message string, status int, fr *FulfillmentResponse) {
	params := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		params[k] = v
	}
	params["isError"] = false

	log.Info().
		Str("path", r.URL.Path).
		Int("intended_status", status).
		Str("message", message).
		Msg("Webhook request succeeded")

	writeEnvelope(w, r, status, Envelope{
		Success:             true,
		SessionInfo:         SessionInfoResponse{Parameters: params},
		FulfillmentResponse: fr,
		Message:             message,
	})
}

// Failure writes a failure envelope. data, when given, is merged into the
// session parameters with isError=true.
func Failure(w http.ResponseWriter, r *http.Request, errMsg string, status int, fr *FulfillmentResponse, data map[string]interface{}) {
	params := map[string]interface{}{"isError": true}
	for k, v := range data {
		params[k] = v
	}
	// isError wins over caller data
	params["isError"] = true

	log.Error().
		Str("path", r.URL.Path).
		Int("intended_status", status).
		Str("error", errMsg).
		Msg("Webhook request failed")

	writeEnvelope(w, r, status, Envelope{
		Success:             false,
		SessionInfo:         SessionInfoResponse{Parameters: params},
		FulfillmentResponse: fr,
		Error:               errMsg,
	})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	metrics.RecordWebhookResponse(routeLabel(r), env.Success, status)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IntendedStatusHeader, strconv.Itoa(status))
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Error().Err(err).Msg("Failed to encode webhook envelope")
	}
}

type routesKey struct{}

// withRoutes makes the router reachable from middleware that answers before
// it dispatches, so their envelopes carry a route template too
func withRoutes(routes *mux.Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), routesKey{}, routes)))
		})
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	routes, _ := r.Context().Value(routesKey{}).(*mux.Router)
	if routes == nil {
		return "unmatched"
	}
	return metrics.EndpointLabel(routes, r)
}
