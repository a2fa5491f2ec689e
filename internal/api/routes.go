package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"stealthcompany.com/appointmentbot/internal/metrics"
	"stealthcompany.com/appointmentbot/internal/ratelimit"
)

// RouterOptions configures the middleware chain around the routes
type RouterOptions struct {
	Development    bool
	AllowedOrigins []string
	// Limiter is optional; nil disables rate limiting
	Limiter ratelimit.Limiter
	// Now is the clock validation compares dates against
	Now func() time.Time
}

// SetupRoutes configures the router and wraps it in the middleware chain
func SetupRoutes(stores StoreProvider, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	h := NewHandlers(stores)

	r.HandleFunc("/", HelloHandler).Methods("GET")
	r.HandleFunc("/health", h.HealthHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	webhooks := r.PathPrefix("/api").Subrouter()
	webhooks.Use(LogRequest)
	webhooks.Handle("/users",
		Validate(UserCreationRules, opts.Now)(http.HandlerFunc(h.FindOrCreateUser))).Methods("POST")
	webhooks.Handle("/users/update",
		Validate(InsuranceUpdateRules, opts.Now)(http.HandlerFunc(h.UpdateInsurance))).Methods("POST")
	webhooks.Handle("/appointments",
		Validate(AppointmentCreationRules, opts.Now)(http.HandlerFunc(h.RequestAppointment))).Methods("POST")

	var handler http.Handler = r
	if opts.Limiter != nil {
		handler = RateLimit(opts.Limiter)(handler)
	}
	handler = withRoutes(r)(handler)
	handler = CORS(opts.AllowedOrigins)(handler)
	handler = SecurityHeaders(handler)
	handler = metrics.MetricsMiddleware(r)(handler)
	handler = Recover(opts.Development)(handler)
	return handler
}
