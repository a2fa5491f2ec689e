package orchestrator

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/metrics"
)

const defaultShutdownTimeout = 30 * time.Second

// StoreCloser releases the store connection at shutdown
type StoreCloser interface {
	Close(ctx context.Context) error
}

// ServiceManager manages the lifecycle of the HTTP server and the resources
// it shares across requests
type ServiceManager struct {
	server          *http.Server
	stores          StoreCloser
	shutdownTimeout time.Duration
	metricsInterval time.Duration
}

// NewServiceManager creates a new service manager
func NewServiceManager(server *http.Server, stores StoreCloser) *ServiceManager {
	return &ServiceManager{
		server:          server,
		stores:          stores,
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// WithSystemMetrics collects host and runtime metrics every interval while serving
func (sm *ServiceManager) WithSystemMetrics(interval time.Duration) *ServiceManager {
	sm.metricsInterval = interval
	return sm
}

// WithShutdownTimeout bounds how long in-flight requests get to finish
func (sm *ServiceManager) WithShutdownTimeout(timeout time.Duration) *ServiceManager {
	sm.shutdownTimeout = timeout
	return sm
}

// Run listens on the server address and serves until ctx is cancelled
func (sm *ServiceManager) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", sm.server.Addr)
	if err != nil {
		return err
	}
	return sm.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails, then shuts
// down gracefully and closes the stores
func (sm *ServiceManager) Serve(ctx context.Context, ln net.Listener) error {
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	if sm.metricsInterval > 0 {
		metrics.StartSystemMetrics(metricsCtx, sm.metricsInterval)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", ln.Addr().String()).
			Msg("Server starting")
		serveErr <- sm.server.Serve(ln)
	}()

	var err error
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			log.Error().Err(err).Msg("Server exited with error")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down server gracefully...")
		err = sm.shutdown()
	}

	sm.closeStores()
	log.Info().Msg("Service shutdown complete")
	return err
}

func (sm *ServiceManager) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	if err := sm.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}
	return nil
}

func (sm *ServiceManager) closeStores() {
	if sm.stores == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	log.Info().Msg("Closing database connection...")
	if err := sm.stores.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to close database connection")
		return
	}
	log.Info().Msg("Database connection closed")
}
