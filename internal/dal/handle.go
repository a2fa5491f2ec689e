package dal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/service"
)

// Stores is the set of repositories served by one backend connection
type Stores struct {
	Backend      string
	Patients     service.PatientStore
	Appointments service.AppointmentStore

	ensureSchema func(ctx context.Context) error
	ping         func(ctx context.Context) error
	close        func(ctx context.Context) error
}

// Ping checks that the backend answers
func (s *Stores) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// EnsureSchema provisions collections and indexes for the backend
func (s *Stores) EnsureSchema(ctx context.Context) error {
	if s.ensureSchema == nil {
		return nil
	}
	return s.ensureSchema(ctx)
}

// Close releases the backend connection
func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// ConnectFunc opens a backend connection
type ConnectFunc func(ctx context.Context) (*Stores, error)

// ErrHandleClosed is returned by Stores after Close
var ErrHandleClosed = errors.New("store handle closed")

// Handle is the process-wide, lazily opened store connection. A connection is
// cached only once its schema is provisioned; a failed connect or schema step
// is retried on the next call.
type Handle struct {
	mu      sync.Mutex
	connect ConnectFunc
	stores  *Stores
	closed  bool
}

// NewHandle creates a handle that connects on first use
func NewHandle(connect ConnectFunc) *Handle {
	return &Handle{connect: connect}
}

// Stores returns the cached stores, connecting first if needed
func (h *Handle) Stores(ctx context.Context) (*Stores, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHandleClosed
	}
	if h.stores != nil {
		return h.stores, nil
	}

	stores, err := h.connect(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Store connection failed")
		return nil, err
	}
	if err := stores.EnsureSchema(ctx); err != nil {
		log.Error().Err(err).Str("backend", stores.Backend).Msg("Store schema provisioning failed")
		if closeErr := stores.Close(ctx); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close store after schema error")
		}
		return nil, fmt.Errorf("provision %s schema: %w", stores.Backend, err)
	}
	log.Info().Str("backend", stores.Backend).Msg("Store connection established")
	h.stores = stores
	return stores, nil
}

// Close tears down the connection if one was opened
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if h.stores == nil {
		return nil
	}
	err := h.stores.Close(ctx)
	h.stores = nil
	return err
}
