package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"stealthcompany.com/appointmentbot/internal/domain"
)

// AppointmentStore keeps appointments in process memory
type AppointmentStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Appointment
	now  func() time.Time
}

// NewAppointmentStore creates an empty appointment store
func NewAppointmentStore() *AppointmentStore {
	return &AppointmentStore{
		byID: make(map[string]domain.Appointment),
		now:  time.Now,
	}
}

func (s *AppointmentStore) FindConfirmed(ctx context.Context, patientID string) (*domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.confirmedFor(patientID); ok {
		return &a, nil
	}
	return nil, domain.ErrNotFound
}

// InsertConfirmed stores a confirmed appointment unless the patient already holds one
func (s *AppointmentStore) InsertConfirmed(ctx context.Context, a *domain.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(a.BookingID) == "" {
		return errors.New("booking id required")
	}
	if _, exists := s.byID[a.BookingID]; exists {
		return ErrDuplicateKey
	}
	if existing, ok := s.confirmedFor(a.PatientID); ok {
		return domain.BookingConflict(existing.BookingID)
	}

	now := s.now().UTC()
	a.Status = domain.StatusConfirmed
	a.CreatedAt = now
	a.UpdatedAt = now
	s.byID[a.BookingID] = *a
	return nil
}

// listByPatient returns a patient's appointments, oldest first
func (s *AppointmentStore) listByPatient(ctx context.Context, patientID string) []domain.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Appointment, 0)
	for _, a := range s.byID {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// setStatus moves an appointment to a new status
func (s *AppointmentStore) setStatus(ctx context.Context, bookingID string, status domain.AppointmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[bookingID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = s.now().UTC()
	s.byID[bookingID] = a
	return nil
}

// confirmedFor must be called with mu held
func (s *AppointmentStore) confirmedFor(patientID string) (domain.Appointment, bool) {
	for _, a := range s.byID {
		if a.PatientID == patientID && a.Status == domain.StatusConfirmed {
			return a, true
		}
	}
	return domain.Appointment{}, false
}
