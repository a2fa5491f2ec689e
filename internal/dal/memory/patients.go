package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"stealthcompany.com/appointmentbot/internal/domain"
)

// ErrDuplicateKey mirrors a unique index rejecting a write
var ErrDuplicateKey = errors.New("duplicate key")

// PatientStore keeps patients in process memory
type PatientStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Patient
	now  func() time.Time
}

// NewPatientStore creates an empty patient store
func NewPatientStore() *PatientStore {
	return &PatientStore{
		byID: make(map[string]domain.Patient),
		now:  time.Now,
	}
}

func (s *PatientStore) Get(ctx context.Context, patientID string) (*domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[patientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *PatientStore) FindByIdentity(ctx context.Context, firstName, lastName string, birthDate time.Time) (*domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.byID {
		if p.FirstName == firstName && p.LastName == lastName && p.BirthDate.Equal(birthDate) {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *PatientStore) FindByPolicyExcluding(ctx context.Context, policyNumber, patientID string) (*domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.policyHolder(policyNumber, patientID); ok {
		return &p, nil
	}
	return nil, domain.ErrNotFound
}

func (s *PatientStore) Insert(ctx context.Context, p *domain.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(p.PatientID) == "" {
		return errors.New("patient id required")
	}
	if _, exists := s.byID[p.PatientID]; exists {
		return ErrDuplicateKey
	}
	if _, held := s.policyHolder(p.PolicyNumber, p.PatientID); held {
		return ErrDuplicateKey
	}

	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.byID[p.PatientID] = *p
	return nil
}

// UpdatePolicy sets the policy number, enforcing uniqueness under the write lock
func (s *PatientStore) UpdatePolicy(ctx context.Context, patientID, policyNumber string) (*domain.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[patientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if _, held := s.policyHolder(policyNumber, patientID); held {
		return nil, ErrDuplicateKey
	}

	p.PolicyNumber = policyNumber
	p.UpdatedAt = s.now().UTC()
	s.byID[patientID] = p
	return &p, nil
}

// Len returns the number of stored patients
func (s *PatientStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// policyHolder must be called with mu held
func (s *PatientStore) policyHolder(policyNumber, excludeID string) (domain.Patient, bool) {
	if policyNumber == "" {
		return domain.Patient{}, false
	}
	for _, p := range s.byID {
		if p.PolicyNumber == policyNumber && p.PatientID != excludeID {
			return p, true
		}
	}
	return domain.Patient{}, false
}
