package dal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/couchbase"
	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/metrics"
)

const (
	backendCouchbase = "couchbase"
	backendMongo     = "mongo"
	backendMemory    = "memory"

	PatientsCollection     = "patients"
	AppointmentsCollection = "appointments"

	policyClaim    = "policy"
	confirmedClaim = "confirmed"

	// claims older than this whose owner never materialized may be taken over
	claimTTL = 30 * time.Second
)

var errPolicyClaimed = errors.New(domain.MsgPolicyUniqueViolated)

// PatientModel stores patients as documents keyed by patientId
type PatientModel struct {
	client *couchbase.Client
	kv     couchbase.KeyValue
	claims *couchbase.ClaimManager
	now    func() time.Time
}

func NewPatientModel(client *couchbase.Client) *PatientModel {
	return &PatientModel{
		client: client,
		kv:     client.Documents(),
		claims: client.Claims(),
		now:    time.Now,
	}
}

func identityStatement(keyspace string) string {
	return fmt.Sprintf("SELECT p.* FROM %s AS p WHERE p.firstName = $firstName AND p.lastName = $lastName AND p.birthDate = $birthDate LIMIT 1", keyspace)
}

func policyHolderStatement(keyspace string) string {
	return fmt.Sprintf("SELECT p.* FROM %s AS p WHERE p.policyNumber = $policyNumber AND p.patientId != $patientId LIMIT 1", keyspace)
}

func (m *PatientModel) Get(ctx context.Context, patientID string) (*domain.Patient, error) {
	start := time.Now()
	var p domain.Patient
	_, err := m.kv.Get(ctx, PatientsCollection, patientID, &p)
	metrics.RecordStoreOperation(backendCouchbase, "get_patient", start, metrics.StoreResult(err, gocb.ErrDocumentNotFound))

	if couchbase.IsNotFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *PatientModel) FindByIdentity(ctx context.Context, firstName, lastName string, birthDate time.Time) (*domain.Patient, error) {
	start := time.Now()
	p, err := couchbase.QueryOne[domain.Patient](ctx, m.client.Documents(), identityStatement(m.client.Keyspace(PatientsCollection)), map[string]interface{}{
		"firstName": firstName,
		"lastName":  lastName,
		"birthDate": birthDate.UTC().Format(time.RFC3339Nano),
	})
	metrics.RecordStoreOperation(backendCouchbase, "find_patient_identity", start, metrics.StoreResult(err, couchbase.ErrNoRows))

	if couchbase.IsNotFound(err) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (m *PatientModel) FindByPolicyExcluding(ctx context.Context, policyNumber, patientID string) (*domain.Patient, error) {
	start := time.Now()
	p, err := couchbase.QueryOne[domain.Patient](ctx, m.client.Documents(), policyHolderStatement(m.client.Keyspace(PatientsCollection)), map[string]interface{}{
		"policyNumber": policyNumber,
		"patientId":    patientID,
	})
	metrics.RecordStoreOperation(backendCouchbase, "find_policy_holder", start, metrics.StoreResult(err, couchbase.ErrNoRows))

	if couchbase.IsNotFound(err) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

// Insert stores a new patient, claiming its policy number first when it has one
func (m *PatientModel) Insert(ctx context.Context, p *domain.Patient) error {
	start := time.Now()
	err := m.insert(ctx, p)
	metrics.RecordStoreOperation(backendCouchbase, "insert_patient", start, metrics.StoreResult(err))
	return err
}

func (m *PatientModel) insert(ctx context.Context, p *domain.Patient) error {
	if p.HasPolicy() {
		if err := m.claimPolicy(ctx, p.PolicyNumber, p.PatientID); err != nil {
			return err
		}
	}

	now := m.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := m.kv.Insert(ctx, PatientsCollection, p.PatientID, p); err != nil {
		if p.HasPolicy() {
			m.releasePolicy(ctx, p.PolicyNumber, p.PatientID)
		}
		return err
	}
	return nil
}

// UpdatePolicy moves the patient to policyNumber. The new number is claimed
// before the CAS-guarded replace and the old claim is dropped afterwards.
func (m *PatientModel) UpdatePolicy(ctx context.Context, patientID, policyNumber string) (*domain.Patient, error) {
	start := time.Now()
	p, err := m.updatePolicy(ctx, patientID, policyNumber)
	metrics.RecordStoreOperation(backendCouchbase, "update_policy", start, metrics.StoreResult(err, domain.ErrNotFound))
	return p, err
}

func (m *PatientModel) updatePolicy(ctx context.Context, patientID, policyNumber string) (*domain.Patient, error) {
	docs := m.kv

	var p domain.Patient
	cas, err := docs.Get(ctx, PatientsCollection, patientID, &p)
	if couchbase.IsNotFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	previous := p.PolicyNumber
	changed := previous != policyNumber
	if changed {
		if err := m.claimPolicy(ctx, policyNumber, patientID); err != nil {
			return nil, err
		}
	}

	p.PolicyNumber = policyNumber
	p.UpdatedAt = m.now().UTC()
	if err := docs.Replace(ctx, PatientsCollection, patientID, &p, cas); err != nil {
		if changed {
			m.releasePolicy(ctx, policyNumber, patientID)
		}
		return nil, err
	}

	if changed && previous != "" {
		m.releasePolicy(ctx, previous, patientID)
	}
	return &p, nil
}

// claimPolicy reserves policyNumber for patientID. A claim left behind by a
// patient that no longer carries the number is taken over once it is stale.
func (m *PatientModel) claimPolicy(ctx context.Context, policyNumber, patientID string) error {
	key := couchbase.ClaimKey(policyClaim, policyNumber)
	current, cas, acquired, err := m.claims.Acquire(ctx, key, patientID)
	if err != nil {
		return err
	}
	if acquired || current.Owner == patientID {
		return nil
	}

	var holder domain.Patient
	_, err = m.kv.Get(ctx, PatientsCollection, current.Owner, &holder)
	switch {
	case err == nil && holder.PolicyNumber == policyNumber:
		return errPolicyClaimed
	case err != nil && !couchbase.IsNotFound(err):
		return err
	}
	if !current.Stale(m.now(), claimTTL) {
		return errPolicyClaimed
	}

	took, err := m.claims.Takeover(ctx, key, cas, patientID)
	if err != nil {
		return err
	}
	if !took {
		return errPolicyClaimed
	}
	return nil
}

func (m *PatientModel) releasePolicy(ctx context.Context, policyNumber, patientID string) {
	key := couchbase.ClaimKey(policyClaim, policyNumber)
	if err := m.claims.Release(ctx, key, patientID); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Str("patientId", patientID).
			Msg("Failed to release policy claim")
	}
}
