package dal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointmentbot/internal/couchbase"
	"stealthcompany.com/appointmentbot/internal/domain"
	"stealthcompany.com/appointmentbot/internal/metrics"
)

// AppointmentModel stores appointments keyed by bookingId. The confirmed slot
// of each patient is guarded by a claim document so concurrent bookings
// cannot both succeed.
type AppointmentModel struct {
	client *couchbase.Client
	kv     couchbase.KeyValue
	claims *couchbase.ClaimManager
	now    func() time.Time
}

func NewAppointmentModel(client *couchbase.Client) *AppointmentModel {
	return &AppointmentModel{
		client: client,
		kv:     client.Documents(),
		claims: client.Claims(),
		now:    time.Now,
	}
}

func confirmedStatement(keyspace string) string {
	return fmt.Sprintf("SELECT a.* FROM %s AS a WHERE a.patientId = $patientId AND a.status = $status LIMIT 1", keyspace)
}

func (m *AppointmentModel) FindConfirmed(ctx context.Context, patientID string) (*domain.Appointment, error) {
	start := time.Now()
	a, err := couchbase.QueryOne[domain.Appointment](ctx, m.client.Documents(), confirmedStatement(m.client.Keyspace(AppointmentsCollection)), map[string]interface{}{
		"patientId": patientID,
		"status":    string(domain.StatusConfirmed),
	})
	metrics.RecordStoreOperation(backendCouchbase, "find_confirmed", start, metrics.StoreResult(err, couchbase.ErrNoRows))

	if couchbase.IsNotFound(err) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (m *AppointmentModel) InsertConfirmed(ctx context.Context, a *domain.Appointment) error {
	start := time.Now()
	err := m.insertConfirmed(ctx, a)
	result := metrics.StoreResult(err)
	if _, conflict := domain.ConflictingBooking(err); conflict {
		result = "conflict"
	}
	metrics.RecordStoreOperation(backendCouchbase, "insert_confirmed", start, result)
	return err
}

func (m *AppointmentModel) insertConfirmed(ctx context.Context, a *domain.Appointment) error {
	key := couchbase.ClaimKey(confirmedClaim, a.PatientID)
	claims := m.claims

	current, cas, acquired, err := claims.Acquire(ctx, key, a.BookingID)
	if err != nil {
		return err
	}
	if !acquired {
		free, err := m.slotReleased(ctx, current)
		if err != nil {
			return err
		}
		if !free {
			return domain.BookingConflict(current.Owner)
		}
		took, err := claims.Takeover(ctx, key, cas, a.BookingID)
		if err != nil {
			return err
		}
		if !took {
			return m.conflictFromClaim(ctx, key, current.Owner)
		}
	}

	now := m.now().UTC()
	a.Status = domain.StatusConfirmed
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := m.kv.Insert(ctx, AppointmentsCollection, a.BookingID, a); err != nil {
		if relErr := claims.Release(ctx, key, a.BookingID); relErr != nil {
			log.Warn().Err(relErr).Str("key", key).Msg("Failed to release booking claim")
		}
		return err
	}
	return nil
}

// slotReleased reports whether the claim's booking no longer holds the
// confirmed slot: it moved to another status, or it never got written and the
// claim has gone stale
func (m *AppointmentModel) slotReleased(ctx context.Context, claim couchbase.Claim) (bool, error) {
	var holder domain.Appointment
	_, err := m.kv.Get(ctx, AppointmentsCollection, claim.Owner, &holder)
	switch {
	case err == nil:
		return holder.Status != domain.StatusConfirmed, nil
	case couchbase.IsNotFound(err):
		return claim.Stale(m.now(), claimTTL), nil
	default:
		return false, err
	}
}

// conflictFromClaim re-reads a claim that changed under us and reports its owner
func (m *AppointmentModel) conflictFromClaim(ctx context.Context, key, fallback string) error {
	var latest couchbase.Claim
	_, err := m.kv.Get(ctx, couchbase.ClaimsCollection, key, &latest)
	if err != nil || latest.Owner == "" {
		return domain.BookingConflict(fallback)
	}
	return domain.BookingConflict(latest.Owner)
}
