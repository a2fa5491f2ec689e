package couchbase

import (
	"context"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// ClaimsCollection holds the claim documents
const ClaimsCollection = "claims"

// Claim reserves a unique value for one owner. The document key is the value,
// so two concurrent inserts for the same value cannot both succeed.
type Claim struct {
	Owner     string    `json:"owner"`
	ClaimedAt time.Time `json:"claimedAt"`
}

// ClaimKey builds the document key for a claimed value, e.g. confirmed::<patientId>
func ClaimKey(kind, value string) string {
	return kind + "::" + value
}

// Stale reports whether a claim is older than ttl at now
func (c Claim) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.ClaimedAt) > ttl
}

// ClaimManager provides insert-if-absent reservations on top of the KV service
type ClaimManager struct {
	docs KeyValue
	now  func() time.Time
}

// NewClaimManager creates a new claim manager
func NewClaimManager(docs KeyValue) *ClaimManager {
	return &ClaimManager{docs: docs, now: time.Now}
}

// Acquire reserves key for owner. When the key is already held it returns
// the current claim and acquired=false.
func (m *ClaimManager) Acquire(ctx context.Context, key, owner string) (current Claim, cas gocb.Cas, acquired bool, err error) {
	claim := Claim{Owner: owner, ClaimedAt: m.now().UTC()}
	err = m.docs.Insert(ctx, ClaimsCollection, key, claim)
	if err == nil {
		log.Debug().Str("key", key).Str("owner", owner).Msg("Claim acquired")
		return claim, 0, true, nil
	}
	if !IsExists(err) {
		return Claim{}, 0, false, fmt.Errorf("acquire claim %s: %w", key, err)
	}

	cas, err = m.docs.Get(ctx, ClaimsCollection, key, &current)
	if IsNotFound(err) {
		// released between our insert and read; one retry is enough to settle it
		return m.retryAcquire(ctx, key, claim)
	}
	if err != nil {
		return Claim{}, 0, false, fmt.Errorf("read claim %s: %w", key, err)
	}
	return current, cas, false, nil
}

func (m *ClaimManager) retryAcquire(ctx context.Context, key string, claim Claim) (Claim, gocb.Cas, bool, error) {
	err := m.docs.Insert(ctx, ClaimsCollection, key, claim)
	if err == nil {
		return claim, 0, true, nil
	}
	if !IsExists(err) {
		return Claim{}, 0, false, fmt.Errorf("acquire claim %s: %w", key, err)
	}
	var current Claim
	cas, err := m.docs.Get(ctx, ClaimsCollection, key, &current)
	if err != nil {
		return Claim{}, 0, false, fmt.Errorf("read claim %s: %w", key, err)
	}
	return current, cas, false, nil
}

// Takeover hands a claim read with cas to a new owner. It returns false when
// another writer changed the claim first.
func (m *ClaimManager) Takeover(ctx context.Context, key string, cas gocb.Cas, owner string) (bool, error) {
	claim := Claim{Owner: owner, ClaimedAt: m.now().UTC()}
	err := m.docs.Replace(ctx, ClaimsCollection, key, claim, cas)
	switch {
	case err == nil:
		log.Info().Str("key", key).Str("owner", owner).Msg("Claim taken over")
		return true, nil
	case IsCasMismatch(err), IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("take over claim %s: %w", key, err)
	}
}

// Release drops key if owner still holds it. Missing claims are not an error.
func (m *ClaimManager) Release(ctx context.Context, key, owner string) error {
	var current Claim
	cas, err := m.docs.Get(ctx, ClaimsCollection, key, &current)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read claim %s: %w", key, err)
	}
	if current.Owner != owner {
		return nil
	}

	err = m.docs.Remove(ctx, ClaimsCollection, key, cas)
	if err != nil && !IsNotFound(err) && !IsCasMismatch(err) {
		return fmt.Errorf("release claim %s: %w", key, err)
	}
	log.Debug().Str("key", key).Str("owner", owner).Msg("Claim released")
	return nil
}
