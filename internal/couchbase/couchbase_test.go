package couchbase

import (
	"fmt"
	"testing"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/stretchr/testify/assert"
)

func TestConnectionString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"couchbase://db", "couchbase://db"},
		{"couchbases://cloud.example.com", "couchbases://cloud.example.com"},
		{"http://localhost", "couchbase://localhost"},
		{"https://cluster.example.com", "couchbases://cluster.example.com"},
		{"appointmentbot-db", "couchbase://appointmentbot-db"},
		{"  couchbase://db  ", "couchbase://db"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ConnectionString(tt.in))
		})
	}
}

func TestKeyspace(t *testing.T) {
	assert.Equal(t, "`appointmentbot`.`_default`.`patients`", Keyspace("appointmentbot", "_default", "patients"))
}

func TestIndexStatement(t *testing.T) {
	keyspace := Keyspace("b", "s", "appointments")

	plain := IndexStatement(keyspace, Index{Name: "idx_booking", Keys: "bookingId"})
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS `idx_booking` ON `b`.`s`.`appointments`(bookingId)", plain)

	partial := IndexStatement(keyspace, Index{Name: "idx_confirmed", Keys: "patientId", Where: `status = "confirmed"`})
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS `idx_confirmed` ON `b`.`s`.`appointments`(patientId) WHERE status = \"confirmed\"", partial)
}

func TestClaimKeyAndStaleness(t *testing.T) {
	assert.Equal(t, "confirmed::P1", ClaimKey("confirmed", "P1"))

	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	fresh := Claim{Owner: "B1", ClaimedAt: now.Add(-5 * time.Second)}
	old := Claim{Owner: "B1", ClaimedAt: now.Add(-5 * time.Minute)}

	assert.False(t, fresh.Stale(now, time.Minute))
	assert.True(t, old.Stale(now, time.Minute))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("get document x: %w", gocb.ErrDocumentNotFound)))
	assert.True(t, IsNotFound(ErrNoRows))
	assert.False(t, IsNotFound(gocb.ErrTimeout))

	assert.True(t, IsExists(fmt.Errorf("insert document x: %w", gocb.ErrDocumentExists)))
	assert.True(t, IsCasMismatch(fmt.Errorf("replace document x: %w", gocb.ErrCasMismatch)))
	assert.False(t, IsCasMismatch(gocb.ErrDocumentExists))
}

func TestIsCollectionExistsError(t *testing.T) {
	assert.True(t, isCollectionExistsError(gocb.ErrCollectionExists))
	assert.True(t, isCollectionExistsError(fmt.Errorf("query failed: Collection with name patients in scope _default already exists")))
	assert.False(t, isCollectionExistsError(gocb.ErrAuthenticationFailure))
}
