package dal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/appointmentbot/internal/config"
	"stealthcompany.com/appointmentbot/internal/couchbase"
	"stealthcompany.com/appointmentbot/internal/metrics"
)

func TestHandleConnectsOnceAndCaches(t *testing.T) {
	calls := 0
	h := NewHandle(func(ctx context.Context) (*Stores, error) {
		calls++
		return ConnectMemory()(ctx)
	})

	first, err := h.Stores(context.Background())
	require.NoError(t, err)
	second, err := h.Stores(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestHandleRetriesAfterFailedConnect(t *testing.T) {
	calls := 0
	h := NewHandle(func(ctx context.Context) (*Stores, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("cluster unreachable")
		}
		return ConnectMemory()(ctx)
	})

	_, err := h.Stores(context.Background())
	require.Error(t, err)

	stores, err := h.Stores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", stores.Backend)
	assert.Equal(t, 2, calls)
}

func TestHandleConcurrentFirstUse(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	h := NewHandle(func(ctx context.Context) (*Stores, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return ConnectMemory()(ctx)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Stores(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}

func TestHandleClose(t *testing.T) {
	closed := 0
	h := NewHandle(func(ctx context.Context) (*Stores, error) {
		return &Stores{Backend: "fake", close: func(ctx context.Context) error {
			closed++
			return nil
		}}, nil
	})

	require.NoError(t, h.Close(context.Background()), "closing an unopened handle is a no-op")

	h = NewHandle(func(ctx context.Context) (*Stores, error) {
		return &Stores{Backend: "fake", close: func(ctx context.Context) error {
			closed++
			return nil
		}}, nil
	})
	_, err := h.Stores(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Close(context.Background()))
	assert.Equal(t, 1, closed)

	_, err = h.Stores(context.Background())
	assert.ErrorIs(t, err, ErrHandleClosed)
}

func TestHandleProvisionsSchemaOnConnect(t *testing.T) {
	ensured, closed := 0, 0
	h := NewHandle(func(ctx context.Context) (*Stores, error) {
		return &Stores{
			Backend: "fake",
			ensureSchema: func(ctx context.Context) error {
				ensured++
				return nil
			},
			close: func(ctx context.Context) error {
				closed++
				return nil
			},
		}, nil
	})

	for i := 0; i < 3; i++ {
		_, err := h.Stores(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, ensured, "schema is provisioned once per connection")
	assert.Equal(t, 0, closed)
}

func TestHandleRetriesAfterSchemaFailure(t *testing.T) {
	connects, closed := 0, 0
	denied := errors.New("insufficient privileges")
	h := NewHandle(func(ctx context.Context) (*Stores, error) {
		connects++
		attempt := connects
		return &Stores{
			Backend: "fake",
			ensureSchema: func(ctx context.Context) error {
				if attempt == 1 {
					return denied
				}
				return nil
			},
			close: func(ctx context.Context) error {
				closed++
				return nil
			},
		}, nil
	})

	_, err := h.Stores(context.Background())
	require.ErrorIs(t, err, denied)
	assert.Equal(t, 1, closed, "the unprovisioned connection is released")

	stores, err := h.Stores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake", stores.Backend)
	assert.Equal(t, 2, connects)
}

func TestStoresPing(t *testing.T) {
	assert.NoError(t, (&Stores{Backend: "memory"}).Ping(context.Background()))

	down := errors.New("node unreachable")
	stores := &Stores{Backend: "fake", ping: func(ctx context.Context) error { return down }}
	assert.ErrorIs(t, stores.Ping(context.Background()), down)
}

func TestConnector(t *testing.T) {
	connect, err := Connector(&config.Config{StoreDriver: config.DriverMemory})
	require.NoError(t, err)

	stores, err := connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", stores.Backend)
	assert.NoError(t, stores.EnsureSchema(context.Background()))
	assert.NoError(t, stores.Close(context.Background()))

	_, err = Connector(&config.Config{StoreDriver: "sqlite"})
	assert.Error(t, err)
}

func TestCouchbaseStatements(t *testing.T) {
	ks := couchbase.Keyspace("appointmentbot", "_default", PatientsCollection)

	identity := identityStatement(ks)
	assert.True(t, strings.HasPrefix(identity, "SELECT p.* FROM `appointmentbot`.`_default`.`patients` AS p"))
	for _, param := range []string{"$firstName", "$lastName", "$birthDate"} {
		assert.Contains(t, identity, param)
	}

	holder := policyHolderStatement(ks)
	assert.Contains(t, holder, "p.policyNumber = $policyNumber")
	assert.Contains(t, holder, "p.patientId != $patientId")

	confirmed := confirmedStatement(couchbase.Keyspace("appointmentbot", "_default", AppointmentsCollection))
	assert.Contains(t, confirmed, "a.status = $status")
	assert.True(t, strings.HasSuffix(confirmed, "LIMIT 1"))
}

func TestCouchbaseIndexesCoverQueries(t *testing.T) {
	names := make(map[string]couchbase.Index)
	for _, idx := range couchbaseIndexes {
		names[idx.Name] = idx
	}

	require.Contains(t, names, "idx_appointments_confirmed")
	assert.Equal(t, AppointmentsCollection, names["idx_appointments_confirmed"].Collection)
	assert.Equal(t, PatientsCollection, names["idx_patients_identity"].Collection)
}

func connectAttempts(t *testing.T, backend, result string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "store_connect_attempts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["backend"] == backend && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestConnectorsRecordConnectAttempts(t *testing.T) {
	before := connectAttempts(t, backendMemory, "ok")
	_, err := ConnectMemory()(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before+1, connectAttempts(t, backendMemory, "ok"))

	before = connectAttempts(t, backendMongo, "error")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = ConnectMongo("mongodb://127.0.0.1:1/?connect=direct", "appointmentbot")(ctx)
	require.Error(t, err)
	assert.Equal(t, before+1, connectAttempts(t, backendMongo, "error"))
}
