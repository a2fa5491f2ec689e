package zerolog_config

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestElasticsearchWriter(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath, gotBody = r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n, err := ElasticsearchWriter{URL: srv.URL + "/logs"}.Write([]byte(`{"message":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, len(`{"message":"hi"}`), n)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/logs/_doc", gotPath)
	assert.Equal(t, `{"message":"hi"}`, gotBody)
}

func TestElasticsearchWriterRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := ElasticsearchWriter{URL: srv.URL, Client: srv.Client()}.Write([]byte(`{}`))
	assert.Error(t, err)
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "", "logs")

	logger.Info().Str("patientId", "P1").Msg("Created patient")

	assert.Contains(t, buf.String(), "Created patient")
	assert.Contains(t, buf.String(), "P1")
}

func TestStartupWithEnvRequiresIndex(t *testing.T) {
	assert.Error(t, StartupWithEnv("", "", "info"))
}
