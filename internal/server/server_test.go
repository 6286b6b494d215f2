package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/relialab/checkrun/internal/errors"
)

func stubSource() Snapshot {
	return Snapshot{
		SessionID: "11111111-2222-3333-4444-555555555555",
		Title:     "smoke",
		Jobs: []JobSnapshot{
			{
				ID:        "cpu",
				Plugin:    "resource",
				Category:  "uncategorized",
				Selected:  true,
				CanStart:  true,
				Outcome:   "pass",
				Readiness: "job can be started",
			},
			{
				ID:         "suite/cpu-check",
				Plugin:     "shell",
				Category:   "hardware",
				Selected:   true,
				CanStart:   false,
				Readiness:  "job cannot be started: resource expression \"cpu.cores > 2\" could not be evaluated: no resource data",
				Inhibitors: []string{"PENDING_RESOURCE"},
			},
			{
				ID:        "optional-check",
				Plugin:    "shell",
				Category:  "uncategorized",
				Selected:  false,
				CanStart:  false,
				Readiness: "job cannot be started: undesired",
			},
		},
	}
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0, stubSource)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0, stubSource)

	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port, nil)
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_RoutesRegistered(t *testing.T) {
	srv := New("127.0.0.1", 0, stubSource)

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/version", http.StatusOK},
		{"GET", "/api/v1/session", http.StatusOK},
		{"GET", "/api/v1/jobs", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, ep.want, rec.Code)
		})
	}
}

func TestServer_SessionSummary(t *testing.T) {
	srv := New("127.0.0.1", 0, stubSource)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Equal(t, "11111111-2222-3333-4444-555555555555", body["session_id"])
	assert.Equal(t, "smoke", body["title"])
	assert.EqualValues(t, 3, body["jobs"])
	assert.EqualValues(t, 2, body["selected"])
	assert.EqualValues(t, 1, body["started"])
	assert.EqualValues(t, 1, body["ready"])
}

func TestServer_ListJobs(t *testing.T) {
	srv := New("127.0.0.1", 0, stubSource)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Len(t, snap.Jobs, 3)
	assert.Equal(t, "cpu", snap.Jobs[0].ID)
	assert.True(t, snap.Jobs[0].CanStart)
}

func TestServer_JobByID(t *testing.T) {
	srv := New("127.0.0.1", 0, stubSource)

	t.Run("plain id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/cpu", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var job JobSnapshot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
		assert.Equal(t, "cpu", job.ID)
		assert.Equal(t, "pass", job.Outcome)
	})

	t.Run("id containing slash", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/suite/cpu-check", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var job JobSnapshot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
		assert.Equal(t, "suite/cpu-check", job.ID)
		assert.Equal(t, []string{"PENDING_RESOURCE"}, job.Inhibitors)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)

		var body apperrors.HTTPErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "JOB_NOT_FOUND", body.Error.Code)
	})
}

func TestServer_NilSourceServesEmptySnapshot(t *testing.T) {
	srv := New("127.0.0.1", 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Empty(t, snap.Jobs)
}
