//go:build cgo

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/core"
	"github.com/sitelens/sitelens/internal/core/checks"
	"github.com/sitelens/sitelens/internal/core/engine"
	"github.com/sitelens/sitelens/internal/core/store"
	"github.com/sitelens/sitelens/internal/crawl"
	apperrors "github.com/sitelens/sitelens/internal/errors"
)

type stubDiscoverer struct{}

func (stubDiscoverer) Discover(ctx context.Context, rootURL string, maxPages int) (<-chan crawl.Page, error) {
	out := make(chan crawl.Page, 1)
	out <- crawl.Page{URL: rootURL, HTML: "<html><body><h1>Home</h1></body></html>"}
	close(out)
	return out, nil
}

type stubFetcher struct{}

func (stubFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	return "<html><body><h1>Home</h1></body></html>", nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	ctx := context.Background()
	st, err := store.Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	eng := engine.New(engine.Options{
		Store:      st,
		Discoverer: stubDiscoverer{},
		Fetcher:    stubFetcher{},
		Registry:   checks.NewRegistryWith(),
	})
	return New(config.ServerConfig{}, eng, st, nil), st
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorDetail {
	t.Helper()

	var envelope apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func seedCompletedAudit(t *testing.T, st *store.Store, auditType core.AuditType, score int, completedAt time.Time) *core.Audit {
	t.Helper()

	audit := &core.Audit{
		ID:           uuid.NewString(),
		Type:         auditType,
		URL:          "https://example.com",
		Status:       core.StatusCompleted,
		OverallScore: &score,
		CreatedAt:    completedAt.Add(-time.Hour),
		CompletedAt:  &completedAt,
	}
	require.NoError(t, st.InsertAudit(context.Background(), audit))
	return audit
}

func TestUnknownRouteReturnsErrorEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodDelete, "/version", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, rec).Code)
}

func TestCreateAuditRejectsInvalidInput(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/audits",
		map[string]string{"type": "bogus", "url": "https://example.com"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/audits",
		map[string]string{"type": "site"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAuditReturnsAccepted(t *testing.T) {
	srv, st := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/audits",
		map[string]string{"type": "site", "url": "https://example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var audit core.Audit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	require.NotEmpty(t, audit.ID)
	require.Equal(t, core.AuditTypeSite, audit.Type)
	require.Equal(t, "https://example.com", audit.URL)

	// The run proceeds in the background after the response.
	require.Eventually(t, func() bool {
		current, err := st.GetAudit(context.Background(), audit.ID)
		return err == nil && current.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)
}

func TestGetAuditNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/audits/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestListAuditsRequiresOrgID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/audits", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/audits?org_id=acme&limit=zero", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/audits?org_id=acme", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Audits []core.Audit `json:"audits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Audits)
}

func TestProgressAndChecksEndpoints(t *testing.T) {
	srv, st := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/audits",
		map[string]string{"type": "site", "url": "https://example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var audit core.Audit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))

	require.Eventually(t, func() bool {
		current, err := st.GetAudit(context.Background(), audit.ID)
		return err == nil && current.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/audits/"+audit.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var progress core.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	require.Equal(t, audit.ID, progress.AuditID)
	require.Equal(t, core.StatusCompleted, progress.Status)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/audits/"+audit.ID+"/checks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var checksBody struct {
		AuditID string             `json:"audit_id"`
		Checks  []core.CheckResult `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checksBody))
	require.Equal(t, audit.ID, checksBody.AuditID)
}

func TestStopEndpoint(t *testing.T) {
	srv, st := newTestServer(t)

	audit := &core.Audit{
		ID:        uuid.NewString(),
		Type:      core.AuditTypeSite,
		URL:       "https://example.com",
		Status:    core.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.InsertAudit(context.Background(), audit))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/audits/"+audit.ID+"/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stopped core.Audit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stopped))
	require.Equal(t, core.StatusStopped, stopped.Status)
}

func TestResumeEndpointMapsEngineErrors(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	pending := &core.Audit{
		ID:        uuid.NewString(),
		Type:      core.AuditTypeSite,
		URL:       "https://example.com",
		Status:    core.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.InsertAudit(ctx, pending))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/audits/"+pending.ID+"/resume", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONFLICT", decodeError(t, rec).Code)

	empty := &core.Audit{
		ID:           uuid.NewString(),
		Type:         core.AuditTypeSite,
		URL:          "https://example.com",
		Status:       core.StatusFailed,
		ErrorMessage: "host unreachable",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, st.InsertAudit(ctx, empty))

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/audits/"+empty.ID+"/resume", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", decodeError(t, rec).Code)
}

func TestCreateReport(t *testing.T) {
	srv, st := newTestServer(t)
	now := time.Now().UTC()

	site := seedCompletedAudit(t, st, core.AuditTypeSite, 90, now)
	performance := seedCompletedAudit(t, st, core.AuditTypePerformance, 70, now)
	aio := seedCompletedAudit(t, st, core.AuditTypeAIO, 50, now)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/reports", map[string]string{
		"site_audit_id":        site.ID,
		"performance_audit_id": performance.ID,
		"aio_audit_id":         aio.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var combined core.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &combined))
	require.Equal(t, 76, combined.CombinedScore)
	require.Len(t, combined.Breakdown, 3)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/reports/"+combined.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateReportValidationFailure(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	site := seedCompletedAudit(t, st, core.AuditTypeSite, 90, now)
	aio := seedCompletedAudit(t, st, core.AuditTypeAIO, 50, now)

	// A performance audit that never completed and has no score.
	performance := &core.Audit{
		ID:        uuid.NewString(),
		Type:      core.AuditTypePerformance,
		URL:       "https://example.com",
		Status:    core.StatusFailed,
		CreatedAt: now,
	}
	require.NoError(t, st.InsertAudit(ctx, performance))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/reports", map[string]string{
		"site_audit_id":        site.ID,
		"performance_audit_id": performance.ID,
		"aio_audit_id":         aio.ID,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	detail := decodeError(t, rec)
	require.Equal(t, "VALIDATION_FAILED", detail.Code)
	reasons, ok := detail.Details["reasons"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, reasons)
}

func TestCreateReportRequiresAllIDs(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/reports",
		map[string]string{"site_audit_id": uuid.NewString()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestCreateReportUnknownAudit(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/reports", map[string]string{
		"site_audit_id":        uuid.NewString(),
		"performance_audit_id": uuid.NewString(),
		"aio_audit_id":         uuid.NewString(),
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndVersionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, target := range []string{"/health", "/health/live", "/health/ready"} {
		rec := doJSON(t, srv.Handler(), http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("endpoint %s", target))
	}

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "app")
	require.Contains(t, body, "runtime")
}
