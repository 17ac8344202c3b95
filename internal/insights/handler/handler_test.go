package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/internal/insights/service"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/httpkit"
	"portal_insights_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	req         service.SnapshotRequest
	err         error
	invalidated []uuid.UUID
}

func (f *fakeSnapshots) GetSnapshot(_ context.Context, req service.SnapshotRequest) (domain.Snapshot, error) {
	f.req = req
	if f.err != nil {
		return domain.Snapshot{}, f.err
	}
	return domain.Snapshot{Meta: domain.Meta{AccountID: req.AccountID, OrgScope: req.OrgScope, WindowDays: 30, Language: "en", Timezone: "UTC"}}, nil
}

func (f *fakeSnapshots) Invalidate(_ context.Context, accountID uuid.UUID) error {
	f.invalidated = append(f.invalidated, accountID)
	return nil
}

type harness struct {
	engine   *gin.Engine
	svc      *fakeSnapshots
	account  uuid.UUID
	orgScope *uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{svc: &fakeSnapshots{}, account: uuid.New()}

	engine := gin.New()
	group := engine.Group("/insights", func(c *gin.Context) {
		c.Set(httpkit.ContextAccountIDKey, h.account)
		if h.orgScope != nil {
			c.Set(httpkit.ContextOrgScopeKey, *h.orgScope)
		}
		c.Next()
	})
	New(h.svc, validator.New()).RegisterRoutes(group)
	h.engine = engine
	return h
}

func (h *harness) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestGetSnapshotPassesQuery(t *testing.T) {
	h := newHarness(t)
	org := uuid.New()

	rec := h.do(http.MethodGet, "/insights/snapshot?orgScope="+org.String()+"&windowDays=14&refresh=true")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Equal(t, h.account, h.svc.req.AccountID)
	require.NotNil(t, h.svc.req.OrgScope)
	require.Equal(t, org, *h.svc.req.OrgScope)
	require.Equal(t, 14, h.svc.req.WindowDays)
	require.True(t, h.svc.req.ForceRefresh)

	var body domain.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, h.account, body.Meta.AccountID)
}

func TestGetSnapshotRejectsBadWindow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/insights/snapshot?windowDays=400")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/insights/snapshot?orgScope=not-a-uuid")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSnapshotForeignOrgIsForbidden(t *testing.T) {
	h := newHarness(t)
	own := uuid.New()
	h.orgScope = &own

	rec := h.do(http.MethodGet, "/insights/snapshot?orgScope="+uuid.NewString())
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, "/insights/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, h.svc.req.OrgScope)
	require.Equal(t, own, *h.svc.req.OrgScope)
}

func TestGetSnapshotUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.err = apperr.Unavailable("failed to load account records", errors.New("connection refused"))

	rec := h.do(http.MethodGet, "/insights/snapshot")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestInvalidateDropsCallerSnapshots(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/insights/snapshot/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"invalidated":true}`, rec.Body.String())
	require.Equal(t, []uuid.UUID{h.account}, h.svc.invalidated)
}
