package handler

import (
	"context"
	"net/http"

	"portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/internal/insights/service"
	"portal_insights_backend/internal/insights/transport"
	"portal_insights_backend/platform/httpkit"
	"portal_insights_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// SnapshotService is the part of the aggregator the HTTP layer needs.
type SnapshotService interface {
	GetSnapshot(ctx context.Context, req service.SnapshotRequest) (domain.Snapshot, error)
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

type Handler struct {
	svc SnapshotService
	val *validator.Validator
}

func New(svc SnapshotService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/snapshot", h.GetSnapshot)
	rg.POST("/snapshot/invalidate", h.Invalidate)
}

func (h *Handler) GetSnapshot(c *gin.Context) {
	var req transport.SnapshotQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Describe(err))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgScope, err := httpkit.ResolveOrgScope(identity, req.OrgScope)
	if httpkit.HandleError(c, err) {
		return
	}

	snapshot, err := h.svc.GetSnapshot(c.Request.Context(), service.SnapshotRequest{
		AccountID:    identity.AccountID(),
		OrgScope:     orgScope,
		WindowDays:   req.WindowDays,
		ForceRefresh: req.Refresh,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, snapshot)
}

func (h *Handler) Invalidate(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.Invalidate(c.Request.Context(), identity.AccountID()); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.InvalidateResponse{Invalidated: true})
}
