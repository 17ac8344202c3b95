package handler

import (
	"context"
	"net/http"
	"strings"

	"portal_insights_backend/internal/assistant/chat"
	"portal_insights_backend/internal/assistant/domain"
	"portal_insights_backend/internal/assistant/tools"
	"portal_insights_backend/internal/assistant/transport"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/httpkit"
	"portal_insights_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgSessionNotFound  = "session not found"
)

// Conversations runs welcome and chat turns.
type Conversations interface {
	Welcome(ctx context.Context, req chat.WelcomeRequest) (domain.Reply, error)
	Chat(ctx context.Context, req chat.ChatRequest) (domain.Reply, error)
}

// Sessions reads and clears conversation history.
type Sessions interface {
	Get(sessionID string) (domain.Session, bool)
	Clear(sessionID string) bool
}

type Handler struct {
	conversations Conversations
	sessions      Sessions
	val           *validator.Validator
}

func New(conversations Conversations, sessions Sessions, val *validator.Validator) *Handler {
	return &Handler{conversations: conversations, sessions: sessions, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/welcome", h.Welcome)
	rg.POST("/chat", h.Chat)
	rg.GET("/sessions/:id", h.GetSession)
	rg.DELETE("/sessions/:id", h.ClearSession)
	rg.GET("/tools", h.ListTools)
}

func (h *Handler) Welcome(c *gin.Context) {
	var req transport.WelcomeRequest
	// An empty body is a valid welcome request.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
			return
		}
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

	reply, err := h.conversations.Welcome(c.Request.Context(), chat.WelcomeRequest{
		AccountID: identity.AccountID(),
		OrgScope:  orgScope,
		SessionID: req.SessionID,
		Language:  requestLanguage(c, req.Language),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, reply)
}

func (h *Handler) Chat(c *gin.Context) {
	var req transport.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	req.Message = strings.TrimSpace(req.Message)
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

	reply, err := h.conversations.Chat(c.Request.Context(), chat.ChatRequest{
		AccountID: identity.AccountID(),
		OrgScope:  orgScope,
		SessionID: req.SessionID,
		Message:   req.Message,
		Language:  requestLanguage(c, req.Language),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, reply)
}

func (h *Handler) GetSession(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	sess, ok := h.sessions.Get(c.Param("id"))
	if !ok || sess.AccountID != identity.AccountID() {
		httpkit.HandleError(c, apperr.NotFound(msgSessionNotFound))
		return
	}

	httpkit.OK(c, transport.SessionResponse{Session: sess})
}

func (h *Handler) ClearSession(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id := c.Param("id")
	sess, ok := h.sessions.Get(id)
	if !ok || sess.AccountID != identity.AccountID() {
		httpkit.HandleError(c, apperr.NotFound(msgSessionNotFound))
		return
	}

	httpkit.OK(c, transport.ClearSessionResponse{Cleared: h.sessions.Clear(id)})
}

func (h *Handler) ListTools(c *gin.Context) {
	httpkit.OK(c, transport.ToolCatalogResponse{
		Version: tools.SchemaVersion,
		Tools:   tools.Descriptors(),
	})
}

// requestLanguage prefers the body field and falls back to Accept-Language.
func requestLanguage(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return c.GetHeader("Accept-Language")
}
