package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portal_insights_backend/internal/assistant/chat"
	"portal_insights_backend/internal/assistant/domain"
	"portal_insights_backend/internal/assistant/session"
	"portal_insights_backend/internal/assistant/tools"
	"portal_insights_backend/platform/apperr"
	"portal_insights_backend/platform/httpkit"
	"portal_insights_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeConversations struct {
	welcome chat.WelcomeRequest
	chat    chat.ChatRequest
	err     error
}

func (f *fakeConversations) Welcome(_ context.Context, req chat.WelcomeRequest) (domain.Reply, error) {
	f.welcome = req
	if f.err != nil {
		return domain.Reply{}, f.err
	}
	return domain.Reply{SessionID: "s-1", Message: "hello", Language: "en"}, nil
}

func (f *fakeConversations) Chat(_ context.Context, req chat.ChatRequest) (domain.Reply, error) {
	f.chat = req
	if f.err != nil {
		return domain.Reply{}, f.err
	}
	return domain.Reply{SessionID: "s-1", Message: "answer", Language: "en"}, nil
}

type harness struct {
	engine   *gin.Engine
	conv     *fakeConversations
	sessions *session.Store
	account  uuid.UUID
	orgScope *uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{conv: &fakeConversations{}, sessions: session.NewStore(), account: uuid.New()}

	engine := gin.New()
	group := engine.Group("/assistant", func(c *gin.Context) {
		c.Set(httpkit.ContextAccountIDKey, h.account)
		if h.orgScope != nil {
			c.Set(httpkit.ContextOrgScopeKey, *h.orgScope)
		}
		c.Next()
	})
	New(h.conv, h.sessions, validator.New()).RegisterRoutes(group)
	h.engine = engine
	return h
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestWelcomeAcceptsEmptyBody(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/assistant/welcome", "", "Accept-Language", "nl-NL")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, h.account, h.conv.welcome.AccountID)
	require.Equal(t, "nl-NL", h.conv.welcome.Language)
	require.Nil(t, h.conv.welcome.OrgScope)
}

func TestChatRequiresMessage(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/assistant/chat", `{"message":"   "}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), msgValidationFailed)
}

func TestChatRejectsOversizedMessage(t *testing.T) {
	h := newHarness(t)

	body, err := json.Marshal(map[string]string{"message": strings.Repeat("a", 4001)})
	require.NoError(t, err)
	rec := h.do(http.MethodPost, "/assistant/chat", string(body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatPassesBodyLanguageAndScope(t *testing.T) {
	h := newHarness(t)
	org := uuid.New()

	rec := h.do(http.MethodPost, "/assistant/chat",
		`{"message":" hi ","language":"es","sessionId":"abc","orgScope":"`+org.String()+`"}`,
		"Accept-Language", "nl")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hi", h.conv.chat.Message)
	require.Equal(t, "es", h.conv.chat.Language)
	require.Equal(t, "abc", h.conv.chat.SessionID)
	require.NotNil(t, h.conv.chat.OrgScope)
	require.Equal(t, org, *h.conv.chat.OrgScope)
}

func TestChatForeignOrgScopeIsForbidden(t *testing.T) {
	h := newHarness(t)
	own := uuid.New()
	h.orgScope = &own

	rec := h.do(http.MethodPost, "/assistant/chat", `{"message":"hi","orgScope":"`+uuid.NewString()+`"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitedChatSetsRetryAfter(t *testing.T) {
	h := newHarness(t)
	h.conv.err = apperr.RateLimited("too many assistant requests, please wait", 41*time.Second+time.Millisecond)

	rec := h.do(http.MethodPost, "/assistant/chat", `{"message":"hi"}`)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "42", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "retryAfterSeconds")
}

func TestSessionEndpointsEnforceOwnership(t *testing.T) {
	h := newHarness(t)
	own := h.sessions.GetOrCreate(h.account, "", "en")
	require.NoError(t, h.sessions.Append(own.ID, domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hi"}))
	foreign := h.sessions.GetOrCreate(uuid.New(), "", "en")

	rec := h.do(http.MethodGet, "/assistant/sessions/"+own.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"content":"hi"`)

	rec = h.do(http.MethodGet, "/assistant/sessions/"+foreign.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodDelete, "/assistant/sessions/"+foreign.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	_, stillThere := h.sessions.Get(foreign.ID)
	require.True(t, stillThere)

	rec = h.do(http.MethodDelete, "/assistant/sessions/"+own.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, stillThere = h.sessions.Get(own.ID)
	require.False(t, stillThere)
}

func TestListToolsReturnsVersionedCatalog(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/assistant/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Version string `json:"version"`
		Tools   []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, tools.SchemaVersion, body.Version)
	require.Len(t, body.Tools, len(tools.Descriptors()))
	require.Equal(t, tools.ToolListData, body.Tools[0].Name)
}
