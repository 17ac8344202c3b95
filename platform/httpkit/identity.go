// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"strings"

	"portal_insights_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated account behind a request.
// Handlers read it instead of digging through gin context keys.
type Identity interface {
	// AccountID returns the authenticated account's ID.
	AccountID() uuid.UUID
	// OrgScope returns the organization the token is scoped to, if any.
	OrgScope() *uuid.UUID
	// Roles returns the account's assigned roles.
	Roles() []string
	// HasRole checks if the account has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the request carried a valid token.
	IsAuthenticated() bool
}

type identity struct {
	accountID     uuid.UUID
	orgScope      *uuid.UUID
	roles         []string
	authenticated bool
}

func (i *identity) AccountID() uuid.UUID  { return i.accountID }
func (i *identity) OrgScope() *uuid.UUID  { return i.orgScope }
func (i *identity) Roles() []string       { return i.roles }
func (i *identity) IsAuthenticated() bool { return i.authenticated }

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if account info is not present.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextAccountIDKey)
	if !ok {
		return &identity{}
	}
	accountID, ok := raw.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	id := &identity{accountID: accountID, authenticated: true}
	if roles, ok := c.Get(ContextRolesKey); ok {
		id.roles, _ = roles.([]string)
	}
	if scope, ok := c.Get(ContextOrgScopeKey); ok {
		if parsed, ok := scope.(uuid.UUID); ok {
			id.orgScope = &parsed
		}
	}
	return id
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the request is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}

// ResolveOrgScope picks the organization scope for a request. A token scoped to
// an organization may only ask for that organization; an unscoped token may
// narrow to any organization of its account. Empty requested means the token's
// own scope.
func ResolveOrgScope(id Identity, requested string) (*uuid.UUID, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return id.OrgScope(), nil
	}
	parsed, err := uuid.Parse(requested)
	if err != nil {
		return nil, apperr.Validation("orgScope must be a valid UUID")
	}
	if scope := id.OrgScope(); scope != nil && *scope != parsed {
		return nil, apperr.Forbidden("organization scope not allowed for this token")
	}
	return &parsed, nil
}
