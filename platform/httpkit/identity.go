// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Identity represents the authenticated operator's identity.
// Handlers read it without depending on the token format.
type Identity interface {
	// Subject returns the operator name carried in the token.
	Subject() string
	// Roles returns the operator's assigned roles.
	Roles() []string
	// HasRole checks if the operator has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the request carried a valid token.
	IsAuthenticated() bool
}

type identity struct {
	subject       string
	roles         []string
	authenticated bool
}

func (i *identity) Subject() string {
	return i.subject
}

func (i *identity) Roles() []string {
	return i.roles
}

func (i *identity) HasRole(role string) bool {
	return slices.Contains(i.roles, role)
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if operator info is not present.
func GetIdentity(c *gin.Context) Identity {
	subject := c.GetString(ContextSubjectKey)
	if subject == "" {
		return &identity{authenticated: false}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}

	return &identity{
		subject:       subject,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the operator is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
