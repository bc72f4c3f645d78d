// Package identity is the auth collaborator surface: something that
// can put a display name on a connecting session. No verification
// happens here; the name is an opaque string.
package identity

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const sessionKey = "displayName"

type Provider interface {
	// DisplayName returns the name remembered for this browser, or
	// "" when none is known yet.
	DisplayName(c *gin.Context) string
	// Remember persists the name for subsequent connections.
	Remember(c *gin.Context, name string)
}

// CookieProvider keeps the display name in the cookie session
// configured on the router.
type CookieProvider struct{}

func (CookieProvider) DisplayName(c *gin.Context) string {
	s := sessions.Default(c)
	if v, ok := s.Get(sessionKey).(string); ok {
		return v
	}
	return ""
}

func (CookieProvider) Remember(c *gin.Context, name string) {
	s := sessions.Default(c)
	s.Set(sessionKey, name)
	_ = s.Save()
}
