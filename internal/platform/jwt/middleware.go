package jwtmw

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ContextSessionID is the gin context key holding the caller's session ID.
	ContextSessionID = "sessionID"
	// CookieName is the cookie carrying the session token.
	CookieName = "leaf_session"
	// HeaderSessionToken exposes a newly issued token to non-browser clients.
	HeaderSessionToken = "X-Session-Token"
)

// CookieOptions controls the session cookie attributes.
type CookieOptions struct {
	MaxAge time.Duration
	Secure bool
}

// SessionRequired returns a Gin middleware that resolves the caller's session.
// A valid token is read from the Authorization bearer header or the session cookie;
// when none is present or it fails verification, a new anonymous session is issued.
// A valid token past half its lifetime is re-issued for the same session, so an
// active session expires only after the configured TTL of inactivity.
func SessionRequired(g *generator, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Reuse the presented session if its token verifies
		if tokenStr := tokenFromRequest(c); tokenStr != "" {
			id, exp, err := g.parse(tokenStr)
			if err == nil {
				if g.needsRenewal(exp) && !issue(c, g, opts, id) {
					return
				}
				c.Set(ContextSessionID, id)
				c.Next()
				return
			}
			slog.Debug("discarding session token", "error", err)
		}

		// 2. Issue a new session
		id := uuid.NewString()
		if !issue(c, g, opts, id) {
			return
		}
		c.Set(ContextSessionID, id)

		// 3. Pass control to the next handler
		c.Next()
	}
}

// issue signs a token for id and hands it out as the cookie and response header.
// It aborts the request and returns false when signing fails.
func issue(c *gin.Context, g *generator, opts CookieOptions, id string) bool {
	tokenStr, err := g.GenerateToken(id)
	if err != nil {
		slog.Error("failed to issue session token", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
		return false
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, tokenStr, int(opts.MaxAge.Seconds()), "/", "", opts.Secure, true)
	c.Header(HeaderSessionToken, tokenStr)
	return true
}

// SessionID returns the session ID resolved by SessionRequired.
func SessionID(c *gin.Context) string {
	return c.GetString(ContextSessionID)
}

func tokenFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie
	}
	return ""
}
