package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"phantom-auth/internal/service"
)

// Headers the gatekeeper forwards to downstream handlers. Any value a client
// supplies under these names is stripped before processing.
const (
	HeaderSub   = "X-Sub"
	HeaderScope = "X-Scope"
)

const claimsContextKey = "phantom.claims"

// Claims is the minimal identity the gatekeeper forwards after a successful
// introspection. Handlers must treat it as authoritative and never read the
// raw cookie themselves.
type Claims struct {
	Sub   string
	Scope []string
}

// Introspector resolves a raw token to an activity verdict. Satisfied by
// service.TokenService; kept narrow so the gatekeeper stays transport-agnostic.
type Introspector interface {
	Introspect(ctx context.Context, rawToken string) (service.Introspection, error)
}

// Gatekeeper classifies each request's path and decides
// allow/redirect/reject based on the session cookie. It holds no per-request
// state between requests.
type Gatekeeper struct {
	introspector Introspector
	timeout      time.Duration
	logger       *logrus.Logger
}

func NewGatekeeper(introspector Introspector, timeout time.Duration, logger *logrus.Logger) *Gatekeeper {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Gatekeeper{
		introspector: introspector,
		timeout:      timeout,
		logger:       logger,
	}
}

// Middleware returns the gin handler implementing the per-request state
// machine.
func (g *Gatekeeper) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// forwarded-claim headers are ours alone
		c.Request.Header.Del(HeaderSub)
		c.Request.Header.Del(HeaderScope)

		path := c.Request.URL.Path

		if isAsset(path) || isPublicAuthAPI(path) || path == "/healthz" {
			c.Next()
			return
		}

		raw, _ := c.Cookie(SessionCookieName)

		if isAuthPage(path) {
			if raw != "" {
				if verdict := g.introspect(c, raw); verdict.Active {
					c.Redirect(http.StatusFound, "/dashboard")
					c.Abort()
					return
				}
			}
			c.Next()
			return
		}

		if raw == "" {
			g.reject(c, path)
			return
		}

		verdict := g.introspect(c, raw)
		if !verdict.Active {
			g.reject(c, path)
			return
		}

		sub := formatSub(verdict.Sub)
		scope := strings.Join(verdict.Scope, " ")
		c.Request.Header.Set(HeaderSub, sub)
		c.Request.Header.Set(HeaderScope, scope)
		c.Set(claimsContextKey, Claims{Sub: sub, Scope: verdict.Scope})
		c.Next()
	}
}

// introspect applies the bounded timeout and fails closed: any error or
// timeout reads as inactive.
func (g *Gatekeeper) introspect(c *gin.Context, raw string) service.Introspection {
	ctx, cancel := context.WithTimeout(c.Request.Context(), g.timeout)
	defer cancel()

	verdict, err := g.introspector.Introspect(ctx, raw)
	if err != nil {
		g.logger.WithError(err).Warn("gatekeeper introspection")
		return service.Introspection{}
	}
	return verdict
}

func (g *Gatekeeper) reject(c *gin.Context, path string) {
	if strings.HasPrefix(path, "/api/") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(path))
	c.Abort()
}

// ClaimsFrom extracts the gatekeeper-forwarded identity from the request
// context.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func formatSub(sub int64) string {
	return strconv.FormatInt(sub, 10)
}

func isAsset(path string) bool {
	return strings.HasPrefix(path, "/static/") ||
		strings.HasPrefix(path, "/assets/") ||
		path == "/favicon.ico"
}

func isPublicAuthAPI(path string) bool {
	switch path {
	case "/api/auth/login", "/api/auth/register", "/api/auth/introspect":
		return true
	}
	return false
}

func isAuthPage(path string) bool {
	switch path {
	case "/", "/login", "/register":
		return true
	}
	return false
}
