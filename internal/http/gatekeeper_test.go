package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"phantom-auth/internal/service"
)

type fakeIntrospector struct {
	verdicts map[string]service.Introspection
	err      error
	calls    int
}

func (f *fakeIntrospector) Introspect(_ context.Context, raw string) (service.Introspection, error) {
	f.calls++
	if f.err != nil {
		return service.Introspection{}, f.err
	}
	return f.verdicts[raw], nil
}

func newGateRouter(t *testing.T, fake *fakeIntrospector) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	gate := NewGatekeeper(fake, time.Second, logger)
	r := gin.New()
	r.Use(gate.Middleware())

	echo := func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"sub":          claims.Sub,
			"header_sub":   c.Request.Header.Get(HeaderSub),
			"header_scope": c.Request.Header.Get(HeaderScope),
		})
	}
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "home") })
	r.GET("/login", func(c *gin.Context) { c.String(http.StatusOK, "login") })
	r.GET("/dashboard", echo)
	r.GET("/api/private/data", echo)
	r.GET("/static/app.js", func(c *gin.Context) { c.String(http.StatusOK, "js") })
	r.POST("/api/auth/login", func(c *gin.Context) { c.String(http.StatusOK, "login api") })
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func get(r *gin.Engine, path string, cookie string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookie})
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGatekeeperProtectedPageWithoutCookieRedirects(t *testing.T) {
	fake := &fakeIntrospector{}
	r := newGateRouter(t, fake)

	w := get(r, "/dashboard", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login?next=%2Fdashboard", w.Header().Get("Location"))
	require.Zero(t, fake.calls)
}

func TestGatekeeperProtectedAPIWithoutCookie401(t *testing.T) {
	r := newGateRouter(t, &fakeIntrospector{})

	w := get(r, "/api/private/data", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGatekeeperInactiveTokenRejected(t *testing.T) {
	fake := &fakeIntrospector{verdicts: map[string]service.Introspection{}}
	r := newGateRouter(t, fake)

	w := get(r, "/dashboard", "stale-token", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login?next=%2Fdashboard", w.Header().Get("Location"))

	w = get(r, "/api/private/data", "stale-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGatekeeperFailsClosedOnIntrospectionError(t *testing.T) {
	fake := &fakeIntrospector{err: errors.New("store unreachable")}
	r := newGateRouter(t, fake)

	w := get(r, "/api/private/data", "any-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGatekeeperActiveTokenForwardsClaims(t *testing.T) {
	fake := &fakeIntrospector{verdicts: map[string]service.Introspection{
		"good-token": {Active: true, Sub: 42, Scope: []string{"read", "write"}},
	}}
	r := newGateRouter(t, fake)

	w := get(r, "/dashboard", "good-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"sub":"42"`)
	require.Contains(t, w.Body.String(), `"header_sub":"42"`)
	require.Contains(t, w.Body.String(), `"header_scope":"read write"`)
}

func TestGatekeeperStripsClientClaimHeaders(t *testing.T) {
	fake := &fakeIntrospector{verdicts: map[string]service.Introspection{
		"good-token": {Active: true, Sub: 42, Scope: []string{"read"}},
	}}
	r := newGateRouter(t, fake)

	w := get(r, "/dashboard", "good-token", map[string]string{
		HeaderSub:   "1337",
		HeaderScope: "admin",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"header_sub":"42"`)
	require.Contains(t, w.Body.String(), `"header_scope":"read"`)
	require.NotContains(t, w.Body.String(), "1337")
	require.NotContains(t, w.Body.String(), "admin")
}

func TestGatekeeperAuthPageRedirectsActiveSession(t *testing.T) {
	fake := &fakeIntrospector{verdicts: map[string]service.Introspection{
		"good-token": {Active: true, Sub: 1, Scope: []string{"read"}},
	}}
	r := newGateRouter(t, fake)

	for _, path := range []string{"/", "/login"} {
		w := get(r, path, "good-token", nil)
		require.Equal(t, http.StatusFound, w.Code, path)
		require.Equal(t, "/dashboard", w.Header().Get("Location"), path)
	}
}

func TestGatekeeperAuthPagePassesThroughWithoutSession(t *testing.T) {
	fake := &fakeIntrospector{}
	r := newGateRouter(t, fake)

	w := get(r, "/login", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// an inactive cookie also falls through to the page
	w = get(r, "/login", "stale", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGatekeeperBypassesAssetsAndPublicAPIs(t *testing.T) {
	fake := &fakeIntrospector{}
	r := newGateRouter(t, fake)

	w := get(r, "/static/app.js", "whatever", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Zero(t, fake.calls)
}
