package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"phantom-auth/internal/service"
)

// SessionCookieName is the cookie carrying the raw opaque session token.
const SessionCookieName = "phantom_token"

// CookieOptions controls how the session cookie is written.
type CookieOptions struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users  service.UserService
	tokens service.TokenService
	cookie CookieOptions
	logger *logrus.Logger
}

func NewHandler(users service.UserService, tokens service.TokenService, cookie CookieOptions, logger *logrus.Logger) *Handler {
	return &Handler{
		users:  users,
		tokens: tokens,
		cookie: cookie,
		logger: logger,
	}
}

// RegisterRoutes attaches all routes. The gatekeeper runs ahead of every
// handler; route handlers trust only what it forwards.
func (h *Handler) RegisterRoutes(router *gin.Engine, gate gin.HandlerFunc) {
	router.Use(gate)

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/logout", h.logout)
		auth.POST("/introspect", h.introspect)
	}

	api := router.Group("/api")
	{
		api.GET("/me", h.me)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	// placeholder pages so the gatekeeper's page-path outcomes are reachable
	router.GET("/", h.page("home"))
	router.GET("/login", h.page("login"))
	router.GET("/register", h.page("register"))
	router.GET("/dashboard", h.page("dashboard"))
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"omitempty,min=2,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type introspectRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	if _, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.Name); err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("register user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user registered"})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	session, err := h.tokens.Issue(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.WithError(err).Error("issue session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	h.setSessionCookie(c, session.RawToken, int(h.cookie.MaxAge.Seconds()))
	c.JSON(http.StatusOK, gin.H{"message": "logged in"})
}

func (h *Handler) logout(c *gin.Context) {
	if raw, err := c.Cookie(SessionCookieName); err == nil && raw != "" {
		if err := h.tokens.Revoke(c.Request.Context(), raw); err != nil {
			// the cookie is cleared regardless; logout never fails
			h.logger.WithError(err).Warn("revoke session")
		}
	}

	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) introspect(c *gin.Context) {
	var req introspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}

	verdict, err := h.tokens.Introspect(c.Request.Context(), req.Token)
	if err != nil {
		// fail closed: a store error must not become a validity oracle
		h.logger.WithError(err).Error("introspect token")
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	if !verdict.Active {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active": true,
		"sub":    verdict.Sub,
		"scope":  verdict.Scope,
		"exp":    verdict.Exp,
	})
}

func (h *Handler) me(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sub": claims.Sub, "scope": claims.Scope})
}

func (h *Handler) page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, name)
	}
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, value, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}
