package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/middleware"
	"lightning-tournament-backend/internal/features/session"
	"lightning-tournament-backend/internal/features/user/models"
	"lightning-tournament-backend/internal/features/user/service"
)

const csrfCookieMaxAge = 24 * 60 * 60

type UserHandler struct {
	service       service.UserService
	sessions      *session.Service
	secureCookies bool
}

func NewUserHandler(svc service.UserService, sessions *session.Service, secureCookies bool) *UserHandler {
	return &UserHandler{
		service:       svc,
		sessions:      sessions,
		secureCookies: secureCookies,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	router.GET("/csrf-token", h.csrfToken)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
	}

	me := router.Group("/auth")
	me.Use(authn)
	{
		me.GET("/me", h.getMe)
		me.POST("/logout", h.logout)
		me.POST("/logout-all", h.logoutAll)
		me.PUT("/lightning-address", h.updateLightningAddress)
	}
}

func (h *UserHandler) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "username and password are required"))
		return
	}

	resp, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	h.setCSRFCookie(c)
	c.JSON(http.StatusCreated, resp)
}

func (h *UserHandler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "username and password are required"))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	h.setCSRFCookie(c)
	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) getMe(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.GetSessionToken(c)); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *UserHandler) logoutAll(c *gin.Context) {
	removed, err := h.service.LogoutAll(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionsDestroyed": removed})
}

func (h *UserHandler) updateLightningAddress(c *gin.Context) {
	var req models.LightningAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "lightningAddress is required"))
		return
	}

	if err := h.service.UpdateLightningAddress(c.Request.Context(), middleware.GetUserID(c), req.LightningAddress); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// csrfToken mints the double-submit cookie and echoes the value so SPA
// clients behind strict cookie policies can still read it.
func (h *UserHandler) csrfToken(c *gin.Context) {
	token := h.setCSRFCookie(c)
	if token == "" {
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

func (h *UserHandler) setCSRFCookie(c *gin.Context) string {
	token, err := session.MintCSRFToken()
	if err != nil {
		middleware.Abort(c, err)
		return ""
	}
	c.SetSameSite(http.SameSiteStrictMode)
	// Not HttpOnly: the frontend reads the cookie to echo it in the header.
	c.SetCookie(session.CSRFCookieName, token, csrfCookieMaxAge, "/", "", h.secureCookies, false)
	return token
}
