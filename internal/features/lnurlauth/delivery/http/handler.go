package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/middleware"
	"lightning-tournament-backend/internal/features/lnurlauth/models"
	"lightning-tournament-backend/internal/features/lnurlauth/service"
	"lightning-tournament-backend/internal/features/session"
)

const csrfCookieMaxAge = 24 * 60 * 60

type AuthHandler struct {
	service       service.AuthService
	secureCookies bool
}

func NewAuthHandler(svc service.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{service: svc, secureCookies: secureCookies}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup, authn, admin, authLimit, bootstrapLimit gin.HandlerFunc) {
	lnurl := router.Group("/lnurl-auth")
	{
		lnurl.GET("/challenge", authLimit, h.challenge)
		lnurl.GET("/callback", h.callback)
		lnurl.GET("/status", h.status)
		lnurl.POST("/complete", authLimit, h.complete)
	}

	adm := router.Group("/admin")
	{
		adm.POST("/bootstrap", bootstrapLimit, h.bootstrap)

		whitelist := adm.Group("/whitelist", authn, admin)
		{
			whitelist.GET("", h.listWhitelist)
			whitelist.POST("", h.approve)
			whitelist.DELETE("/:linkingKey", h.revoke)
		}
	}
}

func (h *AuthHandler) challenge(c *gin.Context) {
	resp, err := h.service.Challenge(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// callback отвечает в формате протокола LNURL, а не в общем формате ошибок
// API: кошелек понимает только {"status": ...}.
func (h *AuthHandler) callback(c *gin.Context) {
	k1 := c.Query("k1")
	sig := c.Query("sig")
	key := c.Query("key")
	if k1 == "" || sig == "" || key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "ERROR", "reason": "k1, sig and key are required"})
		return
	}

	if err := h.service.Callback(c.Request.Context(), k1, sig, key); err != nil {
		reason := "login failed"
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsOperational() {
			reason = appErr.Message
		}
		c.JSON(http.StatusOK, gin.H{"status": "ERROR", "reason": reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *AuthHandler) status(c *gin.Context) {
	resp, err := h.service.Status(c.Request.Context(), c.Query("k1"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) complete(c *gin.Context) {
	var req models.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "k1 is required"))
		return
	}

	resp, err := h.service.Complete(c.Request.Context(), req.K1)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	h.setCSRFCookie(c)
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) bootstrap(c *gin.Context) {
	var req models.BootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "secret and linkingKey are required"))
		return
	}

	if err := h.service.Bootstrap(c.Request.Context(), &req); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) listWhitelist(c *gin.Context) {
	entries, err := h.service.ListWhitelist(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"whitelist": entries})
}

func (h *AuthHandler) approve(c *gin.Context) {
	var req models.WhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "linkingKey is required"))
		return
	}

	if err := h.service.Approve(c.Request.Context(), middleware.GetUserID(c), &req); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) revoke(c *gin.Context) {
	destroyed, err := h.service.Revoke(c.Request.Context(), c.Param("linkingKey"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionsDestroyed": destroyed})
}

func (h *AuthHandler) setCSRFCookie(c *gin.Context) {
	token, err := session.MintCSRFToken()
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(session.CSRFCookieName, token, csrfCookieMaxAge, "/", "", h.secureCookies, false)
}
