package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/middleware"
	"lightning-tournament-backend/internal/features/game/models"
	"lightning-tournament-backend/internal/features/game/service"
)

type GameHandler struct {
	service service.GameService
}

func NewGameHandler(svc service.GameService) *GameHandler {
	return &GameHandler{service: svc}
}

func (h *GameHandler) RegisterRoutes(router *gin.RouterGroup, authn, csrf, submitLimit gin.HandlerFunc) {
	game := router.Group("/game", authn)
	{
		game.GET("/attempts", h.attempts)
		game.GET("/stats", h.stats)
		game.POST("/start-attempt", csrf, submitLimit, h.startAttempt)
		game.POST("/submit", csrf, submitLimit, h.submit)
	}
}

func (h *GameHandler) attempts(c *gin.Context) {
	resp, err := h.service.Attempts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GameHandler) startAttempt(c *gin.Context) {
	resp, err := h.service.StartAttempt(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GameHandler) submit(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", err.Error()))
		return
	}
	resp, err := h.service.SubmitScore(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GameHandler) stats(c *gin.Context) {
	resp, err := h.service.Stats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
