package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lightning-tournament-backend/internal/common/middleware"
	"lightning-tournament-backend/internal/features/tournament/service"
)

type TournamentHandler struct {
	service service.TournamentService
}

func NewTournamentHandler(svc service.TournamentService) *TournamentHandler {
	return &TournamentHandler{service: svc}
}

func (h *TournamentHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	tournaments := router.Group("/tournaments")
	{
		tournaments.GET("/current", h.current)
		tournaments.GET("/current/leaderboard", h.leaderboard)
		tournaments.GET("/current/entry", authn, h.myEntry)
	}
}

func (h *TournamentHandler) current(c *gin.Context) {
	resp, err := h.service.CurrentInfo(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TournamentHandler) leaderboard(c *gin.Context) {
	rows, err := h.service.Leaderboard(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
}

func (h *TournamentHandler) myEntry(c *gin.Context) {
	entry, err := h.service.MyEntry(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
