package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lightning-tournament-backend/internal/common/middleware"
	"lightning-tournament-backend/internal/features/wallet/service"
)

type WalletHandler struct {
	service service.WalletService
}

func NewWalletHandler(svc service.WalletService) *WalletHandler {
	return &WalletHandler{service: svc}
}

func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	wallet := router.Group("/wallet")
	wallet.Use(authn)
	{
		wallet.GET("/balance", h.balance)
		wallet.GET("/transactions", h.transactions)
	}
}

func (h *WalletHandler) balance(c *gin.Context) {
	resp, err := h.service.Balance(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WalletHandler) transactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.service.Transactions(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
