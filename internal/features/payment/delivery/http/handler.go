package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
	"lightning-tournament-backend/internal/common/middleware"
	"lightning-tournament-backend/internal/features/payment/models"
	"lightning-tournament-backend/internal/features/payment/service"
	walletmodels "lightning-tournament-backend/internal/features/wallet/models"
)

// signatureHeaders are the header names the Lightning backend may use for the
// HMAC, checked in order.
var signatureHeaders = []string{"X-LNbits-Signature", "X-Webhook-Signature", "X-Signature"}

type PaymentHandler struct {
	service       service.PaymentService
	webhookSecret string
}

func NewPaymentHandler(svc service.PaymentService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{service: svc, webhookSecret: webhookSecret}
}

// RegisterRoutes mounts the payment surface. The webhook stays outside the
// session and CSRF chain; its caller authenticates with the HMAC signature.
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup, authn, csrf, rateLimit gin.HandlerFunc) {
	router.POST("/payments/webhook", h.webhook)

	payments := router.Group("/payments")
	payments.Use(authn, csrf, rateLimit)
	{
		payments.POST("/buy-in", h.buyIn)
		payments.GET("/status/:hash", h.buyInStatus)
	}

	wallet := router.Group("/wallet")
	wallet.Use(authn, csrf, rateLimit)
	{
		wallet.POST("/deposit", h.deposit)
		wallet.GET("/deposit/status/:hash", h.depositStatus)
	}
}

func (h *PaymentHandler) buyIn(c *gin.Context) {
	resp, err := h.service.CreateBuyIn(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) buyInStatus(c *gin.Context) {
	resp, err := h.service.BuyInStatus(c.Request.Context(), middleware.GetUserID(c), c.Param("hash"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) deposit(c *gin.Context) {
	var req walletmodels.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("amountSats", "a positive integer amount is required"))
		return
	}

	resp, err := h.service.CreateDeposit(c.Request.Context(), middleware.GetUserID(c), req.AmountSats)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) depositStatus(c *gin.Context) {
	resp, err := h.service.DepositStatus(c.Request.Context(), middleware.GetUserID(c), c.Param("hash"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// webhook verifies the HMAC over the raw body bytes before anything else
// touches the payload. There is no bypass path.
func (h *PaymentHandler) webhook(c *gin.Context) {
	if ct := c.ContentType(); ct != "" && ct != "application/json" {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "JSON body required"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "unreadable request body"))
		return
	}

	if !h.verifySignature(c, body) {
		logger.Warn().
			Str("request_id", middleware.GetRequestID(c)).
			Str("ip", c.ClientIP()).
			Msg("Webhook signature verification failed")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		middleware.Abort(c, apperrors.NewValidationError("body", "malformed JSON payload"))
		return
	}

	duplicate, err := h.service.HandleWebhook(c.Request.Context(), &payload)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	resp := gin.H{"received": true}
	if duplicate {
		resp["duplicate"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) verifySignature(c *gin.Context, body []byte) bool {
	if h.webhookSecret == "" {
		return false
	}

	var received string
	for _, name := range signatureHeaders {
		if v := c.GetHeader(name); v != "" {
			received = v
			break
		}
	}
	if received == "" {
		return false
	}
	received = strings.TrimPrefix(strings.TrimSpace(received), "sha256=")

	sig, err := hex.DecodeString(received)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
