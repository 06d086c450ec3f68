package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentspace/internal/app/policies"
)

// Capturer simulates the guest completing a payment at the provider.
type Capturer interface {
	Capture(ctx context.Context, intentID string, amountCents int64) (policies.Payment, error)
}

type SandboxHandler struct {
	Payments Capturer
	Logger   *slog.Logger
}

type captureRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func (h SandboxHandler) Capture(c *gin.Context) {
	var req captureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_failed"})
			return
		}
	}
	payment, err := h.Payments.Capture(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.AmountCents)
	if err != nil {
		respondError(c, h.Logger, "sandbox.capture", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_intent_id": payment.IntentID,
		"status":            payment.Status,
		"captured_cents":    payment.CapturedCents,
		"currency":          payment.Currency,
	})
}

var _ SandboxHTTP = SandboxHandler{}
