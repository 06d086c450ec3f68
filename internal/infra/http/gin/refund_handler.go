package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentspace/internal/app/commands"
	refundsapp "rentspace/internal/app/handlers/refunds"
	handlersupport "rentspace/internal/app/handlers/support"
)

type RefundHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type refundRequest struct {
	Role    string `json:"role"`
	ActorID string `json:"actor_id"`
	Locale  string `json:"locale"`
}

// Request handles POST /bookings/:id/refund. A denial is still 200 with
// allowed=false and a reason code.
func (h RefundHandler) Request(c *gin.Context) {
	if h.Commands == nil {
		busUnavailable(c)
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, "booking.refund", &handlersupport.ArgumentError{Field: "body", Reason: err.Error()})
		return
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = primaryLanguage(c.GetHeader("Accept-Language"))
	}
	cmd := refundsapp.RequestRefundCommand{
		BookingID:       strings.TrimSpace(c.Param("id")),
		Role:            req.Role,
		ActorID:         strings.TrimSpace(req.ActorID),
		Locale:          locale,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[refundsapp.RequestRefundCommand, *refundsapp.RefundOutcome](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "booking.refund", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// primaryLanguage returns "fr" for "fr-CA,fr;q=0.9,en;q=0.8".
func primaryLanguage(header string) string {
	first := strings.TrimSpace(strings.Split(header, ",")[0])
	first = strings.Split(first, ";")[0]
	return strings.ToLower(strings.Split(first, "-")[0])
}

var _ RefundHTTP = RefundHandler{}
