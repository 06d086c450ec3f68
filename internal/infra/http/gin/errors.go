package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingapp "rentspace/internal/app/handlers/booking"
	refundsapp "rentspace/internal/app/handlers/refunds"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/policies"
	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/cancellation"
	"rentspace/internal/domain/fees"
	domainlistings "rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/daterange"
	"rentspace/internal/domain/shared/money"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps application errors onto HTTP semantics.
func statusFor(err error) (int, string) {
	var providerErr *policies.ProviderError
	switch {
	case errors.Is(err, handlersupport.ErrInvalidArgument),
		errors.Is(err, fees.ErrValidation),
		errors.Is(err, cancellation.ErrValidation),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, domainbooking.ErrStartInPast),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrNegativeAmount):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, refundsapp.ErrNotParticipant):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domainlistings.ErrListingNotFound),
		errors.Is(err, policies.ErrPaymentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domainbooking.ErrConcurrentUpdate),
		errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, domainbooking.ErrQuoteLocked),
		errors.Is(err, domainbooking.ErrPaymentRequired),
		errors.Is(err, domainlistings.ErrNotBookable),
		errors.Is(err, bookingapp.ErrPaymentNotCaptured),
		errors.Is(err, bookingapp.ErrPaymentMismatch):
		return http.StatusConflict, "conflict"
	case errors.Is(err, fees.ErrConfiguration):
		return http.StatusInternalServerError, "configuration_error"
	case errors.As(err, &providerErr):
		return http.StatusBadGateway, "payment_provider_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status, code := statusFor(err)
	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			"op", op, "status", status, "code", code, "error", err, "request_id", c.GetString("request_id"))
	}
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	c.JSON(status, errorResponse{Error: msg, Code: code, RequestID: c.GetString("request_id")})
}

func busUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "bus unavailable", Code: "unavailable"})
}
