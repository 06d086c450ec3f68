package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentspace/internal/app/commands"
	"rentspace/internal/app/dto"
	bookingapp "rentspace/internal/app/handlers/booking"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/queries"
)

const idempotencyHeader = "Idempotency-Key"

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	ListingID string    `json:"listing_id"`
	GuestID   string    `json:"guest_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// Quote handles GET /listings/:id/quote?start=...&end=... (RFC 3339).
func (h BookingHandler) Quote(c *gin.Context) {
	if h.Queries == nil {
		busUnavailable(c)
		return
	}
	start, err := parseTimeParam(c, "start")
	if err != nil {
		respondError(c, h.Logger, "booking.quote", err)
		return
	}
	end, err := parseTimeParam(c, "end")
	if err != nil {
		respondError(c, h.Logger, "booking.quote", err)
		return
	}
	q := bookingapp.QuoteFeesQuery{ListingID: strings.TrimSpace(c.Param("id")), Start: start, End: end}
	result, err := queries.Ask[bookingapp.QuoteFeesQuery, *bookingapp.QuoteResult](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, "booking.quote", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Create(c *gin.Context) {
	if h.Commands == nil {
		busUnavailable(c)
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, "booking.request", &handlersupport.ArgumentError{Field: "body", Reason: err.Error()})
		return
	}
	cmd := bookingapp.RequestBookingCommand{
		ListingID:       strings.TrimSpace(req.ListingID),
		GuestID:         strings.TrimSpace(req.GuestID),
		Start:           req.Start,
		End:             req.End,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.RequestBookingCommand, *bookingapp.RequestBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "booking.request", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	if h.Queries == nil {
		busUnavailable(c)
		return
	}
	q := bookingapp.GetBookingQuery{BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.BookingDTO](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, "booking.get", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) List(c *gin.Context) {
	if h.Queries == nil {
		busUnavailable(c)
		return
	}
	q := bookingapp.ListBookingsQuery{
		HostID:  c.Query("host_id"),
		GuestID: c.Query("guest_id"),
		Status:  c.Query("status"),
	}
	result, err := queries.Ask[bookingapp.ListBookingsQuery, bookingapp.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, "booking.list", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) CreatePaymentIntent(c *gin.Context) {
	if h.Commands == nil {
		busUnavailable(c)
		return
	}
	cmd := bookingapp.CreatePaymentIntentCommand{BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := commands.Dispatch[bookingapp.CreatePaymentIntentCommand, *bookingapp.PaymentIntentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "booking.payment_intent", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ConfirmPayment(c *gin.Context) {
	if h.Commands == nil {
		busUnavailable(c)
		return
	}
	cmd := bookingapp.ConfirmPaymentCommand{BookingID: strings.TrimSpace(c.Param("id"))}
	result, err := commands.Dispatch[bookingapp.ConfirmPaymentCommand, *bookingapp.ConfirmPaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "booking.confirm", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseTimeParam(c *gin.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, handlersupport.Required(name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &handlersupport.ArgumentError{Field: name, Reason: "must be an RFC 3339 timestamp"}
	}
	return t, nil
}

var _ BookingHTTP = BookingHandler{}
