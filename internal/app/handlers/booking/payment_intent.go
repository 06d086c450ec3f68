package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"rentspace/internal/app/commands"
	"rentspace/internal/app/dto"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/outbox"
	"rentspace/internal/app/policies"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/shared/money"
)

const createPaymentIntentKey = "booking.payment_intent.create"

type CreatePaymentIntentCommand struct {
	BookingID string
}

func (c CreatePaymentIntentCommand) Key() string { return createPaymentIntentKey }

func (c CreatePaymentIntentCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return handlersupport.Required("booking_id")
	}
	return nil
}

type PaymentIntentResult struct {
	BookingID       string              `json:"booking_id"`
	PaymentIntentID string              `json:"payment_intent_id"`
	ClientSecret    string              `json:"client_secret,omitempty"`
	Status          string              `json:"status"`
	Fees            dto.FeeBreakdownDTO `json:"fees"`
}

// CreatePaymentIntentHandler computes the fee snapshot once per booking and
// opens the provider intent for its charge. Repeated calls return the stored
// snapshot; the provider call is keyed so it never creates a second intent.
type CreatePaymentIntentHandler struct {
	UoWFactory uow.UoWFactory
	Fees       *fees.Engine
	Payments   policies.PaymentsPort
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *CreatePaymentIntentHandler) Handle(ctx context.Context, cmd CreatePaymentIntentCommand) (res *PaymentIntentResult, err error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	unit, execCtx, finish, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer func() { err = finish(err) }()

	booking, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}

	breakdown, fresh, err := h.snapshot(booking)
	if err != nil {
		return nil, err
	}
	key := domainbooking.PaymentIdempotencyKey(booking.ID, booking.Span, breakdown.ChargeCents, breakdown.Region)
	intent, err := h.Payments.CreateIntent(execCtx, policies.IntentRequest{
		IdempotencyKey: key,
		Amount:         money.Money{Amount: breakdown.ChargeCents, Currency: breakdown.Currency},
		Description:    fmt.Sprintf("Booking %s", booking.ID),
		Metadata:       intentMetadata(booking, breakdown),
	})
	if err != nil {
		return nil, err
	}
	if !fresh && intent.ID != booking.PaymentIntentID {
		return nil, fmt.Errorf("%w: intent %s, booking holds %s", ErrPaymentMismatch, intent.ID, booking.PaymentIntentID)
	}

	if fresh {
		if err := booking.AttachQuote(breakdown, intent.ID, nowOrDefault(h.Now)); err != nil {
			return nil, err
		}
		if err := unit.Bookings().Save(execCtx, booking); err != nil {
			return nil, err
		}
		if err := outbox.Drain(execCtx, unit.Outbox(), h.Encoder, booking); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("payment intent created", "booking_id", booking.ID, "intent_id", intent.ID, "charge_cents", breakdown.ChargeCents, "region", breakdown.Region)
		}
	}

	return &PaymentIntentResult{
		BookingID:       string(booking.ID),
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          string(intent.Status),
		Fees:            dto.MapBreakdown(breakdown),
	}, nil
}

// snapshot returns the stored breakdown or computes a new one for a pending booking.
func (h *CreatePaymentIntentHandler) snapshot(b *domainbooking.Booking) (fees.Breakdown, bool, error) {
	if b.Fees != nil {
		return b.Fees.Breakdown, false, nil
	}
	if b.State != domainbooking.StatePending {
		return fees.Breakdown{}, false, domainbooking.ErrInvalidState
	}
	engine := h.Fees
	if engine == nil {
		engine = fees.Default()
	}
	breakdown, err := engine.ComputeFees(b.BasePriceCents, b.Currency, b.Region)
	if err != nil {
		return fees.Breakdown{}, false, err
	}
	return breakdown, true, nil
}

func intentMetadata(b *domainbooking.Booking, breakdown fees.Breakdown) map[string]string {
	return map[string]string{
		"booking_id":             string(b.ID),
		"listing_id":             string(b.ListingID),
		"host_id":                string(b.HostID),
		"region":                 string(breakdown.Region),
		"base_price_cents":       strconv.FormatInt(breakdown.BasePriceCents, 10),
		"guest_fee_cents":        strconv.FormatInt(breakdown.GuestFeeCents, 10),
		"tax_on_guest_fee_cents": strconv.FormatInt(breakdown.TaxOnGuestFeeCents, 10),
		"host_fee_cents":         strconv.FormatInt(breakdown.HostFeeCents, 10),
		"host_payout_cents":      strconv.FormatInt(breakdown.HostPayoutCents, 10),
	}
}

var _ commands.Handler[CreatePaymentIntentCommand, *PaymentIntentResult] = (*CreatePaymentIntentHandler)(nil)
