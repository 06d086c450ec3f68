package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentspace/internal/app/commands"
	"rentspace/internal/app/dto"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/outbox"
	"rentspace/internal/app/policies"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	domainwallet "rentspace/internal/domain/wallet"
)

const confirmPaymentKey = "booking.payment.confirm"

type ConfirmPaymentCommand struct {
	BookingID string
}

func (c ConfirmPaymentCommand) Key() string { return confirmPaymentKey }

func (c ConfirmPaymentCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return handlersupport.Required("booking_id")
	}
	return nil
}

type ConfirmPaymentResult struct {
	BookingID       string `json:"booking_id"`
	Status          string `json:"status"`
	CapturedCents   int64  `json:"captured_cents"`
	HostCreditCents int64  `json:"host_credit_cents"`
	ReceiptLocation string `json:"receipt_location,omitempty"`
}

// ConfirmPaymentHandler moves a paid booking to CONFIRMED once the provider
// reports a capture, then credits the host wallet for the payout.
type ConfirmPaymentHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Receipts   policies.ReceiptArchive
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *ConfirmPaymentHandler) Handle(ctx context.Context, cmd ConfirmPaymentCommand) (res *ConfirmPaymentResult, err error) {
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
	if booking.State == domainbooking.StateConfirmed {
		return &ConfirmPaymentResult{
			BookingID:       string(booking.ID),
			Status:          string(booking.State),
			CapturedCents:   booking.CapturedCents,
			HostCreditCents: booking.HostCreditCents(),
		}, nil
	}
	if booking.State != domainbooking.StatePending || booking.Fees == nil {
		return nil, domainbooking.ErrInvalidState
	}

	payment, err := h.Payments.RetrievePayment(execCtx, booking.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != policies.PaymentSucceeded || payment.CapturedCents <= 0 {
		return nil, ErrPaymentNotCaptured
	}
	if payment.Currency != booking.Currency {
		return nil, ErrPaymentMismatch
	}

	now := nowOrDefault(h.Now)
	if err := booking.Confirm(payment.CapturedCents, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(execCtx, booking); err != nil {
		return nil, err
	}

	credit := booking.HostCreditCents()
	created, err := unit.Wallet().AppendOnce(execCtx, domainwallet.Entry{
		ID:         uuid.NewString(),
		HostID:     string(booking.HostID),
		BookingID:  string(booking.ID),
		Reason:     domainwallet.Reason(domainwallet.ReasonBookingCredit, string(booking.ID)),
		DeltaCents: credit,
		Currency:   booking.Currency,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if err := outbox.Drain(execCtx, unit.Outbox(), h.Encoder, booking); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking confirmed", "booking_id", booking.ID, "captured_cents", payment.CapturedCents, "host_credit_cents", credit, "ledger_created", created)
	}

	return &ConfirmPaymentResult{
		BookingID:       string(booking.ID),
		Status:          string(booking.State),
		CapturedCents:   booking.CapturedCents,
		HostCreditCents: credit,
		ReceiptLocation: h.archive(execCtx, booking),
	}, nil
}

func (h *ConfirmPaymentHandler) archive(ctx context.Context, b *domainbooking.Booking) string {
	if h.Receipts == nil {
		return ""
	}
	body, err := json.Marshal(dto.MapBooking(b))
	if err != nil {
		return ""
	}
	location, err := h.Receipts.Put(ctx, string(b.ID), body)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("receipt archive failed", "booking_id", b.ID, "error", err)
		}
		return ""
	}
	return location
}

var _ commands.Handler[ConfirmPaymentCommand, *ConfirmPaymentResult] = (*ConfirmPaymentHandler)(nil)
