package refunds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentspace/internal/app/commands"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/middleware"
	"rentspace/internal/app/outbox"
	"rentspace/internal/app/policies"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/cancellation"
	"rentspace/internal/domain/shared/money"
	domainwallet "rentspace/internal/domain/wallet"
)

const requestRefundKey = "booking.refund.request"

var ErrNotParticipant = errors.New("refunds: actor is not a participant of the booking")

const (
	StatusRefunded   = "REFUNDED"
	StatusReconciled = "RECONCILED"
	StatusDenied     = "DENIED"
)

type RequestRefundCommand struct {
	BookingID       string
	Role            string
	ActorID         string
	Locale          string
	IdempotencyKeyV string
}

func (c RequestRefundCommand) Key() string { return requestRefundKey }

func (c RequestRefundCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestRefundCommand) ResultPrototype() any { return &RefundOutcome{} }

func (c RequestRefundCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return handlersupport.Required("booking_id")
	}
	if _, err := cancellation.ParseRole(c.Role); err != nil {
		return &handlersupport.ArgumentError{Field: "role", Reason: err.Error()}
	}
	return nil
}

// RefundOutcome is returned for granted and denied requests alike. Denials
// carry a reason code and message instead of an error.
type RefundOutcome struct {
	BookingID          string                  `json:"booking_id"`
	Status             string                  `json:"status"`
	Allowed            bool                    `json:"allowed"`
	ReasonCode         cancellation.ReasonCode `json:"reason_code"`
	Message            string                  `json:"message"`
	RefundPercent      int64                   `json:"refund_percent"`
	RefundRatio        float64                 `json:"refund_ratio"`
	RefundAmountCents  int64                   `json:"refund_amount_cents"`
	RefundedTotalCents int64                   `json:"refunded_total_cents"`
	RemainingCents     int64                   `json:"remaining_cents"`
	Currency           string                  `json:"currency"`
	ProviderRefundID   string                  `json:"provider_refund_id,omitempty"`
	HostDebitCents     int64                   `json:"host_debit_cents"`
	BookingStatus      string                  `json:"booking_status"`
}

// RequestRefundHandler cancels a confirmed booking and refunds what the
// policy allows out of what the provider actually captured.
type RequestRefundHandler struct {
	UoWFactory uow.UoWFactory
	Policy     *cancellation.Engine
	Payments   policies.PaymentsPort
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Retry      RetryPolicy
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
	// RefundServiceFee makes the guest fee and its tax refundable too.
	RefundServiceFee bool
}

func (h *RequestRefundHandler) Handle(ctx context.Context, cmd RequestRefundCommand) (res *RefundOutcome, err error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	role, _ := cancellation.ParseRole(cmd.Role)

	unit, execCtx, finish, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer func() { err = finish(err) }()

	booking, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if err := checkActor(booking, role, cmd.ActorID); err != nil {
		return nil, err
	}
	if denied := h.stateDenial(booking, cmd.Locale); denied != nil {
		return denied, nil
	}

	// Provider state is the source of truth for captured and refunded totals.
	payment, err := h.Payments.RetrievePayment(execCtx, booking.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if payment.CapturedCents <= 0 || payment.Status != policies.PaymentSucceeded {
		return h.deny(booking, cancellation.ReasonNoCapturedPayment, cmd.Locale, 0), nil
	}
	if payment.RefundedCents > booking.RefundedCents {
		return h.reconcile(execCtx, unit, booking, payment, role, cmd.Locale)
	}
	remaining := payment.CapturedCents - payment.RefundedCents
	if remaining <= 0 {
		return h.deny(booking, cancellation.ReasonAlreadyFullyRefunded, cmd.Locale, 0), nil
	}

	now := h.now()
	decision, err := h.policy().Evaluate(cancellation.Request{
		Role:            role,
		Track:           booking.Track,
		Now:             now,
		StartDate:       booking.Span.Start,
		TotalPriceCents: h.refundableBasis(booking, payment.CapturedCents),
	})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return h.deny(booking, decision.ReasonCode, cmd.Locale, remaining), nil
	}
	amount := ClampRefund(decision.RefundAmountCents, payment.CapturedCents, payment.RefundedCents)
	if amount == 0 {
		return h.deny(booking, cancellation.ReasonAlreadyFullyRefunded, cmd.Locale, remaining), nil
	}

	result, err := h.refundWithRetry(execCtx, policies.RefundRequest{
		IntentID:       booking.PaymentIntentID,
		IdempotencyKey: domainbooking.RefundIdempotencyKey(booking.ID, payment.RefundedCents, amount),
		Amount:         money.Money{Amount: amount, Currency: booking.Currency},
		Reason:         string(decision.ReasonCode),
	})
	if err != nil {
		return nil, err
	}

	debit, err := h.applyRefund(execCtx, unit, booking, payment.CapturedCents, amount, role, now)
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("refund issued", "booking_id", booking.ID, "amount_cents", amount, "reason", decision.ReasonCode, "refund_id", result.ID, "host_debit_cents", debit)
	}
	return &RefundOutcome{
		BookingID:          string(booking.ID),
		Status:             StatusRefunded,
		Allowed:            true,
		ReasonCode:         decision.ReasonCode,
		Message:            h.policy().Message(cmd.Locale, decision.ReasonCode),
		RefundPercent:      decision.RefundPercent,
		RefundRatio:        decision.RefundRatio,
		RefundAmountCents:  amount,
		RefundedTotalCents: booking.RefundedCents,
		RemainingCents:     payment.CapturedCents - booking.RefundedCents,
		Currency:           booking.Currency.String(),
		ProviderRefundID:   result.ID,
		HostDebitCents:     debit,
		BookingStatus:      string(booking.State),
	}, nil
}

// reconcile records refunds the provider already issued but the booking has
// not, without calling the provider again.
func (h *RequestRefundHandler) reconcile(ctx context.Context, unit uow.UnitOfWork, booking *domainbooking.Booking, payment policies.Payment, role cancellation.Role, locale string) (*RefundOutcome, error) {
	amount := payment.RefundedCents - booking.RefundedCents
	debit, err := h.applyRefund(ctx, unit, booking, payment.CapturedCents, amount, role, h.now())
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Warn("recorded refund missing from booking", "booking_id", booking.ID, "amount_cents", amount)
	}
	reason := cancellation.ReasonRefundReconciled
	if payment.RefundedCents >= payment.CapturedCents {
		reason = cancellation.ReasonAlreadyFullyRefunded
	}
	return &RefundOutcome{
		BookingID:          string(booking.ID),
		Status:             StatusReconciled,
		Allowed:            true,
		ReasonCode:         reason,
		Message:            h.policy().Message(locale, reason),
		RefundAmountCents:  amount,
		RefundedTotalCents: booking.RefundedCents,
		RemainingCents:     payment.CapturedCents - booking.RefundedCents,
		Currency:           booking.Currency.String(),
		HostDebitCents:     debit,
		BookingStatus:      string(booking.State),
	}, nil
}

// applyRefund records the refund, the cancellation and the host debit. The
// wallet is written before the booking so a failed debit leaves the booking
// untouched; a retry then takes the reconcile path and the debit key dedupes.
func (h *RequestRefundHandler) applyRefund(ctx context.Context, unit uow.UnitOfWork, booking *domainbooking.Booking, captured, amount int64, role cancellation.Role, now time.Time) (int64, error) {
	if err := booking.ApplyRefund(amount, now); err != nil {
		return 0, err
	}
	if booking.State == domainbooking.StateConfirmed {
		if err := booking.Cancel(fmt.Sprintf("cancelled by %s", role), now); err != nil {
			return 0, err
		}
	}

	debit, err := h.debitHost(ctx, unit.Wallet(), booking, captured, amount, now)
	if err != nil {
		return 0, err
	}
	if err := unit.Bookings().Save(ctx, booking); err != nil {
		return 0, err
	}
	if err := outbox.Drain(ctx, unit.Outbox(), h.Encoder, booking); err != nil {
		return 0, err
	}
	return debit, nil
}

// debitHost reverses the host credit in proportion to amount over the
// refundable basis. Cumulative debits never exceed the credit; when a debit
// for the booking is already recorded it is reported instead of appended.
func (h *RequestRefundHandler) debitHost(ctx context.Context, wallet domainwallet.Repository, booking *domainbooking.Booking, captured, amount int64, now time.Time) (int64, error) {
	credit := booking.HostCreditCents()
	if credit <= 0 {
		return 0, nil
	}
	entries, err := wallet.Entries(ctx, string(booking.HostID))
	if err != nil {
		return 0, err
	}
	debited := debitedFor(entries, string(booking.ID))
	if debited > 0 {
		return debited, nil
	}
	debit := HostDebit(credit, debited, amount, h.refundableBasis(booking, captured))
	if debit <= 0 {
		return 0, nil
	}
	if _, err := wallet.AppendOnce(ctx, domainwallet.Entry{
		ID:         uuid.NewString(),
		HostID:     string(booking.HostID),
		BookingID:  string(booking.ID),
		Reason:     domainwallet.Reason(domainwallet.ReasonBookingRefundDebit, string(booking.ID)),
		DeltaCents: -debit,
		Currency:   booking.Currency,
		CreatedAt:  now,
	}); err != nil {
		return 0, err
	}
	return debit, nil
}

func debitedFor(entries []domainwallet.Entry, bookingID string) int64 {
	var total int64
	for _, e := range entries {
		if e.BookingID != bookingID {
			continue
		}
		if prefix, err := domainwallet.PrefixOf(e.Reason); err == nil && prefix == domainwallet.ReasonBookingRefundDebit {
			total -= e.DeltaCents
		}
	}
	return total
}

// refundWithRetry retries the same amount and key on retryable provider
// errors. The policy is not evaluated again between attempts.
func (h *RequestRefundHandler) refundWithRetry(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	sleep := h.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := h.Retry.attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, h.Retry.delay(attempt-1)); err != nil {
				return policies.RefundResult{}, errors.Join(lastErr, err)
			}
		}
		result, err := h.Payments.Refund(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !policies.IsRetryable(err) {
			break
		}
		if h.Logger != nil {
			h.Logger.Warn("refund attempt failed", "intent_id", req.IntentID, "attempt", attempt+1, "error", err)
		}
	}
	return policies.RefundResult{}, lastErr
}

// refundableBasis is the captured amount minus the non-refundable guest fee
// and its tax, unless service fees are refundable.
func (h *RequestRefundHandler) refundableBasis(b *domainbooking.Booking, captured int64) int64 {
	if h.RefundServiceFee || b.Fees == nil {
		return captured
	}
	basis := captured - b.Fees.GuestFeeCents - b.Fees.TaxOnGuestFeeCents
	if basis < 0 {
		return 0
	}
	return basis
}

func (h *RequestRefundHandler) stateDenial(b *domainbooking.Booking, locale string) *RefundOutcome {
	switch b.State {
	case domainbooking.StateConfirmed:
		if b.PaymentIntentID == "" {
			return h.deny(b, cancellation.ReasonNoCapturedPayment, locale, 0)
		}
		return nil
	case domainbooking.StatePending:
		return h.deny(b, cancellation.ReasonNoCapturedPayment, locale, 0)
	default:
		if b.CapturedCents > 0 && b.RefundedCents >= b.CapturedCents {
			return h.deny(b, cancellation.ReasonAlreadyFullyRefunded, locale, 0)
		}
		return h.deny(b, cancellation.ReasonInvalidBookingState, locale, 0)
	}
}

func (h *RequestRefundHandler) deny(b *domainbooking.Booking, reason cancellation.ReasonCode, locale string, remaining int64) *RefundOutcome {
	return &RefundOutcome{
		BookingID:          string(b.ID),
		Status:             StatusDenied,
		Allowed:            false,
		ReasonCode:         reason,
		Message:            h.policy().Message(locale, reason),
		RefundedTotalCents: b.RefundedCents,
		RemainingCents:     remaining,
		Currency:           b.Currency.String(),
		BookingStatus:      string(b.State),
	}
}

func checkActor(b *domainbooking.Booking, role cancellation.Role, actorID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil
	}
	switch role {
	case cancellation.RoleGuest:
		if actorID != b.GuestID {
			return ErrNotParticipant
		}
	case cancellation.RoleHost:
		if actorID != string(b.HostID) {
			return ErrNotParticipant
		}
	}
	return nil
}

func (h *RequestRefundHandler) policy() *cancellation.Engine {
	if h.Policy != nil {
		return h.Policy
	}
	return cancellation.Default()
}

func (h *RequestRefundHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[RequestRefundCommand, *RefundOutcome] = (*RequestRefundHandler)(nil)
var _ middleware.IdempotentCommand = (*RequestRefundCommand)(nil)
