package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentspace/internal/domain/cancellation"
	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/daterange"
	"rentspace/internal/domain/shared/events"
	"rentspace/internal/domain/shared/money"
)

var (
	ErrInvalidState        = errors.New("booking: invalid state transition")
	ErrBookingNotFound     = errors.New("booking: not found")
	ErrConcurrentUpdate    = errors.New("booking: concurrent update detected")
	ErrQuoteLocked         = errors.New("booking: fee snapshot already attached")
	ErrPaymentRequired     = errors.New("booking: payment intent required before confirmation")
	ErrInvalidRefundAmount = errors.New("booking: refund amount must be positive")
	ErrRefundExceedsCharge = errors.New("booking: refund exceeds captured amount")
)

type BookingID string

type BookingState string

const (
	StatePending   BookingState = "PENDING"
	StateConfirmed BookingState = "CONFIRMED"
	StateCancelled BookingState = "CANCELLED"
)

// FeeSnapshot freezes the breakdown a payment intent was created for.
type FeeSnapshot struct {
	fees.Breakdown
	ComputedAt time.Time
}

type Booking struct {
	ID              BookingID
	ListingID       listings.ListingID
	HostID          listings.HostID
	GuestID         string
	Span            daterange.DateRange
	Track           cancellation.Track
	Region          fees.Region
	Currency        money.Currency
	BasePriceCents  int64
	State           BookingState
	Fees            *FeeSnapshot
	PaymentIntentID string
	CapturedCents   int64
	RefundedCents   int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// Save inserts a booking at version 0 or updates it when the stored
	// version matches. It bumps Version on success.
	Save(ctx context.Context, booking *Booking) error
	ListByHost(ctx context.Context, hostID listings.HostID) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	ListingID listings.ListingID
	HostID    listings.HostID
	GuestID   string
	Span      daterange.DateRange
	Region    fees.Region
	BasePrice money.Money
	CreatedAt time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("booking: id required")
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, errors.New("booking: guest id required")
	}
	if err := params.Span.Validate(); err != nil {
		return nil, err
	}
	if err := params.Region.Validate(); err != nil {
		return nil, err
	}
	if params.BasePrice.Amount < 0 {
		return nil, money.ErrNegativeAmount
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:             params.ID,
		ListingID:      params.ListingID,
		HostID:         params.HostID,
		GuestID:        params.GuestID,
		Span:           params.Span,
		Track:          TrackFor(params.Span),
		Region:         params.Region,
		Currency:       params.BasePrice.Currency,
		BasePriceCents: params.BasePrice.Amount,
		State:          StatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.Record(BookingRequested{
		BookingID: b.ID,
		ListingID: b.ListingID,
		GuestID:   b.GuestID,
		Span:      b.Span,
		BasePrice: params.BasePrice,
		At:        now,
	})
	return b, nil
}

func (b *Booking) BasePrice() money.Money {
	return money.Money{Amount: b.BasePriceCents, Currency: b.Currency}
}

// HostCreditCents is the host payout scaled to what was actually captured.
// It is the amount credited to the host wallet on confirmation.
func (b *Booking) HostCreditCents() int64 {
	if b.Fees == nil || b.Fees.ChargeCents == 0 || b.CapturedCents <= 0 {
		return 0
	}
	if b.CapturedCents == b.Fees.ChargeCents {
		return b.Fees.HostPayoutCents
	}
	return money.Proportional(b.Fees.HostPayoutCents, b.CapturedCents, b.Fees.ChargeCents)
}

// AttachQuote binds the fee snapshot and the provider intent. A booking is
// quoted once; later calls must reuse the stored snapshot.
func (b *Booking) AttachQuote(breakdown fees.Breakdown, intentID string, now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	if b.Fees != nil {
		return ErrQuoteLocked
	}
	if strings.TrimSpace(intentID) == "" {
		return ErrPaymentRequired
	}
	if breakdown.BasePriceCents != b.BasePriceCents || breakdown.Currency != b.Currency {
		return fmt.Errorf("booking: breakdown does not match booking price")
	}
	b.Fees = &FeeSnapshot{Breakdown: breakdown, ComputedAt: now.UTC()}
	b.PaymentIntentID = intentID
	b.UpdatedAt = now.UTC()
	b.Record(BookingQuoted{
		BookingID:       b.ID,
		PaymentIntentID: intentID,
		Region:          breakdown.Region,
		Charge:          money.Money{Amount: breakdown.ChargeCents, Currency: breakdown.Currency},
		HostPayout:      money.Money{Amount: breakdown.HostPayoutCents, Currency: breakdown.Currency},
		At:              b.UpdatedAt,
	})
	return nil
}

func (b *Booking) Confirm(capturedCents int64, now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	if b.Fees == nil || b.PaymentIntentID == "" {
		return ErrPaymentRequired
	}
	if capturedCents < 0 || capturedCents > b.Fees.ChargeCents {
		return fmt.Errorf("booking: captured %d outside charge %d", capturedCents, b.Fees.ChargeCents)
	}
	b.CapturedCents = capturedCents
	b.State = StateConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{
		BookingID: b.ID,
		ListingID: b.ListingID,
		HostID:    b.HostID,
		Span:      b.Span,
		Captured:  money.Money{Amount: capturedCents, Currency: b.Currency},
		At:        b.UpdatedAt,
	})
	return nil
}

// ApplyRefund records money returned to the guest. Refunded totals only grow
// and never pass the captured amount.
func (b *Booking) ApplyRefund(amountCents int64, now time.Time) error {
	if b.State != StateConfirmed && b.State != StateCancelled {
		return ErrInvalidState
	}
	if amountCents <= 0 {
		return ErrInvalidRefundAmount
	}
	if b.RefundedCents+amountCents > b.CapturedCents {
		return ErrRefundExceedsCharge
	}
	b.RefundedCents += amountCents
	b.UpdatedAt = now.UTC()
	b.Record(BookingRefunded{
		BookingID: b.ID,
		Amount:    money.Money{Amount: amountCents, Currency: b.Currency},
		Total:     money.Money{Amount: b.RefundedCents, Currency: b.Currency},
		At:        b.UpdatedAt,
	})
	return nil
}

func (b *Booking) Cancel(reason string, now time.Time) error {
	switch b.State {
	case StatePending, StateConfirmed:
	default:
		return ErrInvalidState
	}
	b.State = StateCancelled
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// RemainingRefundable is what can still be returned out of captured.
func (b *Booking) RemainingRefundable(capturedCents int64) int64 {
	remaining := capturedCents - b.RefundedCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PaymentIdempotencyKey derives the provider key for a booking's charge:
// hex(sha256("<booking>|<start>/<end>|<charge>|<region>")). Equal inputs
// always produce the same key, so retried intent creation dedupes upstream.
func PaymentIdempotencyKey(id BookingID, span daterange.DateRange, chargeCents int64, region fees.Region) string {
	canonical := fmt.Sprintf("%s|%s|%d|%s", id, span.Canonical(), chargeCents, region)
	sum := sha256.Sum256([]byte(canonical))
	return "pay_" + hex.EncodeToString(sum[:])
}

// RefundIdempotencyKey keys one refund attempt series. The already-refunded
// total makes a second partial refund distinct from a retry of the first.
func RefundIdempotencyKey(id BookingID, alreadyRefundedCents, amountCents int64) string {
	return fmt.Sprintf("refund:%s:%d:%d", id, alreadyRefundedCents, amountCents)
}
