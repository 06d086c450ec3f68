package cancellation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rentspace/internal/domain/shared/money"
)

var ErrValidation = errors.New("cancellation: validation failed")

// Role identifies who asks for the cancellation.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleGuest, RoleHost:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, raw)
	}
}

// Track selects the tier thresholds.
type Track string

const (
	TrackLongStay Track = "long_stay"
	TrackHourly   Track = "hourly"
)

func ParseTrack(raw string) (Track, error) {
	switch t := Track(raw); t {
	case TrackLongStay, TrackHourly:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown track %q", ErrValidation, raw)
	}
}

// ReasonCode explains a decision to the client.
type ReasonCode string

const (
	ReasonFullRefundEarly      ReasonCode = "FULL_REFUND_EARLY"
	ReasonPartialRefundMid     ReasonCode = "PARTIAL_REFUND_MID"
	ReasonNoRefundLate         ReasonCode = "NO_REFUND_LATE"
	ReasonAlreadyStartedOrPast ReasonCode = "BOOKING_ALREADY_STARTED_OR_PAST"
	ReasonAlreadyFullyRefunded ReasonCode = "ALREADY_FULLY_REFUNDED"
	ReasonNoCapturedPayment    ReasonCode = "NO_CAPTURED_PAYMENT"
	ReasonInvalidBookingState  ReasonCode = "INVALID_BOOKING_STATE"
	ReasonRefundReconciled     ReasonCode = "REFUND_RECONCILED"
)

// Tiers are the two boundaries of a track, measured back from the start.
// A cancellation at or before start-FullBefore refunds everything; at or
// before start-PartialBefore it refunds PartialPercent; later it refunds nothing.
type Tiers struct {
	FullBefore     time.Duration
	PartialBefore  time.Duration
	PartialPercent int64
}

// Policy maps each track to its tiers.
type Policy struct {
	LongStay Tiers
	Hourly   Tiers
}

func DefaultPolicy() Policy {
	return Policy{
		LongStay: Tiers{FullBefore: 72 * time.Hour, PartialBefore: 24 * time.Hour, PartialPercent: 50},
		Hourly:   Tiers{FullBefore: 6 * time.Hour, PartialBefore: 2 * time.Hour, PartialPercent: 50},
	}
}

// Request is the input of an evaluation.
type Request struct {
	Role            Role
	Track           Track
	Now             time.Time
	StartDate       time.Time
	TotalPriceCents int64
}

// Decision is the outcome of an evaluation. RefundRatio is RefundPercent
// as a fraction in [0, 1].
type Decision struct {
	Allowed           bool       `json:"allowed"`
	RefundAmountCents int64      `json:"refund_amount_cents"`
	RefundRatio       float64    `json:"refund_ratio"`
	RefundPercent     int64      `json:"refund_percent"`
	ReasonCode        ReasonCode `json:"reason_code"`
	Message           string     `json:"message"`
}

// Engine evaluates cancellation requests. It performs no I/O.
type Engine struct {
	policy   Policy
	messages Messages
}

func NewEngine(policy Policy, messages Messages) *Engine {
	if messages == nil {
		messages = DefaultMessages()
	}
	return &Engine{policy: policy, messages: messages}
}

func Default() *Engine {
	return NewEngine(DefaultPolicy(), DefaultMessages())
}

// Evaluate decides the refundable share of TotalPriceCents.
func (e *Engine) Evaluate(req Request) (Decision, error) {
	if err := validate(req); err != nil {
		return Decision{}, err
	}
	tiers, err := e.tiersFor(req.Role, req.Track)
	if err != nil {
		return Decision{}, err
	}

	if req.Now.After(req.StartDate) {
		return e.decide(ReasonAlreadyStartedOrPast, 0, req.TotalPriceCents), nil
	}
	switch {
	case !req.Now.After(req.StartDate.Add(-tiers.FullBefore)):
		return e.decide(ReasonFullRefundEarly, 100, req.TotalPriceCents), nil
	case !req.Now.After(req.StartDate.Add(-tiers.PartialBefore)):
		return e.decide(ReasonPartialRefundMid, tiers.PartialPercent, req.TotalPriceCents), nil
	default:
		return e.decide(ReasonNoRefundLate, 0, req.TotalPriceCents), nil
	}
}

// Message renders a reason in the given locale.
func (e *Engine) Message(locale string, reason ReasonCode) string {
	return e.messages.Render(locale, reason)
}

func (e *Engine) tiersFor(role Role, track Track) (Tiers, error) {
	switch role {
	case RoleGuest:
		return e.trackTiers(track)
	case RoleHost:
		// Hosts get the guest tiers until a host penalty schedule exists.
		return e.trackTiers(track)
	default:
		return Tiers{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
}

func (e *Engine) trackTiers(track Track) (Tiers, error) {
	switch track {
	case TrackLongStay:
		return e.policy.LongStay, nil
	case TrackHourly:
		return e.policy.Hourly, nil
	default:
		return Tiers{}, fmt.Errorf("%w: unknown track %q", ErrValidation, track)
	}
}

func (e *Engine) decide(reason ReasonCode, percent int64, total int64) Decision {
	amount := PercentOf(total, percent)
	return Decision{
		Allowed:           percent > 0,
		RefundAmountCents: amount,
		RefundRatio:       decimal.New(percent, -2).InexactFloat64(),
		RefundPercent:     percent,
		ReasonCode:        reason,
		Message:           e.messages.Render(DefaultLocale, reason),
	}
}

// PercentOf returns round(amount * percent / 100), half away from zero.
func PercentOf(amount, percent int64) int64 {
	if percent <= 0 {
		return 0
	}
	return money.MulRate(amount, decimal.New(percent, -2))
}

func validate(req Request) error {
	if req.TotalPriceCents < 0 {
		return fmt.Errorf("%w: total price must be non-negative", ErrValidation)
	}
	if req.Now.IsZero() || req.StartDate.IsZero() {
		return fmt.Errorf("%w: timestamps are required", ErrValidation)
	}
	return nil
}
