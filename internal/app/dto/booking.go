package dto

import (
	"time"

	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	Display  string  `json:"display"`
	Major    float64 `json:"major"`
}

type FeeLineDTO struct {
	Code   string   `json:"code"`
	Label  string   `json:"label"`
	Amount MoneyDTO `json:"amount"`
}

// FeeBreakdownDTO mirrors fees.Breakdown in integer minor units.
type FeeBreakdownDTO struct {
	Currency                  string       `json:"currency"`
	Region                    string       `json:"region"`
	BasePriceCents            int64        `json:"base_price_cents"`
	HostFeeCents              int64        `json:"host_fee_cents"`
	GuestFeeCents             int64        `json:"guest_fee_cents"`
	TaxOnGuestFeeCents        int64        `json:"tax_on_guest_fee_cents"`
	ProcessorFeeEstimateCents int64        `json:"processor_fee_estimate_cents"`
	ChargeCents               int64        `json:"charge_cents"`
	HostPayoutCents           int64        `json:"host_payout_cents"`
	PlatformNetCents          int64        `json:"platform_net_cents"`
	NegativeMargin            bool         `json:"negative_margin"`
	Lines                     []FeeLineDTO `json:"lines"`
}

type BookingDTO struct {
	ID              string           `json:"id"`
	ListingID       string           `json:"listing_id"`
	HostID          string           `json:"host_id"`
	GuestID         string           `json:"guest_id"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	Track           string           `json:"track"`
	Region          string           `json:"region"`
	Status          string           `json:"status"`
	BasePrice       MoneyDTO         `json:"base_price"`
	Fees            *FeeBreakdownDTO `json:"fees,omitempty"`
	PaymentIntentID string           `json:"payment_intent_id,omitempty"`
	CapturedCents   int64            `json:"captured_cents"`
	RefundedCents   int64            `json:"refunded_cents"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency.String(),
		Display:  value.String(),
		Major:    value.Major(),
	}
}

func MapBreakdown(b fees.Breakdown) FeeBreakdownDTO {
	lines := b.Lines()
	out := FeeBreakdownDTO{
		Currency:                  b.Currency.String(),
		Region:                    string(b.Region),
		BasePriceCents:            b.BasePriceCents,
		HostFeeCents:              b.HostFeeCents,
		GuestFeeCents:             b.GuestFeeCents,
		TaxOnGuestFeeCents:        b.TaxOnGuestFeeCents,
		ProcessorFeeEstimateCents: b.ProcessorFeeEstimateCents,
		ChargeCents:               b.ChargeCents,
		HostPayoutCents:           b.HostPayoutCents,
		PlatformNetCents:          b.PlatformNetCents,
		NegativeMargin:            b.NegativeMargin,
		Lines:                     make([]FeeLineDTO, 0, len(lines)),
	}
	for _, l := range lines {
		out.Lines = append(out.Lines, FeeLineDTO{Code: l.Code, Label: l.Label, Amount: MapMoney(l.Amount)})
	}
	return out
}

func MapBooking(b *domainbooking.Booking) BookingDTO {
	out := BookingDTO{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		HostID:          string(b.HostID),
		GuestID:         b.GuestID,
		Start:           b.Span.Start,
		End:             b.Span.End,
		Track:           string(b.Track),
		Region:          string(b.Region),
		Status:          string(b.State),
		BasePrice:       MapMoney(b.BasePrice()),
		PaymentIntentID: b.PaymentIntentID,
		CapturedCents:   b.CapturedCents,
		RefundedCents:   b.RefundedCents,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.Fees != nil {
		breakdown := MapBreakdown(b.Fees.Breakdown)
		out.Fees = &breakdown
	}
	return out
}
