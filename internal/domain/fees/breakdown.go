package fees

import (
	"fmt"

	"rentspace/internal/domain/shared/money"
)

// Line is one row of a guest-facing receipt.
type Line struct {
	Code   string
	Label  string
	Amount money.Money
}

// Lines returns the guest-facing itemization; the last line is the total charged.
func (b Breakdown) Lines() []Line {
	m := func(amount int64) money.Money { return money.Money{Amount: amount, Currency: b.Currency} }
	lines := []Line{
		{Code: "base_price", Label: "Base price", Amount: m(b.BasePriceCents)},
		{Code: "service_fee", Label: "Service fee", Amount: m(b.GuestFeeCents)},
	}
	if b.TaxOnGuestFeeCents > 0 {
		lines = append(lines, Line{Code: "service_fee_tax", Label: "Tax on service fee", Amount: m(b.TaxOnGuestFeeCents)})
	}
	return append(lines, Line{Code: "total", Label: "Total charged", Amount: m(b.ChargeCents)})
}

// Check verifies the arithmetic relations between the fields.
func (b Breakdown) Check() error {
	if b.ChargeCents != b.BasePriceCents+b.GuestFeeCents+b.TaxOnGuestFeeCents {
		return fmt.Errorf("fees: charge %d does not add up", b.ChargeCents)
	}
	if b.HostPayoutCents != b.BasePriceCents-b.HostFeeCents {
		return fmt.Errorf("fees: host payout %d does not add up", b.HostPayoutCents)
	}
	if b.PlatformNetCents != b.HostFeeCents+b.GuestFeeCents+b.TaxOnGuestFeeCents-b.ProcessorFeeEstimateCents {
		return fmt.Errorf("fees: platform net %d does not add up", b.PlatformNetCents)
	}
	if b.NegativeMargin != (b.PlatformNetCents < 0) {
		return fmt.Errorf("fees: negative margin flag out of sync")
	}
	return nil
}
