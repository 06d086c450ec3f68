package fees

import (
	"rentspace/internal/domain/shared/money"
)

// Breakdown is the itemized result of a fee computation. All amounts are minor
// units of Currency.
type Breakdown struct {
	Currency                  money.Currency
	Region                    Region
	BasePriceCents            int64
	HostFeeCents              int64
	GuestFeeCents             int64
	TaxOnGuestFeeCents        int64
	ProcessorFeeEstimateCents int64
	ChargeCents               int64
	HostPayoutCents           int64
	PlatformNetCents          int64
	// NegativeMargin is set when the processor estimate exceeds the platform take.
	NegativeMargin bool
}

// Engine computes fee breakdowns from an immutable schedule table. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	table Table
}

func NewEngine(table Table) *Engine {
	return &Engine{table: table}
}

// Default returns an engine over DefaultTable.
func Default() *Engine {
	return NewEngine(DefaultTable())
}

// Table exposes the schedules the engine was built with.
func (e *Engine) Table() Table {
	return e.table
}

// ComputeFees prices a booking. Every step rounds half away from zero on
// integer minor units; nothing is carried between steps as a fraction.
func (e *Engine) ComputeFees(priceCents int64, currency money.Currency, region Region) (Breakdown, error) {
	if priceCents < 0 {
		return Breakdown{}, &ValidationError{Field: "price", Reason: "must be non-negative"}
	}
	if err := region.Validate(); err != nil {
		return Breakdown{}, err
	}
	schedule, err := e.table.Lookup(currency, region)
	if err != nil {
		return Breakdown{}, err
	}

	guestFee := money.MulRate(priceCents, schedule.GuestFeeRate)
	if schedule.GuestFeeCapCents > 0 && guestFee > schedule.GuestFeeCapCents {
		guestFee = schedule.GuestFeeCapCents
	}
	taxOnGuestFee := money.MulRate(guestFee, schedule.GuestFeeTaxRate)
	hostFee := money.MulRate(priceCents, schedule.HostCommissionRate)
	charge := priceCents + guestFee + taxOnGuestFee

	// The fixed part applies even to a zero price; the margin then goes negative.
	processorFee := money.MulRate(priceCents, schedule.ProcessorRate) + schedule.ProcessorFixedCents

	net := hostFee + guestFee + taxOnGuestFee - processorFee
	return Breakdown{
		Currency:                  currency,
		Region:                    region,
		BasePriceCents:            priceCents,
		HostFeeCents:              hostFee,
		GuestFeeCents:             guestFee,
		TaxOnGuestFeeCents:        taxOnGuestFee,
		ProcessorFeeEstimateCents: processorFee,
		ChargeCents:               charge,
		HostPayoutCents:           priceCents - hostFee,
		PlatformNetCents:          net,
		NegativeMargin:            net < 0,
	}, nil
}

// Quote resolves the region and computes fees in one step.
func (e *Engine) Quote(priceCents int64, in RegionInput) (Breakdown, error) {
	region, err := InferRegion(in)
	if err != nil {
		return Breakdown{}, err
	}
	return e.ComputeFees(priceCents, in.Currency, region)
}
