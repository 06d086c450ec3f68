package fees

import (
	"github.com/shopspring/decimal"

	"rentspace/internal/domain/shared/money"
)

// Schedule holds the rates applied to one (currency, region) pair. Rates are
// fractions (0.05 = 5%); amounts are minor units.
type Schedule struct {
	GuestFeeRate        decimal.Decimal
	GuestFeeCapCents    int64 // 0 means uncapped
	HostCommissionRate  decimal.Decimal
	GuestFeeTaxRate     decimal.Decimal
	ProcessorRate       decimal.Decimal
	ProcessorFixedCents int64
}

func (s Schedule) validate(key scheduleKey) error {
	rates := []struct {
		name string
		rate decimal.Decimal
	}{
		{"guest fee rate", s.GuestFeeRate},
		{"host commission rate", s.HostCommissionRate},
		{"guest fee tax rate", s.GuestFeeTaxRate},
		{"processor rate", s.ProcessorRate},
	}
	for _, r := range rates {
		if r.rate.IsNegative() || r.rate.GreaterThan(decimal.NewFromInt(1)) {
			return &ConfigurationError{Currency: key.currency, Region: key.region, Reason: r.name + " out of range"}
		}
	}
	if s.GuestFeeCapCents < 0 || s.ProcessorFixedCents < 0 {
		return &ConfigurationError{Currency: key.currency, Region: key.region, Reason: "negative fixed amount"}
	}
	return nil
}

type scheduleKey struct {
	currency money.Currency
	region   Region
}

// Entry binds a schedule to its jurisdiction when building a Table.
type Entry struct {
	Currency money.Currency
	Region   Region
	Schedule Schedule
}

// Table is an immutable lookup of fee schedules.
type Table struct {
	schedules map[scheduleKey]Schedule
}

// NewTable copies the entries into a fresh table. Invalid or duplicate entries
// are configuration errors.
func NewTable(entries ...Entry) (Table, error) {
	schedules := make(map[scheduleKey]Schedule, len(entries))
	for _, e := range entries {
		key := scheduleKey{currency: e.Currency, region: e.Region}
		if err := e.Region.Validate(); err != nil {
			return Table{}, &ConfigurationError{Currency: e.Currency, Region: e.Region, Reason: "unknown region"}
		}
		if _, dup := schedules[key]; dup {
			return Table{}, &ConfigurationError{Currency: e.Currency, Region: e.Region, Reason: "duplicate schedule"}
		}
		if err := e.Schedule.validate(key); err != nil {
			return Table{}, err
		}
		schedules[key] = e.Schedule
	}
	return Table{schedules: schedules}, nil
}

// Lookup returns the schedule for the pair or a ConfigurationError.
func (t Table) Lookup(currency money.Currency, region Region) (Schedule, error) {
	s, ok := t.schedules[scheduleKey{currency: currency, region: region}]
	if !ok {
		return Schedule{}, &ConfigurationError{Currency: currency, Region: region, Reason: "schedule missing"}
	}
	return s, nil
}

// Entries returns a copy of the table contents in region order.
func (t Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.schedules))
	for _, c := range []money.Currency{money.EUR, money.CAD} {
		for _, r := range Regions() {
			if s, ok := t.schedules[scheduleKey{currency: c, region: r}]; ok {
				out = append(out, Entry{Currency: c, Region: r, Schedule: s})
			}
		}
	}
	return out
}

// With returns a new table where the given entries replace or extend the current ones.
func (t Table) With(overrides ...Entry) (Table, error) {
	merged := make(map[scheduleKey]Entry, len(t.schedules)+len(overrides))
	for _, e := range t.Entries() {
		merged[scheduleKey{currency: e.Currency, region: e.Region}] = e
	}
	for _, e := range overrides {
		merged[scheduleKey{currency: e.Currency, region: e.Region}] = e
	}
	entries := make([]Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	return NewTable(entries...)
}

// DefaultGuestFeeCapCents is the per-booking ceiling on the guest service fee.
const DefaultGuestFeeCapCents int64 = 250

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultTable returns the production schedules.
func DefaultTable() Table {
	canada := func(region Region, tax string) Entry {
		return Entry{Currency: money.CAD, Region: region, Schedule: Schedule{
			GuestFeeRate:        pct("0.05"),
			GuestFeeCapCents:    DefaultGuestFeeCapCents,
			HostCommissionRate:  pct("0.10"),
			GuestFeeTaxRate:     pct(tax),
			ProcessorRate:       pct("0.029"),
			ProcessorFixedCents: 30,
		}}
	}
	table, err := NewTable(
		Entry{Currency: money.EUR, Region: RegionFrance, Schedule: Schedule{
			GuestFeeRate:        pct("0.05"),
			GuestFeeCapCents:    DefaultGuestFeeCapCents,
			HostCommissionRate:  pct("0.10"),
			GuestFeeTaxRate:     pct("0.20"),
			ProcessorRate:       pct("0.015"),
			ProcessorFixedCents: 25,
		}},
		canada(RegionQuebec, "0.14975"),
		canada(RegionOntario, "0.13"),
		canada(RegionBC, "0.05"),
		canada(RegionAlberta, "0.05"),
		canada(RegionAtlantic, "0.15"),
		canada(RegionCanadaRest, "0.05"),
		canada(RegionCADDefault, "0"),
	)
	if err != nil {
		panic(err)
	}
	return table
}
