package pricing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/shared/money"
)

// ScheduleOverride is one JSON entry of FEE_SCHEDULE_OVERRIDES. Omitted
// fields keep the value of the default schedule for the same pair.
type ScheduleOverride struct {
	Currency            string           `json:"currency"`
	Region              string           `json:"region"`
	GuestFeeRate        *decimal.Decimal `json:"guest_fee_rate,omitempty"`
	GuestFeeCapCents    *int64           `json:"guest_fee_cap_cents,omitempty"`
	HostCommissionRate  *decimal.Decimal `json:"host_commission_rate,omitempty"`
	GuestFeeTaxRate     *decimal.Decimal `json:"guest_fee_tax_rate,omitempty"`
	ProcessorRate       *decimal.Decimal `json:"processor_rate,omitempty"`
	ProcessorFixedCents *int64           `json:"processor_fixed_cents,omitempty"`
}

// LoadFeeTable merges raw JSON overrides into base. An empty string returns
// base unchanged. Invalid input is an error: fees are never computed from a
// schedule that failed to parse.
func LoadFeeTable(raw string, base fees.Table, logger *slog.Logger) (fees.Table, error) {
	if strings.TrimSpace(raw) == "" {
		return base, nil
	}
	var overrides []ScheduleOverride
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return fees.Table{}, fmt.Errorf("pricing: invalid FEE_SCHEDULE_OVERRIDES JSON: %w", err)
	}
	entries := make([]fees.Entry, 0, len(overrides))
	for i, o := range overrides {
		entry, err := o.apply(base)
		if err != nil {
			return fees.Table{}, fmt.Errorf("pricing: override %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	table, err := base.With(entries...)
	if err != nil {
		return fees.Table{}, err
	}
	if logger != nil {
		for _, e := range entries {
			logger.Info("fee schedule override applied", "currency", e.Currency, "region", e.Region)
		}
	}
	return table, nil
}

func (o ScheduleOverride) apply(base fees.Table) (fees.Entry, error) {
	currency, err := money.ParseCurrency(o.Currency)
	if err != nil {
		return fees.Entry{}, err
	}
	region := fees.Region(strings.ToUpper(strings.TrimSpace(o.Region)))
	if err := region.Validate(); err != nil {
		return fees.Entry{}, err
	}
	s, err := base.Lookup(currency, region)
	if err != nil {
		s = fees.Schedule{}
	}
	if o.GuestFeeRate != nil {
		s.GuestFeeRate = *o.GuestFeeRate
	}
	if o.GuestFeeCapCents != nil {
		s.GuestFeeCapCents = *o.GuestFeeCapCents
	}
	if o.HostCommissionRate != nil {
		s.HostCommissionRate = *o.HostCommissionRate
	}
	if o.GuestFeeTaxRate != nil {
		s.GuestFeeTaxRate = *o.GuestFeeTaxRate
	}
	if o.ProcessorRate != nil {
		s.ProcessorRate = *o.ProcessorRate
	}
	if o.ProcessorFixedCents != nil {
		s.ProcessorFixedCents = *o.ProcessorFixedCents
	}
	return fees.Entry{Currency: currency, Region: region, Schedule: s}, nil
}
