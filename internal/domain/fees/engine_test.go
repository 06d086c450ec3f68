package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspace/internal/domain/shared/money"
)

func TestComputeFeesFranceScenarios(t *testing.T) {
	engine := Default()
	tests := []struct {
		name  string
		price int64
		want  Breakdown
	}{
		{
			name:  "three hours at 12.50",
			price: 3 * 1250,
			want: Breakdown{GuestFeeCents: 188, TaxOnGuestFeeCents: 38, HostFeeCents: 375,
				ProcessorFeeEstimateCents: 81, ChargeCents: 3976, HostPayoutCents: 3375, PlatformNetCents: 520},
		},
		{
			name:  "one night",
			price: 3000,
			want: Breakdown{GuestFeeCents: 150, TaxOnGuestFeeCents: 30, HostFeeCents: 300,
				ProcessorFeeEstimateCents: 70, ChargeCents: 3180, HostPayoutCents: 2700, PlatformNetCents: 410},
		},
		{
			name:  "two nights hits the cap",
			price: 2 * 3000,
			want: Breakdown{GuestFeeCents: 250, TaxOnGuestFeeCents: 50, HostFeeCents: 600,
				ProcessorFeeEstimateCents: 115, ChargeCents: 6300, HostPayoutCents: 5400, PlatformNetCents: 785},
		},
		{
			name:  "three nights",
			price: 3 * 3000,
			want: Breakdown{GuestFeeCents: 250, TaxOnGuestFeeCents: 50, HostFeeCents: 900,
				ProcessorFeeEstimateCents: 160, ChargeCents: 9300, HostPayoutCents: 8100, PlatformNetCents: 1040},
		},
		{
			name:  "99.99",
			price: 9999,
			want: Breakdown{GuestFeeCents: 250, TaxOnGuestFeeCents: 50, HostFeeCents: 1000,
				ProcessorFeeEstimateCents: 175, ChargeCents: 10299, HostPayoutCents: 8999, PlatformNetCents: 1125},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.ComputeFees(tt.price, money.EUR, RegionFrance)
			require.NoError(t, err)
			tt.want.Currency = money.EUR
			tt.want.Region = RegionFrance
			tt.want.BasePriceCents = tt.price
			assert.Equal(t, tt.want, got)
			assert.NoError(t, got.Check())
		})
	}
}

func TestComputeFeesCanadianRegions(t *testing.T) {
	engine := Default()

	qc, err := engine.ComputeFees(10000, money.CAD, RegionQuebec)
	require.NoError(t, err)
	assert.Equal(t, int64(250), qc.GuestFeeCents)
	assert.Equal(t, int64(37), qc.TaxOnGuestFeeCents)
	assert.Equal(t, int64(320), qc.ProcessorFeeEstimateCents)
	assert.Equal(t, int64(10287), qc.ChargeCents)
	assert.Equal(t, int64(967), qc.PlatformNetCents)

	on, err := engine.ComputeFees(10000, money.CAD, RegionOntario)
	require.NoError(t, err)
	assert.Equal(t, int64(33), on.TaxOnGuestFeeCents)

	abroad, err := engine.ComputeFees(10000, money.CAD, RegionCADDefault)
	require.NoError(t, err)
	assert.Zero(t, abroad.TaxOnGuestFeeCents)
	assert.Len(t, abroad.Lines(), 3)
}

func TestComputeFeesFlagsNegativeMargin(t *testing.T) {
	got, err := Default().ComputeFees(100, money.CAD, RegionQuebec)
	require.NoError(t, err)
	assert.Equal(t, int64(-17), got.PlatformNetCents)
	assert.True(t, got.NegativeMargin)
	assert.NoError(t, got.Check())
}

func TestComputeFeesZeroPrice(t *testing.T) {
	got, err := Default().ComputeFees(0, money.EUR, RegionFrance)
	require.NoError(t, err)
	assert.Zero(t, got.ChargeCents)
	assert.Zero(t, got.HostPayoutCents)
	assert.Equal(t, int64(25), got.ProcessorFeeEstimateCents)
	assert.Equal(t, int64(-25), got.PlatformNetCents)
	assert.True(t, got.NegativeMargin)
	assert.NoError(t, got.Check())
}

func TestComputeFeesInvariants(t *testing.T) {
	engine := Default()
	for _, entry := range engine.Table().Entries() {
		var prevCharge int64 = -1
		for price := int64(0); price <= 20000; price += 37 {
			got, err := engine.ComputeFees(price, entry.Currency, entry.Region)
			require.NoError(t, err)

			assert.Equal(t, price+got.GuestFeeCents+got.TaxOnGuestFeeCents, got.ChargeCents)
			assert.Equal(t, price-got.HostFeeCents, got.HostPayoutCents)
			assert.Equal(t, got.HostFeeCents+got.GuestFeeCents+got.TaxOnGuestFeeCents-got.ProcessorFeeEstimateCents, got.PlatformNetCents)
			for _, v := range []int64{got.HostFeeCents, got.GuestFeeCents, got.TaxOnGuestFeeCents, got.ChargeCents, got.HostPayoutCents} {
				assert.GreaterOrEqual(t, v, int64(0))
			}
			assert.GreaterOrEqual(t, got.ChargeCents, prevCharge, "charge decreased at %d for %s", price, entry.Region)
			prevCharge = got.ChargeCents
		}
	}
}

func TestComputeFeesCapHoldsForLargeBookings(t *testing.T) {
	got, err := Default().ComputeFees(10_000*100, money.EUR, RegionFrance)
	require.NoError(t, err)
	assert.Equal(t, DefaultGuestFeeCapCents, got.GuestFeeCents)
}

func TestComputeFeesUncappedSchedule(t *testing.T) {
	table, err := NewTable(Entry{Currency: money.EUR, Region: RegionFrance, Schedule: Schedule{
		GuestFeeRate:       decimal.RequireFromString("0.05"),
		HostCommissionRate: decimal.RequireFromString("0.10"),
		GuestFeeTaxRate:    decimal.RequireFromString("0.20"),
		ProcessorRate:      decimal.Zero,
	}})
	require.NoError(t, err)

	got, err := NewEngine(table).ComputeFees(10_000*100, money.EUR, RegionFrance)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), got.GuestFeeCents)
}

func TestComputeFeesErrors(t *testing.T) {
	engine := Default()

	_, err := engine.ComputeFees(-1, money.EUR, RegionFrance)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = engine.ComputeFees(1000, money.EUR, Region("MARS"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = engine.ComputeFees(1000, money.EUR, RegionQuebec)
	assert.ErrorIs(t, err, ErrConfiguration)

	empty, err := NewTable()
	require.NoError(t, err)
	_, err = NewEngine(empty).ComputeFees(1000, money.EUR, RegionFrance)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, RegionFrance, cfgErr.Region)
}

func TestNewTableRejectsBadEntries(t *testing.T) {
	entry := Entry{Currency: money.EUR, Region: RegionFrance, Schedule: Schedule{GuestFeeRate: decimal.RequireFromString("1.5")}}
	_, err := NewTable(entry)
	assert.ErrorIs(t, err, ErrConfiguration)

	ok := Entry{Currency: money.EUR, Region: RegionFrance}
	_, err = NewTable(ok, ok)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestTableWithOverridesLeavesOriginalUntouched(t *testing.T) {
	base := DefaultTable()
	override := Entry{Currency: money.EUR, Region: RegionFrance, Schedule: Schedule{
		GuestFeeRate:       decimal.RequireFromString("0.07"),
		HostCommissionRate: decimal.RequireFromString("0.12"),
		GuestFeeTaxRate:    decimal.RequireFromString("0.20"),
		ProcessorRate:      decimal.RequireFromString("0.015"),
	}}
	next, err := base.With(override)
	require.NoError(t, err)

	orig, err := base.Lookup(money.EUR, RegionFrance)
	require.NoError(t, err)
	assert.True(t, orig.GuestFeeRate.Equal(decimal.RequireFromString("0.05")))

	updated, err := next.Lookup(money.EUR, RegionFrance)
	require.NoError(t, err)
	assert.True(t, updated.GuestFeeRate.Equal(decimal.RequireFromString("0.07")))
	assert.Len(t, next.Entries(), len(base.Entries()))
}

func TestBreakdownLines(t *testing.T) {
	got, err := Default().ComputeFees(3000, money.EUR, RegionFrance)
	require.NoError(t, err)
	lines := got.Lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "total", lines[3].Code)
	assert.Equal(t, "31.80 EUR", lines[3].Amount.String())
}
