package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/cancellation"
	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/money"
)

const bookingColumns = `id, listing_id, host_id, guest_id, span_start, span_end, track, region, currency,
	base_price_cents, state, fees, payment_intent_id, captured_cents, refunded_cents, created_at, updated_at, version`

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b, err
}

// Save inserts at version 0 or updates when the stored version still equals
// b.Version. Anything else is a concurrent update.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	feesJSON, err := encodeFees(b.Fees)
	if err != nil {
		return err
	}
	next := b.Version + 1
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state, fees = EXCLUDED.fees, payment_intent_id = EXCLUDED.payment_intent_id,
			captured_cents = EXCLUDED.captured_cents, refunded_cents = EXCLUDED.refunded_cents,
			updated_at = EXCLUDED.updated_at, version = EXCLUDED.version
		WHERE bookings.version = $19`,
		string(b.ID), string(b.ListingID), string(b.HostID), b.GuestID, b.Span.Start, b.Span.End,
		string(b.Track), string(b.Region), string(b.Currency), b.BasePriceCents, string(b.State), feesJSON,
		b.PaymentIntentID, b.CapturedCents, b.RefundedCents, b.CreatedAt, b.UpdatedAt, next, b.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = next
	return nil
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID listings.HostID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `host_id = $1`, string(hostID))
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, `guest_id = $1`, guestID)
}

func (r *BookingRepository) list(ctx context.Context, where string, arg string) ([]*domainbooking.Booking, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+where+` ORDER BY created_at DESC, id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*domainbooking.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type feesRow struct {
	HostFeeCents              int64     `json:"host_fee_cents"`
	GuestFeeCents             int64     `json:"guest_fee_cents"`
	TaxOnGuestFeeCents        int64     `json:"tax_on_guest_fee_cents"`
	ProcessorFeeEstimateCents int64     `json:"processor_fee_estimate_cents"`
	ChargeCents               int64     `json:"charge_cents"`
	HostPayoutCents           int64     `json:"host_payout_cents"`
	PlatformNetCents          int64     `json:"platform_net_cents"`
	NegativeMargin            bool      `json:"negative_margin"`
	ComputedAt                time.Time `json:"computed_at"`
}

func encodeFees(snap *domainbooking.FeeSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, nil
	}
	return json.Marshal(feesRow{
		HostFeeCents:              snap.HostFeeCents,
		GuestFeeCents:             snap.GuestFeeCents,
		TaxOnGuestFeeCents:        snap.TaxOnGuestFeeCents,
		ProcessorFeeEstimateCents: snap.ProcessorFeeEstimateCents,
		ChargeCents:               snap.ChargeCents,
		HostPayoutCents:           snap.HostPayoutCents,
		PlatformNetCents:          snap.PlatformNetCents,
		NegativeMargin:            snap.NegativeMargin,
		ComputedAt:                snap.ComputedAt.UTC(),
	})
}

func scanBooking(row pgx.Row) (*domainbooking.Booking, error) {
	var (
		b                                                  domainbooking.Booking
		id, listingID, hostID, track, region, currency, st string
		feesJSON                                           []byte
	)
	err := row.Scan(&id, &listingID, &hostID, &b.GuestID, &b.Span.Start, &b.Span.End, &track, &region, &currency,
		&b.BasePriceCents, &st, &feesJSON, &b.PaymentIntentID, &b.CapturedCents, &b.RefundedCents,
		&b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		return nil, err
	}
	b.ID = domainbooking.BookingID(id)
	b.ListingID = listings.ListingID(listingID)
	b.HostID = listings.HostID(hostID)
	b.Track = cancellation.Track(track)
	b.Region = fees.Region(region)
	b.Currency = money.Currency(currency)
	b.State = domainbooking.BookingState(st)
	b.Span.Start = b.Span.Start.UTC()
	b.Span.End = b.Span.End.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	if len(feesJSON) > 0 {
		var f feesRow
		if err := json.Unmarshal(feesJSON, &f); err != nil {
			return nil, err
		}
		b.Fees = &domainbooking.FeeSnapshot{
			Breakdown: fees.Breakdown{
				Currency:                  b.Currency,
				Region:                    b.Region,
				BasePriceCents:            b.BasePriceCents,
				HostFeeCents:              f.HostFeeCents,
				GuestFeeCents:             f.GuestFeeCents,
				TaxOnGuestFeeCents:        f.TaxOnGuestFeeCents,
				ProcessorFeeEstimateCents: f.ProcessorFeeEstimateCents,
				ChargeCents:               f.ChargeCents,
				HostPayoutCents:           f.HostPayoutCents,
				PlatformNetCents:          f.PlatformNetCents,
				NegativeMargin:            f.NegativeMargin,
			},
			ComputedAt: f.ComputedAt.UTC(),
		}
	}
	return &b, nil
}
