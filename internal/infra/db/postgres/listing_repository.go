package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainlistings "rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/money"
)

const listingColumns = `id, host_id, title, line1, city, province, country, currency,
	hourly_rate_cents, daily_rate_cents, state, created_at, updated_at, version`

type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, string(id))
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainlistings.ErrListingNotFound
	}
	return l, err
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	next := l.Version + 1
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, line1 = EXCLUDED.line1, city = EXCLUDED.city,
			province = EXCLUDED.province, country = EXCLUDED.country, currency = EXCLUDED.currency,
			hourly_rate_cents = EXCLUDED.hourly_rate_cents, daily_rate_cents = EXCLUDED.daily_rate_cents,
			state = EXCLUDED.state, updated_at = EXCLUDED.updated_at, version = EXCLUDED.version`,
		string(l.ID), string(l.Host), l.Title, l.Address.Line1, l.Address.City, l.Address.Province, l.Address.Country,
		string(l.Currency), l.HourlyRateCents, l.DailyRateCents, string(l.State), l.CreatedAt, l.UpdatedAt, next,
	)
	if err != nil {
		return err
	}
	l.Version = next
	return nil
}

func scanListing(row pgx.Row) (*domainlistings.Listing, error) {
	var (
		l                         domainlistings.Listing
		id, host, currency, state string
	)
	err := row.Scan(&id, &host, &l.Title, &l.Address.Line1, &l.Address.City, &l.Address.Province, &l.Address.Country,
		&currency, &l.HourlyRateCents, &l.DailyRateCents, &state, &l.CreatedAt, &l.UpdatedAt, &l.Version)
	if err != nil {
		return nil, err
	}
	l.ID = domainlistings.ListingID(id)
	l.Host = domainlistings.HostID(host)
	l.Currency = money.Currency(currency)
	l.State = domainlistings.ListingState(state)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}
