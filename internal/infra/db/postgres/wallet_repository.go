package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"rentspace/internal/domain/shared/money"
	domainwallet "rentspace/internal/domain/wallet"
)

// WalletRepository relies on the unique entry_key constraint for AppendOnce.
type WalletRepository struct {
	pool *pgxpool.Pool
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

func (r *WalletRepository) AppendOnce(ctx context.Context, entry domainwallet.Entry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO wallet_entries (id, entry_key, host_id, booking_id, reason, delta_cents, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entry_key) DO NOTHING`,
		entry.ID, entry.Key(), entry.HostID, entry.BookingID, entry.Reason, entry.DeltaCents, string(entry.Currency), entry.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *WalletRepository) Balance(ctx context.Context, hostID string, currency money.Currency) (int64, error) {
	var total int64
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(delta_cents), 0)::BIGINT FROM wallet_entries WHERE host_id = $1 AND currency = $2`,
		hostID, string(currency),
	).Scan(&total)
	return total, err
}

func (r *WalletRepository) Entries(ctx context.Context, hostID string) ([]domainwallet.Entry, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, host_id, booking_id, reason, delta_cents, currency, created_at
		FROM wallet_entries WHERE host_id = $1 ORDER BY created_at, id`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domainwallet.Entry, 0)
	for rows.Next() {
		var (
			e        domainwallet.Entry
			currency string
		)
		if err := rows.Scan(&e.ID, &e.HostID, &e.BookingID, &e.Reason, &e.DeltaCents, &currency, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Currency = money.Currency(currency)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
