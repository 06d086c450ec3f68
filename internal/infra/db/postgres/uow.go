package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "rentspace/internal/app/outbox"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	domainlistings "rentspace/internal/domain/listings"
	domainwallet "rentspace/internal/domain/wallet"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing pool or repositories")

// Factory opens one pgx transaction per unit; repositories pick it up from
// the context injected by uow.Begin.
type Factory struct {
	Pool *pgxpool.Pool

	ListingsRepo domainlistings.ListingRepository
	BookingRepo  domainbooking.Repository
	WalletRepo   domainwallet.Repository
	OutboxStore  appoutbox.Outbox
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	repos := uow.Repositories{
		ListingRepo: f.ListingsRepo,
		BookingRepo: f.BookingRepo,
		WalletRepo:  f.WalletRepo,
		OutboxRepo:  f.OutboxStore,
	}
	if f.Pool == nil || !repos.Complete() {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, err
	}
	return &Unit{Repositories: repos, tx: tx}, nil
}

type Unit struct {
	uow.Repositories
	tx pgx.Tx
}

func (u *Unit) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withTx(ctx, u.tx)
}
