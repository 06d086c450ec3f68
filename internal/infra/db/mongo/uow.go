package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	appoutbox "rentspace/internal/app/outbox"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	domainlistings "rentspace/internal/domain/listings"
	domainwallet "rentspace/internal/domain/wallet"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database or repositories")

// Factory opens one session transaction per unit. Read-only units read at
// snapshot concern so a listing and its bookings are seen at one point in time.
type Factory struct {
	DB *mongo.Database

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
	if f.DB == nil || !repos.Complete() {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	readConcern := f.DB.ReadConcern()
	if opts.ReadOnly {
		readConcern = readconcern.Snapshot()
	}
	txn := options.Transaction().SetReadConcern(readConcern).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txn); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{Repositories: repos, session: session}, nil
}

type Unit struct {
	uow.Repositories
	session mongo.Session
	ended   bool
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.ended {
		return nil
	}
	u.ended = true
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

// Rollback is a no-op after Commit.
func (u *Unit) Rollback(ctx context.Context) error {
	if u.ended {
		return nil
	}
	u.ended = true
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext binds the session so repositories join the transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
