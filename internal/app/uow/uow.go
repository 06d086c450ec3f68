package uow

import (
	"context"
	"errors"

	"rentspace/internal/app/outbox"
	domainbooking "rentspace/internal/domain/booking"
	domainlistings "rentspace/internal/domain/listings"
	domainwallet "rentspace/internal/domain/wallet"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

// UnitOfWork coordinates repositories inside a transaction boundary.
// Events added to Outbox commit or roll back with the repository writes.
type UnitOfWork interface {
	Listings() domainlistings.ListingRepository
	Bookings() domainbooking.Repository
	Wallet() domainwallet.Repository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repositories is the repository set a driver hands to each unit it opens.
// Driver units embed it and add Commit and Rollback.
type Repositories struct {
	ListingRepo domainlistings.ListingRepository
	BookingRepo domainbooking.Repository
	WalletRepo  domainwallet.Repository
	OutboxRepo  outbox.Outbox
}

func (r Repositories) Listings() domainlistings.ListingRepository { return r.ListingRepo }
func (r Repositories) Bookings() domainbooking.Repository         { return r.BookingRepo }
func (r Repositories) Wallet() domainwallet.Repository            { return r.WalletRepo }
func (r Repositories) Outbox() outbox.Outbox                      { return r.OutboxRepo }

// Complete reports whether every repository is set.
func (r Repositories) Complete() bool {
	return r.ListingRepo != nil && r.BookingRepo != nil && r.WalletRepo != nil && r.OutboxRepo != nil
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry driver state (sessions,
// transactions) through the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// Begin starts a unit and returns a context carrying it.
func Begin(ctx context.Context, factory UoWFactory, opts TxOptions) (UnitOfWork, context.Context, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	execCtx := ctx
	if injector, ok := unit.(ContextInjector); ok {
		execCtx = injector.InjectContext(ctx)
	}
	return unit, ContextWithUnitOfWork(execCtx, unit), nil
}

type unitKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, unitKey{}, unit)
}

// FromContext returns the unit opened by an outer Transaction middleware or handler.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(unitKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}
