package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "rentspace/internal/app/outbox"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	domainlistings "rentspace/internal/domain/listings"
	domainwallet "rentspace/internal/domain/wallet"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ListingsRepo domainlistings.ListingRepository
	BookingRepo  domainbooking.Repository
	WalletRepo   domainwallet.Repository
	OutboxStore  appoutbox.Outbox
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight transaction boundary. Repository writes are not
// isolated and survive Rollback, so handlers write idempotent records (wallet
// entries keyed per booking) before the versioned booking save. Outbox
// records are buffered and only published on Commit.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.OutboxStore == nil {
		return nil, ErrFactoryMisconfigured
	}
	buffer := &bufferedOutbox{target: f.OutboxStore}
	repos := uow.Repositories{
		ListingRepo: f.ListingsRepo,
		BookingRepo: f.BookingRepo,
		WalletRepo:  f.WalletRepo,
		OutboxRepo:  buffer,
	}
	if !repos.Complete() {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{Repositories: repos, buffer: buffer}, nil
}

// Unit is a uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	uow.Repositories
	buffer *bufferedOutbox
}

func (u *Unit) Commit(ctx context.Context) error {
	return u.buffer.publish(ctx)
}

func (u *Unit) Rollback(context.Context) error {
	u.buffer.discard()
	return nil
}

type bufferedOutbox struct {
	mu      sync.Mutex
	target  appoutbox.Outbox
	pending []appoutbox.EventRecord
}

func (b *bufferedOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, record)
	return nil
}

func (b *bufferedOutbox) Flush(ctx context.Context) error {
	return nil
}

func (b *bufferedOutbox) publish(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, rec := range pending {
		if err := b.target.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (b *bufferedOutbox) discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}
