package middleware

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspace/internal/app/commands"
	"rentspace/internal/app/outbox"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	domainlistings "rentspace/internal/domain/listings"
	domainwallet "rentspace/internal/domain/wallet"
)

type chargeResult struct {
	Amount int64 `json:"amount"`
}

type chargeCommand struct {
	IdemKey string
	Fail    bool
	Value   int64
}

func (c chargeCommand) Key() string            { return "test.charge" }
func (c chargeCommand) IdempotencyKey() string { return c.IdemKey }
func (c chargeCommand) ResultPrototype() any   { return &chargeResult{} }

type mapStore struct {
	mu    sync.Mutex
	items map[string]IdempotencyRecord
}

func newMapStore() *mapStore { return &mapStore{items: map[string]IdempotencyRecord{}} }

func (s *mapStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

func chargeBus(calls *int32) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[chargeCommand, *chargeResult](bus, "test.charge", commands.HandlerFunc[chargeCommand, *chargeResult](
		func(_ context.Context, cmd chargeCommand) (*chargeResult, error) {
			atomic.AddInt32(calls, 1)
			if cmd.Fail {
				return nil, errors.New("provider down")
			}
			return &chargeResult{Amount: cmd.Value}, nil
		}))
	return bus
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	var calls int32
	store := newMapStore()
	bus := ChainCommands(chargeBus(&calls), Idempotency(store, IdempotencyOptions{}))

	first, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{IdemKey: "k1", Value: 10})
	require.NoError(t, err)
	second, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{IdemKey: "k1", Value: 99})
	require.NoError(t, err)

	assert.Equal(t, int64(10), first.Amount)
	assert.Equal(t, int64(10), second.Amount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	_, found, _ := store.Get(context.Background(), "test.charge:k1")
	assert.True(t, found)
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	var calls int32
	bus := ChainCommands(chargeBus(&calls), Idempotency(newMapStore(), IdempotencyOptions{}))

	_, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{IdemKey: "k1", Fail: true})
	require.Error(t, err)
	res, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{IdemKey: "k1", Value: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Amount)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyExpiresAfterTTL(t *testing.T) {
	var calls int32
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	bus := ChainCommands(chargeBus(&calls), Idempotency(newMapStore(), IdempotencyOptions{TTL: time.Hour, Now: clock}))

	_, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{IdemKey: "k1", Value: 1})
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	res, err := commands.Dispatch[chargeCommand, *chargeResult](context.Background(), bus, chargeCommand{IdemKey: "k1", Value: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Amount)
}

type fakeUnit struct {
	committed, rolledBack bool
}

func (u *fakeUnit) Listings() domainlistings.ListingRepository { return nil }
func (u *fakeUnit) Bookings() domainbooking.Repository         { return nil }
func (u *fakeUnit) Wallet() domainwallet.Repository            { return nil }
func (u *fakeUnit) Outbox() outbox.Outbox                      { return nil }
func (u *fakeUnit) Commit(context.Context) error               { u.committed = true; return nil }
func (u *fakeUnit) Rollback(context.Context) error             { u.rolledBack = true; return nil }

type fakeFactory struct{ units []*fakeUnit }

func (f *fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	u := &fakeUnit{}
	f.units = append(f.units, u)
	return u, nil
}

func TestTransactionCommitsOrRollsBack(t *testing.T) {
	var calls int32
	factory := &fakeFactory{}
	bus := ChainCommands(chargeBus(&calls), Transaction(factory, nil))

	_, err := bus.Dispatch(context.Background(), chargeCommand{Value: 1})
	require.NoError(t, err)
	_, err = bus.Dispatch(context.Background(), chargeCommand{Fail: true})
	require.Error(t, err)

	require.Len(t, factory.units, 2)
	assert.True(t, factory.units[0].committed)
	assert.False(t, factory.units[0].rolledBack)
	assert.False(t, factory.units[1].committed)
	assert.True(t, factory.units[1].rolledBack)
}

type countingFlusher struct{ n int }

func (f *countingFlusher) Flush(context.Context) error { f.n++; return errors.New("broker offline") }

func TestOutboxFlushIgnoresFlushErrors(t *testing.T) {
	var calls int32
	flusher := &countingFlusher{}
	bus := ChainCommands(chargeBus(&calls), OutboxFlush(flusher, nil))

	_, err := bus.Dispatch(context.Background(), chargeCommand{Value: 1})
	require.NoError(t, err)
	_, err = bus.Dispatch(context.Background(), chargeCommand{Fail: true})
	require.Error(t, err)
	assert.Equal(t, 1, flusher.n)
}
