package postgres

import (
	"context"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/shared/daterange"
	"rentspace/internal/domain/shared/money"
	domainwallet "rentspace/internal/domain/wallet"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	return url
}

func TestRepositoriesAgainstDatabase(t *testing.T) {
	url := testDatabaseURL(t)
	ctx := context.Background()
	_ = RollbackMigrations(url)
	require.NoError(t, RunMigrations(url, nil))

	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	bookings := NewBookingRepository(pool)
	wallet := NewWalletRepository(pool)
	factory := Factory{
		Pool:         pool,
		ListingsRepo: NewListingRepository(pool),
		BookingRepo:  bookings,
		WalletRepo:   wallet,
		OutboxStore:  NewOutboxStore(pool),
	}

	start := time.Now().UTC().Add(240 * time.Hour).Truncate(time.Millisecond)
	span, err := daterange.New(start, start.Add(48*time.Hour))
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        "bk-pg-1",
		ListingID: "lst-1",
		HostID:    "host-1",
		GuestID:   "guest-1",
		Span:      span,
		Region:    fees.RegionQuebec,
		BasePrice: money.Must(20000, money.CAD),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	t.Run("save and load in a unit", func(t *testing.T) {
		unit, txCtx, err := uow.Begin(ctx, factory, uow.TxOptions{})
		require.NoError(t, err)
		require.NoError(t, unit.Bookings().Save(txCtx, b))
		require.NoError(t, unit.Commit(txCtx))

		got, err := bookings.ByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.True(t, span.Start.Equal(got.Span.Start))
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		stale, err := bookings.ByID(ctx, b.ID)
		require.NoError(t, err)
		fresh, err := bookings.ByID(ctx, b.ID)
		require.NoError(t, err)
		require.NoError(t, bookings.Save(ctx, fresh))
		assert.ErrorIs(t, bookings.Save(ctx, stale), domainbooking.ErrConcurrentUpdate)
	})

	t.Run("wallet entry appended once", func(t *testing.T) {
		entry := domainwallet.Entry{
			ID:         "we-1",
			HostID:     "host-1",
			BookingID:  string(b.ID),
			Reason:     domainwallet.Reason(domainwallet.ReasonBookingCredit, string(b.ID)),
			DeltaCents: 17000,
			Currency:   money.CAD,
			CreatedAt:  time.Now().UTC(),
		}
		created, err := wallet.AppendOnce(ctx, entry)
		require.NoError(t, err)
		assert.True(t, created)
		entry.ID = "we-2"
		created, err = wallet.AppendOnce(ctx, entry)
		require.NoError(t, err)
		assert.False(t, created)

		balance, err := wallet.Balance(ctx, "host-1", money.CAD)
		require.NoError(t, err)
		assert.Equal(t, int64(17000), balance)
	})
}
