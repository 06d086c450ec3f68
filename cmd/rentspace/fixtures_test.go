package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/listings"
	"rentspace/internal/infra/storage/memory"
)

func TestLoadListingFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"l1","host":"h1","title":"Studio","currency":"cad","daily_rate_cents":10000,
		 "address":{"line1":"1 rue","city":"Quebec","province":"qc","country":"ca"}},
		{"id":"l2","host":"h1","title":"Broken","currency":"JPY","daily_rate_cents":100,
		 "address":{"line1":"x","city":"y","country":"JP"}}
	]`), 0o600))

	repo := memory.NewListingRepository()
	app := &application{listings: repo}
	require.NoError(t, app.loadListingFixtures(context.Background(), path, slog.Default()))

	listing, err := repo.ByID(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, listings.ListingActive, listing.State)
	region, err := fees.InferRegion(listing.RegionInput())
	require.NoError(t, err)
	assert.Equal(t, fees.RegionQuebec, region)

	_, err = repo.ByID(context.Background(), "l2")
	assert.ErrorIs(t, err, listings.ErrListingNotFound)

	// A second import keeps the stored version.
	require.NoError(t, app.loadListingFixtures(context.Background(), path, slog.Default()))
	again, err := repo.ByID(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, listing.Version, again.Version)
}

func TestLoadListingFixturesMissingFile(t *testing.T) {
	app := &application{listings: memory.NewListingRepository()}
	err := app.loadListingFixtures(context.Background(), filepath.Join(t.TempDir(), "none.json"), slog.Default())
	assert.NoError(t, err)
}

func TestDecodeListingFixturesRejectsGarbage(t *testing.T) {
	_, err := decodeListingFixtures([]byte("{"))
	assert.Error(t, err)
}
