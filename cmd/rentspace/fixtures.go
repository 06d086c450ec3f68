package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/money"
)

type listingFixture struct {
	ID              string         `json:"id"`
	Host            string         `json:"host"`
	Title           string         `json:"title"`
	Address         fixtureAddress `json:"address"`
	Currency        string         `json:"currency"`
	HourlyRateCents int64          `json:"hourly_rate_cents"`
	DailyRateCents  int64          `json:"daily_rate_cents"`
}

type fixtureAddress struct {
	Line1    string `json:"line1"`
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
}

// loadListingFixtures imports listings from a JSON file. Listings that already
// exist are left untouched so restarts against a database are harmless.
func (a *application) loadListingFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	if path == "" {
		path = defaultListingFixturesPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	fixtures, err := decodeListingFixtures(data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	imported := 0
	for _, fx := range fixtures {
		if _, err := a.listings.ByID(ctx, listings.ListingID(fx.ID)); err == nil {
			continue
		} else if !errors.Is(err, listings.ErrListingNotFound) {
			return fmt.Errorf("lookup fixture %s: %w", fx.ID, err)
		}
		listing, err := fx.build(now)
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		if err := a.listings.Save(ctx, listing); err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		imported++
	}
	logger.Info("listing fixtures imported", "path", path, "count", imported)
	return nil
}

func decodeListingFixtures(data []byte) ([]listingFixture, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var fixtures []listingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return fixtures, nil
}

func (fx listingFixture) build(now time.Time) (*listings.Listing, error) {
	currency, err := money.ParseCurrency(fx.Currency)
	if err != nil {
		return nil, err
	}
	listing, err := listings.NewListing(listings.CreateListingParams{
		ID:    listings.ListingID(fx.ID),
		Host:  listings.HostID(fx.Host),
		Title: fx.Title,
		Address: listings.Address{
			Line1:    fx.Address.Line1,
			City:     fx.Address.City,
			Province: fx.Address.Province,
			Country:  fx.Address.Country,
		},
		Currency:        currency,
		HourlyRateCents: fx.HourlyRateCents,
		DailyRateCents:  fx.DailyRateCents,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}
	if err := listing.Activate(now); err != nil {
		return nil, err
	}
	return listing, nil
}

func defaultListingFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "listings.json"),
		filepath.Join("..", "..", "data", "listings.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
