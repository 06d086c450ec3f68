package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/money"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	col := db.Collection("agg_listing")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "host_id", Value: 1}}})
	return &ListingRepository{col: col}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	doc := newListingDocument(l)
	doc.Version = l.Version + 1
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}
	l.Version = doc.Version
	return nil
}

type listingDocument struct {
	ID              string `bson:"_id"`
	HostID          string `bson:"host_id"`
	Title           string `bson:"title"`
	Line1           string `bson:"line1"`
	City            string `bson:"city"`
	Province        string `bson:"province"`
	Country         string `bson:"country"`
	Currency        string `bson:"currency"`
	HourlyRateCents int64  `bson:"hourly_rate_cents"`
	DailyRateCents  int64  `bson:"daily_rate_cents"`
	State           string `bson:"state"`
	CreatedAt       int64  `bson:"created_at"`
	UpdatedAt       int64  `bson:"updated_at"`
	Version         int64  `bson:"version"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:              string(l.ID),
		HostID:          string(l.Host),
		Title:           l.Title,
		Line1:           l.Address.Line1,
		City:            l.Address.City,
		Province:        l.Address.Province,
		Country:         l.Address.Country,
		Currency:        string(l.Currency),
		HourlyRateCents: l.HourlyRateCents,
		DailyRateCents:  l.DailyRateCents,
		State:           string(l.State),
		CreatedAt:       l.CreatedAt.UnixMilli(),
		UpdatedAt:       l.UpdatedAt.UnixMilli(),
		Version:         l.Version,
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:    domainlistings.ListingID(d.ID),
		Host:  domainlistings.HostID(d.HostID),
		Title: d.Title,
		Address: domainlistings.Address{
			Line1:    d.Line1,
			City:     d.City,
			Province: d.Province,
			Country:  d.Country,
		},
		Currency:        money.Currency(d.Currency),
		HourlyRateCents: d.HourlyRateCents,
		DailyRateCents:  d.DailyRateCents,
		State:           domainlistings.ListingState(d.State),
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
		Version:         d.Version,
	}
}
