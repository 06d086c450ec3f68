package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/cancellation"
	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/daterange"
	"rentspace/internal/domain/shared/money"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return &BookingRepository{col: col}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save upserts on the expected version. A stale version either matches
// nothing or collides with the existing _id on insert.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	res, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID listings.HostID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"host_id": string(hostID)})
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"guest_id": guestID})
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

type bookingDocument struct {
	ID              string        `bson:"_id"`
	ListingID       string        `bson:"listing_id"`
	HostID          string        `bson:"host_id"`
	GuestID         string        `bson:"guest_id"`
	Span            spanDocument  `bson:"span"`
	Track           string        `bson:"track"`
	Region          string        `bson:"region"`
	Currency        string        `bson:"currency"`
	BasePriceCents  int64         `bson:"base_price_cents"`
	State           string        `bson:"state"`
	Fees            *feesDocument `bson:"fees,omitempty"`
	PaymentIntentID string        `bson:"payment_intent_id"`
	CapturedCents   int64         `bson:"captured_cents"`
	RefundedCents   int64         `bson:"refunded_cents"`
	CreatedAt       int64         `bson:"created_at"`
	UpdatedAt       int64         `bson:"updated_at"`
	Version         int64         `bson:"version"`
}

type spanDocument struct {
	Start int64 `bson:"start"`
	End   int64 `bson:"end"`
}

type feesDocument struct {
	HostFeeCents              int64 `bson:"host_fee_cents"`
	GuestFeeCents             int64 `bson:"guest_fee_cents"`
	TaxOnGuestFeeCents        int64 `bson:"tax_on_guest_fee_cents"`
	ProcessorFeeEstimateCents int64 `bson:"processor_fee_estimate_cents"`
	ChargeCents               int64 `bson:"charge_cents"`
	HostPayoutCents           int64 `bson:"host_payout_cents"`
	PlatformNetCents          int64 `bson:"platform_net_cents"`
	NegativeMargin            bool  `bson:"negative_margin"`
	ComputedAt                int64 `bson:"computed_at"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		HostID:          string(b.HostID),
		GuestID:         b.GuestID,
		Span:            spanDocument{Start: b.Span.Start.UnixMilli(), End: b.Span.End.UnixMilli()},
		Track:           string(b.Track),
		Region:          string(b.Region),
		Currency:        string(b.Currency),
		BasePriceCents:  b.BasePriceCents,
		State:           string(b.State),
		PaymentIntentID: b.PaymentIntentID,
		CapturedCents:   b.CapturedCents,
		RefundedCents:   b.RefundedCents,
		CreatedAt:       b.CreatedAt.UnixMilli(),
		UpdatedAt:       b.UpdatedAt.UnixMilli(),
		Version:         b.Version,
	}
	if f := b.Fees; f != nil {
		doc.Fees = &feesDocument{
			HostFeeCents:              f.HostFeeCents,
			GuestFeeCents:             f.GuestFeeCents,
			TaxOnGuestFeeCents:        f.TaxOnGuestFeeCents,
			ProcessorFeeEstimateCents: f.ProcessorFeeEstimateCents,
			ChargeCents:               f.ChargeCents,
			HostPayoutCents:           f.HostPayoutCents,
			PlatformNetCents:          f.PlatformNetCents,
			NegativeMargin:            f.NegativeMargin,
			ComputedAt:                f.ComputedAt.UnixMilli(),
		}
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	agg := &domainbooking.Booking{
		ID:              domainbooking.BookingID(d.ID),
		ListingID:       listings.ListingID(d.ListingID),
		HostID:          listings.HostID(d.HostID),
		GuestID:         d.GuestID,
		Span:            daterange.DateRange{Start: timestampToTime(d.Span.Start), End: timestampToTime(d.Span.End)},
		Track:           cancellation.Track(d.Track),
		Region:          fees.Region(d.Region),
		Currency:        money.Currency(d.Currency),
		BasePriceCents:  d.BasePriceCents,
		State:           domainbooking.BookingState(d.State),
		PaymentIntentID: d.PaymentIntentID,
		CapturedCents:   d.CapturedCents,
		RefundedCents:   d.RefundedCents,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
		Version:         d.Version,
	}
	if f := d.Fees; f != nil {
		agg.Fees = &domainbooking.FeeSnapshot{
			Breakdown: fees.Breakdown{
				Currency:                  agg.Currency,
				Region:                    agg.Region,
				BasePriceCents:            agg.BasePriceCents,
				HostFeeCents:              f.HostFeeCents,
				GuestFeeCents:             f.GuestFeeCents,
				TaxOnGuestFeeCents:        f.TaxOnGuestFeeCents,
				ProcessorFeeEstimateCents: f.ProcessorFeeEstimateCents,
				ChargeCents:               f.ChargeCents,
				HostPayoutCents:           f.HostPayoutCents,
				PlatformNetCents:          f.PlatformNetCents,
				NegativeMargin:            f.NegativeMargin,
			},
			ComputedAt: timestampToTime(f.ComputedAt),
		}
	}
	return agg
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
