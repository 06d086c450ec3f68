package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentspace/internal/domain/shared/money"
	domainwallet "rentspace/internal/domain/wallet"
)

// WalletRepository is an append-only ledger. The unique index on key makes
// AppendOnce safe across concurrent requests and processes.
type WalletRepository struct {
	col *mongo.Collection
}

func NewWalletRepository(db *mongo.Database) *WalletRepository {
	col := db.Collection("wallet_entries")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "currency", Value: 1}}},
	})
	return &WalletRepository{col: col}
}

func (r *WalletRepository) AppendOnce(ctx context.Context, entry domainwallet.Entry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	doc := walletEntryDocument{
		ID:         entry.ID,
		Key:        entry.Key(),
		HostID:     entry.HostID,
		BookingID:  entry.BookingID,
		Reason:     entry.Reason,
		DeltaCents: entry.DeltaCents,
		Currency:   string(entry.Currency),
		CreatedAt:  entry.CreatedAt.UnixMilli(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *WalletRepository) Balance(ctx context.Context, hostID string, currency money.Currency) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"host_id": hostID, "currency": string(currency)}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$delta_cents"}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (r *WalletRepository) Entries(ctx context.Context, hostID string) ([]domainwallet.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"host_id": hostID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []walletEntryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domainwallet.Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, domainwallet.Entry{
			ID:         d.ID,
			HostID:     d.HostID,
			BookingID:  d.BookingID,
			Reason:     d.Reason,
			DeltaCents: d.DeltaCents,
			Currency:   money.Currency(d.Currency),
			CreatedAt:  timestampToTime(d.CreatedAt),
		})
	}
	return out, nil
}

type walletEntryDocument struct {
	ID         string `bson:"_id"`
	Key        string `bson:"key"`
	HostID     string `bson:"host_id"`
	BookingID  string `bson:"booking_id"`
	Reason     string `bson:"reason"`
	DeltaCents int64  `bson:"delta_cents"`
	Currency   string `bson:"currency"`
	CreatedAt  int64  `bson:"created_at"`
}
