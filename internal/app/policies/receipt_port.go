package policies

import "context"

// ReceiptArchive stores immutable fee receipts and returns their location.
type ReceiptArchive interface {
	Put(ctx context.Context, bookingID string, body []byte) (string, error)
}
