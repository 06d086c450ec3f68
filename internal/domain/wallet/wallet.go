package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentspace/internal/domain/shared/money"
)

var (
	ErrInvalidEntry  = errors.New("wallet: invalid ledger entry")
	ErrUnknownReason = errors.New("wallet: unknown reason prefix")
)

// ReasonPrefix classifies an entry. The ledger keeps at most one entry per
// (host, booking, prefix).
type ReasonPrefix string

const (
	ReasonBookingCredit      ReasonPrefix = "booking_credit:"
	ReasonBookingRefundDebit ReasonPrefix = "booking_refund_debit:"
)

// Reason builds a reason string such as "booking_credit:bk-1".
func Reason(prefix ReasonPrefix, detail string) string {
	return string(prefix) + detail
}

// PrefixOf returns the known prefix of a reason string.
func PrefixOf(reason string) (ReasonPrefix, error) {
	for _, p := range []ReasonPrefix{ReasonBookingCredit, ReasonBookingRefundDebit} {
		if strings.HasPrefix(reason, string(p)) {
			return p, nil
		}
	}
	return "", ErrUnknownReason
}

// Entry is one signed movement on a host wallet. Credits are positive.
type Entry struct {
	ID         string
	HostID     string
	BookingID  string
	Reason     string
	DeltaCents int64
	Currency   money.Currency
	CreatedAt  time.Time
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.HostID) == "" || strings.TrimSpace(e.BookingID) == "" {
		return ErrInvalidEntry
	}
	if err := e.Currency.Validate(); err != nil {
		return err
	}
	prefix, err := PrefixOf(e.Reason)
	if err != nil {
		return err
	}
	switch prefix {
	case ReasonBookingCredit:
		if e.DeltaCents < 0 {
			return ErrInvalidEntry
		}
	case ReasonBookingRefundDebit:
		if e.DeltaCents > 0 {
			return ErrInvalidEntry
		}
	}
	return nil
}

// Key is the uniqueness key the ledger enforces.
func (e Entry) Key() string {
	prefix, _ := PrefixOf(e.Reason)
	return e.HostID + "|" + e.BookingID + "|" + string(prefix)
}

func (e Entry) Amount() money.Money {
	return money.Money{Amount: e.DeltaCents, Currency: e.Currency}
}

type Repository interface {
	// AppendOnce stores the entry unless one with the same Key exists.
	// created is false when the entry was already recorded.
	AppendOnce(ctx context.Context, entry Entry) (created bool, err error)
	Balance(ctx context.Context, hostID string, currency money.Currency) (int64, error)
	Entries(ctx context.Context, hostID string) ([]Entry, error)
}

// Sum folds entries of one currency into a balance.
func Sum(entries []Entry, currency money.Currency) int64 {
	var total int64
	for _, e := range entries {
		if e.Currency == currency {
			total += e.DeltaCents
		}
	}
	return total
}
