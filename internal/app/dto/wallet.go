package dto

import (
	"time"

	domainwallet "rentspace/internal/domain/wallet"
)

type WalletEntryDTO struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	Reason     string    `json:"reason"`
	DeltaCents int64     `json:"delta_cents"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

type WalletDTO struct {
	HostID       string           `json:"host_id"`
	Currency     string           `json:"currency"`
	BalanceCents int64            `json:"balance_cents"`
	Entries      []WalletEntryDTO `json:"entries"`
}

func MapWalletEntry(e domainwallet.Entry) WalletEntryDTO {
	return WalletEntryDTO{
		ID:         e.ID,
		BookingID:  e.BookingID,
		Reason:     e.Reason,
		DeltaCents: e.DeltaCents,
		Currency:   e.Currency.String(),
		CreatedAt:  e.CreatedAt,
	}
}
