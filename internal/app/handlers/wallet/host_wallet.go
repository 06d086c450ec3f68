package wallet

import (
	"context"
	"strings"

	"rentspace/internal/app/dto"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/queries"
	"rentspace/internal/app/uow"
	"rentspace/internal/domain/shared/money"
)

const hostWalletKey = "wallet.host"

type HostWalletQuery struct {
	HostID   string
	Currency string
}

func (q HostWalletQuery) Key() string { return hostWalletKey }

type HostWalletHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *HostWalletHandler) Handle(ctx context.Context, q HostWalletQuery) (dto.WalletDTO, error) {
	hostID := strings.TrimSpace(q.HostID)
	if hostID == "" {
		return dto.WalletDTO{}, handlersupport.Required("host_id")
	}
	currency, err := money.ParseCurrency(q.Currency)
	if err != nil {
		return dto.WalletDTO{}, &handlersupport.ArgumentError{Field: "currency", Reason: err.Error()}
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.WalletDTO{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	balance, err := unit.Wallet().Balance(execCtx, hostID, currency)
	if err != nil {
		return dto.WalletDTO{}, err
	}
	entries, err := unit.Wallet().Entries(execCtx, hostID)
	if err != nil {
		return dto.WalletDTO{}, err
	}
	out := dto.WalletDTO{
		HostID:       hostID,
		Currency:     currency.String(),
		BalanceCents: balance,
		Entries:      make([]dto.WalletEntryDTO, 0, len(entries)),
	}
	for _, e := range entries {
		if e.Currency != currency {
			continue
		}
		out.Entries = append(out.Entries, dto.MapWalletEntry(e))
	}
	return out, nil
}

var _ queries.Handler[HostWalletQuery, dto.WalletDTO] = (*HostWalletHandler)(nil)
