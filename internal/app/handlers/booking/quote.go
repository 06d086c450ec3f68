package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rentspace/internal/app/dto"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/queries"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/fees"
	domainlistings "rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/daterange"
)

const quoteFeesKey = "booking.quote"

type QuoteFeesQuery struct {
	ListingID string
	Start     time.Time
	End       time.Time
}

func (q QuoteFeesQuery) Key() string { return quoteFeesKey }

func (q QuoteFeesQuery) Validate() error {
	if strings.TrimSpace(q.ListingID) == "" {
		return handlersupport.Required("listing_id")
	}
	return nil
}

type QuoteResult struct {
	ListingID string              `json:"listing_id"`
	Region    string              `json:"region"`
	Track     string              `json:"track"`
	Fees      dto.FeeBreakdownDTO `json:"fees"`
}

// QuoteFeesHandler prices a prospective booking without persisting anything.
type QuoteFeesHandler struct {
	UoWFactory uow.UoWFactory
	Fees       *fees.Engine
	Logger     *slog.Logger
}

func (h *QuoteFeesHandler) Handle(ctx context.Context, q QuoteFeesQuery) (*QuoteResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	span, err := daterange.New(q.Start, q.End)
	if err != nil {
		return nil, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return nil, err
	}
	base, err := listing.BasePrice(span)
	if err != nil {
		return nil, err
	}
	breakdown, err := h.engine().Quote(base.Amount, listing.RegionInput())
	if err != nil {
		return nil, err
	}
	if breakdown.NegativeMargin && h.Logger != nil {
		h.Logger.Warn("quote has negative platform margin", "listing_id", q.ListingID, "region", breakdown.Region, "platform_net_cents", breakdown.PlatformNetCents)
	}
	return &QuoteResult{
		ListingID: string(listing.ID),
		Region:    string(breakdown.Region),
		Track:     string(domainbooking.TrackFor(span)),
		Fees:      dto.MapBreakdown(breakdown),
	}, nil
}

func (h *QuoteFeesHandler) engine() *fees.Engine {
	if h.Fees != nil {
		return h.Fees
	}
	return fees.Default()
}

var _ queries.Handler[QuoteFeesQuery, *QuoteResult] = (*QuoteFeesHandler)(nil)
