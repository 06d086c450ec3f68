package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentspace/internal/app/commands"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/middleware"
	"rentspace/internal/app/outbox"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/fees"
	domainlistings "rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/daterange"
)

const requestBookingKey = "booking.request"

type RequestBookingCommand struct {
	ListingID       string
	GuestID         string
	Start           time.Time
	End             time.Time
	IdempotencyKeyV string
}

func (c RequestBookingCommand) Key() string { return requestBookingKey }

func (c RequestBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestBookingCommand) ResultPrototype() any { return &RequestBookingResult{} }

func (c RequestBookingCommand) Validate() error {
	if strings.TrimSpace(c.ListingID) == "" {
		return handlersupport.Required("listing_id")
	}
	if strings.TrimSpace(c.GuestID) == "" {
		return handlersupport.Required("guest_id")
	}
	return nil
}

type RequestBookingResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Region    string `json:"region"`
	Track     string `json:"track"`
}

type RequestBookingHandler struct {
	UoWFactory  uow.UoWFactory
	Encoder     outbox.EventEncoder
	Logger      *slog.Logger
	Now         func() time.Time
	IDGenerator func() string
}

func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (res *RequestBookingResult, err error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	span, err := daterange.New(cmd.Start, cmd.End)
	if err != nil {
		return nil, err
	}
	now := nowOrDefault(h.Now)
	if err := domainbooking.ValidateSpan(span, now); err != nil {
		return nil, err
	}

	unit, execCtx, finish, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer func() { err = finish(err) }()

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	// Region is resolved up front so a Canadian listing without a province
	// never reaches payment.
	region, err := fees.InferRegion(listing.RegionInput())
	if err != nil {
		return nil, err
	}
	base, err := listing.BasePrice(span)
	if err != nil {
		return nil, err
	}

	booking, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(h.newID()),
		ListingID: listing.ID,
		HostID:    listing.Host,
		GuestID:   cmd.GuestID,
		Span:      span,
		Region:    region,
		BasePrice: base,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(execCtx, booking); err != nil {
		return nil, err
	}
	if err := outbox.Drain(execCtx, unit.Outbox(), h.Encoder, booking); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking requested", "booking_id", booking.ID, "listing_id", listing.ID, "region", region, "track", booking.Track)
	}
	return &RequestBookingResult{
		BookingID: string(booking.ID),
		Status:    string(booking.State),
		Region:    string(region),
		Track:     string(booking.Track),
	}, nil
}

func (h *RequestBookingHandler) newID() string {
	if h.IDGenerator != nil {
		return h.IDGenerator()
	}
	return uuid.NewString()
}

var _ commands.Handler[RequestBookingCommand, *RequestBookingResult] = (*RequestBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*RequestBookingCommand)(nil)
