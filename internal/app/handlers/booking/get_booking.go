package booking

import (
	"context"
	"sort"
	"strings"

	"rentspace/internal/app/dto"
	handlersupport "rentspace/internal/app/handlers/support"
	"rentspace/internal/app/queries"
	"rentspace/internal/app/uow"
	domainbooking "rentspace/internal/domain/booking"
	domainlistings "rentspace/internal/domain/listings"
)

const (
	getBookingKey   = "booking.get"
	listBookingsKey = "booking.list"
)

type GetBookingQuery struct {
	BookingID string
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.BookingDTO, error) {
	if strings.TrimSpace(q.BookingID) == "" {
		return dto.BookingDTO{}, handlersupport.Required("booking_id")
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingDTO{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	booking, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.BookingDTO{}, err
	}
	return dto.MapBooking(booking), nil
}

// ListBookingsQuery lists bookings for exactly one of HostID or GuestID.
type ListBookingsQuery struct {
	HostID  string
	GuestID string
	Status  string
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

type BookingCollection struct {
	Items []dto.BookingDTO `json:"items"`
}

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (BookingCollection, error) {
	hostID := strings.TrimSpace(q.HostID)
	guestID := strings.TrimSpace(q.GuestID)
	if (hostID == "") == (guestID == "") {
		return BookingCollection{}, &handlersupport.ArgumentError{Field: "host_id", Reason: "exactly one of host_id or guest_id is required"}
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var bookings []*domainbooking.Booking
	if hostID != "" {
		bookings, err = unit.Bookings().ListByHost(execCtx, domainlistings.HostID(hostID))
	} else {
		bookings, err = unit.Bookings().ListByGuest(execCtx, guestID)
	}
	if err != nil {
		return BookingCollection{}, err
	}

	status := strings.ToUpper(strings.TrimSpace(q.Status))
	items := make([]dto.BookingDTO, 0, len(bookings))
	for _, b := range bookings {
		if status != "" && string(b.State) != status {
			continue
		}
		items = append(items, dto.MapBooking(b))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return BookingCollection{Items: items}, nil
}

var _ queries.Handler[GetBookingQuery, dto.BookingDTO] = (*GetBookingHandler)(nil)
var _ queries.Handler[ListBookingsQuery, BookingCollection] = (*ListBookingsHandler)(nil)
