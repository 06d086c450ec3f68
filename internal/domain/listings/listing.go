package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentspace/internal/domain/fees"
	"rentspace/internal/domain/shared/daterange"
	"rentspace/internal/domain/shared/events"
	"rentspace/internal/domain/shared/money"
)

var (
	ErrAddressRequired = errors.New("listings: address must be provided when activating")
	ErrTitleRequired   = errors.New("listings: title is required")
	ErrRateRequired    = errors.New("listings: an hourly or daily rate is required")
	ErrNegativeRate    = errors.New("listings: rates must be non-negative")
	ErrNotBookable     = errors.New("listings: listing is not active")
	ErrListingNotFound = errors.New("listings: not found")
)

type ListingID string
type HostID string

type ListingState string

const (
	ListingDraft     ListingState = "DRAFT"
	ListingActive    ListingState = "ACTIVE"
	ListingSuspended ListingState = "SUSPENDED"
)

type Address struct {
	Line1    string
	City     string
	Province string
	Country  string
}

func (a Address) Valid() bool {
	return strings.TrimSpace(a.Line1) != "" && strings.TrimSpace(a.City) != "" && strings.TrimSpace(a.Country) != ""
}

// Listing is a rentable space. Rates are minor units of Currency.
type Listing struct {
	ID              ListingID
	Host            HostID
	Title           string
	Address         Address
	Currency        money.Currency
	HourlyRateCents int64
	DailyRateCents  int64
	State           ListingState
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	events.EventRecorder
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
}

type CreateListingParams struct {
	ID              ListingID
	Host            HostID
	Title           string
	Address         Address
	Currency        money.Currency
	HourlyRateCents int64
	DailyRateCents  int64
	Now             time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, errors.New("listings: host is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if err := params.Currency.Validate(); err != nil {
		return nil, err
	}
	if params.HourlyRateCents < 0 || params.DailyRateCents < 0 {
		return nil, ErrNegativeRate
	}
	if params.HourlyRateCents == 0 && params.DailyRateCents == 0 {
		return nil, ErrRateRequired
	}
	listing := &Listing{
		ID:              params.ID,
		Host:            params.Host,
		Title:           strings.TrimSpace(params.Title),
		Address:         normalizeAddress(params.Address),
		Currency:        params.Currency,
		HourlyRateCents: params.HourlyRateCents,
		DailyRateCents:  params.DailyRateCents,
		State:           ListingDraft,
		CreatedAt:       params.Now.UTC(),
		UpdatedAt:       params.Now.UTC(),
	}
	listing.Record(ListingRegisteredEvent{
		ListingID: listing.ID,
		HostID:    listing.Host,
		Currency:  listing.Currency,
		Country:   listing.Address.Country,
		Province:  listing.Address.Province,
		At:        listing.CreatedAt,
	})
	return listing, nil
}

func (l *Listing) Activate(now time.Time) error {
	if l.State == ListingActive {
		return nil
	}
	if !l.Address.Valid() {
		return ErrAddressRequired
	}
	l.State = ListingActive
	l.UpdatedAt = now.UTC()
	l.Record(ListingOpenedEvent{ListingID: l.ID, At: l.UpdatedAt})
	return nil
}

// BasePrice prices a range before fees: hourly rate for short rentals, daily
// rate per started day for long stays. A missing rate falls back to the other one.
func (l *Listing) BasePrice(dr daterange.DateRange) (money.Money, error) {
	if l.State != ListingActive {
		return money.Money{}, ErrNotBookable
	}
	useDaily := dr.IsLongStay() && l.DailyRateCents > 0 || l.HourlyRateCents == 0
	if useDaily {
		return money.Money{Amount: l.DailyRateCents * int64(dr.Nights()), Currency: l.Currency}, nil
	}
	return money.Money{Amount: l.HourlyRateCents * int64(dr.Hours()), Currency: l.Currency}, nil
}

// RegionInput returns the location facts used for fee jurisdiction.
func (l *Listing) RegionInput() fees.RegionInput {
	return fees.RegionInput{
		Currency:     l.Currency,
		Country:      l.Address.Country,
		ProvinceCode: l.Address.Province,
	}
}

func normalizeAddress(a Address) Address {
	return Address{
		Line1:    strings.TrimSpace(a.Line1),
		City:     strings.TrimSpace(a.City),
		Province: strings.ToUpper(strings.TrimSpace(a.Province)),
		Country:  strings.ToUpper(strings.TrimSpace(a.Country)),
	}
}
