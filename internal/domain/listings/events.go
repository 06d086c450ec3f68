package listings

import (
	"time"

	"rentspace/internal/domain/shared/money"
)

// ListingRegisteredEvent carries the pricing facts a downstream fee audit needs.
type ListingRegisteredEvent struct {
	ListingID ListingID      `json:"listingId"`
	HostID    HostID         `json:"hostId"`
	Currency  money.Currency `json:"currency"`
	Country   string         `json:"country"`
	Province  string         `json:"province,omitempty"`
	At        time.Time      `json:"at"`
}

func (e ListingRegisteredEvent) EventName() string     { return "listing.registered" }
func (e ListingRegisteredEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingRegisteredEvent) OccurredAt() time.Time { return e.At }

type ListingOpenedEvent struct {
	ListingID ListingID `json:"listingId"`
	At        time.Time `json:"at"`
}

func (e ListingOpenedEvent) EventName() string     { return "listing.opened" }
func (e ListingOpenedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingOpenedEvent) OccurredAt() time.Time { return e.At }
