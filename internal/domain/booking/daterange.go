package booking

import (
	"errors"
	"time"

	"rentspace/internal/domain/cancellation"
	"rentspace/internal/domain/shared/daterange"
)

var ErrStartInPast = errors.New("booking: start is in the past")

// ValidateSpan rejects spans that are malformed or already started.
func ValidateSpan(dr daterange.DateRange, now time.Time) error {
	if err := dr.Validate(); err != nil {
		return err
	}
	if dr.Start.Before(now.UTC()) {
		return ErrStartInPast
	}
	return nil
}

// TrackFor classifies a span for cancellation purposes.
func TrackFor(dr daterange.DateRange) cancellation.Track {
	if dr.IsLongStay() {
		return cancellation.TrackLongStay
	}
	return cancellation.TrackHourly
}
