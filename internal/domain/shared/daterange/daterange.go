package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must be after start")
)

// LongStayThreshold separates hourly rentals from day-or-longer stays.
const LongStayThreshold = 24 * time.Hour

// DateRange represents a half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: start.UTC(), End: end.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.End.IsZero() || dr.Start.IsZero() {
		return ErrInvalidRange
	}
	if !dr.End.After(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Duration() time.Duration {
	return dr.End.Sub(dr.Start)
}

// Hours returns the number of started hours in the range.
func (dr DateRange) Hours() int {
	d := dr.Duration()
	hours := int(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours
}

// Nights returns the number of started 24h periods in the range.
func (dr DateRange) Nights() int {
	d := dr.Duration()
	nights := int(d / LongStayThreshold)
	if d%LongStayThreshold != 0 {
		nights++
	}
	return nights
}

// IsLongStay reports whether the range spans at least a full day.
func (dr DateRange) IsLongStay() bool {
	return dr.Duration() >= LongStayThreshold
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.Start.Before(other.End) && other.Start.Before(dr.End)
}

func (dr DateRange) ContainsTime(t time.Time) bool {
	t = t.UTC()
	return (t.Equal(dr.Start) || t.After(dr.Start)) && t.Before(dr.End)
}

// Canonical is the stable text form used in idempotency keys.
func (dr DateRange) Canonical() string {
	return dr.Start.UTC().Format(time.RFC3339) + "/" + dr.End.UTC().Format(time.RFC3339)
}
