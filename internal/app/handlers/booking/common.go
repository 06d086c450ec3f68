package booking

import (
	"errors"
	"time"
)

var (
	ErrUnitOfWorkRequired = errors.New("booking: unit of work required")
	ErrPaymentNotCaptured = errors.New("booking: payment not captured")
	ErrPaymentMismatch    = errors.New("booking: provider payment does not match booking")
)

func nowOrDefault(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
