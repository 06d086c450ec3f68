package policies

import (
	"context"
	"errors"
	"fmt"

	"rentspace/internal/domain/shared/money"
)

var ErrPaymentNotFound = errors.New("payments: payment not found")

type PaymentStatus string

const (
	PaymentRequiresAction PaymentStatus = "requires_action"
	PaymentProcessing     PaymentStatus = "processing"
	PaymentSucceeded      PaymentStatus = "succeeded"
	PaymentCanceled       PaymentStatus = "canceled"
)

type IntentRequest struct {
	IdempotencyKey string
	Amount         money.Money
	Description    string
	Metadata       map[string]string
}

type Intent struct {
	ID           string
	Status       PaymentStatus
	Amount       money.Money
	ClientSecret string
}

// Payment is the provider's current view of an intent. CapturedCents and
// RefundedCents are authoritative for refund decisions.
type Payment struct {
	IntentID      string
	Status        PaymentStatus
	Currency      money.Currency
	AmountCents   int64
	CapturedCents int64
	RefundedCents int64
}

type RefundRequest struct {
	IntentID       string
	IdempotencyKey string
	Amount         money.Money
	Reason         string
}

type RefundResult struct {
	ID     string
	Status string
	Amount money.Money
}

// PaymentsPort is the provider boundary. Implementations must honor
// IdempotencyKey so a retried call never charges or refunds twice.
type PaymentsPort interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	RetrievePayment(ctx context.Context, intentID string) (Payment, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// ProviderError wraps a provider failure and tells callers whether a retry
// with the same idempotency key is safe.
type ProviderError struct {
	Provider  string
	Code      string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payments: %s %s: %v", e.Provider, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}
