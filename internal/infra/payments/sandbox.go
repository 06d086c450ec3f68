package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rentspace/internal/app/policies"
	"rentspace/internal/domain/shared/money"
)

const sandboxProvider = "sandbox"

var ErrIdempotencyConflict = errors.New("payments: idempotency key reused with different parameters")

type sandboxIntent struct {
	id       string
	key      string
	amount   money.Money
	status   policies.PaymentStatus
	captured int64
	refunded int64
	metadata map[string]string
}

type sandboxRefund struct {
	intentID string
	result   policies.RefundResult
}

// Sandbox is an in-process provider. It honors idempotency keys like a real
// gateway and can inject failures for tests and demos.
type Sandbox struct {
	mu          sync.Mutex
	intents     map[string]*sandboxIntent
	intentKeys  map[string]string
	refundKeys  map[string]sandboxRefund
	autoCapture bool

	failRefunds   int
	failRetryable bool
	refundCalls   int
}

func NewSandbox(autoCapture bool) *Sandbox {
	return &Sandbox{
		intents:     make(map[string]*sandboxIntent),
		intentKeys:  make(map[string]string),
		refundKeys:  make(map[string]sandboxRefund),
		autoCapture: autoCapture,
	}
}

func (s *Sandbox) CreateIntent(ctx context.Context, req policies.IntentRequest) (policies.Intent, error) {
	if req.Amount.Amount <= 0 {
		return policies.Intent{}, &policies.ProviderError{Provider: sandboxProvider, Code: "amount_invalid", Err: money.ErrInvalidAmount}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.IdempotencyKey != "" {
		if id, ok := s.intentKeys[req.IdempotencyKey]; ok {
			in := s.intents[id]
			if in.amount != req.Amount {
				return policies.Intent{}, &policies.ProviderError{Provider: sandboxProvider, Code: "idempotency_error", Err: ErrIdempotencyConflict}
			}
			return in.view(), nil
		}
	}
	in := &sandboxIntent{
		id:       "pi_" + uuid.NewString(),
		key:      req.IdempotencyKey,
		amount:   req.Amount,
		status:   policies.PaymentRequiresAction,
		metadata: copyMetadata(req.Metadata),
	}
	if s.autoCapture {
		in.status = policies.PaymentSucceeded
		in.captured = req.Amount.Amount
	}
	s.intents[in.id] = in
	if req.IdempotencyKey != "" {
		s.intentKeys[req.IdempotencyKey] = in.id
	}
	return in.view(), nil
}

// Capture simulates the guest completing payment. amountCents 0 captures the full amount.
func (s *Sandbox) Capture(ctx context.Context, intentID string, amountCents int64) (policies.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[intentID]
	if !ok {
		return policies.Payment{}, policies.ErrPaymentNotFound
	}
	if amountCents <= 0 || amountCents > in.amount.Amount {
		amountCents = in.amount.Amount
	}
	if in.status != policies.PaymentSucceeded {
		in.status = policies.PaymentSucceeded
		in.captured = amountCents
	}
	return in.payment(), nil
}

func (s *Sandbox) RetrievePayment(ctx context.Context, intentID string) (policies.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[intentID]
	if !ok {
		return policies.Payment{}, policies.ErrPaymentNotFound
	}
	return in.payment(), nil
}

func (s *Sandbox) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refundCalls++
	if s.failRefunds > 0 {
		s.failRefunds--
		return policies.RefundResult{}, &policies.ProviderError{Provider: sandboxProvider, Code: "unavailable", Retryable: s.failRetryable, Err: errors.New("injected failure")}
	}
	if prior, ok := s.refundKeys[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		if prior.intentID != req.IntentID || prior.result.Amount != req.Amount {
			return policies.RefundResult{}, &policies.ProviderError{Provider: sandboxProvider, Code: "idempotency_error", Err: ErrIdempotencyConflict}
		}
		return prior.result, nil
	}
	in, ok := s.intents[req.IntentID]
	if !ok {
		return policies.RefundResult{}, policies.ErrPaymentNotFound
	}
	if req.Amount.Currency != in.amount.Currency {
		return policies.RefundResult{}, &policies.ProviderError{Provider: sandboxProvider, Code: "currency_mismatch", Err: money.ErrCurrencyMismatch}
	}
	if req.Amount.Amount <= 0 || req.Amount.Amount > in.captured-in.refunded {
		return policies.RefundResult{}, &policies.ProviderError{
			Provider: sandboxProvider,
			Code:     "amount_too_large",
			Err:      fmt.Errorf("refund %d exceeds refundable %d", req.Amount.Amount, in.captured-in.refunded),
		}
	}
	in.refunded += req.Amount.Amount
	result := policies.RefundResult{ID: "re_" + uuid.NewString(), Status: "succeeded", Amount: req.Amount}
	if req.IdempotencyKey != "" {
		s.refundKeys[req.IdempotencyKey] = sandboxRefund{intentID: req.IntentID, result: result}
	}
	return result, nil
}

// FailNextRefunds makes the next n Refund calls fail.
func (s *Sandbox) FailNextRefunds(n int, retryable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefunds = n
	s.failRetryable = retryable
}

// RefundCalls counts Refund invocations, failed ones included.
func (s *Sandbox) RefundCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refundCalls
}

func (in *sandboxIntent) view() policies.Intent {
	return policies.Intent{
		ID:           in.id,
		Status:       in.status,
		Amount:       in.amount,
		ClientSecret: in.id + "_secret",
	}
}

func (in *sandboxIntent) payment() policies.Payment {
	return policies.Payment{
		IntentID:      in.id,
		Status:        in.status,
		Currency:      in.amount.Currency,
		AmountCents:   in.amount.Amount,
		CapturedCents: in.captured,
		RefundedCents: in.refunded,
	}
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ policies.PaymentsPort = (*Sandbox)(nil)
