package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"rentspace/internal/app/policies"
	"rentspace/internal/domain/shared/money"
)

type fakeIntents struct {
	created *stripe.PaymentIntentParams
	intent  *stripe.PaymentIntent
	err     error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = params
	return f.intent, f.err
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.intent, f.err
}

type fakeRefunds struct {
	params *stripe.RefundParams
	err    error
}

func (f *fakeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded, Amount: *params.Amount}, nil
}

func TestStripeCreateIntentPassesKeyAndMetadata(t *testing.T) {
	intents := &fakeIntents{intent: &stripe.PaymentIntent{
		ID:           "pi_1",
		Amount:       3976,
		Currency:     stripe.CurrencyEUR,
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret: "secret",
	}}
	s := &Stripe{intents: intents, refunds: &fakeRefunds{}}

	out, err := s.CreateIntent(context.Background(), policies.IntentRequest{
		IdempotencyKey: "pay_abc",
		Amount:         money.Must(3976, money.EUR),
		Metadata:       map[string]string{"booking_id": "b1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", out.ID)
	assert.Equal(t, policies.PaymentRequiresAction, out.Status)
	assert.Equal(t, money.Must(3976, money.EUR), out.Amount)
	require.NotNil(t, intents.created.IdempotencyKey)
	assert.Equal(t, "pay_abc", *intents.created.IdempotencyKey)
	assert.Equal(t, "b1", intents.created.Metadata["booking_id"])
	assert.Equal(t, "eur", *intents.created.Currency)
}

func TestStripeRetrieveUsesLatestCharge(t *testing.T) {
	intents := &fakeIntents{intent: &stripe.PaymentIntent{
		ID:             "pi_1",
		Amount:         20000,
		AmountReceived: 20000,
		Currency:       stripe.CurrencyCAD,
		Status:         stripe.PaymentIntentStatusSucceeded,
		LatestCharge:   &stripe.Charge{AmountCaptured: 20000, AmountRefunded: 5000},
	}}
	s := &Stripe{intents: intents, refunds: &fakeRefunds{}}

	p, err := s.RetrievePayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, policies.PaymentSucceeded, p.Status)
	assert.Equal(t, money.CAD, p.Currency)
	assert.Equal(t, int64(20000), p.CapturedCents)
	assert.Equal(t, int64(5000), p.RefundedCents)
}

func TestStripeRefundErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "rate limited", err: &stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}, retryable: true},
		{name: "server error", err: &stripe.Error{HTTPStatusCode: http.StatusBadGateway, Type: stripe.ErrorTypeAPI}, retryable: true},
		{name: "card error", err: &stripe.Error{HTTPStatusCode: http.StatusPaymentRequired, Type: stripe.ErrorTypeCard}, retryable: false},
		{name: "transport", err: errors.New("connection reset"), retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refunds := &fakeRefunds{err: tt.err}
			s := &Stripe{intents: &fakeIntents{}, refunds: refunds}
			_, err := s.Refund(context.Background(), policies.RefundRequest{
				IntentID:       "pi_1",
				IdempotencyKey: "refund:b:0:100",
				Amount:         money.Must(100, money.EUR),
			})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, policies.IsRetryable(err))
			assert.Equal(t, "refund:b:0:100", *refunds.params.IdempotencyKey)
		})
	}
}

func TestNewStripeRequiresKey(t *testing.T) {
	_, err := NewStripe(" ")
	assert.ErrorIs(t, err, ErrStripeNotConfigured)
}
