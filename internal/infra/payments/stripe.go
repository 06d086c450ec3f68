package payments

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"rentspace/internal/app/policies"
	"rentspace/internal/domain/shared/money"
)

const stripeProvider = "stripe"

var ErrStripeNotConfigured = errors.New("payments: stripe secret key is required")

type stripeIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefunds interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// Stripe adapts the PaymentIntents and Refunds APIs to PaymentsPort.
type Stripe struct {
	intents stripeIntents
	refunds stripeRefunds
}

func NewStripe(secretKey string) (*Stripe, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, ErrStripeNotConfigured
	}
	sc := client.New(secretKey, nil)
	return &Stripe{intents: sc.PaymentIntents, refunds: sc.Refunds}, nil
}

func (s *Stripe) CreateIntent(ctx context.Context, req policies.IntentRequest) (policies.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.Amount),
		Currency: stripe.String(strings.ToLower(string(req.Amount.Currency))),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	pi, err := s.intents.New(params)
	if err != nil {
		return policies.Intent{}, mapStripeError(err)
	}
	currency, err := money.ParseCurrency(string(pi.Currency))
	if err != nil {
		return policies.Intent{}, err
	}
	return policies.Intent{
		ID:           pi.ID,
		Status:       mapIntentStatus(pi.Status),
		Amount:       money.Money{Amount: pi.Amount, Currency: currency},
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (s *Stripe) RetrievePayment(ctx context.Context, intentID string) (policies.Payment, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	pi, err := s.intents.Get(intentID, params)
	if err != nil {
		return policies.Payment{}, mapStripeError(err)
	}
	currency, err := money.ParseCurrency(string(pi.Currency))
	if err != nil {
		return policies.Payment{}, err
	}
	out := policies.Payment{
		IntentID:      pi.ID,
		Status:        mapIntentStatus(pi.Status),
		Currency:      currency,
		AmountCents:   pi.Amount,
		CapturedCents: pi.AmountReceived,
	}
	if ch := pi.LatestCharge; ch != nil {
		if ch.AmountCaptured > 0 {
			out.CapturedCents = ch.AmountCaptured
		}
		out.RefundedCents = ch.AmountRefunded
	}
	return out, nil
}

func (s *Stripe) Refund(ctx context.Context, req policies.RefundRequest) (policies.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
		Amount:        stripe.Int64(req.Amount.Amount),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.Reason != "" {
		params.AddMetadata("reason_code", req.Reason)
	}
	r, err := s.refunds.New(params)
	if err != nil {
		return policies.RefundResult{}, mapStripeError(err)
	}
	return policies.RefundResult{
		ID:     r.ID,
		Status: string(r.Status),
		Amount: money.Money{Amount: r.Amount, Currency: req.Amount.Currency},
	}, nil
}

func mapIntentStatus(st stripe.PaymentIntentStatus) policies.PaymentStatus {
	switch st {
	case stripe.PaymentIntentStatusSucceeded:
		return policies.PaymentSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return policies.PaymentProcessing
	case stripe.PaymentIntentStatusCanceled:
		return policies.PaymentCanceled
	default:
		return policies.PaymentRequiresAction
	}
}

// mapStripeError marks rate limits, server errors and transport failures as
// retryable. Everything else is final for the given idempotency key.
func mapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &policies.ProviderError{Provider: stripeProvider, Code: "transport", Retryable: true, Err: err}
	}
	if se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing {
		return &policies.ProviderError{Provider: stripeProvider, Code: string(se.Code), Err: errors.Join(policies.ErrPaymentNotFound, err)}
	}
	retryable := se.HTTPStatusCode == http.StatusTooManyRequests ||
		se.HTTPStatusCode >= http.StatusInternalServerError ||
		se.Type == stripe.ErrorTypeAPI
	code := string(se.Code)
	if code == "" {
		code = string(se.Type)
	}
	return &policies.ProviderError{Provider: stripeProvider, Code: code, Retryable: retryable, Err: err}
}

var _ policies.PaymentsPort = (*Stripe)(nil)
