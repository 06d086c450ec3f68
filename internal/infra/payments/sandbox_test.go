package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspace/internal/app/policies"
	"rentspace/internal/domain/shared/money"
)

func TestSandboxCreateIntentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox(false)
	req := policies.IntentRequest{IdempotencyKey: "pay_1", Amount: money.Must(3976, money.EUR)}

	first, err := sb.CreateIntent(ctx, req)
	require.NoError(t, err)
	second, err := sb.CreateIntent(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, policies.PaymentRequiresAction, first.Status)

	req.Amount = money.Must(4000, money.EUR)
	_, err = sb.CreateIntent(ctx, req)
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestSandboxCaptureAndRefund(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox(false)
	intent, err := sb.CreateIntent(ctx, policies.IntentRequest{IdempotencyKey: "k", Amount: money.Must(20000, money.CAD)})
	require.NoError(t, err)

	_, err = sb.Capture(ctx, intent.ID, 0)
	require.NoError(t, err)

	refund := policies.RefundRequest{IntentID: intent.ID, IdempotencyKey: "refund:b:0:5000", Amount: money.Must(5000, money.CAD)}
	r1, err := sb.Refund(ctx, refund)
	require.NoError(t, err)
	r2, err := sb.Refund(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ID)

	p, err := sb.RetrievePayment(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), p.CapturedCents)
	assert.Equal(t, int64(5000), p.RefundedCents)

	_, err = sb.Refund(ctx, policies.RefundRequest{IntentID: intent.ID, IdempotencyKey: "other", Amount: money.Must(15001, money.CAD)})
	require.Error(t, err)
	assert.False(t, policies.IsRetryable(err))
}

func TestSandboxAutoCapture(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox(true)
	intent, err := sb.CreateIntent(ctx, policies.IntentRequest{IdempotencyKey: "k", Amount: money.Must(100, money.EUR)})
	require.NoError(t, err)
	assert.Equal(t, policies.PaymentSucceeded, intent.Status)

	_, err = sb.RetrievePayment(ctx, "pi_missing")
	assert.ErrorIs(t, err, policies.ErrPaymentNotFound)
}

func TestSandboxInjectedFailures(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox(true)
	intent, err := sb.CreateIntent(ctx, policies.IntentRequest{IdempotencyKey: "k", Amount: money.Must(100, money.EUR)})
	require.NoError(t, err)

	sb.FailNextRefunds(1, true)
	req := policies.RefundRequest{IntentID: intent.ID, IdempotencyKey: "r", Amount: money.Must(50, money.EUR)}
	_, err = sb.Refund(ctx, req)
	assert.True(t, policies.IsRetryable(err))
	_, err = sb.Refund(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, sb.RefundCalls())
}
