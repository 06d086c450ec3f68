package refunds

import "rentspace/internal/domain/shared/money"

// ClampRefund limits a desired refund to what is still refundable on the
// provider side: min(desired, charged-alreadyRefunded), never negative.
func ClampRefund(desired, charged, alreadyRefunded int64) int64 {
	remaining := charged - alreadyRefunded
	if remaining <= 0 || desired <= 0 {
		return 0
	}
	if desired > remaining {
		return remaining
	}
	return desired
}

// HostDebit is round(credit*refund/basis), capped at the part of the credit
// not yet debited. basis is the amount the refund policy was evaluated on.
func HostDebit(credit, alreadyDebited, refund, basis int64) int64 {
	left := credit - alreadyDebited
	if left <= 0 || refund <= 0 || basis <= 0 {
		return 0
	}
	debit := money.Proportional(credit, refund, basis)
	if debit > left {
		return left
	}
	return debit
}
