// Package ledger holds the pure arithmetic behind the notice ledger
// primitives. The database layer runs these functions inside a transaction
// holding a row lock on the notice, so the checks here are authoritative:
// every committed mutation went through them against the latest state.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
)

// State is the post-mutation image of a notice's amounts.
type State struct {
	TotalAmount decimal.Decimal
	AmountPaid  decimal.Decimal
	Status      models.NoticeStatus
}

// StatusFor derives the notice status from its amounts:
// paid >= total => PAID, 0 < paid < total => PARTIAL, paid = 0 => UNPAID.
func StatusFor(total, paid decimal.Decimal) models.NoticeStatus {
	switch {
	case paid.Sign() > 0 && paid.GreaterThanOrEqual(total):
		return models.NoticePaid
	case paid.Sign() > 0:
		return models.NoticePartial
	default:
		return models.NoticeUnpaid
	}
}

// ApplyPaymentDelta credits amount against a notice currently at
// (total, paid). Fails with an Overpayment conflict when the amount exceeds
// what remains owed.
func ApplyPaymentDelta(total, paid, amount decimal.Decimal) (State, error) {
	if amount.Sign() <= 0 {
		return State{}, apperr.Validation("payment amount must be positive")
	}
	remaining := total.Sub(paid)
	if amount.GreaterThan(remaining) {
		return State{}, apperr.Conflict(apperr.ReasonOverpayment,
			"payment of "+amount.String()+" exceeds remaining balance of "+remaining.String())
	}
	newPaid := paid.Add(amount)
	return State{
		TotalAmount: total,
		AmountPaid:  newPaid,
		Status:      StatusFor(total, newPaid),
	}, nil
}

// ApplyTotalDelta reduces the total owed by amount. The new total may never
// go negative, and may never drop below what has already been paid.
func ApplyTotalDelta(total, paid, amount decimal.Decimal) (State, error) {
	if amount.Sign() <= 0 {
		return State{}, apperr.Validation("reduction amount must be positive")
	}
	newTotal := total.Sub(amount)
	if newTotal.Sign() < 0 {
		return State{}, apperr.Conflict(apperr.ReasonReductionTooLarge,
			"reduction of "+amount.String()+" exceeds the notice total of "+total.String())
	}
	if newTotal.LessThan(paid) {
		return State{}, apperr.Conflict(apperr.ReasonBelowPaidAmount,
			"reduction would drop the total below the "+paid.String()+" already paid")
	}
	return State{
		TotalAmount: newTotal,
		AmountPaid:  paid,
		Status:      StatusFor(newTotal, paid),
	}, nil
}
