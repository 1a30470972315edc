package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodCash     = "CASH"
	MethodTransfer = "TRANSFER"
	MethodCheque   = "CHEQUE"
)

// Payment is immutable once created: never updated or deleted.
// ExternalTxnID is the idempotency key for collector-reported payments and is
// unique when present; CollectorID is nil for manual cashier payments, in
// which case Method is one of the CASH/TRANSFER/CHEQUE constants, otherwise
// Method carries the collector's name.
type Payment struct {
	ID            string
	NoticeID      string
	CollectorID   *string
	ExternalTxnID *string
	Amount        decimal.Decimal
	Method        string
	ProofURL      *string
	PaidAt        time.Time
	CreatedByID   *int64
	CreatedAt     time.Time
}

// MethodRequiresProof reports whether a manual payment method must carry a
// stored proof document.
func MethodRequiresProof(method string) bool {
	return method == MethodTransfer || method == MethodCheque
}
