package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type NoticeStatus string

const (
	NoticeUnpaid  NoticeStatus = "UNPAID"
	NoticePartial NoticeStatus = "PARTIAL"
	NoticePaid    NoticeStatus = "PAID"
)

// Notice is the authoritative record of a taxpayer's fiscal obligation for a
// year. TotalAmount and AmountPaid are mutated only through the ledger
// primitives; Status is always derived from the two amounts.
type Notice struct {
	ID          string
	Number      string
	TaxpayerID  string
	Year        int
	TotalAmount decimal.Decimal
	AmountPaid  decimal.Decimal
	Status      NoticeStatus
	Locked      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Remaining is the amount still owed on the notice.
func (n *Notice) Remaining() decimal.Decimal {
	return n.TotalAmount.Sub(n.AmountPaid)
}
