package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReductionStatus string

const (
	ReductionPending  ReductionStatus = "PENDING"
	ReductionApproved ReductionStatus = "APPROVED"
	ReductionRejected ReductionStatus = "REJECTED"
)

// NoticeReduction is a downward adjustment to a notice's total. The status
// transition is monotonic and single-use: PENDING goes to APPROVED or
// REJECTED exactly once, and both are terminal. Self-applied reductions are
// created directly in APPROVED.
type NoticeReduction struct {
	ID            string
	NoticeID      string
	TaxpayerID    string
	Amount        decimal.Decimal
	PreviousTotal decimal.Decimal
	NewTotal      decimal.Decimal
	Reason        string
	Status        ReductionStatus
	CreatedByID   int64
	ReviewedByID  *int64
	ReviewedAt    *time.Time
	ReviewNote    *string
	CreatedAt     time.Time
}
