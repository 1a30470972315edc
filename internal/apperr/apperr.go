// Package apperr defines the error taxonomy shared by the ledger, the
// payment ingestion service, the reduction workflow and the collector
// gateway. Callers branch on Kind and Reason, never on message text.
package apperr

import "errors"

type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindAuth             Kind = "auth"
	KindRateLimited      Kind = "rate_limited"
	KindAlreadyProcessed Kind = "already_processed"
	KindInternal         Kind = "internal"
)

type Reason string

const (
	ReasonNone               Reason = ""
	ReasonOverpayment        Reason = "overpayment"
	ReasonReductionTooLarge  Reason = "reduction_too_large"
	ReasonBelowPaidAmount    Reason = "below_paid_amount"
	ReasonStaleState         Reason = "stale_state"
	ReasonAlreadyPaid        Reason = "already_paid"
	ReasonNoticeLocked       Reason = "notice_locked"
	ReasonProofRequired      Reason = "proof_required"
	ReasonAccessDenied       Reason = "access_denied"
	ReasonNoticeOrTaxpayer   Reason = "notice_or_taxpayer_mismatch"
	ReasonCollectorNotFound  Reason = "collector_not_found"
	ReasonInvalidToken       Reason = "invalid_token"
	ReasonDuplicateTxn       Reason = "duplicate_txn"
	ReasonReductionProcessed Reason = "reduction_processed"
)

type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed error with a human-readable message.
func New(kind Kind, reason Reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

// Wrap attaches a cause to a typed error.
func Wrap(kind Kind, reason Reason, msg string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg, Err: err}
}

func Validation(msg string) *Error { return New(KindValidation, ReasonNone, msg) }

func NotFound(msg string) *Error { return New(KindNotFound, ReasonNone, msg) }

func Conflict(reason Reason, msg string) *Error { return New(KindConflict, reason, msg) }

func Auth(reason Reason, msg string) *Error { return New(KindAuth, reason, msg) }

// KindOf extracts the Kind from err, KindInternal for untyped errors and ""
// for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf extracts the Reason from err, ReasonNone when absent.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonNone
}

// Is reports whether err carries the given kind and reason.
func Is(err error, kind Kind, reason Reason) bool {
	return KindOf(err) == kind && ReasonOf(err) == reason
}
