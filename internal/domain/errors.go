package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the core components. Callers classify them
// with errors.Is; none of these are retried automatically.
var (
	// ErrCapacityExceeded: the daily reference counter for a (client, mode,
	// day) tuple would exceed 99.
	ErrCapacityExceeded = errors.New("daily order reference capacity exceeded")

	// ErrStaleCounter: a generated reference collided on write; the counter
	// read was stale. The generator retries this exactly once.
	ErrStaleCounter = errors.New("stale reference counter")

	// ErrDuplicateRef: the ledger refused a write because the order
	// reference already exists. The reference is the global idempotency key.
	ErrDuplicateRef = errors.New("duplicate order reference")

	// ErrNoPriorHolding: no completed purchase with a folio exists for the
	// client and plan, so an additional purchase or redemption cannot be built.
	ErrNoPriorHolding = errors.New("no prior completed purchase with folio")

	// ErrMissingRedeemIntent: a redemption carries neither a full-redeem
	// flag nor an explicit partial-redeem intent.
	ErrMissingRedeemIntent = errors.New("redeem intent not set")

	// ErrStartTooSoon / ErrStartTooLate: recurring start-date window policy.
	ErrStartTooSoon = errors.New("recurring start date under 30 days away")
	ErrStartTooLate = errors.New("recurring start date over 60 days away")

	// ErrBankMismatch: the vendor registered a mandate against a branch that
	// differs from the requested account. Fatal; requires manual review.
	ErrBankMismatch = errors.New("mandate bank branch does not match account")

	// ErrAuthFailed: the gateway refused session authentication.
	ErrAuthFailed = errors.New("gateway authentication failed")

	// ErrNoCalendarData: the trading-date list is exhausted before the
	// requested date.
	ErrNoCalendarData = errors.New("no trading date on or after requested date")
)

// ValidationError reports order fields that violate destination-schema
// constraints (widths, numeric patterns, enumerations).
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order fields: %s", strings.Join(e.Fields, ", "))
}

// VendorRejection is an explicit business failure reported by the vendor.
// It is surfaced with the vendor's remarks and never auto-retried.
type VendorRejection struct {
	Op      string
	Remarks string
}

func (e *VendorRejection) Error() string {
	return fmt.Sprintf("%s rejected by vendor: %s", e.Op, e.Remarks)
}

// TransportError wraps a network or timeout failure on a collaborator call.
// No state has been committed; the call is safe to retry with backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retriable reports whether err is a transport failure that a caller may
// retry. Business rejections and validation failures are never retriable.
func Retriable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
