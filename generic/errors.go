/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error kinds in one place. Each kind has a sentinel for errors.Is and,
  where context helps the caller, a structured type that unwraps to it.

ERROR CATEGORIES:
  1. Pricing errors     - InvalidPriceError, InvalidConsiderationError
  2. Allocation errors  - InvalidObligationError
  3. Recognition errors - NotYetDueError, AlreadyRecognizedError,
                          OverRecognitionError, ErrNotRecognized, ErrAlreadyReversed,
                          ObligationInUseError
  4. Store errors       - not found, duplicate idempotency key, ErrContractExists

None of these are transient: the engine performs no I/O of its own, so a
failed operation must be corrected by the caller, never retried as-is.

USAGE:
  var over *generic.OverRecognitionError
  if errors.As(err, &over) {
      log.Warn().Str("allocated", over.Allocated.String()).Msg("rejected")
  }
  if errors.Is(err, generic.ErrNotYetDue) { ... }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidPrice         = errors.New("invalid transaction price")
	ErrInvalidConsideration = errors.New("invalid variable consideration")
	ErrInvalidObligation    = errors.New("invalid performance obligation")

	ErrNotYetDue         = errors.New("recognition not yet due")
	ErrAlreadyRecognized = errors.New("entry already recognized")
	ErrOverRecognition   = errors.New("recognized amount would exceed allocation")

	// ErrNotRecognized is returned when adjusting or reversing a record that
	// never reached the journal.
	ErrNotRecognized = errors.New("entry not recognized")

	// ErrAlreadyReversed is returned when reversing a record twice.
	ErrAlreadyReversed = errors.New("entry already reversed")

	// ErrDuplicateIdempotencyKey is returned when a journal record with the
	// same idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	ErrContractNotFound   = errors.New("contract not found")
	ErrObligationNotFound = errors.New("obligation not found")
	ErrEntryNotFound      = errors.New("entry not found")

	// ErrContractExists is returned when creating a contract whose ID is
	// already stored.
	ErrContractExists = errors.New("contract already exists")

	// ErrObligationInUse is returned when re-processing would drop an
	// obligation that already has journal records.
	ErrObligationInUse = errors.New("obligation has recognized revenue")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPriceError reports a transaction price that resolved below zero.
// Clamped is always zero; Computed keeps the rejected value for the caller.
type InvalidPriceError struct {
	Computed Amount
	Clamped  Amount
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("transaction price resolved to %s; negative prices are rejected", e.Computed)
}

func (e *InvalidPriceError) Unwrap() error { return ErrInvalidPrice }

// InvalidConsiderationError reports a malformed variable consideration element.
type InvalidConsiderationError struct {
	Index  int
	Reason string
}

func (e *InvalidConsiderationError) Error() string {
	return fmt.Sprintf("variable consideration #%d: %s", e.Index, e.Reason)
}

func (e *InvalidConsiderationError) Unwrap() error { return ErrInvalidConsideration }

// InvalidObligationError reports a candidate with a negative standalone
// selling price.
type InvalidObligationError struct {
	Index                  int
	Description            string
	StandaloneSellingPrice Amount
}

func (e *InvalidObligationError) Error() string {
	return fmt.Sprintf("obligation #%d %q: negative standalone selling price %s",
		e.Index, e.Description, e.StandaloneSellingPrice)
}

func (e *InvalidObligationError) Unwrap() error { return ErrInvalidObligation }

// NotYetDueError is returned when recognition is attempted before the
// entry's recognition date.
type NotYetDueError struct {
	EntryID TransactionID
	DueOn   TimePoint
	AsOf    TimePoint
}

func (e *NotYetDueError) Error() string {
	return fmt.Sprintf("entry %s is due on %s, cannot recognize as of %s", e.EntryID, e.DueOn, e.AsOf)
}

func (e *NotYetDueError) Unwrap() error { return ErrNotYetDue }

// AlreadyRecognizedError is returned when an entry is not in Scheduled state.
type AlreadyRecognizedError struct {
	EntryID TransactionID
	Status  string
}

func (e *AlreadyRecognizedError) Error() string {
	return fmt.Sprintf("entry %s is %s, not scheduled", e.EntryID, e.Status)
}

func (e *AlreadyRecognizedError) Unwrap() error { return ErrAlreadyRecognized }

// OverRecognitionError is returned when an operation would push the
// recognized total of an account past its allocation. The operation is not
// applied.
type OverRecognitionError struct {
	AccountID  AccountID
	Allocated  Amount
	Recognized Amount // Before the rejected operation
	Delta      Amount
}

func (e *OverRecognitionError) Error() string {
	if e.Delta.IsZero() {
		return fmt.Sprintf("obligation %s: recognized %s exceeds allocation %s",
			e.AccountID, e.Recognized, e.Allocated)
	}
	return fmt.Sprintf("obligation %s: recognizing %s on top of %s exceeds allocation %s",
		e.AccountID, e.Delta, e.Recognized, e.Allocated)
}

func (e *OverRecognitionError) Unwrap() error { return ErrOverRecognition }

// ObligationInUseError is returned when a new allocation no longer contains
// an obligation the journal already holds records for.
type ObligationInUseError struct {
	AccountID  AccountID
	Recognized Amount
}

func (e *ObligationInUseError) Error() string {
	return fmt.Sprintf("obligation %s has %s recognized and cannot be removed", e.AccountID, e.Recognized)
}

func (e *ObligationInUseError) Unwrap() error { return ErrObligationInUse }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidConsideration) ||
		errors.Is(err, ErrInvalidObligation) ||
		errors.Is(err, ErrNotYetDue) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the error reflects ledger state that forbids
// the operation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyRecognized) ||
		errors.Is(err, ErrOverRecognition) ||
		errors.Is(err, ErrNotRecognized) ||
		errors.Is(err, ErrAlreadyReversed) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrContractExists) ||
		errors.Is(err, ErrObligationInUse)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrObligationNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
