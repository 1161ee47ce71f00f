package fiatbridge

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/token"
)

// Kind classifies a bridge error.
type Kind int

const (
	KindAuthorization Kind = iota + 1
	KindValidation
	KindState
	KindTransfer
	KindStore
)

// String returns the taxonomy name.
func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindTransfer:
		return "transfer"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel error. Compare with errors.Is against the
// exported Err values.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return "fiatbridge: " + e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

// Sentinel errors.
var (
	// Authorization errors
	ErrNotOwner            = newError(KindAuthorization, "not_owner", "not owner")
	ErrNotTransactionOwner = newError(KindAuthorization, "not_transaction_owner", "not transaction owner")

	// Validation errors
	ErrTokenNotSupported        = newError(KindValidation, "token_not_supported", "token not supported")
	ErrDurationTooLong          = newError(KindValidation, "duration_too_long", "duration too long")
	ErrAmountMustBePositive     = newError(KindValidation, "amount_must_be_positive", "amount must be greater than zero")
	ErrAmountExceedsLimit       = newError(KindValidation, "amount_exceeds_limit", "amount exceeds limit")
	ErrFeeTooHigh               = newError(KindValidation, "fee_too_high", "fee too high")
	ErrAmountSpentExceedsLocked = newError(KindValidation, "amount_spent_exceeds_locked", "amount spent exceeds locked amount")
	ErrNegativeAmount           = newError(KindValidation, "negative_amount", "amount must not be negative")
	ErrNegativeDuration         = newError(KindValidation, "negative_duration", "duration must not be negative")

	// State errors
	ErrPaused                    = newError(KindState, "paused", "paused")
	ErrNoActivePermission        = newError(KindState, "no_active_permission", "no active permission")
	ErrPermissionExpired         = newError(KindState, "permission_expired", "permission expired")
	ErrLockExpired               = newError(KindState, "lock_expired", "lock expired")
	ErrLockNotExpired            = newError(KindState, "lock_not_expired", "lock not expired")
	ErrAlreadyProcessed          = newError(KindState, "already_processed", "transaction already processed")
	ErrInsufficientCollectedFees = newError(KindState, "insufficient_collected_fees", "insufficient collected fees")
	ErrTransactionNotFound       = newError(KindState, "transaction_not_found", "transaction not found")

	// Transfer errors
	ErrTransferFailed = newError(KindTransfer, "transfer_failed", "token transfer failed")

	// Store errors
	ErrPermissionNotFound = newError(KindStore, "permission_not_found", "permission not found")
	ErrSettingsNotFound   = newError(KindStore, "settings_not_found", "settings not found")
	ErrAlreadyExists      = newError(KindStore, "already_exists", "already exists")
	ErrOwnerMismatch      = newError(KindStore, "owner_mismatch", "stored owner differs from configured owner")
)

// TransferError reports a failed call on the external token. It matches
// ErrTransferFailed under errors.Is and unwraps to the token's own error.
type TransferError struct {
	Op    string
	Token common.Address
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("fiatbridge: token transfer failed: %s on %s: %v", e.Op, e.Token.Hex(), e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is matches ErrTransferFailed.
func (e *TransferError) Is(target error) bool { return target == ErrTransferFailed }

// Pending reports whether the token call was submitted without a confirmed
// outcome. The bridge keeps its state as if the transfer happened and leaves
// the difference for reconciliation.
func (e *TransferError) Pending() bool { return errors.Is(e.Err, token.ErrTransferPending) }

// KindOf returns the taxonomy of err, or 0 if err is not a bridge error.
func KindOf(err error) Kind {
	var te *TransferError
	if errors.As(err, &te) {
		return KindTransfer
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// IsAuthorizationError reports whether err is an authorization failure.
func IsAuthorizationError(err error) bool { return KindOf(err) == KindAuthorization }

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool { return KindOf(err) == KindValidation }

// IsStateError reports whether err was caused by escrow state.
func IsStateError(err error) bool { return KindOf(err) == KindState }

// IsTransferError reports whether err came from the external token.
func IsTransferError(err error) bool { return KindOf(err) == KindTransfer }

// IsTransferPending reports whether err is a transfer whose outcome is unknown.
func IsTransferPending(err error) bool {
	var te *TransferError
	return errors.As(err, &te) && te.Pending()
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrPermissionNotFound) ||
		errors.Is(err, ErrSettingsNotFound)
}
