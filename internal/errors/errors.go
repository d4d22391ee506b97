package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Chorus error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"        // 400
	ErrNameTooLong          ErrorCode = "NAME_TOO_LONG"          // 400
	ErrSkillsTooLong        ErrorCode = "SKILLS_TOO_LONG"        // 400
	ErrInvalidEncryptionKey ErrorCode = "INVALID_ENCRYPTION_KEY" // 400
	ErrInvalidTTL           ErrorCode = "INVALID_TTL"            // 400
	ErrInvalidMaxClaimers   ErrorCode = "INVALID_MAX_CLAIMERS"   // 400
	ErrInsufficientFunds    ErrorCode = "INSUFFICIENT_FUNDS"     // 402
	ErrNotRequester         ErrorCode = "NOT_REQUESTER"          // 403
	ErrNotClaimer           ErrorCode = "NOT_CLAIMER"            // 403
	ErrCannotClaimOwn       ErrorCode = "CANNOT_CLAIM_OWN"       // 403
	ErrNotFound             ErrorCode = "NOT_FOUND"              // 404
	ErrAlreadyInitialized   ErrorCode = "ALREADY_INITIALIZED"    // 409
	ErrAlreadyRegistered    ErrorCode = "ALREADY_REGISTERED"     // 409
	ErrAlreadyClaimed       ErrorCode = "ALREADY_CLAIMED"        // 409
	ErrAlreadyDelivered     ErrorCode = "ALREADY_DELIVERED"      // 409
	ErrNotOpen              ErrorCode = "NOT_OPEN"               // 409
	ErrNotClaimed           ErrorCode = "NOT_CLAIMED"            // 409
	ErrNotFulfilled         ErrorCode = "NOT_FULFILLED"          // 409
	ErrCannotCancel         ErrorCode = "CANNOT_CANCEL"          // 409
	ErrHasClaimers          ErrorCode = "HAS_CLAIMERS"           // 409
	ErrCannotClose          ErrorCode = "CANNOT_CLOSE"           // 409
	ErrPayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"      // 413
	ErrInternal             ErrorCode = "INTERNAL"               // 500
)

// ChorusError represents a structured error with code, status, and details.
type ChorusError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ChorusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ChorusError {
	return &ChorusError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNameTooLong creates a 400 error for agent names over the limit.
func NewNameTooLong(max, actual int) *ChorusError {
	return &ChorusError{
		Code:    ErrNameTooLong,
		Status:  400,
		Message: fmt.Sprintf("agent name exceeds %d characters (got %d)", max, actual),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewSkillsTooLong creates a 400 error for skills strings over the limit.
func NewSkillsTooLong(max, actual int) *ChorusError {
	return &ChorusError{
		Code:    ErrSkillsTooLong,
		Status:  400,
		Message: fmt.Sprintf("skills exceed %d characters (got %d)", max, actual),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewInvalidEncryptionKey creates a 400 error for a degenerate key-exchange key.
func NewInvalidEncryptionKey() *ChorusError {
	return &ChorusError{
		Code:    ErrInvalidEncryptionKey,
		Status:  400,
		Message: "encryption key must be a non-zero 32-byte key-exchange public key",
	}
}

// NewInvalidTTL creates a 400 error for a TTL outside the allowed window.
func NewInvalidTTL(min, max, actual int64) *ChorusError {
	return &ChorusError{
		Code:    ErrInvalidTTL,
		Status:  400,
		Message: fmt.Sprintf("ttl_seconds must be in [%d, %d] (got %d)", min, max, actual),
		Details: map[string]any{"min_seconds": min, "max_seconds": max, "actual_seconds": actual},
	}
}

// NewInvalidMaxClaimers creates a 400 error for a claimer cap outside [1, limit].
func NewInvalidMaxClaimers(limit, actual int) *ChorusError {
	return &ChorusError{
		Code:    ErrInvalidMaxClaimers,
		Status:  400,
		Message: fmt.Sprintf("max_claimers must be in [1, %d] (got %d)", limit, actual),
		Details: map[string]any{"limit": limit, "actual": actual},
	}
}

// NewInsufficientFunds creates a 402 error for a wallet that cannot cover a debit.
func NewInsufficientFunds(wallet string, needed, available uint64) *ChorusError {
	return &ChorusError{
		Code:    ErrInsufficientFunds,
		Status:  402,
		Message: fmt.Sprintf("wallet %s has %d units, needs %d", wallet, available, needed),
		Details: map[string]any{"wallet": wallet, "needed": needed, "available": available},
	}
}

// NewNotRequester creates a 403 error when the caller is not the prayer's requester.
func NewNotRequester() *ChorusError {
	return &ChorusError{
		Code:    ErrNotRequester,
		Status:  403,
		Message: "caller is not the requester of this prayer",
	}
}

// NewNotClaimer creates a 403 error when the caller is neither the claimer nor a
// permitted reaper of a stale claim.
func NewNotClaimer() *ChorusError {
	return &ChorusError{
		Code:    ErrNotClaimer,
		Status:  403,
		Message: "caller is not the claimer and the claim is not stale",
	}
}

// NewCannotClaimOwn creates a 403 error when a requester claims their own prayer.
func NewCannotClaimOwn() *ChorusError {
	return &ChorusError{
		Code:    ErrCannotClaimOwn,
		Status:  403,
		Message: "cannot claim your own prayer",
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(kind, identifier string) *ChorusError {
	return &ChorusError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewAlreadyInitialized creates a 409 error when the chain singleton exists.
func NewAlreadyInitialized() *ChorusError {
	return &ChorusError{
		Code:    ErrAlreadyInitialized,
		Status:  409,
		Message: "prayer chain already initialized",
	}
}

// NewAlreadyRegistered creates a 409 error for a duplicate agent registration.
func NewAlreadyRegistered(wallet string) *ChorusError {
	return &ChorusError{
		Code:    ErrAlreadyRegistered,
		Status:  409,
		Message: fmt.Sprintf("agent already registered for wallet %s", wallet),
		Details: map[string]any{"wallet": wallet},
	}
}

// NewAlreadyClaimed creates a 409 error for a duplicate claim by the same wallet.
func NewAlreadyClaimed(prayerID uint64, wallet string) *ChorusError {
	return &ChorusError{
		Code:    ErrAlreadyClaimed,
		Status:  409,
		Message: fmt.Sprintf("wallet %s already holds a claim on prayer %d", wallet, prayerID),
		Details: map[string]any{"prayer_id": prayerID, "wallet": wallet},
	}
}

// NewAlreadyDelivered creates a 409 error when a claim has already received content.
func NewAlreadyDelivered(prayerID uint64, wallet string) *ChorusError {
	return &ChorusError{
		Code:    ErrAlreadyDelivered,
		Status:  409,
		Message: fmt.Sprintf("content already delivered to %s for prayer %d", wallet, prayerID),
		Details: map[string]any{"prayer_id": prayerID, "claimer": wallet},
	}
}

// NewNotOpen creates a 409 error when a prayer is not accepting claims.
func NewNotOpen(status string) *ChorusError {
	return &ChorusError{
		Code:    ErrNotOpen,
		Status:  409,
		Message: fmt.Sprintf("prayer is not open (status %s)", status),
		Details: map[string]any{"status": status},
	}
}

// NewNotClaimed creates a 409 error when a prayer is outside its working window
// (neither Open nor Active).
func NewNotClaimed(status string) *ChorusError {
	return &ChorusError{
		Code:    ErrNotClaimed,
		Status:  409,
		Message: fmt.Sprintf("prayer is not in a claimable state (status %s)", status),
		Details: map[string]any{"status": status},
	}
}

// NewNotFulfilled creates a 409 error when confirm is called before an answer.
func NewNotFulfilled(status string) *ChorusError {
	return &ChorusError{
		Code:    ErrNotFulfilled,
		Status:  409,
		Message: fmt.Sprintf("prayer is not fulfilled (status %s)", status),
		Details: map[string]any{"status": status},
	}
}

// NewCannotCancel creates a 409 error when cancel is called outside Open.
func NewCannotCancel(status string) *ChorusError {
	return &ChorusError{
		Code:    ErrCannotCancel,
		Status:  409,
		Message: fmt.Sprintf("only open prayers can be cancelled (status %s)", status),
		Details: map[string]any{"status": status},
	}
}

// NewHasClaimers creates a 409 error when cancel is attempted with live claims.
func NewHasClaimers(numClaimers int) *ChorusError {
	return &ChorusError{
		Code:    ErrHasClaimers,
		Status:  409,
		Message: fmt.Sprintf("prayer has %d active claim(s); remove them before cancelling", numClaimers),
		Details: map[string]any{"num_claimers": numClaimers},
	}
}

// NewCannotClose creates a 409 error when close is called from a non-terminal status.
func NewCannotClose(status string) *ChorusError {
	return &ChorusError{
		Code:    ErrCannotClose,
		Status:  409,
		Message: fmt.Sprintf("only confirmed or cancelled prayers can be closed (status %s)", status),
		Details: map[string]any{"status": status},
	}
}

// NewPayloadTooLarge creates a 413 error for an encrypted blob over the transport budget.
func NewPayloadTooLarge(max, actual int) *ChorusError {
	return &ChorusError{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("encrypted payload exceeds %d bytes (got %d)", max, actual),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the underlying error is kept in Details for logging.
func NewInternal(err error) *ChorusError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &ChorusError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is (or wraps) a ChorusError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ChorusError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
