package ledger

import (
	"errors"
	"fmt"
)

// Validation errors. These never reach storage.
var (
	ErrInvalidUserID       = errors.New("invalid user id")
	ErrInvalidWalletID     = errors.New("invalid wallet id")
	ErrInvalidEntryID      = errors.New("invalid entry id")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidEntryAmount  = errors.New("invalid entry amount")
	ErrInvalidEntryKind    = errors.New("invalid entry kind")
	ErrInvalidReference    = errors.New("invalid reference")
	ErrInvalidServiceLabel = errors.New("invalid service label")
	ErrInvalidMetadataJSON = errors.New("invalid metadata json")
	ErrInvalidListLimit    = errors.New("invalid list limit")
)

// Structural store failures. Only the service interprets them.
var (
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrBalanceConstraint  = errors.New("balance constraint violated")
)

// Domain-level error values returned by the wallet service.
var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrFundingFailed        = errors.New("funding failed")
	ErrDebitFailed          = errors.New("debit failed")
	ErrLedgerUnavailable    = errors.New("ledger unavailable")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// IsValidationError reports whether err is one of the validation kinds.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidUserID,
		ErrInvalidWalletID,
		ErrInvalidEntryID,
		ErrInvalidAmount,
		ErrInvalidEntryAmount,
		ErrInvalidEntryKind,
		ErrInvalidReference,
		ErrInvalidServiceLabel,
		ErrInvalidMetadataJSON,
		ErrInvalidListLimit,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
