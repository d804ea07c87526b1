package ledger

import (
	"errors"
	"fmt"
	"testing"
)

const (
	operationName    = "store"
	subjectName      = "entry"
	codeName         = "insert"
	baseErrorMessage = "base error"
)

func TestOperationErrorFormatting(test *testing.T) {
	test.Parallel()
	baseError := errors.New(baseErrorMessage)
	wrappedError := WrapError(operationName, subjectName, codeName, baseError)
	if wrappedError == nil {
		test.Fatalf("expected wrapped error")
	}
	expected := operationName + "." + subjectName + "." + codeName + ": " + baseErrorMessage
	if wrappedError.Error() != expected {
		test.Fatalf("expected %q, got %q", expected, wrappedError.Error())
	}
	var operationError OperationError
	if !errors.As(wrappedError, &operationError) {
		test.Fatalf("expected OperationError")
	}
	if operationError.Operation() != operationName || operationError.Subject() != subjectName || operationError.Code() != codeName {
		test.Fatalf("unexpected segments: %+v", operationError)
	}
	if !errors.Is(wrappedError, baseError) {
		test.Fatalf("expected wrapped error to unwrap to base")
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError(operationName, subjectName, codeName, nil) != nil {
		test.Fatalf("expected nil wrapped error")
	}
}

func TestIsValidationError(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "wrapped amount", err: fmt.Errorf("%w: zero", ErrInvalidAmount), want: true},
		{name: "reference", err: ErrInvalidReference, want: true},
		{name: "list limit", err: WrapError("grpc", "entries", "limit", ErrInvalidListLimit), want: true},
		{name: "insufficient", err: ErrInsufficientBalance, want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := IsValidationError(testCase.err); got != testCase.want {
				test.Fatalf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}
