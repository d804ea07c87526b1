// Package identity runs paid NIN/BVN lookups: the fee is debited first and
// the provider is only called once the debit has committed.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind selects the registry being queried.
type Kind string

const (
	KindNIN Kind = "NIN"
	KindBVN Kind = "BVN"

	identifierLength = 11
)

var (
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrLookupFailed is returned by Verifier after a charged lookup did not produce a record.
	ErrLookupFailed = errors.New("identity lookup failed")
)

// ParseKind accepts NIN or BVN in any case.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(raw))) {
	case KindNIN:
		return KindNIN, nil
	case KindBVN:
		return KindBVN, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidIdentifier, raw)
	}
}

// ServiceLabel is the ledger label for fees charged against this kind.
func (kind Kind) ServiceLabel() string {
	return string(kind) + "_VERIFY"
}

// Identifier is an 11-digit NIN or BVN.
type Identifier struct {
	kind  Kind
	value string
}

// NewIdentifier validates raw for kind.
func NewIdentifier(kind Kind, raw string) (Identifier, error) {
	if kind != KindNIN && kind != KindBVN {
		return Identifier{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidIdentifier, kind)
	}
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) != identifierLength {
		return Identifier{}, fmt.Errorf("%w: %s must be %d digits", ErrInvalidIdentifier, kind, identifierLength)
	}
	for _, character := range trimmed {
		if character < '0' || character > '9' {
			return Identifier{}, fmt.Errorf("%w: %s must be %d digits", ErrInvalidIdentifier, kind, identifierLength)
		}
	}
	return Identifier{kind: kind, value: trimmed}, nil
}

func (identifier Identifier) Kind() Kind {
	return identifier.kind
}

func (identifier Identifier) Value() string {
	return identifier.value
}

// Masked hides all but the last four digits.
func (identifier Identifier) Masked() string {
	return MaskIdentifier(identifier.value)
}

// Record is the registry data returned for an identifier.
type Record struct {
	Identifier  string `json:"identifier"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	MiddleName  string `json:"middle_name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Phone       string `json:"phone,omitempty"`
	State       string `json:"state,omitempty"`
	LGA         string `json:"lga,omitempty"`
	Photo       string `json:"photo,omitempty"`
}

// Provider looks identifiers up in an external registry. Implementations
// return ErrIdentityNotFound for unknown identifiers and ErrProviderUnavailable
// for transport or vendor failures.
type Provider interface {
	FetchByNIN(ctx context.Context, nin string) (Record, error)
	FetchByBVN(ctx context.Context, bvn string) (Record, error)
}

func fetch(ctx context.Context, provider Provider, identifier Identifier) (Record, error) {
	if identifier.Kind() == KindBVN {
		return provider.FetchByBVN(ctx, identifier.Value())
	}
	return provider.FetchByNIN(ctx, identifier.Value())
}

// MaskIdentifier replaces every character except the last four with '*'.
func MaskIdentifier(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return value
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}
