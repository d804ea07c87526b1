package identity

import (
	"errors"
	"testing"
)

func TestSealerRoundTrip(test *testing.T) {
	test.Parallel()
	sealer := mustSealer(test)
	first, err := sealer.Seal("12345678901")
	if err != nil {
		test.Fatalf("seal failed: %v", err)
	}
	second, err := sealer.Seal("12345678901")
	if err != nil {
		test.Fatalf("seal failed: %v", err)
	}
	if first == second {
		test.Fatalf("expected distinct nonces per seal")
	}
	opened, err := sealer.Open(first)
	if err != nil || opened != "12345678901" {
		test.Fatalf("expected round trip, got %q (%v)", opened, err)
	}
}

func TestSealerRejectsTamperingAndForeignKeys(test *testing.T) {
	test.Parallel()
	sealer := mustSealer(test)
	token, err := sealer.Seal("12345678901")
	if err != nil {
		test.Fatalf("seal failed: %v", err)
	}
	tampered := []byte(token)
	if tampered[len(tampered)-1] == 'A' {
		tampered[len(tampered)-1] = 'B'
	} else {
		tampered[len(tampered)-1] = 'A'
	}
	if _, err := sealer.Open(string(tampered)); !errors.Is(err, ErrSealedValueInvalid) {
		test.Fatalf("expected ErrSealedValueInvalid for tampered token, got %v", err)
	}
	if _, err := sealer.Open("short"); !errors.Is(err, ErrSealedValueInvalid) {
		test.Fatalf("expected ErrSealedValueInvalid for short token, got %v", err)
	}

	other, err := NewSealer("a-completely-different-secret")
	if err != nil {
		test.Fatalf("sealer: %v", err)
	}
	if _, err := other.Open(token); !errors.Is(err, ErrSealedValueInvalid) {
		test.Fatalf("expected ErrSealedValueInvalid for foreign key, got %v", err)
	}
}

func TestNewSealerRejectsShortSecret(test *testing.T) {
	test.Parallel()
	if _, err := NewSealer("short"); !errors.Is(err, ErrInvalidSealerSecret) {
		test.Fatalf("expected ErrInvalidSealerSecret, got %v", err)
	}
}
