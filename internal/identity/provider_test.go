package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewIdentifier(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		kind    Kind
		raw     string
		wantErr bool
	}{
		{name: "valid nin", kind: KindNIN, raw: "12345678901"},
		{name: "valid bvn with spaces", kind: KindBVN, raw: " 22345678901 "},
		{name: "too short", kind: KindNIN, raw: "1234", wantErr: true},
		{name: "letters", kind: KindNIN, raw: "1234567890a", wantErr: true},
		{name: "unknown kind", kind: Kind("TIN"), raw: "12345678901", wantErr: true},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			identifier, err := NewIdentifier(testCase.kind, testCase.raw)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					test.Fatalf("expected ErrInvalidIdentifier, got %v", err)
				}
				return
			}
			if err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
			if len(identifier.Value()) != identifierLength || identifier.Kind() != testCase.kind {
				test.Fatalf("unexpected identifier %+v", identifier)
			}
		})
	}
}

func TestParseKindAndLabel(test *testing.T) {
	test.Parallel()
	kind, err := ParseKind("bvn")
	if err != nil || kind != KindBVN {
		test.Fatalf("expected BVN, got %q (%v)", kind, err)
	}
	if kind.ServiceLabel() != "BVN_VERIFY" || KindNIN.ServiceLabel() != "NIN_VERIFY" {
		test.Fatalf("unexpected labels")
	}
	if _, err := ParseKind("passport"); !errors.Is(err, ErrInvalidIdentifier) {
		test.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestMaskIdentifier(test *testing.T) {
	test.Parallel()
	testCases := map[string]string{
		"12345678901": "*******8901",
		"1234":        "1234",
		"":            "",
	}
	for raw, expected := range testCases {
		if masked := MaskIdentifier(raw); masked != expected {
			test.Fatalf("MaskIdentifier(%q) = %q, want %q", raw, masked, expected)
		}
	}
}

func TestMockProvider(test *testing.T) {
	test.Parallel()
	provider := NewMockProvider(0)
	record, err := provider.FetchByBVN(context.Background(), "22345678901")
	if err != nil || record.FirstName != "JANE" {
		test.Fatalf("unexpected bvn record %+v (%v)", record, err)
	}
	if _, err := provider.FetchByNIN(context.Background(), MockNotFoundNIN); !errors.Is(err, ErrIdentityNotFound) {
		test.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}

	slow := NewMockProvider(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := slow.FetchByNIN(ctx, "12345678901"); !errors.Is(err, ErrProviderUnavailable) {
		test.Fatalf("expected ErrProviderUnavailable on cancelled context, got %v", err)
	}
}
