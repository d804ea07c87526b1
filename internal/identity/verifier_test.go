package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	validNIN = "12345678901"
	validBVN = "22345678901"
)

type countingProvider struct {
	inner Provider
	calls int
}

func (provider *countingProvider) FetchByNIN(ctx context.Context, nin string) (Record, error) {
	provider.calls++
	return provider.inner.FetchByNIN(ctx, nin)
}

func (provider *countingProvider) FetchByBVN(ctx context.Context, bvn string) (Record, error) {
	provider.calls++
	return provider.inner.FetchByBVN(ctx, bvn)
}

type failingProvider struct {
	err error
}

func (provider failingProvider) FetchByNIN(context.Context, string) (Record, error) {
	return Record{}, provider.err
}

func (provider failingProvider) FetchByBVN(context.Context, string) (Record, error) {
	return Record{}, provider.err
}

type stubDebiter struct {
	err    error
	labels []string
}

func (debiter *stubDebiter) DebitWallet(_ context.Context, _ ledger.UserID, amount ledger.PositiveAmount, label ledger.ServiceLabel) (ledger.DebitResult, error) {
	debiter.labels = append(debiter.labels, label.String())
	if debiter.err != nil {
		return ledger.DebitResult{}, debiter.err
	}
	entryID, _ := ledger.NewEntryID("entry-1")
	return ledger.DebitResult{Debited: amount, EntryID: entryID}, nil
}

func TestVerifyCompletesAndSealsIdentifier(test *testing.T) {
	test.Parallel()
	wallet, userID := newFundedWallet(test, 5000)
	sealer := mustSealer(test)
	verifier := mustVerifier(test, wallet, NewMockProvider(0), WithSealer(sealer))

	result, err := verifier.Verify(context.Background(), userID, mustIdentifier(test, KindNIN, validNIN))
	if err != nil {
		test.Fatalf("verify failed: %v", err)
	}
	if result.State != StateCompleted || result.Charged != DefaultFee {
		test.Fatalf("unexpected result: %+v", result)
	}
	if result.Record.FirstName != "JOHN" || result.Record.Identifier != "*******8901" {
		test.Fatalf("expected masked mock record, got %+v", result.Record)
	}
	opened, err := sealer.Open(result.SealedIdentifier)
	if err != nil || opened != validNIN {
		test.Fatalf("expected sealed identifier to open to NIN, got %q (%v)", opened, err)
	}
	assertWalletBalance(test, wallet, userID, 4900)
}

func TestVerifyLookupFailureKeepsFee(test *testing.T) {
	test.Parallel()
	wallet, userID := newFundedWallet(test, 5000)
	verifier := mustVerifier(test, wallet, NewMockProvider(0))

	result, err := verifier.Verify(context.Background(), userID, mustIdentifier(test, KindNIN, MockNotFoundNIN))
	if !errors.Is(err, ErrLookupFailed) || !errors.Is(err, ErrIdentityNotFound) {
		test.Fatalf("expected lookup failure wrapping not found, got %v", err)
	}
	if result.State != StateLookupFailed || result.Charged != DefaultFee {
		test.Fatalf("unexpected result: %+v", result)
	}
	assertWalletBalance(test, wallet, userID, 4900)

	entries, err := wallet.GetTransactions(context.Background(), userID, 0)
	if err != nil {
		test.Fatalf("transactions failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Kind() != ledger.EntryServiceFee {
		test.Fatalf("expected fee entry to remain in the ledger, got %d entries", len(entries))
	}
}

func TestVerifyInsufficientBalanceSkipsProvider(test *testing.T) {
	test.Parallel()
	wallet, userID := newFundedWallet(test, 50)
	provider := &countingProvider{inner: NewMockProvider(0)}
	verifier := mustVerifier(test, wallet, provider)

	result, err := verifier.Verify(context.Background(), userID, mustIdentifier(test, KindBVN, validBVN))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		test.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if result.State != StateInsufficientFunds || result.Charged != 0 {
		test.Fatalf("unexpected result: %+v", result)
	}
	if provider.calls != 0 {
		test.Fatalf("provider must not be called, got %d calls", provider.calls)
	}
	assertWalletBalance(test, wallet, userID, 50)
}

func TestVerifyStateTable(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		debitErr  error
		provider  Provider
		kind      Kind
		wantState State
		wantErr   error
		wantLabel string
	}{
		{
			name:      "bvn completes",
			provider:  NewMockProvider(0),
			kind:      KindBVN,
			wantState: StateCompleted,
			wantLabel: "BVN_VERIFY",
		},
		{
			name:      "debit failure",
			debitErr:  ledger.ErrDebitFailed,
			provider:  NewMockProvider(0),
			kind:      KindNIN,
			wantState: StateDebitFailed,
			wantErr:   ledger.ErrDebitFailed,
			wantLabel: "NIN_VERIFY",
		},
		{
			name:      "provider unavailable",
			provider:  failingProvider{err: ErrProviderUnavailable},
			kind:      KindNIN,
			wantState: StateLookupFailed,
			wantErr:   ErrProviderUnavailable,
			wantLabel: "NIN_VERIFY",
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			debiter := &stubDebiter{err: testCase.debitErr}
			verifier := mustVerifier(test, debiter, testCase.provider, WithFee(250))
			userID, _ := ledger.NewUserID("user-1")
			raw := validNIN
			if testCase.kind == KindBVN {
				raw = validBVN
			}
			result, err := verifier.Verify(context.Background(), userID, mustIdentifier(test, testCase.kind, raw))
			if testCase.wantErr == nil && err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErr != nil && !errors.Is(err, testCase.wantErr) {
				test.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
			if result.State != testCase.wantState {
				test.Fatalf("expected state %s, got %s", testCase.wantState, result.State)
			}
			if len(debiter.labels) != 1 || debiter.labels[0] != testCase.wantLabel {
				test.Fatalf("expected one debit labelled %s, got %v", testCase.wantLabel, debiter.labels)
			}
			if testCase.wantState != StateDebitFailed && result.Charged != 250 {
				test.Fatalf("expected configured fee to be charged, got %d", result.Charged)
			}
		})
	}
}

func TestVerifyLookupTimeout(test *testing.T) {
	test.Parallel()
	debiter := &stubDebiter{}
	verifier := mustVerifier(test, debiter, NewMockProvider(time.Second), WithLookupTimeout(10*time.Millisecond))
	userID, _ := ledger.NewUserID("user-1")
	result, err := verifier.Verify(context.Background(), userID, mustIdentifier(test, KindNIN, validNIN))
	if !errors.Is(err, ErrProviderUnavailable) || result.State != StateLookupFailed {
		test.Fatalf("expected timed out lookup, got state=%s err=%v", result.State, err)
	}
}

func TestNewVerifierValidatesDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewVerifier(nil, NewMockProvider(0)); !errors.Is(err, ledger.ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig, got %v", err)
	}
	if _, err := NewVerifier(&stubDebiter{}, nil); !errors.Is(err, ledger.ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig, got %v", err)
	}
}

func newFundedWallet(test *testing.T, amount int64) (*ledger.Service, ledger.UserID) {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(test.TempDir(), "wallet.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.AutoMigrate(db); err != nil {
		test.Fatalf("automigrate failed: %v", err)
	}
	current := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current = current.Add(time.Second)
		return current
	}
	service, err := ledger.NewService(gormstore.New(db), clock)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	userID, _ := ledger.NewUserID("user-1")
	positive, _ := ledger.NewPositiveAmount(amount)
	reference, _ := ledger.NewReference("ref-fund")
	if _, err := service.FundWallet(context.Background(), userID, positive, reference); err != nil {
		test.Fatalf("fund failed: %v", err)
	}
	return service, userID
}

func assertWalletBalance(test *testing.T, wallet *ledger.Service, userID ledger.UserID, expected int64) {
	test.Helper()
	balance, err := wallet.GetBalance(context.Background(), userID)
	if err != nil {
		test.Fatalf("balance failed: %v", err)
	}
	if balance.Int64() != expected {
		test.Fatalf("expected balance %d, got %d", expected, balance)
	}
}

func mustVerifier(test *testing.T, wallet WalletDebiter, provider Provider, options ...VerifierOption) *Verifier {
	test.Helper()
	verifier, err := NewVerifier(wallet, provider, options...)
	if err != nil {
		test.Fatalf("verifier init failed: %v", err)
	}
	return verifier
}

func mustIdentifier(test *testing.T, kind Kind, raw string) Identifier {
	test.Helper()
	identifier, err := NewIdentifier(kind, raw)
	if err != nil {
		test.Fatalf("identifier: %v", err)
	}
	return identifier
}

func mustSealer(test *testing.T) *Sealer {
	test.Helper()
	sealer, err := NewSealer("test-secret-with-enough-bytes")
	if err != nil {
		test.Fatalf("sealer: %v", err)
	}
	return sealer
}
