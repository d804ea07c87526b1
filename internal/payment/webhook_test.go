package payment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "sk_test_webhook"

type recordingFunder struct {
	mutex      sync.Mutex
	references map[string]bool
	calls      []int64
	err        error
}

func newRecordingFunder() *recordingFunder {
	return &recordingFunder{references: map[string]bool{}}
}

func (funder *recordingFunder) FundWallet(_ context.Context, _ ledger.UserID, amount ledger.PositiveAmount, reference ledger.Reference) (ledger.FundingResult, error) {
	funder.mutex.Lock()
	defer funder.mutex.Unlock()
	funder.calls = append(funder.calls, amount.Int64())
	if funder.err != nil {
		return ledger.FundingResult{}, funder.err
	}
	if funder.references[reference.String()] {
		return ledger.FundingResult{Amount: amount, AlreadyProcessed: true}, nil
	}
	funder.references[reference.String()] = true
	return ledger.FundingResult{Amount: amount}, nil
}

type stubDirectory struct {
	users   map[string]string
	lookups int
}

func (directory *stubDirectory) FindUserIDByEmail(_ context.Context, email string) (ledger.UserID, bool, error) {
	directory.lookups++
	raw, ok := directory.users[strings.ToLower(email)]
	if !ok {
		return ledger.UserID{}, false, nil
	}
	userID, err := ledger.NewUserID(raw)
	return userID, err == nil, err
}

func chargeEvent(event string, reference string, kobo int64, email string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q,"amount":%d,"customer":{"email":%q}}}`, event, reference, kobo, email))
}

func newProcessor(test *testing.T, funder Funder, directory UserDirectory) *WebhookProcessor {
	test.Helper()
	processor, err := NewWebhookProcessor(testSecret, funder, directory)
	if err != nil {
		test.Fatalf("processor init failed: %v", err)
	}
	return processor
}

func TestWebhookProcessOutcomes(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name        string
		body        []byte
		signature   func(body []byte) string
		wantOutcome Outcome
		wantErr     error
		wantCalls   []int64
		wantLookups int
	}{
		{
			name:        "charge success funds naira",
			body:        chargeEvent(EventChargeSuccess, "ref_1", 500000, "Ada@Example.com"),
			wantOutcome: OutcomeFunded,
			wantCalls:   []int64{5000},
			wantLookups: 1,
		},
		{
			name:      "missing signature",
			body:      chargeEvent(EventChargeSuccess, "ref_1", 500000, "ada@example.com"),
			signature: func([]byte) string { return "" },
			wantErr:   ErrInvalidSignature,
		},
		{
			name:      "wrong signature",
			body:      chargeEvent(EventChargeSuccess, "ref_1", 500000, "ada@example.com"),
			signature: func(body []byte) string { return Sign("other-secret", body) },
			wantErr:   ErrInvalidSignature,
		},
		{
			name:        "other event ignored",
			body:        chargeEvent("transfer.success", "ref_2", 500000, "ada@example.com"),
			wantOutcome: OutcomeIgnored,
		},
		{
			name:    "invalid json",
			body:    []byte(`{"event":`),
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "fractional naira",
			body:    chargeEvent(EventChargeSuccess, "ref_3", 12345, "ada@example.com"),
			wantErr: ErrMalformedEvent,
		},
		{
			name:    "missing reference",
			body:    chargeEvent(EventChargeSuccess, "", 500000, "ada@example.com"),
			wantErr: ErrMalformedEvent,
		},
		{
			name:        "unknown payer",
			body:        chargeEvent(EventChargeSuccess, "ref_4", 500000, "ghost@example.com"),
			wantErr:     ErrUnknownPayer,
			wantLookups: 1,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			funder := newRecordingFunder()
			directory := &stubDirectory{users: map[string]string{"ada@example.com": "user-ada"}}
			processor := newProcessor(test, funder, directory)
			signature := Sign(testSecret, testCase.body)
			if testCase.signature != nil {
				signature = testCase.signature(testCase.body)
			}
			result, err := processor.Process(context.Background(), testCase.body, signature)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					test.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
			} else if err != nil {
				test.Fatalf("unexpected error: %v", err)
			} else if result.Outcome != testCase.wantOutcome {
				test.Fatalf("expected outcome %s, got %s", testCase.wantOutcome, result.Outcome)
			}
			if len(funder.calls) != len(testCase.wantCalls) {
				test.Fatalf("expected fund calls %v, got %v", testCase.wantCalls, funder.calls)
			}
			for index := range testCase.wantCalls {
				if funder.calls[index] != testCase.wantCalls[index] {
					test.Fatalf("expected fund calls %v, got %v", testCase.wantCalls, funder.calls)
				}
			}
			if directory.lookups != testCase.wantLookups {
				test.Fatalf("expected %d directory lookups, got %d", testCase.wantLookups, directory.lookups)
			}
		})
	}
}

func TestWebhookRedeliveryIsDuplicate(test *testing.T) {
	test.Parallel()
	funder := newRecordingFunder()
	directory := &stubDirectory{users: map[string]string{"ada@example.com": "user-ada"}}
	processor := newProcessor(test, funder, directory)
	body := chargeEvent(EventChargeSuccess, "ref_dup", 200000, "ada@example.com")

	first, err := processor.Process(context.Background(), body, Sign(testSecret, body))
	if err != nil || first.Outcome != OutcomeFunded {
		test.Fatalf("expected first delivery to fund, got %+v (%v)", first, err)
	}
	second, err := processor.Process(context.Background(), body, Sign(testSecret, body))
	if err != nil || second.Outcome != OutcomeDuplicate {
		test.Fatalf("expected duplicate on redelivery, got %+v (%v)", second, err)
	}
}

func TestWebhookFundingFailureIsReturned(test *testing.T) {
	test.Parallel()
	funder := newRecordingFunder()
	funder.err = ledger.ErrFundingFailed
	directory := &stubDirectory{users: map[string]string{"ada@example.com": "user-ada"}}
	processor := newProcessor(test, funder, directory)
	body := chargeEvent(EventChargeSuccess, "ref_fail", 100000, "ada@example.com")

	_, err := processor.Process(context.Background(), body, Sign(testSecret, body))
	if !errors.Is(err, ledger.ErrFundingFailed) {
		test.Fatalf("expected ErrFundingFailed, got %v", err)
	}
}

func TestNewWebhookProcessorValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewWebhookProcessor("", newRecordingFunder(), &stubDirectory{}); !errors.Is(err, ErrGatewayConfig) {
		test.Fatalf("expected ErrGatewayConfig, got %v", err)
	}
	if _, err := NewWebhookProcessor(testSecret, nil, &stubDirectory{}); !errors.Is(err, ledger.ErrInvalidServiceConfig) {
		test.Fatalf("expected ErrInvalidServiceConfig, got %v", err)
	}
}

func TestCallbackAndWebhookCreditOnce(test *testing.T) {
	test.Parallel()
	db := openTestDB(test)
	store := gormstore.New(db)
	current := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current = current.Add(time.Second)
		return current
	}
	wallet, err := ledger.NewService(store, clock)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	userID, _ := ledger.NewUserID("user-ada")
	if err := store.UpsertUser(context.Background(), userID, "ada@example.com", "Ada"); err != nil {
		test.Fatalf("upsert user failed: %v", err)
	}

	gateway := NewMockGateway()
	initialization, err := gateway.Initialize(context.Background(), "ada@example.com", 500000, "")
	if err != nil {
		test.Fatalf("initialize failed: %v", err)
	}
	confirmer, err := NewConfirmer(gateway, wallet)
	if err != nil {
		test.Fatalf("confirmer init failed: %v", err)
	}
	confirmed, err := confirmer.Confirm(context.Background(), userID, "ADA@example.com", initialization.Reference)
	if err != nil || confirmed.Outcome != OutcomeFunded || confirmed.Naira != 5000 {
		test.Fatalf("expected callback to fund 5000, got %+v (%v)", confirmed, err)
	}

	processor := newProcessor(test, wallet, store)
	body := chargeEvent(EventChargeSuccess, initialization.Reference, 500000, "ada@example.com")
	delivered, err := processor.Process(context.Background(), body, Sign(testSecret, body))
	if err != nil || delivered.Outcome != OutcomeDuplicate {
		test.Fatalf("expected webhook to be a duplicate, got %+v (%v)", delivered, err)
	}

	balance, err := wallet.GetBalance(context.Background(), userID)
	if err != nil {
		test.Fatalf("balance failed: %v", err)
	}
	if balance.Int64() != 5000 {
		test.Fatalf("expected balance 5000, got %d", balance)
	}
}

func TestConfirmRejectsFailedPayment(test *testing.T) {
	test.Parallel()
	funder := newRecordingFunder()
	confirmer, err := NewConfirmer(failedGateway{}, funder)
	if err != nil {
		test.Fatalf("confirmer init failed: %v", err)
	}
	userID, _ := ledger.NewUserID("user-ada")
	if _, err := confirmer.Confirm(context.Background(), userID, "ada@example.com", "ref_abandoned"); !errors.Is(err, ErrPaymentNotSuccessful) {
		test.Fatalf("expected ErrPaymentNotSuccessful, got %v", err)
	}
	if len(funder.calls) != 0 {
		test.Fatalf("expected no funding, got %v", funder.calls)
	}
	if _, err := confirmer.Confirm(context.Background(), userID, "ada@example.com", " "); !errors.Is(err, ledger.ErrInvalidReference) {
		test.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestConfirmRejectsChargeFromAnotherPayer(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name       string
		gateway    Gateway
		payerEmail string
		reference  string
		wantErr    error
	}{
		{
			name:       "reference paid by another user",
			gateway:    fixedGateway{verification: Verification{Status: StatusSuccess, AmountKobo: 500000, Email: "bola@example.com"}},
			payerEmail: "ada@example.com",
			reference:  "bola_ref",
			wantErr:    ErrPayerMismatch,
		},
		{
			name:       "verification without payer email",
			gateway:    fixedGateway{verification: Verification{Status: StatusSuccess, AmountKobo: 500000}},
			payerEmail: "ada@example.com",
			reference:  "anonymous_ref",
			wantErr:    ErrPayerMismatch,
		},
		{
			name:       "caller without email",
			gateway:    fixedGateway{verification: Verification{Status: StatusSuccess, AmountKobo: 500000, Email: "ada@example.com"}},
			payerEmail: " ",
			reference:  "ada_ref",
			wantErr:    ErrInvalidPaymentInput,
		},
		{
			name:       "reference never issued by mock gateway",
			gateway:    NewMockGateway(),
			payerEmail: "ada@example.com",
			reference:  "made_up_1",
			wantErr:    ErrPaymentNotSuccessful,
		},
	}
	for _, testCase := range testCases {
		funder := newRecordingFunder()
		confirmer, err := NewConfirmer(testCase.gateway, funder)
		if err != nil {
			test.Fatalf("%s: confirmer init failed: %v", testCase.name, err)
		}
		userID, _ := ledger.NewUserID("user-ada")
		if _, err := confirmer.Confirm(context.Background(), userID, testCase.payerEmail, testCase.reference); !errors.Is(err, testCase.wantErr) {
			test.Fatalf("%s: expected %v, got %v", testCase.name, testCase.wantErr, err)
		}
		if len(funder.calls) != 0 {
			test.Fatalf("%s: expected no funding, got %v", testCase.name, funder.calls)
		}
	}
}

func TestWebhookFractionalAmountIsLoggedForReconciliation(test *testing.T) {
	test.Parallel()
	core, observed := observer.New(zapcore.InfoLevel)
	funder := newRecordingFunder()
	directory := &stubDirectory{users: map[string]string{"ada@example.com": "user-ada"}}
	processor, err := NewWebhookProcessor(testSecret, funder, directory, WithProcessorLogger(zap.New(core)))
	if err != nil {
		test.Fatalf("processor init failed: %v", err)
	}
	body := chargeEvent(EventChargeSuccess, "ps_ref_fraction", 150050, "ada@example.com")
	if _, err := processor.Process(context.Background(), body, Sign(testSecret, body)); !errors.Is(err, ErrMalformedEvent) {
		test.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	if len(funder.calls) != 0 {
		test.Fatalf("expected no funding, got %v", funder.calls)
	}
	errorEntries := observed.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(errorEntries) != 1 {
		test.Fatalf("expected one error entry, got %d", len(errorEntries))
	}
	fields := errorEntries[0].ContextMap()
	if fields["reference"] != "ps_ref_fraction" || fields["payer_email"] != "ada@example.com" || fields["amount_kobo"] != int64(150050) {
		test.Fatalf("expected reconciliation fields, got %v", fields)
	}
}

type fixedGateway struct {
	verification Verification
}

func (fixedGateway) Initialize(context.Context, string, int64, string) (Initialization, error) {
	return Initialization{}, ErrGatewayUnavailable
}

func (gateway fixedGateway) Verify(_ context.Context, reference string) (Verification, error) {
	verification := gateway.verification
	verification.Reference = reference
	return verification, nil
}

type failedGateway struct{}

func (failedGateway) Initialize(context.Context, string, int64, string) (Initialization, error) {
	return Initialization{}, ErrGatewayUnavailable
}

func (failedGateway) Verify(_ context.Context, reference string) (Verification, error) {
	return Verification{Status: "abandoned", AmountKobo: 500000, Reference: reference}, nil
}

func openTestDB(test *testing.T) *gorm.DB {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(test.TempDir(), "payment.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
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
	return db
}
