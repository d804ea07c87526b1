package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"go.uber.org/zap"
)

// DefaultFee is the verification fee in naira.
const DefaultFee ledger.PositiveAmount = 100

// State is the terminal state of one verification request.
type State string

const (
	StateCompleted         State = "completed"
	StateInsufficientFunds State = "rejected_insufficient_funds"
	StateDebitFailed       State = "rejected_debit_failed"
	StateLookupFailed      State = "rejected_lookup_failed"
)

// WalletDebiter is the part of the wallet service the verifier needs.
type WalletDebiter interface {
	DebitWallet(ctx context.Context, userID ledger.UserID, amount ledger.PositiveAmount, label ledger.ServiceLabel) (ledger.DebitResult, error)
}

// Result describes how a verification ended. Charged is zero unless the fee committed.
type Result struct {
	State            State
	Charged          ledger.PositiveAmount
	FeeEntryID       string
	MaskedIdentifier string
	SealedIdentifier string
	Record           Record
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithFee overrides DefaultFee.
func WithFee(fee ledger.PositiveAmount) VerifierOption {
	return func(verifier *Verifier) {
		if fee > 0 {
			verifier.fee = fee
		}
	}
}

// WithSealer encrypts the looked-up identifier in completed results.
func WithSealer(sealer *Sealer) VerifierOption {
	return func(verifier *Verifier) {
		verifier.sealer = sealer
	}
}

// WithLogger sets the verifier logger.
func WithLogger(logger *zap.Logger) VerifierOption {
	return func(verifier *Verifier) {
		if logger != nil {
			verifier.logger = logger
		}
	}
}

// WithLookupTimeout bounds the provider call. The debit is not covered.
func WithLookupTimeout(timeout time.Duration) VerifierOption {
	return func(verifier *Verifier) {
		verifier.lookupTimeout = timeout
	}
}

// Verifier charges the fee, then performs the lookup. A failed lookup keeps the fee.
type Verifier struct {
	wallet        WalletDebiter
	provider      Provider
	sealer        *Sealer
	fee           ledger.PositiveAmount
	lookupTimeout time.Duration
	logger        *zap.Logger
}

// NewVerifier wires a Verifier.
func NewVerifier(wallet WalletDebiter, provider Provider, options ...VerifierOption) (*Verifier, error) {
	if wallet == nil {
		return nil, fmt.Errorf("%w: wallet dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: provider dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	verifier := &Verifier{
		wallet:   wallet,
		provider: provider,
		fee:      DefaultFee,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(verifier)
		}
	}
	return verifier, nil
}

// Fee returns the configured verification fee.
func (verifier *Verifier) Fee() ledger.PositiveAmount {
	return verifier.fee
}

// Verify runs one paid lookup. The returned Result always carries a State;
// the error is nil only for StateCompleted.
func (verifier *Verifier) Verify(ctx context.Context, userID ledger.UserID, identifier Identifier) (Result, error) {
	result := Result{MaskedIdentifier: identifier.Masked()}
	fields := []zap.Field{
		zap.String("user_id", userID.String()),
		zap.String("kind", string(identifier.Kind())),
		zap.String("identifier", result.MaskedIdentifier),
	}

	label, err := ledger.NewServiceLabel(identifier.Kind().ServiceLabel())
	if err != nil {
		return result, err
	}
	debit, err := verifier.wallet.DebitWallet(ctx, userID, verifier.fee, label)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			result.State = StateInsufficientFunds
		} else {
			result.State = StateDebitFailed
		}
		verifier.logger.Info("identity verification rejected before lookup", append(fields, zap.String("state", string(result.State)), zap.Error(err))...)
		return result, err
	}
	result.Charged = debit.Debited
	result.FeeEntryID = debit.EntryID.String()

	lookupCtx := ctx
	if verifier.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, verifier.lookupTimeout)
		defer cancel()
	}
	record, err := fetch(lookupCtx, verifier.provider, identifier)
	if err != nil {
		result.State = StateLookupFailed
		verifier.logger.Warn("identity lookup failed after charge", append(fields, zap.Int64("fee", verifier.fee.Int64()), zap.Error(err))...)
		return result, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	if verifier.sealer != nil {
		sealed, err := verifier.sealer.Seal(identifier.Value())
		if err != nil {
			result.State = StateLookupFailed
			verifier.logger.Error("identifier sealing failed", append(fields, zap.Error(err))...)
			return result, fmt.Errorf("%w: seal: %w", ErrLookupFailed, err)
		}
		result.SealedIdentifier = sealed
	}
	record.Identifier = result.MaskedIdentifier
	result.Record = record
	result.State = StateCompleted
	verifier.logger.Info("identity verification completed", append(fields, zap.Int64("fee", verifier.fee.Int64()))...)
	return result, nil
}
