package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/money"
	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"go.uber.org/zap"
)

// EventChargeSuccess is the only event that funds a wallet.
const EventChargeSuccess = "charge.success"

// Outcome classifies a handled webhook or callback.
type Outcome string

const (
	OutcomeFunded    Outcome = "funded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Funder is the part of the wallet service payments need.
type Funder interface {
	FundWallet(ctx context.Context, userID ledger.UserID, amount ledger.PositiveAmount, reference ledger.Reference) (ledger.FundingResult, error)
}

// UserDirectory resolves a payer email to a wallet owner.
type UserDirectory interface {
	FindUserIDByEmail(ctx context.Context, email string) (ledger.UserID, bool, error)
}

// Result reports what a webhook or callback did to the ledger.
type Result struct {
	Outcome   Outcome
	Event     string
	Reference string
	Naira     int64
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// ProcessorOption configures a WebhookProcessor.
type ProcessorOption func(*WebhookProcessor)

// WithProcessorLogger sets the processor logger.
func WithProcessorLogger(logger *zap.Logger) ProcessorOption {
	return func(processor *WebhookProcessor) {
		if logger != nil {
			processor.logger = logger
		}
	}
}

// WebhookProcessor authenticates provider events and funds the payer's wallet.
type WebhookProcessor struct {
	secretKey string
	funder    Funder
	directory UserDirectory
	logger    *zap.Logger
}

// NewWebhookProcessor wires a WebhookProcessor.
func NewWebhookProcessor(secretKey string, funder Funder, directory UserDirectory, options ...ProcessorOption) (*WebhookProcessor, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", ErrGatewayConfig)
	}
	if funder == nil || directory == nil {
		return nil, fmt.Errorf("%w: funder and directory are required", ledger.ErrInvalidServiceConfig)
	}
	processor := &WebhookProcessor{
		secretKey: secretKey,
		funder:    funder,
		directory: directory,
		logger:    zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(processor)
		}
	}
	return processor, nil
}

// Process handles one webhook delivery. The signature is checked before the
// body is parsed. A redelivered reference yields OutcomeDuplicate.
func (processor *WebhookProcessor) Process(ctx context.Context, body []byte, signature string) (Result, error) {
	if err := VerifySignature(processor.secretKey, body, signature); err != nil {
		processor.logger.Warn("webhook signature rejected", zap.Error(err))
		return Result{}, err
	}
	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	result := Result{Event: event.Event, Reference: event.Data.Reference}
	if event.Event != EventChargeSuccess {
		result.Outcome = OutcomeIgnored
		processor.logger.Info("webhook event ignored", zap.String("event", event.Event))
		return result, nil
	}

	reference, err := ledger.NewReference(event.Data.Reference)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	naira, err := money.NairaFromKobo(event.Data.Amount)
	if err != nil {
		processor.logger.Error("webhook charge not credited, amount needs manual reconciliation",
			zap.String("reference", reference.String()),
			zap.String("payer_email", event.Data.Customer.Email),
			zap.Int64("amount_kobo", event.Data.Amount),
			zap.Error(err),
		)
		return result, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	result.Naira = naira
	userID, found, err := processor.directory.FindUserIDByEmail(ctx, event.Data.Customer.Email)
	if err != nil {
		return result, fmt.Errorf("resolve payer: %w", err)
	}
	if !found {
		processor.logger.Warn("webhook payer not registered", zap.String("reference", reference.String()))
		return result, fmt.Errorf("%w: %s", ErrUnknownPayer, reference.String())
	}
	outcome, err := fund(ctx, processor.funder, userID, naira, reference)
	if err != nil {
		processor.logger.Error("webhook funding failed", zap.String("reference", reference.String()), zap.Error(err))
		return result, err
	}
	result.Outcome = outcome
	processor.logger.Info("webhook processed",
		zap.String("reference", reference.String()),
		zap.String("outcome", string(outcome)),
		zap.Int64("naira", naira),
	)
	return result, nil
}

// Confirmer funds a wallet from the checkout callback by verifying the
// reference with the gateway. It shares references with the webhook, so
// whichever arrives second is a duplicate.
type Confirmer struct {
	gateway Gateway
	funder  Funder
}

// NewConfirmer wires a Confirmer.
func NewConfirmer(gateway Gateway, funder Funder) (*Confirmer, error) {
	if gateway == nil || funder == nil {
		return nil, fmt.Errorf("%w: gateway and funder are required", ledger.ErrInvalidServiceConfig)
	}
	return &Confirmer{gateway: gateway, funder: funder}, nil
}

// Confirm verifies rawReference and credits userID. The charge must have been
// paid from payerEmail, otherwise ErrPayerMismatch is returned and nothing is credited.
func (confirmer *Confirmer) Confirm(ctx context.Context, userID ledger.UserID, payerEmail string, rawReference string) (Result, error) {
	reference, err := ledger.NewReference(rawReference)
	if err != nil {
		return Result{}, err
	}
	payerEmail = strings.TrimSpace(payerEmail)
	if payerEmail == "" {
		return Result{}, fmt.Errorf("%w: payer email is required", ErrInvalidPaymentInput)
	}
	verification, err := confirmer.gateway.Verify(ctx, reference.String())
	if err != nil {
		return Result{}, err
	}
	result := Result{Reference: reference.String()}
	if !verification.Succeeded() {
		return result, fmt.Errorf("%w: status %q", ErrPaymentNotSuccessful, verification.Status)
	}
	if !strings.EqualFold(strings.TrimSpace(verification.Email), payerEmail) {
		return result, fmt.Errorf("%w: %s", ErrPayerMismatch, reference.String())
	}
	naira, err := money.NairaFromKobo(verification.AmountKobo)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrPaymentNotSuccessful, err)
	}
	result.Naira = naira
	outcome, err := fund(ctx, confirmer.funder, userID, naira, reference)
	if err != nil {
		return result, err
	}
	result.Outcome = outcome
	return result, nil
}

func fund(ctx context.Context, funder Funder, userID ledger.UserID, naira int64, reference ledger.Reference) (Outcome, error) {
	amount, err := ledger.NewPositiveAmount(naira)
	if err != nil {
		return "", err
	}
	funding, err := funder.FundWallet(ctx, userID, amount, reference)
	if err != nil {
		return "", err
	}
	if funding.AlreadyProcessed {
		return OutcomeDuplicate, nil
	}
	return OutcomeFunded, nil
}
