package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Service is the only writer of the ledger. It turns structural store
// failures into domain errors and keeps raw store errors out of its results.
type Service struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// FundWallet appends a FUNDING entry keyed by the provider reference.
// A reference that was already recorded is reported as AlreadyProcessed with a nil error.
func (service *Service) FundWallet(ctx context.Context, userID UserID, amount PositiveAmount, reference Reference) (FundingResult, error) {
	now := service.nowFn().UTC()
	storeError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		walletID, err := transactionStore.GetOrCreateWalletID(ctx, userID)
		if err != nil {
			return err
		}
		metadata, err := buildMetadata(map[string]string{metadataKeyDate: now.Format(time.RFC3339)})
		if err != nil {
			return err
		}
		entryReference := reference
		entryInput, err := NewEntryInput(walletID, EntryFunding, amount.ToAmount(), &entryReference, metadata, now)
		if err != nil {
			return err
		}
		_, err = transactionStore.InsertEntry(ctx, entryInput)
		return err
	})
	logEntry := OperationLog{
		Operation: operationFund,
		UserID:    userID,
		Amount:    amount.ToAmount(),
		Reference: reference,
	}
	if errors.Is(storeError, ErrDuplicateReference) {
		logEntry.Status = operationStatusDuplicate
		service.logOperation(ctx, logEntry)
		return FundingResult{Amount: amount, AlreadyProcessed: true}, nil
	}
	logEntry.Error = storeError
	service.logOperation(ctx, logEntry)
	if storeError != nil {
		return FundingResult{}, WrapError(errorOperationService, errorSubjectWallet, errorCodeFailed, ErrFundingFailed)
	}
	return FundingResult{Amount: amount}, nil
}

// DebitWallet appends a SERVICE_FEE entry. The store's non-negative balance
// constraint decides whether the debit commits.
func (service *Service) DebitWallet(ctx context.Context, userID UserID, amount PositiveAmount, label ServiceLabel) (DebitResult, error) {
	now := service.nowFn().UTC()
	var entryID EntryID
	storeError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		walletID, err := transactionStore.GetOrCreateWalletID(ctx, userID)
		if err != nil {
			return err
		}
		metadata, err := buildMetadata(map[string]string{
			metadataKeyService: label.String(),
			metadataKeyDate:    now.Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		entryInput, err := NewEntryInput(walletID, EntryServiceFee, amount.ToAmount().Negated(), nil, metadata, now)
		if err != nil {
			return err
		}
		entryID, err = transactionStore.InsertEntry(ctx, entryInput)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation:    operationDebit,
		UserID:       userID,
		Amount:       amount.ToAmount().Negated(),
		ServiceLabel: label,
		Error:        storeError,
	})
	if errors.Is(storeError, ErrBalanceConstraint) {
		return DebitResult{}, WrapError(errorOperationService, errorSubjectWallet, errorCodeInsufficient, ErrInsufficientBalance)
	}
	if storeError != nil {
		return DebitResult{}, WrapError(errorOperationService, errorSubjectWallet, errorCodeFailed, ErrDebitFailed)
	}
	return DebitResult{Debited: amount, EntryID: entryID}, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func buildMetadata(values map[string]string) (MetadataJSON, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return MetadataJSON{}, fmt.Errorf("%w: %v", ErrInvalidMetadataJSON, err)
	}
	return NewMetadataJSON(string(raw))
}
