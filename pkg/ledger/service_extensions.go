package ledger

import (
	"context"
	"fmt"
)

// GetBalance folds the wallet's entries. A user without a wallet has a zero
// balance and no wallet is created.
func (service *Service) GetBalance(ctx context.Context, userID UserID) (Amount, error) {
	walletID, found, err := service.store.FindWalletID(ctx, userID)
	if err != nil {
		return 0, service.readFailure(ctx, operationGetBalance, errorSubjectWallet, userID, err)
	}
	if !found {
		return 0, nil
	}
	balance, err := service.store.SumBalance(ctx, walletID)
	if err != nil {
		return 0, service.readFailure(ctx, operationGetBalance, errorSubjectWallet, userID, err)
	}
	return balance, nil
}

// GetTransactions returns the newest entries first. A non-positive limit
// selects DefaultTransactionsLimit.
func (service *Service) GetTransactions(ctx context.Context, userID UserID, limit int) ([]Entry, error) {
	normalizedLimit, err := normalizeTransactionsLimit(limit)
	if err != nil {
		return nil, err
	}
	walletID, found, err := service.store.FindWalletID(ctx, userID)
	if err != nil {
		return nil, service.readFailure(ctx, operationGetTransactions, errorSubjectEntries, userID, err)
	}
	if !found {
		return []Entry{}, nil
	}
	entries, err := service.store.ListEntries(ctx, walletID, normalizedLimit)
	if err != nil {
		return nil, service.readFailure(ctx, operationGetTransactions, errorSubjectEntries, userID, err)
	}
	return entries, nil
}

func (service *Service) readFailure(ctx context.Context, operation string, subject string, userID UserID, cause error) error {
	service.logOperation(ctx, OperationLog{
		Operation: operation,
		UserID:    userID,
		Error:     cause,
	})
	return WrapError(errorOperationService, subject, errorCodeUnavailable, ErrLedgerUnavailable)
}

func normalizeTransactionsLimit(limit int) (int, error) {
	if limit <= 0 {
		return DefaultTransactionsLimit, nil
	}
	if limit > MaxTransactionsLimit {
		return 0, fmt.Errorf("%w: %d > %d", ErrInvalidListLimit, limit, MaxTransactionsLimit)
	}
	return limit, nil
}
