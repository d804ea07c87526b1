package ledger

import (
	"context"
	"sync"
	"testing"
)

type recorderLogger struct {
	mu      sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	logger.entries = append(logger.entries, entry)
}

func TestServiceLogsFundOperation(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	service := mustNewService(test, newMemoryStore(), WithOperationLogger(logger))
	user := mustUserID(test, userIDValue)
	reference := mustReference(test, referenceValue)

	if _, err := service.FundWallet(context.Background(), user, mustPositiveAmount(test, 100), reference); err != nil {
		test.Fatalf("fund failed: %v", err)
	}
	if _, err := service.FundWallet(context.Background(), user, mustPositiveAmount(test, 100), reference); err != nil {
		test.Fatalf("replay failed: %v", err)
	}
	if len(logger.entries) != 2 {
		test.Fatalf("expected two log entries, got %d", len(logger.entries))
	}
	first := logger.entries[0]
	if first.Operation != operationFund || first.UserID != user || first.Amount != 100 || first.Reference != reference {
		test.Fatalf("unexpected log entry: %+v", first)
	}
	if first.Status != operationStatusOK || first.Error != nil {
		test.Fatalf("expected ok status, got %+v", first)
	}
	if logger.entries[1].Status != operationStatusDuplicate || logger.entries[1].Error != nil {
		test.Fatalf("expected duplicate status for replay, got %+v", logger.entries[1])
	}
}

func TestServiceLogsRawStoreError(test *testing.T) {
	test.Parallel()
	store := newMemoryStore()
	store.insertError = errStoreFailure
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	_, err := service.DebitWallet(context.Background(), mustUserID(test, userIDValue), mustPositiveAmount(test, 100), mustServiceLabel(test, serviceLabelValue))
	if err == nil {
		test.Fatalf("expected error")
	}
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Status != operationStatusError || entry.Error != errStoreFailure {
		test.Fatalf("expected raw store error in log, got %+v", entry)
	}
	if entry.Amount != -100 || entry.ServiceLabel.String() != serviceLabelValue {
		test.Fatalf("unexpected debit log entry: %+v", entry)
	}
}
