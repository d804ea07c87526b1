// Package oplog forwards wallet operation logs to zap.
package oplog

import (
	"context"

	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"go.uber.org/zap"
)

// ZapLogger implements ledger.OperationLogger.
type ZapLogger struct {
	logger *zap.Logger
}

// New wraps logger; nil falls back to a no-op logger.
func New(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Named("wallet")}
}

func (operationLogger *ZapLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID.String()),
		zap.String("status", entry.Status),
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount.Int64()))
	}
	if reference := entry.Reference.String(); reference != "" {
		fields = append(fields, zap.String("reference", reference))
	}
	if label := entry.ServiceLabel.String(); label != "" {
		fields = append(fields, zap.String("service", label))
	}
	if entry.Error != nil {
		operationLogger.logger.Error("wallet operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("wallet operation", fields...)
}
