package ledger

const (
	operationGetBalance      = "get_balance"
	operationFund            = "fund"
	operationDebit           = "debit"
	operationGetTransactions = "get_transactions"

	operationStatusOK        = "ok"
	operationStatusDuplicate = "duplicate"
	operationStatusError     = "error"

	errorOperationService = "service"
	errorSubjectWallet    = "wallet"
	errorSubjectEntries   = "entries"
	errorCodeFailed       = "failed"
	errorCodeInsufficient = "insufficient"
	errorCodeUnavailable  = "unavailable"

	metadataKeyDate    = "date"
	metadataKeyService = "service"

	defaultMetadataJSON = "{}"
	maxReferenceLength  = 128

	// DefaultTransactionsLimit is used when callers pass a non-positive limit.
	DefaultTransactionsLimit = 10
	// MaxTransactionsLimit bounds a single history page.
	MaxTransactionsLimit = 100
)
