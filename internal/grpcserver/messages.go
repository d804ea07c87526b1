package grpcserver

// GetBalanceRequest asks for a user's derived balance.
type GetBalanceRequest struct {
	UserID string `json:"user_id"`
}

// BalanceResponse carries a balance in naira.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// FundWalletRequest credits a wallet under an external reference.
type FundWalletRequest struct {
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type FundWalletResponse struct {
	Amount           int64 `json:"amount"`
	AlreadyProcessed bool  `json:"already_processed"`
	Balance          int64 `json:"balance"`
}

// DebitWalletRequest charges a service fee.
type DebitWalletRequest struct {
	UserID       string `json:"user_id"`
	Amount       int64  `json:"amount"`
	ServiceLabel string `json:"service_label"`
}

type DebitWalletResponse struct {
	EntryID string `json:"entry_id"`
	Debited int64  `json:"debited"`
	Balance int64  `json:"balance"`
}

// ListTransactionsRequest pages newest-first history. Limit 0 selects the default.
type ListTransactionsRequest struct {
	UserID string `json:"user_id"`
	Limit  int32  `json:"limit"`
}

type ListTransactionsResponse struct {
	Entries []Entry `json:"entries"`
}

// Entry is the wire form of a ledger entry.
type Entry struct {
	EntryID       string `json:"entry_id"`
	Kind          string `json:"kind"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference,omitempty"`
	MetadataJSON  string `json:"metadata_json"`
	BalanceAfter  int64  `json:"balance_after"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}
