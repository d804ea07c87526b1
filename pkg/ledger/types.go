package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Amount is a signed naira value. Positive credits, negative debits.
type Amount int64

// Int64 returns the raw value.
func (amount Amount) Int64() int64 {
	return int64(amount)
}

// Negated flips the sign.
func (amount Amount) Negated() Amount {
	return -amount
}

// PositiveAmount is a strictly positive naira value used for fund and debit requests.
type PositiveAmount int64

// NewPositiveAmount validates that raw is greater than zero.
func NewPositiveAmount(raw int64) (PositiveAmount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return PositiveAmount(raw), nil
}

// Int64 returns the raw value.
func (amount PositiveAmount) Int64() int64 {
	return int64(amount)
}

// ToAmount converts to a signed amount.
func (amount PositiveAmount) ToAmount() Amount {
	return Amount(amount)
}

// UserID identifies a wallet owner.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// WalletID identifies a wallet row.
type WalletID struct {
	value string
}

// NewWalletID validates a wallet id.
func NewWalletID(raw string) (WalletID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return WalletID{}, fmt.Errorf("%w: empty value", ErrInvalidWalletID)
	}
	return WalletID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id WalletID) String() string {
	return id.value
}

// EntryID identifies a ledger entry.
type EntryID struct {
	value string
}

// NewEntryID validates an entry id.
func NewEntryID(raw string) (EntryID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EntryID{}, fmt.Errorf("%w: empty value", ErrInvalidEntryID)
	}
	return EntryID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id EntryID) String() string {
	return id.value
}

// Reference is the payment provider's transaction reference. It is unique across all entries.
type Reference struct {
	value string
}

// NewReference validates and normalizes a reference.
func NewReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty value", ErrInvalidReference)
	}
	if len(trimmed) > maxReferenceLength {
		return Reference{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidReference, maxReferenceLength)
	}
	return Reference{value: trimmed}, nil
}

// String returns the normalized reference.
func (reference Reference) String() string {
	return reference.value
}

// ServiceLabel names the paid feature a debit pays for (for example NIN_VERIFY).
type ServiceLabel struct {
	value string
}

// NewServiceLabel validates and upper-cases a label.
func NewServiceLabel(raw string) (ServiceLabel, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return ServiceLabel{}, fmt.Errorf("%w: empty value", ErrInvalidServiceLabel)
	}
	return ServiceLabel{value: normalized}, nil
}

// String returns the label.
func (label ServiceLabel) String() string {
	return label.value
}

// MetadataJSON stores free-form diagnostic annotations.
type MetadataJSON struct {
	value string
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = defaultMetadataJSON
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return defaultMetadataJSON
	}
	return metadata.value
}

// EntryKind enumerates ledger entry kinds.
type EntryKind string

const (
	EntryFunding    EntryKind = "FUNDING"
	EntryServiceFee EntryKind = "SERVICE_FEE"
)

// ParseEntryKind validates a stored kind.
func ParseEntryKind(raw string) (EntryKind, error) {
	switch EntryKind(strings.TrimSpace(raw)) {
	case EntryFunding:
		return EntryFunding, nil
	case EntryServiceFee:
		return EntryServiceFee, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryKind, raw)
	}
}

// String returns the stored representation.
func (kind EntryKind) String() string {
	return string(kind)
}

// EntryInput is a validated entry awaiting insertion.
type EntryInput struct {
	walletID  WalletID
	kind      EntryKind
	amount    Amount
	reference *Reference
	metadata  MetadataJSON
	createdAt time.Time
}

// NewEntryInput validates that the amount sign matches the kind.
func NewEntryInput(walletID WalletID, kind EntryKind, amount Amount, reference *Reference, metadata MetadataJSON, createdAt time.Time) (EntryInput, error) {
	if walletID.String() == "" {
		return EntryInput{}, fmt.Errorf("%w: empty value", ErrInvalidWalletID)
	}
	switch kind {
	case EntryFunding:
		if amount <= 0 {
			return EntryInput{}, fmt.Errorf("%w: funding must be positive", ErrInvalidEntryAmount)
		}
	case EntryServiceFee:
		if amount >= 0 {
			return EntryInput{}, fmt.Errorf("%w: service fee must be negative", ErrInvalidEntryAmount)
		}
	default:
		return EntryInput{}, fmt.Errorf("%w: %q", ErrInvalidEntryKind, kind)
	}
	if reference != nil && reference.String() == "" {
		return EntryInput{}, fmt.Errorf("%w: empty value", ErrInvalidReference)
	}
	return EntryInput{
		walletID:  walletID,
		kind:      kind,
		amount:    amount,
		reference: reference,
		metadata:  metadata,
		createdAt: createdAt.UTC(),
	}, nil
}

func (input EntryInput) WalletID() WalletID {
	return input.walletID
}

func (input EntryInput) Kind() EntryKind {
	return input.kind
}

func (input EntryInput) Amount() Amount {
	return input.amount
}

func (input EntryInput) MetadataJSON() MetadataJSON {
	return input.metadata
}

func (input EntryInput) CreatedAt() time.Time {
	return input.createdAt
}

// Reference returns the external reference when present.
func (input EntryInput) Reference() (Reference, bool) {
	if input.reference == nil {
		return Reference{}, false
	}
	return *input.reference, true
}

// Entry is a single immutable line in the ledger.
type Entry struct {
	entryID      EntryID
	walletID     WalletID
	kind         EntryKind
	amount       Amount
	reference    *Reference
	metadata     MetadataJSON
	balanceAfter Amount
	createdAt    time.Time
}

// NewEntry assembles a stored entry.
func NewEntry(entryID EntryID, walletID WalletID, kind EntryKind, amount Amount, reference *Reference, metadata MetadataJSON, balanceAfter Amount, createdAt time.Time) (Entry, error) {
	if entryID.String() == "" {
		return Entry{}, fmt.Errorf("%w: empty value", ErrInvalidEntryID)
	}
	if walletID.String() == "" {
		return Entry{}, fmt.Errorf("%w: empty value", ErrInvalidWalletID)
	}
	if amount == 0 {
		return Entry{}, fmt.Errorf("%w: zero amount", ErrInvalidEntryAmount)
	}
	return Entry{
		entryID:      entryID,
		walletID:     walletID,
		kind:         kind,
		amount:       amount,
		reference:    reference,
		metadata:     metadata,
		balanceAfter: balanceAfter,
		createdAt:    createdAt.UTC(),
	}, nil
}

func (entry Entry) EntryID() EntryID {
	return entry.entryID
}

func (entry Entry) WalletID() WalletID {
	return entry.walletID
}

func (entry Entry) Kind() EntryKind {
	return entry.kind
}

func (entry Entry) Amount() Amount {
	return entry.amount
}

func (entry Entry) MetadataJSON() MetadataJSON {
	return entry.metadata
}

func (entry Entry) BalanceAfter() Amount {
	return entry.balanceAfter
}

func (entry Entry) CreatedAt() time.Time {
	return entry.createdAt
}

// Reference returns the external reference when present.
func (entry Entry) Reference() (Reference, bool) {
	if entry.reference == nil {
		return Reference{}, false
	}
	return *entry.reference, true
}

// FundingResult reports a fund call. AlreadyProcessed is set when the reference was seen before.
type FundingResult struct {
	Amount           PositiveAmount
	AlreadyProcessed bool
}

// DebitResult reports a committed service fee.
type DebitResult struct {
	Debited PositiveAmount
	EntryID EntryID
}

// Store is the persistence contract used by Service.
// InsertEntry must reject rows that would take the wallet below zero
// (ErrBalanceConstraint) and rows reusing a reference (ErrDuplicateReference).
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetOrCreateWalletID(ctx context.Context, userID UserID) (WalletID, error)
	FindWalletID(ctx context.Context, userID UserID) (WalletID, bool, error)
	InsertEntry(ctx context.Context, entryInput EntryInput) (EntryID, error)
	SumBalance(ctx context.Context, walletID WalletID) (Amount, error)
	ListEntries(ctx context.Context, walletID WalletID, limit int) ([]Entry, error)
}
