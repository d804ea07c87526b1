package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintReferenceUnique = "uniq_ledger_entries_reference"
	constraintNoNegative      = "no_negative_balance"
	sqliteReferenceColumn     = "ledger_entries.reference"
	defaultMetadataJSON       = "{}"
	pgUniqueViolationCode     = "23505"
	pgCheckViolationCode      = "23514"
	sqliteConstraintCode      = 19
	sqliteConstraintCheck     = 275
	sqliteConstraintUnique    = 2067
	errorOperationStore       = "store"
	errorSubjectWallet        = "wallet"
	errorSubjectBalance       = "balance"
	errorSubjectEntry         = "entry"
	errorSubjectUser          = "user"
	errorSubjectAdmin         = "admin"
	errorCodeBalance          = "balance"
	errorCodeCount            = "count"
	errorCodeDuplicate        = "duplicate"
	errorCodeGet              = "get"
	errorCodeInsert           = "insert"
	errorCodeInvalid          = "invalid"
	errorCodeList             = "list"
	errorCodeLock             = "lock"
	errorCodeLookup           = "lookup"
	errorCodeSum              = "sum"
	errorCodeUpsert           = "upsert"
)

// Store implements ledger.Store using GORM. It also serves the user
// directory and the admin read model over the same tables.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates every table used by the store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetOrCreateWalletID(ctx context.Context, userID ledger.UserID) (ledger.WalletID, error) {
	candidate := Wallet{UserID: userID.String(), CreatedAt: time.Now().UTC()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&candidate).Error
	if err != nil {
		return ledger.WalletID{}, wrapStoreError(errorSubjectWallet, errorCodeLookup, err)
	}
	walletID, found, err := store.FindWalletID(ctx, userID)
	if err != nil {
		return ledger.WalletID{}, err
	}
	if !found {
		return ledger.WalletID{}, wrapStoreError(errorSubjectWallet, errorCodeLookup, gorm.ErrRecordNotFound)
	}
	return walletID, nil
}

func (store *Store) FindWalletID(ctx context.Context, userID ledger.UserID) (ledger.WalletID, bool, error) {
	var wallet Wallet
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Take(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.WalletID{}, false, nil
	}
	if err != nil {
		return ledger.WalletID{}, false, wrapStoreError(errorSubjectWallet, errorCodeGet, err)
	}
	walletID, err := ledger.NewWalletID(wallet.WalletID)
	if err != nil {
		return ledger.WalletID{}, false, wrapStoreError(errorSubjectWallet, errorCodeInvalid, err)
	}
	return walletID, true, nil
}

// InsertEntry locks the wallet row, derives the running balance and inserts
// the entry. The no_negative_balance check rejects rows that would take the
// wallet below zero.
func (store *Store) InsertEntry(ctx context.Context, entryInput ledger.EntryInput) (ledger.EntryID, error) {
	var reference *string
	referenceValue, hasReference := entryInput.Reference()
	if hasReference {
		value := referenceValue.String()
		reference = &value
	}
	row := LedgerEntry{
		WalletID:  entryInput.WalletID().String(),
		Kind:      entryInput.Kind().String(),
		Amount:    entryInput.Amount().Int64(),
		Reference: reference,
		Metadata:  datatypesJSON(entryInput.MetadataJSON().String()),
		CreatedAt: entryInput.CreatedAt(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var wallet Wallet
		err := transaction.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("wallet_id = ?", row.WalletID).
			Take(&wallet).Error
		if err != nil {
			return wrapStoreError(errorSubjectWallet, errorCodeLock, err)
		}
		var sum sqlSum
		err = transaction.
			Model(&LedgerEntry{}).
			Select("coalesce(sum(amount),0) as total").
			Where("wallet_id = ?", row.WalletID).
			Scan(&sum).Error
		if err != nil {
			return wrapStoreError(errorSubjectBalance, errorCodeSum, err)
		}
		row.BalanceAfter = sum.Total + row.Amount
		return classifyInsertError(transaction.Create(&row).Error)
	})
	if err != nil {
		return ledger.EntryID{}, err
	}
	entryID, err := ledger.NewEntryID(row.EntryID)
	if err != nil {
		return ledger.EntryID{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return entryID, nil
}

func (store *Store) SumBalance(ctx context.Context, walletID ledger.WalletID) (ledger.Amount, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select("coalesce(sum(amount),0) as total").
		Where("wallet_id = ?", walletID.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	if sum.Total < 0 {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeBalance, ledger.ErrBalanceConstraint)
	}
	return ledger.Amount(sum.Total), nil
}

func (store *Store) ListEntries(ctx context.Context, walletID ledger.WalletID, limit int) ([]ledger.Entry, error) {
	var rows []LedgerEntry
	err := store.db.WithContext(ctx).
		Where("wallet_id = ?", walletID.String()).
		Order("created_at DESC").
		Order("entry_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}

	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapLedgerEntry(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapLedgerEntry(row LedgerEntry) (ledger.Entry, error) {
	entryID, err := ledger.NewEntryID(row.EntryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	walletID, err := ledger.NewWalletID(row.WalletID)
	if err != nil {
		return ledger.Entry{}, err
	}
	kind, err := ledger.ParseEntryKind(row.Kind)
	if err != nil {
		return ledger.Entry{}, err
	}
	var reference *ledger.Reference
	if row.Reference != nil {
		parsedReference, err := ledger.NewReference(*row.Reference)
		if err != nil {
			return ledger.Entry{}, err
		}
		reference = &parsedReference
	}
	metadata, err := ledger.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.NewEntry(
		entryID,
		walletID,
		kind,
		ledger.Amount(row.Amount),
		reference,
		metadata,
		ledger.Amount(row.BalanceAfter),
		row.CreatedAt,
	)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func classifyInsertError(err error) error {
	if err == nil {
		return nil
	}
	if isReferenceConflict(err) {
		return wrapStoreError(errorSubjectEntry, errorCodeDuplicate, ledger.ErrDuplicateReference)
	}
	if isBalanceViolation(err) {
		return wrapStoreError(errorSubjectEntry, errorCodeBalance, ledger.ErrBalanceConstraint)
	}
	return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
}

func isReferenceConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintReferenceUnique
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code() == sqliteConstraintUnique {
			return true
		}
		return sqliteErr.Code()&0xFF == sqliteConstraintCode && strings.Contains(sqliteErr.Error(), sqliteReferenceColumn)
	}
	return strings.Contains(err.Error(), constraintReferenceUnique)
}

func isBalanceViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCheckViolationCode && pgErr.ConstraintName == constraintNoNegative
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code() == sqliteConstraintCheck {
			return true
		}
		return sqliteErr.Code()&0xFF == sqliteConstraintCode && strings.Contains(sqliteErr.Error(), constraintNoNegative)
	}
	return strings.Contains(err.Error(), constraintNoNegative)
}
