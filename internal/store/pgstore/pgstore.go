package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintReferenceUnique = "uniq_ledger_entries_reference"
	constraintNoNegative      = "no_negative_balance"
	pgUniqueViolationCode     = "23505"
	pgCheckViolationCode      = "23514"
	errorOperationStore       = "store"
	errorSubjectWallet        = "wallet"
	errorSubjectBalance       = "balance"
	errorSubjectEntry         = "entry"
	errorSubjectTransaction   = "transaction"
	errorCodeBegin            = "begin"
	errorCodeCommit           = "commit"
	errorCodeDuplicate        = "duplicate"
	errorCodeGet              = "get"
	errorCodeInsert           = "insert"
	errorCodeInvalid          = "invalid"
	errorCodeList             = "list"
	errorCodeLock             = "lock"
	errorCodeLookup           = "lookup"
	errorCodeSum              = "sum"

	sqlInsertOrGetWallet = `
		with inserted as (
			insert into wallets(wallet_id, user_id, created_at)
			values (gen_random_uuid(), $1, now())
			on conflict (user_id) do nothing
			returning wallet_id
		)
		select wallet_id::text from inserted
		union all
		select wallet_id::text from wallets where user_id = $1
		limit 1
	`

	sqlSelectWallet = `
		select wallet_id::text from wallets where user_id = $1
	`

	sqlLockWallet = `
		select wallet_id::text from wallets where wallet_id = $1 for update
	`

	sqlSumBalance = `
		select coalesce(sum(amount),0)::bigint from ledger_entries where wallet_id = $1
	`

	sqlInsertEntry = `
		insert into ledger_entries(
			entry_id, wallet_id, kind, amount, reference, metadata, balance_after, created_at
		)
		values(
			gen_random_uuid(), $1, $2, $3, $4,
			coalesce(nullif($5,''),'{}')::jsonb,
			$6, $7
		)
		returning entry_id::text
	`

	sqlListEntries = `
		select
			entry_id::text,
			wallet_id::text,
			kind,
			amount,
			reference,
			coalesce(metadata::text,'{}'),
			balance_after,
			created_at
		from ledger_entries
		where wallet_id = $1
		order by created_at desc, entry_id desc
		limit $2
	`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Store implements ledger.Store using a pgx connection pool (autocommit).
// It expects the schema created by `walletd migrate`.
type Store struct {
	pool *pgxpool.Pool
}

// TxStore implements ledger.Store for an active transaction.
type TxStore struct {
	tx pgx.Tx
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &TxStore{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) GetOrCreateWalletID(ctx context.Context, userID ledger.UserID) (ledger.WalletID, error) {
	return getOrCreateWalletID(ctx, store.pool, userID)
}

func (store *Store) FindWalletID(ctx context.Context, userID ledger.UserID) (ledger.WalletID, bool, error) {
	return findWalletID(ctx, store.pool, userID)
}

// InsertEntry opens its own transaction so the wallet lock covers the balance read.
func (store *Store) InsertEntry(ctx context.Context, entryInput ledger.EntryInput) (ledger.EntryID, error) {
	var entryID ledger.EntryID
	err := store.WithTx(ctx, func(ctx context.Context, txStore ledger.Store) error {
		var insertErr error
		entryID, insertErr = txStore.InsertEntry(ctx, entryInput)
		return insertErr
	})
	return entryID, err
}

func (store *Store) SumBalance(ctx context.Context, walletID ledger.WalletID) (ledger.Amount, error) {
	return sumBalance(ctx, store.pool, walletID)
}

func (store *Store) ListEntries(ctx context.Context, walletID ledger.WalletID, limit int) ([]ledger.Entry, error) {
	return listEntries(ctx, store.pool, walletID, limit)
}

func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, store)
}

func (store *TxStore) GetOrCreateWalletID(ctx context.Context, userID ledger.UserID) (ledger.WalletID, error) {
	return getOrCreateWalletID(ctx, store.tx, userID)
}

func (store *TxStore) FindWalletID(ctx context.Context, userID ledger.UserID) (ledger.WalletID, bool, error) {
	return findWalletID(ctx, store.tx, userID)
}

// InsertEntry locks the wallet row, derives balance_after and inserts. The
// no_negative_balance check rejects an overdraft.
func (store *TxStore) InsertEntry(ctx context.Context, entryInput ledger.EntryInput) (ledger.EntryID, error) {
	var lockedWallet string
	if err := store.tx.QueryRow(ctx, sqlLockWallet, entryInput.WalletID().String()).Scan(&lockedWallet); err != nil {
		return ledger.EntryID{}, wrapStoreError(errorSubjectWallet, errorCodeLock, err)
	}
	balance, err := sumBalance(ctx, store.tx, entryInput.WalletID())
	if err != nil {
		return ledger.EntryID{}, err
	}

	var reference *string
	if referenceValue, ok := entryInput.Reference(); ok {
		value := referenceValue.String()
		reference = &value
	}
	createdAt := entryInput.CreatedAt()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var entryIDValue string
	err = store.tx.QueryRow(ctx, sqlInsertEntry,
		entryInput.WalletID().String(),
		entryInput.Kind().String(),
		entryInput.Amount().Int64(),
		reference,
		entryInput.MetadataJSON().String(),
		balance.Int64()+entryInput.Amount().Int64(),
		createdAt,
	).Scan(&entryIDValue)
	if err != nil {
		return ledger.EntryID{}, classifyInsertError(err)
	}
	entryID, err := ledger.NewEntryID(entryIDValue)
	if err != nil {
		return ledger.EntryID{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return entryID, nil
}

func (store *TxStore) SumBalance(ctx context.Context, walletID ledger.WalletID) (ledger.Amount, error) {
	return sumBalance(ctx, store.tx, walletID)
}

func (store *TxStore) ListEntries(ctx context.Context, walletID ledger.WalletID, limit int) ([]ledger.Entry, error) {
	return listEntries(ctx, store.tx, walletID, limit)
}

// getOrCreateWalletID inserts the wallet or reads the existing one. When a
// concurrent first insert commits while this statement waits on the conflict,
// the statement's snapshot cannot see that row, so the lookup is repeated.
func getOrCreateWalletID(ctx context.Context, db querier, userID ledger.UserID) (ledger.WalletID, error) {
	var walletIDValue string
	err := db.QueryRow(ctx, sqlInsertOrGetWallet, userID.String()).Scan(&walletIDValue)
	if errors.Is(err, pgx.ErrNoRows) {
		walletID, found, findErr := findWalletID(ctx, db, userID)
		if findErr != nil {
			return ledger.WalletID{}, findErr
		}
		if !found {
			return ledger.WalletID{}, wrapStoreError(errorSubjectWallet, errorCodeLookup, pgx.ErrNoRows)
		}
		return walletID, nil
	}
	if err != nil {
		return ledger.WalletID{}, wrapStoreError(errorSubjectWallet, errorCodeLookup, err)
	}
	walletID, err := ledger.NewWalletID(walletIDValue)
	if err != nil {
		return ledger.WalletID{}, wrapStoreError(errorSubjectWallet, errorCodeInvalid, err)
	}
	return walletID, nil
}

func findWalletID(ctx context.Context, db querier, userID ledger.UserID) (ledger.WalletID, bool, error) {
	var walletIDValue string
	err := db.QueryRow(ctx, sqlSelectWallet, userID.String()).Scan(&walletIDValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.WalletID{}, false, nil
	}
	if err != nil {
		return ledger.WalletID{}, false, wrapStoreError(errorSubjectWallet, errorCodeGet, err)
	}
	walletID, err := ledger.NewWalletID(walletIDValue)
	if err != nil {
		return ledger.WalletID{}, false, wrapStoreError(errorSubjectWallet, errorCodeInvalid, err)
	}
	return walletID, true, nil
}

func sumBalance(ctx context.Context, db querier, walletID ledger.WalletID) (ledger.Amount, error) {
	var sum int64
	if err := db.QueryRow(ctx, sqlSumBalance, walletID.String()).Scan(&sum); err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	if sum < 0 {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeInvalid, ledger.ErrBalanceConstraint)
	}
	return ledger.Amount(sum), nil
}

func listEntries(ctx context.Context, db querier, walletID ledger.WalletID, limit int) ([]ledger.Entry, error) {
	rows, err := db.Query(ctx, sqlListEntries, walletID.String(), limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	defer rows.Close()
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return entries, nil
}

func scanEntries(rows pgx.Rows) ([]ledger.Entry, error) {
	entries := make([]ledger.Entry, 0)
	for rows.Next() {
		var (
			entryIDValue  string
			walletIDValue string
			kindValue     string
			amountValue   int64
			referenceRaw  *string
			metadataValue string
			balanceAfter  int64
			createdAt     time.Time
		)
		if err := rows.Scan(
			&entryIDValue,
			&walletIDValue,
			&kindValue,
			&amountValue,
			&referenceRaw,
			&metadataValue,
			&balanceAfter,
			&createdAt,
		); err != nil {
			return nil, err
		}
		entryID, err := ledger.NewEntryID(entryIDValue)
		if err != nil {
			return nil, err
		}
		walletID, err := ledger.NewWalletID(walletIDValue)
		if err != nil {
			return nil, err
		}
		kind, err := ledger.ParseEntryKind(kindValue)
		if err != nil {
			return nil, err
		}
		var reference *ledger.Reference
		if referenceRaw != nil {
			parsed, err := ledger.NewReference(*referenceRaw)
			if err != nil {
				return nil, err
			}
			reference = &parsed
		}
		metadata, err := ledger.NewMetadataJSON(metadataValue)
		if err != nil {
			return nil, err
		}
		entry, err := ledger.NewEntry(entryID, walletID, kind, ledger.Amount(amountValue), reference, metadata, ledger.Amount(balanceAfter), createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func classifyInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintReferenceUnique {
			return wrapStoreError(errorSubjectEntry, errorCodeDuplicate, ledger.ErrDuplicateReference)
		}
		if pgErr.Code == pgCheckViolationCode && pgErr.ConstraintName == constraintNoNegative {
			return wrapStoreError(errorSubjectEntry, errorCodeInsert, ledger.ErrBalanceConstraint)
		}
	}
	return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}
