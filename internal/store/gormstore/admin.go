package gormstore

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/admin"
	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
)

// CountUsers returns the number of known users.
func (store *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := store.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return 0, wrapStoreError(errorSubjectAdmin, errorCodeCount, err)
	}
	return count, nil
}

// CountEntries returns the number of ledger entries across all wallets.
func (store *Store) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	if err := store.db.WithContext(ctx).Model(&LedgerEntry{}).Count(&count).Error; err != nil {
		return 0, wrapStoreError(errorSubjectAdmin, errorCodeCount, err)
	}
	return count, nil
}

// SumAmountByKind returns the signed sum of all entries of kind.
func (store *Store) SumAmountByKind(ctx context.Context, kind ledger.EntryKind) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select("coalesce(sum(amount),0) as total").
		Where("kind = ?", kind.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectAdmin, errorCodeSum, err)
	}
	return sum.Total, nil
}

type activityRow struct {
	EntryID     string
	Kind        string
	Amount      int64
	Reference   *string
	CreatedAt   time.Time
	UserID      string
	Email       *string
	DisplayName *string
}

// RecentActivity returns the newest entries joined with their owner's profile.
func (store *Store) RecentActivity(ctx context.Context, limit int) ([]admin.Activity, error) {
	var rows []activityRow
	err := store.db.WithContext(ctx).
		Table("ledger_entries").
		Select("ledger_entries.entry_id, ledger_entries.kind, ledger_entries.amount, ledger_entries.reference, ledger_entries.created_at, wallets.user_id, users.email, users.display_name").
		Joins("JOIN wallets ON wallets.wallet_id = ledger_entries.wallet_id").
		Joins("LEFT JOIN users ON users.user_id = wallets.user_id").
		Order("ledger_entries.created_at DESC").
		Order("ledger_entries.entry_id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAdmin, errorCodeList, err)
	}
	activity := make([]admin.Activity, 0, len(rows))
	for _, row := range rows {
		kind, err := ledger.ParseEntryKind(row.Kind)
		if err != nil {
			return nil, wrapStoreError(errorSubjectAdmin, errorCodeInvalid, err)
		}
		activity = append(activity, admin.Activity{
			EntryID:     row.EntryID,
			Kind:        kind,
			Amount:      row.Amount,
			Reference:   stringOrEmpty(row.Reference),
			CreatedAt:   row.CreatedAt.UTC(),
			UserID:      row.UserID,
			Email:       stringOrEmpty(row.Email),
			DisplayName: stringOrEmpty(row.DisplayName),
		})
	}
	return activity, nil
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
