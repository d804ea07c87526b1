package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidEmail indicates an empty or malformed email address.
var ErrInvalidEmail = errors.New("invalid email")

// UpsertUser records the session profile so payers can be resolved by email.
func (store *Store) UpsertUser(ctx context.Context, userID ledger.UserID, email string, displayName string) error {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user := User{
		UserID:      userID.String(),
		Email:       normalizedEmail,
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "updated_at"}),
		}).
		Create(&user).Error
	if err != nil {
		return wrapStoreError(errorSubjectUser, errorCodeUpsert, err)
	}
	return nil
}

// FindUserIDByEmail resolves a payer email. found is false when no user owns the address.
func (store *Store) FindUserIDByEmail(ctx context.Context, email string) (ledger.UserID, bool, error) {
	normalizedEmail, err := normalizeEmail(email)
	if err != nil {
		return ledger.UserID{}, false, err
	}
	var user User
	err = store.db.WithContext(ctx).
		Where("email = ?", normalizedEmail).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.UserID{}, false, nil
	}
	if err != nil {
		return ledger.UserID{}, false, wrapStoreError(errorSubjectUser, errorCodeLookup, err)
	}
	userID, err := ledger.NewUserID(user.UserID)
	if err != nil {
		return ledger.UserID{}, false, wrapStoreError(errorSubjectUser, errorCodeInvalid, err)
	}
	return userID, true, nil
}

func normalizeEmail(raw string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return normalized, nil
}
