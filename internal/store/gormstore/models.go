package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Wallet represents the wallets table. Balance is never stored here.
type Wallet struct {
	WalletID  string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:uniq_wallets_user_id"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Wallet) TableName() string { return "wallets" }

func (wallet *Wallet) BeforeCreate(tx *gorm.DB) error {
	if wallet.WalletID == "" {
		wallet.WalletID = uuid.NewString()
	}
	return nil
}

// LedgerEntry mirrors the append-only ledger_entries table.
// BalanceAfter holds the running balance and carries the no_negative_balance check.
type LedgerEntry struct {
	EntryID      string         `gorm:"type:uuid;primaryKey"`
	WalletID     string         `gorm:"type:uuid;not null;index:idx_ledger_wallet_created,priority:1"`
	Kind         string         `gorm:"type:varchar(32);not null;index:idx_ledger_kind"`
	Amount       int64          `gorm:"not null"`
	Reference    *string        `gorm:"type:varchar(128);uniqueIndex:uniq_ledger_entries_reference"`
	Metadata     datatypes.JSON `gorm:"not null"`
	BalanceAfter int64          `gorm:"not null;check:no_negative_balance,balance_after >= 0"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_ledger_wallet_created,priority:2;index:idx_ledger_created"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (entry *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// User mirrors the users table populated from session claims.
type User struct {
	UserID      string    `gorm:"primaryKey"`
	Email       string    `gorm:"not null;uniqueIndex:uniq_users_email"`
	DisplayName string    `gorm:"not null;default:''"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

// Models lists every table managed by this package in migration order.
func Models() []any {
	return []any{&User{}, &Wallet{}, &LedgerEntry{}}
}
