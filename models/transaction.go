package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TxDeposit         TransactionType = "deposit"
	TxWithdrawal      TransactionType = "withdrawal"
	TxTournamentEntry TransactionType = "tournament_entry"
	TxReferralBonus   TransactionType = "referral_bonus"
	TxTournamentWin   TransactionType = "tournament_win"
	TxAdminAdjustment TransactionType = "admin_adjustment"
	TxReferral        TransactionType = "referral"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// Transaction is an append-only ledger line. Amount is signed: debits are negative.
// Wallet is empty for an entry fee split across several wallets.
type Transaction struct {
	ID           string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       string              `json:"user_id" gorm:"not null;index"`
	Type         TransactionType     `json:"type" gorm:"type:varchar(32);not null;index"`
	Wallet       string              `json:"wallet,omitempty" gorm:"type:varchar(16)"`
	Amount       decimal.Decimal     `json:"amount" gorm:"type:numeric(12,2);not null"`
	BalanceAfter decimal.NullDecimal `json:"balance_after" gorm:"type:numeric(12,2)"`
	Status       TransactionStatus   `json:"status" gorm:"type:varchar(16);not null"`
	Description  string              `json:"description"`
	ReferenceID  *string             `json:"reference_id,omitempty" gorm:"index"`
	CreatedAt    time.Time           `json:"created_at" gorm:"autoCreateTime;index"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// BeforeUpdate keeps the ledger append-only.
func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrNotImplemented
}
