package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletKind names one of the three balances a user holds.
type WalletKind string

const (
	WalletDeposit    WalletKind = "deposit"
	WalletWithdrawal WalletKind = "withdrawal"
	WalletReferral   WalletKind = "referral"
)

// Column returns the users table column backing the wallet.
func (w WalletKind) Column() string {
	return string(w) + "_wallet"
}

func (w WalletKind) Valid() bool {
	switch w {
	case WalletDeposit, WalletWithdrawal, WalletReferral:
		return true
	}
	return false
}

// User is a player account. Wallet balances are only ever changed through the ledger.
type User struct {
	ID                 string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username           string          `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash       string          `gorm:"not null" json:"-"`
	ReferralCode       string          `gorm:"uniqueIndex;not null" json:"referral_code"`
	ReferredBy         *string         `gorm:"index" json:"referred_by,omitempty"` // another user's ReferralCode
	DepositWallet      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"deposit_wallet"`
	WithdrawalWallet   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"withdrawal_wallet"`
	ReferralWallet     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"referral_wallet"`
	TotalEarned        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_earned"`
	TotalReferrals     int             `gorm:"not null;default:0" json:"total_referrals"`
	TournamentsPlayed  int             `gorm:"not null;default:0" json:"tournaments_played"`
	Wins               int             `gorm:"not null;default:0" json:"wins"`
	IsWalletFrozen     bool            `gorm:"not null;default:false" json:"is_wallet_frozen"`
	IsAdmin            bool            `gorm:"not null;default:false" json:"is_admin"`
	RecoveryQuestion   string          `json:"recovery_question,omitempty"`
	RecoveryAnswerHash string          `json:"-"`

	Timestamps
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Balance returns the current value of the given wallet.
func (u *User) Balance(w WalletKind) decimal.Decimal {
	switch w {
	case WalletDeposit:
		return u.DepositWallet
	case WalletWithdrawal:
		return u.WithdrawalWallet
	case WalletReferral:
		return u.ReferralWallet
	}
	return decimal.Zero
}

func (u *User) SetBalance(w WalletKind, v decimal.Decimal) {
	switch w {
	case WalletDeposit:
		u.DepositWallet = v
	case WalletWithdrawal:
		u.WithdrawalWallet = v
	case WalletReferral:
		u.ReferralWallet = v
	}
}

// TotalBalance is the sum of all three wallets.
func (u *User) TotalBalance() decimal.Decimal {
	return u.DepositWallet.Add(u.WithdrawalWallet).Add(u.ReferralWallet)
}
