package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentOrderStatus string

const (
	OrderCreated PaymentOrderStatus = "created"
	OrderPaid    PaymentOrderStatus = "paid"
	OrderFailed  PaymentOrderStatus = "failed"
)

// PaymentOrder tracks a gateway deposit order so it is credited at most once.
type PaymentOrder struct {
	ID               string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID          string             `json:"order_id" gorm:"uniqueIndex;not null"`
	UserID           string             `json:"user_id" gorm:"not null;index"`
	Amount           decimal.Decimal    `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency         string             `json:"currency" gorm:"type:varchar(8);not null"`
	PaymentSessionID string             `json:"payment_session_id"`
	Status           PaymentOrderStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	GatewayStatus    string             `json:"gateway_status,omitempty"`
	CreditedAt       *time.Time         `json:"credited_at,omitempty"`

	Timestamps
}

func (o *PaymentOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalSuccess  WithdrawalStatus = "success"
	WithdrawalFailed   WithdrawalStatus = "failed"
	WithdrawalReversed WithdrawalStatus = "reversed"
)

// Terminal reports whether the transfer no longer needs polling.
func (s WithdrawalStatus) Terminal() bool {
	return s != WithdrawalPending
}

// Withdrawal tracks a payout transfer submitted to the gateway.
type Withdrawal struct {
	ID            string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TransferID    string           `json:"transfer_id" gorm:"uniqueIndex;not null"`
	UserID        string           `json:"user_id" gorm:"not null;index"`
	Amount        decimal.Decimal  `json:"amount" gorm:"type:numeric(12,2);not null"`
	BeneID        string           `json:"bene_id" gorm:"not null"`
	AccountHolder string           `json:"account_holder"`
	AccountMasked string           `json:"account_masked"`
	IFSC          string           `json:"ifsc"`
	Status        WithdrawalStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	GatewayStatus string           `json:"gateway_status,omitempty"`
	LastCheckedAt *time.Time       `json:"last_checked_at,omitempty"`
	RefundedAt    *time.Time       `json:"refunded_at,omitempty"`

	Timestamps
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
