package services

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentGateway is the external payment provider. Every call is fallible I/O
// bounded by the client's timeout; none of them touch wallets.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, userID string, amount decimal.Decimal, customer CustomerInfo) (*GatewayOrder, error)
	VerifyPayment(ctx context.Context, orderID string) (*OrderStatus, error)
	AddBeneficiary(ctx context.Context, userID string, bank BankDetails) (string, error)
	RequestWithdraw(ctx context.Context, userID string, amount decimal.Decimal, beneID string) (*Transfer, error)
	GetWithdrawStatus(ctx context.Context, transferID string) (string, error)
}

type CustomerInfo struct {
	CustomerID string
	Name       string
	Email      string
	Phone      string
}

type GatewayOrder struct {
	OrderID          string
	PaymentSessionID string
	Amount           decimal.Decimal
	Currency         string
}

// Gateway order states.
const (
	OrderStatusPaid   = "PAID"
	OrderStatusActive = "ACTIVE"
)

type OrderStatus struct {
	OrderID string
	Status  string
	Amount  decimal.Decimal
}

type BankDetails struct {
	AccountHolder string `json:"account_holder" validate:"required,max=100"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=6,max=20"`
	IFSC          string `json:"ifsc" validate:"required,len=11,alphanum"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"omitempty,numeric,min=10,max=13"`
}

// Masked returns the account number with all but the last four digits hidden.
func (b BankDetails) Masked() string {
	n := len(b.AccountNumber)
	if n <= 4 {
		return b.AccountNumber
	}
	masked := make([]byte, n)
	for i := range masked {
		if i < n-4 {
			masked[i] = '*'
		} else {
			masked[i] = b.AccountNumber[i]
		}
	}
	return string(masked)
}

// Transfer states reported by the payout API.
const (
	TransferSuccess  = "SUCCESS"
	TransferPending  = "PENDING"
	TransferFailed   = "FAILED"
	TransferReversed = "REVERSED"
	TransferRejected = "REJECTED"
)

type Transfer struct {
	TransferID string
	Status     string
}
