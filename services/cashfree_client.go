package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olauber7232/tournament-latest-1/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	cashfreeAPIVersion   = "2023-08-01"
	defaultCustomerPhone = "9999999999"
	maxGatewayBody       = 1 << 20
)

// CashfreeClient talks to the Cashfree Payments (PG) and Payouts APIs.
type CashfreeClient struct {
	AppID              string
	SecretKey          string
	PayoutClientID     string
	PayoutClientSecret string
	PaymentsURL        string // e.g. https://sandbox.cashfree.com/pg
	PayoutURL          string // e.g. https://payout-gamma.cashfree.com
	ReturnURL          string
	Client             *http.Client
	Log                *zap.Logger
	Metrics            *metrics.Metrics
}

func newGatewayID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

type cfCustomer struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
}

type cfOrderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
}

type cfOrderRequest struct {
	OrderID         string       `json:"order_id"`
	OrderAmount     json.Number  `json:"order_amount"`
	OrderCurrency   string       `json:"order_currency"`
	CustomerDetails cfCustomer   `json:"customer_details"`
	OrderMeta       *cfOrderMeta `json:"order_meta,omitempty"`
}

type cfOrder struct {
	OrderID          string          `json:"order_id"`
	PaymentSessionID string          `json:"payment_session_id"`
	OrderAmount      decimal.Decimal `json:"order_amount"`
	OrderCurrency    string          `json:"order_currency"`
	OrderStatus      string          `json:"order_status"`
}

func (c *CashfreeClient) CreateOrder(ctx context.Context, userID string, amount decimal.Decimal, customer CustomerInfo) (*GatewayOrder, error) {
	phone := customer.Phone
	if phone == "" {
		phone = defaultCustomerPhone
	}
	customerID := customer.CustomerID
	if customerID == "" {
		customerID = userID
	}
	body := cfOrderRequest{
		OrderID:       newGatewayID("KIRDA_"),
		OrderAmount:   json.Number(amount.StringFixed(2)),
		OrderCurrency: "INR",
		CustomerDetails: cfCustomer{
			CustomerID:    customerID,
			CustomerName:  customer.Name,
			CustomerEmail: customer.Email,
			CustomerPhone: phone,
		},
	}
	if c.ReturnURL != "" {
		body.OrderMeta = &cfOrderMeta{ReturnURL: c.ReturnURL}
	}

	var out cfOrder
	if err := c.do(ctx, "create_order", http.MethodPost, c.PaymentsURL+"/orders", c.pgHeaders(), body, &out); err != nil {
		return nil, err
	}
	if out.PaymentSessionID == "" {
		return nil, fmt.Errorf("%w: create order returned no payment session", ErrGateway)
	}
	return &GatewayOrder{
		OrderID:          out.OrderID,
		PaymentSessionID: out.PaymentSessionID,
		Amount:           out.OrderAmount,
		Currency:         out.OrderCurrency,
	}, nil
}

func (c *CashfreeClient) VerifyPayment(ctx context.Context, orderID string) (*OrderStatus, error) {
	var out cfOrder
	endpoint := c.PaymentsURL + "/orders/" + url.PathEscape(orderID)
	if err := c.do(ctx, "verify_payment", http.MethodGet, endpoint, c.pgHeaders(), nil, &out); err != nil {
		return nil, err
	}
	return &OrderStatus{OrderID: out.OrderID, Status: out.OrderStatus, Amount: out.OrderAmount}, nil
}

type cfPayoutResponse struct {
	Status  string          `json:"status"`
	SubCode string          `json:"subCode"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *CashfreeClient) AddBeneficiary(ctx context.Context, userID string, bank BankDetails) (string, error) {
	beneID := newGatewayID("BENE_")
	email := bank.Email
	if email == "" {
		email = userID + "@users.kirda.app"
	}
	phone := bank.Phone
	if phone == "" {
		phone = defaultCustomerPhone
	}
	body := map[string]string{
		"beneId":      beneID,
		"name":        bank.AccountHolder,
		"email":       email,
		"phone":       phone,
		"bankAccount": bank.AccountNumber,
		"ifsc":        strings.ToUpper(bank.IFSC),
		"address1":    "India",
	}

	var out cfPayoutResponse
	if err := c.do(ctx, "add_beneficiary", http.MethodPost, c.PayoutURL+"/payout/v1/addBeneficiary", c.payoutHeaders(), body, &out); err != nil {
		return "", err
	}
	if out.Status != TransferSuccess {
		return "", fmt.Errorf("%w: add beneficiary: %s (%s)", ErrGateway, out.Message, out.SubCode)
	}
	return beneID, nil
}

func (c *CashfreeClient) RequestWithdraw(ctx context.Context, userID string, amount decimal.Decimal, beneID string) (*Transfer, error) {
	transferID := newGatewayID("WITHDRAW_")
	body := map[string]any{
		"beneId":       beneID,
		"amount":       json.Number(amount.StringFixed(2)),
		"transferId":   transferID,
		"transferMode": "banktransfer",
		"remarks":      "Kirda withdrawal",
	}

	var out cfPayoutResponse
	if err := c.do(ctx, "request_transfer", http.MethodPost, c.PayoutURL+"/payout/v1/requestTransfer", c.payoutHeaders(), body, &out); err != nil {
		return nil, err
	}
	switch out.Status {
	case TransferSuccess, TransferPending, "ACCEPTED":
	default:
		return nil, fmt.Errorf("%w: request transfer: %s (%s)", ErrGateway, out.Message, out.SubCode)
	}

	status := TransferPending
	if out.Status == TransferSuccess {
		status = TransferSuccess
	}
	c.Log.Info("payout transfer requested",
		zap.String("user_id", userID),
		zap.String("transfer_id", transferID),
		zap.String("status", out.Status))
	return &Transfer{TransferID: transferID, Status: status}, nil
}

func (c *CashfreeClient) GetWithdrawStatus(ctx context.Context, transferID string) (string, error) {
	endpoint := c.PayoutURL + "/payout/v1/getTransferStatus?transferId=" + url.QueryEscape(transferID)

	var out cfPayoutResponse
	if err := c.do(ctx, "transfer_status", http.MethodGet, endpoint, c.payoutHeaders(), nil, &out); err != nil {
		return "", err
	}
	if out.Status != TransferSuccess {
		return "", fmt.Errorf("%w: transfer status: %s (%s)", ErrGateway, out.Message, out.SubCode)
	}
	var data struct {
		Transfer struct {
			Status string `json:"status"`
		} `json:"transfer"`
	}
	if err := json.Unmarshal(out.Data, &data); err != nil {
		return "", fmt.Errorf("%w: decode transfer status: %v", ErrGateway, err)
	}
	return data.Transfer.Status, nil
}

func (c *CashfreeClient) pgHeaders() map[string]string {
	return map[string]string{
		"x-api-version":   cashfreeAPIVersion,
		"x-client-id":     c.AppID,
		"x-client-secret": c.SecretKey,
	}
}

func (c *CashfreeClient) payoutHeaders() map[string]string {
	return map[string]string{
		"X-Client-Id":     c.PayoutClientID,
		"X-Client-Secret": c.PayoutClientSecret,
	}
}

func (c *CashfreeClient) do(ctx context.Context, op, method, endpoint string, headers map[string]string, body, out any) (err error) {
	started := time.Now()
	defer func() { c.Metrics.GatewayCall(op, err, time.Since(started)) }()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", ErrGateway, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrGateway, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBody))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrGateway, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Log.Warn("gateway returned error status",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(raw, 512)))
		return fmt.Errorf("%w: %s returned %d", ErrGateway, op, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decode %s response: %v", ErrGateway, op, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// WebhookSignature is the hex HMAC-SHA256 of timestamp+payload under secret.
func WebhookSignature(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature compares in constant time; an empty secret never verifies.
func VerifyWebhookSignature(secret, timestamp string, payload []byte, signature string) bool {
	if secret == "" || signature == "" || timestamp == "" {
		return false
	}
	expected := WebhookSignature(secret, timestamp, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
