package services

import (
	"errors"
	"fmt"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Business constants, in rupees.
var (
	MinDeposit           = decimal.NewFromInt(20)
	MinWithdrawal        = decimal.NewFromInt(100)
	DailyWithdrawalLimit = decimal.NewFromInt(50000)
	DirectReferralRate   = decimal.RequireFromString("0.07")
	TeamReferralRate     = decimal.RequireFromString("0.02")
)

// Posting describes a single-wallet movement. Amount is always positive;
// Credit and Debit decide the sign.
type Posting struct {
	UserID      string
	Wallet      models.WalletKind
	Amount      decimal.Decimal
	Type        models.TransactionType
	Description string
	ReferenceID string
}

// FeeSplit is how an entry fee was drawn across the deposit and referral wallets.
type FeeSplit struct {
	Deposit  decimal.Decimal
	Referral decimal.Decimal
}

// WalletTargets holds absolute balances requested by an admin. Nil means unchanged.
type WalletTargets struct {
	Deposit    *decimal.Decimal `json:"deposit_wallet"`
	Withdrawal *decimal.Decimal `json:"withdrawal_wallet"`
	Referral   *decimal.Decimal `json:"referral_wallet"`
}

func (w WalletTargets) get(kind models.WalletKind) *decimal.Decimal {
	switch kind {
	case models.WalletDeposit:
		return w.Deposit
	case models.WalletWithdrawal:
		return w.Withdrawal
	case models.WalletReferral:
		return w.Referral
	}
	return nil
}

var walletOrder = []models.WalletKind{models.WalletDeposit, models.WalletWithdrawal, models.WalletReferral}

// Ledger is the only code allowed to change wallet balances. Every method runs
// inside the caller's gorm transaction and appends the matching Transaction rows,
// so a composite operation commits or rolls back as one unit.
type Ledger struct {
	Clock clockwork.Clock
	Log   *zap.Logger
}

func NewLedger(clock clockwork.Clock, log *zap.Logger) *Ledger {
	return &Ledger{Clock: clock, Log: log}
}

// Account loads the user row with a write lock.
func (l *Ledger) Account(tx *gorm.DB, userID string) (*models.User, error) {
	var u models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", userID).Error; err != nil {
		return nil, dbError(err, "user")
	}
	return &u, nil
}

// ActiveAccount is Account plus the frozen-wallet check.
func (l *Ledger) ActiveAccount(tx *gorm.DB, userID string) (*models.User, error) {
	u, err := l.Account(tx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsWalletFrozen {
		return nil, fmt.Errorf("user %s: %w", u.Username, ErrWalletFrozen)
	}
	return u, nil
}

func (l *Ledger) Credit(tx *gorm.DB, p Posting) (*models.Transaction, error) {
	return l.apply(tx, p, false, nil)
}

// Debit fails with ErrInsufficientFunds when the wallet cannot cover the amount.
func (l *Ledger) Debit(tx *gorm.DB, p Posting) (*models.Transaction, error) {
	return l.apply(tx, p, true, nil)
}

// DebitAcrossWallets draws total from the deposit wallet first and the referral
// wallet for any remainder. The withdrawal wallet is never touched. One
// Transaction is appended for the whole amount.
func (l *Ledger) DebitAcrossWallets(tx *gorm.DB, userID string, total decimal.Decimal, txType models.TransactionType, description, referenceID string) (FeeSplit, *models.Transaction, error) {
	total = total.Round(2)
	if !total.IsPositive() {
		return FeeSplit{}, nil, validationf("amount must be greater than zero")
	}

	u, err := l.ActiveAccount(tx, userID)
	if err != nil {
		return FeeSplit{}, nil, err
	}

	available := u.DepositWallet.Add(u.ReferralWallet)
	if available.LessThan(total) {
		return FeeSplit{}, nil, fmt.Errorf("%w: need %s, deposit and referral wallets hold %s",
			ErrInsufficientFunds, total.StringFixed(2), available.StringFixed(2))
	}

	split := FeeSplit{Deposit: decimal.Min(u.DepositWallet, total)}
	split.Referral = total.Sub(split.Deposit)

	updates := map[string]any{}
	if split.Deposit.IsPositive() {
		u.DepositWallet = u.DepositWallet.Sub(split.Deposit)
		updates[models.WalletDeposit.Column()] = u.DepositWallet
	}
	if split.Referral.IsPositive() {
		u.ReferralWallet = u.ReferralWallet.Sub(split.Referral)
		updates[models.WalletReferral.Column()] = u.ReferralWallet
	}
	if err := tx.Model(u).Updates(updates).Error; err != nil {
		return FeeSplit{}, nil, fmt.Errorf("debit wallets: %w", err)
	}

	txn, err := l.record(tx, u.ID, Posting{Type: txType, Description: description, ReferenceID: referenceID},
		"", total.Neg(), decimal.NullDecimal{})
	if err != nil {
		return FeeSplit{}, nil, err
	}
	return split, txn, nil
}

// Payout credits tournament winnings to the withdrawal wallet, adds them to
// totalEarned and counts a win for first place. A zero amount is a no-op.
func (l *Ledger) Payout(tx *gorm.DB, tournamentID, userID string, position int, amount decimal.Decimal) (*models.Transaction, error) {
	amount = amount.Round(2)
	if amount.IsZero() {
		return nil, nil
	}

	p := Posting{
		UserID:      userID,
		Wallet:      models.WalletWithdrawal,
		Amount:      amount,
		Type:        models.TxTournamentWin,
		Description: fmt.Sprintf("Tournament prize - Position %d", position),
		ReferenceID: fmt.Sprintf("TNT_WIN_%s_%s", tournamentID, userID),
	}
	return l.apply(tx, p, false, func(u *models.User) map[string]any {
		bump := map[string]any{"total_earned": u.TotalEarned.Add(amount)}
		if position == 1 {
			bump["wins"] = u.Wins + 1
		}
		return bump
	})
}

// ReferralCommission pays the depositor's referrer the direct rate and that
// referrer's own referrer the team rate, both computed on base and rounded to
// paise. A frozen beneficiary is skipped rather than failing the deposit.
func (l *Ledger) ReferralCommission(tx *gorm.DB, depositorID string, base decimal.Decimal, referenceID string) ([]models.Transaction, error) {
	var depositor models.User
	if err := tx.First(&depositor, "id = ?", depositorID).Error; err != nil {
		return nil, dbError(err, "user")
	}
	if depositor.ReferredBy == nil || *depositor.ReferredBy == "" {
		return nil, nil
	}

	direct, err := l.byReferralCode(tx, *depositor.ReferredBy)
	if err != nil || direct == nil || direct.ID == depositor.ID {
		return nil, err
	}

	var paid []models.Transaction
	pay := func(beneficiary *models.User, rate decimal.Decimal, txType models.TransactionType, label, ref string, countReferral bool) error {
		amount := base.Mul(rate).Round(2)
		if !amount.IsPositive() {
			return nil
		}
		p := Posting{
			UserID:      beneficiary.ID,
			Wallet:      models.WalletReferral,
			Amount:      amount,
			Type:        txType,
			Description: fmt.Sprintf("%s (%s%%) from %s", label, rate.Mul(decimal.NewFromInt(100)).String(), depositor.Username),
			ReferenceID: ref,
		}
		txn, err := l.apply(tx, p, false, func(u *models.User) map[string]any {
			bump := map[string]any{"total_earned": u.TotalEarned.Add(amount)}
			if countReferral {
				bump["total_referrals"] = u.TotalReferrals + 1
			}
			return bump
		})
		if errors.Is(err, ErrWalletFrozen) {
			l.Log.Warn("skipping referral commission for frozen wallet",
				zap.String("beneficiary", beneficiary.ID), zap.String("reference", ref))
			return nil
		}
		if err != nil {
			return err
		}
		paid = append(paid, *txn)
		return nil
	}

	if err := pay(direct, DirectReferralRate, models.TxReferralBonus, "Referral commission", referenceID, true); err != nil {
		return nil, err
	}

	if direct.ReferredBy == nil || *direct.ReferredBy == "" {
		return paid, nil
	}
	upline, err := l.byReferralCode(tx, *direct.ReferredBy)
	if err != nil {
		return nil, err
	}
	if upline == nil || upline.ID == depositor.ID || upline.ID == direct.ID {
		return paid, nil
	}
	if err := pay(upline, TeamReferralRate, models.TxReferral, "Team commission", "TEAM_"+referenceID, false); err != nil {
		return nil, err
	}
	return paid, nil
}

// byReferralCode returns nil without error when no user owns the code.
func (l *Ledger) byReferralCode(tx *gorm.DB, code string) (*models.User, error) {
	var u models.User
	err := tx.Where("referral_code = ?", code).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.Log.Warn("referral code has no owner", zap.String("code", code))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup referral code: %w", err)
	}
	return &u, nil
}

// SetFrozen toggles the wallet freeze. While frozen every ledger mutation for the user fails.
func (l *Ledger) SetFrozen(tx *gorm.DB, userID string, frozen bool) (*models.User, error) {
	u, err := l.Account(tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Model(u).Update("is_wallet_frozen", frozen).Error; err != nil {
		return nil, fmt.Errorf("update freeze flag: %w", err)
	}
	u.IsWalletFrozen = frozen
	return u, nil
}

// AdminSetWallets moves each requested wallet to an absolute value and appends
// one admin_adjustment Transaction per changed wallet carrying the signed delta.
func (l *Ledger) AdminSetWallets(tx *gorm.DB, userID string, targets WalletTargets) ([]models.Transaction, error) {
	for _, kind := range walletOrder {
		if v := targets.get(kind); v != nil && v.IsNegative() {
			return nil, validationf("%s wallet cannot be negative", kind)
		}
	}

	u, err := l.ActiveAccount(tx, userID)
	if err != nil {
		return nil, err
	}

	ref := fmt.Sprintf("ADM_%d", l.Clock.Now().UnixMilli())
	updates := map[string]any{}
	type change struct {
		kind  models.WalletKind
		delta decimal.Decimal
		after decimal.Decimal
	}
	var changes []change
	for _, kind := range walletOrder {
		v := targets.get(kind)
		if v == nil {
			continue
		}
		next := v.Round(2)
		delta := next.Sub(u.Balance(kind))
		if delta.IsZero() {
			continue
		}
		updates[kind.Column()] = next
		u.SetBalance(kind, next)
		changes = append(changes, change{kind: kind, delta: delta, after: next})
	}
	if len(changes) == 0 {
		return nil, nil
	}
	if err := tx.Model(u).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update wallets: %w", err)
	}

	out := make([]models.Transaction, 0, len(changes))
	for _, c := range changes {
		p := Posting{
			Type:        models.TxAdminAdjustment,
			Description: fmt.Sprintf("Admin adjustment (%s wallet)", c.kind),
			ReferenceID: ref,
		}
		txn, err := l.record(tx, u.ID, p, string(c.kind), c.delta, decimal.NewNullDecimal(c.after))
		if err != nil {
			return nil, err
		}
		out = append(out, *txn)
	}
	return out, nil
}

func (l *Ledger) apply(tx *gorm.DB, p Posting, debit bool, bump func(u *models.User) map[string]any) (*models.Transaction, error) {
	if !p.Wallet.Valid() {
		return nil, validationf("unknown wallet %q", p.Wallet)
	}
	amount := p.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, validationf("amount must be greater than zero")
	}

	u, err := l.ActiveAccount(tx, p.UserID)
	if err != nil {
		return nil, err
	}

	delta := amount
	if debit {
		delta = amount.Neg()
	}
	current := u.Balance(p.Wallet)
	next := current.Add(delta)
	if next.IsNegative() {
		return nil, fmt.Errorf("%w: %s wallet holds %s, need %s",
			ErrInsufficientFunds, p.Wallet, current.StringFixed(2), amount.StringFixed(2))
	}

	updates := map[string]any{p.Wallet.Column(): next}
	if bump != nil {
		for k, v := range bump(u) {
			updates[k] = v
		}
	}
	if err := tx.Model(u).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update %s wallet: %w", p.Wallet, err)
	}
	u.SetBalance(p.Wallet, next)

	return l.record(tx, u.ID, p, string(p.Wallet), delta, decimal.NewNullDecimal(next))
}

func (l *Ledger) record(tx *gorm.DB, userID string, p Posting, wallet string, amount decimal.Decimal, after decimal.NullDecimal) (*models.Transaction, error) {
	txn := &models.Transaction{
		UserID:       userID,
		Type:         p.Type,
		Wallet:       wallet,
		Amount:       amount,
		BalanceAfter: after,
		Status:       models.TxCompleted,
		Description:  p.Description,
	}
	if p.ReferenceID != "" {
		ref := p.ReferenceID
		txn.ReferenceID = &ref
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}
	return txn, nil
}
