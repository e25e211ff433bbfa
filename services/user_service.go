package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserService struct {
	DB     *gorm.DB
	Ledger *Ledger
	Log    *zap.Logger
}

func NewUserService(db *gorm.DB, ledger *Ledger, log *zap.Logger) *UserService {
	return &UserService{DB: db, Ledger: ledger, Log: log}
}

// UserView is the public shape of an account; balances are fixed to two places.
type UserView struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	ReferralCode      string  `json:"referral_code"`
	ReferredBy        *string `json:"referred_by,omitempty"`
	DepositWallet     string  `json:"deposit_wallet"`
	WithdrawalWallet  string  `json:"withdrawal_wallet"`
	ReferralWallet    string  `json:"referral_wallet"`
	TotalBalance      string  `json:"total_balance"`
	TotalEarned       string  `json:"total_earned"`
	TotalReferrals    int     `json:"total_referrals"`
	TournamentsPlayed int     `json:"tournaments_played"`
	Wins              int     `json:"wins"`
	IsWalletFrozen    bool    `json:"is_wallet_frozen"`
	IsAdmin           bool    `json:"is_admin"`
	RecoveryQuestion  string  `json:"recovery_question,omitempty"`
}

func NewUserView(u *models.User) UserView {
	return UserView{
		ID:                u.ID,
		Username:          u.Username,
		ReferralCode:      u.ReferralCode,
		ReferredBy:        u.ReferredBy,
		DepositWallet:     u.DepositWallet.StringFixed(2),
		WithdrawalWallet:  u.WithdrawalWallet.StringFixed(2),
		ReferralWallet:    u.ReferralWallet.StringFixed(2),
		TotalBalance:      u.TotalBalance().StringFixed(2),
		TotalEarned:       u.TotalEarned.StringFixed(2),
		TotalReferrals:    u.TotalReferrals,
		TournamentsPlayed: u.TournamentsPlayed,
		Wins:              u.Wins,
		IsWalletFrozen:    u.IsWalletFrozen,
		IsAdmin:           u.IsAdmin,
		RecoveryQuestion:  u.RecoveryQuestion,
	}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "user")
	}
	return &u, nil
}

// ListUsers returns accounts newest first, optionally filtered by a username fragment.
func (s *UserService) ListUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if q := strings.TrimSpace(query); q != "" {
		db = db.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

type UserStats struct {
	TournamentsPlayed int    `json:"tournaments_played"`
	Wins              int    `json:"wins"`
	WinRate           string `json:"win_rate"`
	TotalEarned       string `json:"total_earned"`
	TotalReferrals    int    `json:"total_referrals"`
}

func (s *UserService) Stats(ctx context.Context, id string) (*UserStats, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &UserStats{
		TournamentsPlayed: u.TournamentsPlayed,
		Wins:              u.Wins,
		WinRate:           WinRate(u.Wins, u.TournamentsPlayed),
		TotalEarned:       u.TotalEarned.StringFixed(2),
		TotalReferrals:    u.TotalReferrals,
	}, nil
}

// WinRate formats wins/played as a whole percentage, "0%" when nothing was played.
func WinRate(wins, played int) string {
	if played <= 0 {
		return "0%"
	}
	pct := decimal.NewFromInt(int64(wins)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(played))).Round(0)
	return pct.String() + "%"
}

type GameHistoryItem struct {
	EntryID        string                  `json:"entry_id"`
	TournamentID   string                  `json:"tournament_id"`
	TournamentName string                  `json:"tournament_name"`
	GameName       string                  `json:"game_name"`
	Status         models.TournamentStatus `json:"status"`
	EntryFee       decimal.Decimal         `json:"entry_fee"`
	Position       *int                    `json:"position,omitempty"`
	Prize          *decimal.Decimal        `json:"prize,omitempty"`
	TotalKills     *int                    `json:"total_kills,omitempty"`
	StartTime      time.Time               `json:"start_time"`
	JoinedAt       time.Time               `json:"joined_at"`
}

// GameHistory lists the user's entries joined with tournament, game and stored result.
func (s *UserService) GameHistory(ctx context.Context, userID string) ([]GameHistoryItem, error) {
	var rows []GameHistoryItem
	err := s.DB.WithContext(ctx).
		Table("tournament_entries AS e").
		Select(`e.id AS entry_id, e.tournament_id, t.name AS tournament_name, g.display_name AS game_name,
			t.status, e.entry_fee, r.position, r.winning_amount AS prize, r.total_kills,
			t.start_time, e.created_at AS joined_at`).
		Joins("JOIN tournaments t ON t.id = e.tournament_id").
		Joins("LEFT JOIN games g ON g.id = t.game_id").
		Joins("LEFT JOIN tournament_results r ON r.tournament_id = e.tournament_id AND r.user_id = e.user_id").
		Where("e.user_id = ?", userID).
		Order("e.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("game history: %w", err)
	}
	return rows, nil
}

func (s *UserService) Transactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// AllTransactions is the admin ledger view, newest first.
func (s *UserService) AllTransactions(ctx context.Context, txType string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	db := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if txType != "" {
		db = db.Where("type = ?", txType)
	}
	var txns []models.Transaction
	if err := db.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

type ReferralView struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	TournamentsPlayed int       `json:"tournaments_played"`
	JoinedAt          time.Time `json:"joined_at"`
}

// Referrals lists the users who signed up with userID's referral code.
func (s *UserService) Referrals(ctx context.Context, userID string) ([]ReferralView, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var referred []models.User
	if err := s.DB.WithContext(ctx).Where("referred_by = ?", u.ReferralCode).Order("created_at DESC").Find(&referred).Error; err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	out := make([]ReferralView, len(referred))
	for i, r := range referred {
		out[i] = ReferralView{ID: r.ID, Username: r.Username, TournamentsPlayed: r.TournamentsPlayed, JoinedAt: r.CreatedAt}
	}
	return out, nil
}

// ValidateReferralCode returns the owner's username when the code exists.
func (s *UserService) ValidateReferralCode(ctx context.Context, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", validationf("referral code is required")
	}
	var u models.User
	if err := s.DB.WithContext(ctx).Select("id", "username").First(&u, "referral_code = ?", code).Error; err != nil {
		return "", dbError(err, "referral code")
	}
	return u.Username, nil
}

// UpdateWallets applies an admin's absolute wallet values.
func (s *UserService) UpdateWallets(ctx context.Context, userID string, targets WalletTargets) (*models.User, []models.Transaction, error) {
	var txns []models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txns, err = s.Ledger.AdminSetWallets(tx, userID, targets)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.Log.Info("admin wallet update", zap.String("user_id", userID), zap.Int("adjustments", len(txns)))
	u, err := s.GetUser(ctx, userID)
	return u, txns, err
}

func (s *UserService) SetFrozen(ctx context.Context, userID string, frozen bool) (*models.User, error) {
	var u *models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		u, err = s.Ledger.SetFrozen(tx, userID, frozen)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("wallet freeze changed", zap.String("user_id", userID), zap.Bool("frozen", frozen))
	return u, nil
}
