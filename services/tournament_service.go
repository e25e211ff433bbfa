package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/olauber7232/tournament-latest-1/metrics"
	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImageStore persists uploaded artwork and returns a public URL.
type ImageStore interface {
	Put(ctx context.Context, key string, fileHeader *multipart.FileHeader) (string, error)
}

type TournamentService struct {
	DB      *gorm.DB
	Ledger  *Ledger
	Clock   clockwork.Clock
	Log     *zap.Logger
	Images  ImageStore
	Metrics *metrics.Metrics
}

func NewTournamentService(db *gorm.DB, ledger *Ledger, clock clockwork.Clock, log *zap.Logger, images ImageStore, m *metrics.Metrics) *TournamentService {
	return &TournamentService{DB: db, Ledger: ledger, Clock: clock, Log: log, Images: images, Metrics: m}
}

type CreateTournamentRequest struct {
	GameID      string          `json:"game_id" validate:"required"`
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description"`
	EntryFee    decimal.Decimal `json:"entry_fee"`
	PrizePool   decimal.Decimal `json:"prize_pool"`
	MaxPlayers  int             `json:"max_players" validate:"required,gt=0"`
	StartTime   time.Time       `json:"start_time" validate:"required"`
	EndTime     time.Time       `json:"end_time" validate:"required"`
	Rules       string          `json:"rules"`
	MapName     *string         `json:"map_name"`
	ImageURL    *string         `json:"image_url"`
}

// StatusAt is the status a tournament should hold at now, given only the clock.
// Results and cancellation are not time-driven, so those states are returned as is.
func StatusAt(status models.TournamentStatus, start, end, now time.Time) models.TournamentStatus {
	if status == models.TournamentUpcoming && !now.Before(start) {
		status = models.TournamentActive
	}
	if status == models.TournamentActive && !now.Before(end) {
		status = models.TournamentPendingResults
	}
	return status
}

// UpdateStatusByTime advances upcoming and active tournaments whose schedule has
// passed. Each update is conditional on the status it read, so a concurrent sweep
// or result upload can never move a tournament backwards.
func (s *TournamentService) UpdateStatusByTime(ctx context.Context) (int, error) {
	now := s.Clock.Now()

	var candidates []models.Tournament
	if err := s.DB.WithContext(ctx).
		Where("status IN ?", []models.TournamentStatus{models.TournamentUpcoming, models.TournamentActive}).
		Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("load tournaments for status sweep: %w", err)
	}

	changed := 0
	for _, t := range candidates {
		next := StatusAt(t.Status, t.StartTime, t.EndTime, now)
		if next == t.Status {
			continue
		}
		res := s.DB.WithContext(ctx).Model(&models.Tournament{}).
			Where("id = ? AND status = ?", t.ID, t.Status).
			Update("status", next)
		if res.Error != nil {
			return changed, fmt.Errorf("advance tournament %s: %w", t.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			changed++
			s.Log.Info("tournament status advanced",
				zap.String("tournament_id", t.ID),
				zap.String("from", string(t.Status)),
				zap.String("to", string(next)))
		}
	}
	s.Metrics.StatusTransitions(changed)
	return changed, nil
}

// sweep runs the lazy status sweep before reads; failures are logged, not returned,
// so listings still work while the store is degraded.
func (s *TournamentService) sweep(ctx context.Context) {
	if _, err := s.UpdateStatusByTime(ctx); err != nil {
		s.Log.Error("status sweep failed", zap.Error(err))
	}
}

func (s *TournamentService) CreateTournament(ctx context.Context, req CreateTournamentRequest) (*models.Tournament, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, validationf("name is required")
	}
	if req.MaxPlayers <= 0 {
		return nil, validationf("max_players must be greater than zero")
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, validationf("start_time must be before end_time")
	}
	if req.EntryFee.IsNegative() || req.PrizePool.IsNegative() {
		return nil, validationf("entry_fee and prize_pool cannot be negative")
	}

	var game models.Game
	if err := s.DB.WithContext(ctx).First(&game, "id = ?", req.GameID).Error; err != nil {
		return nil, dbError(err, "game")
	}

	t := &models.Tournament{
		GameID:      game.ID,
		Name:        req.Name,
		Description: req.Description,
		EntryFee:    req.EntryFee.Round(2),
		PrizePool:   req.PrizePool.Round(2),
		MaxPlayers:  req.MaxPlayers,
		StartTime:   req.StartTime.UTC(),
		EndTime:     req.EndTime.UTC(),
		Status:      StatusAt(models.TournamentUpcoming, req.StartTime, req.EndTime, s.Clock.Now()),
		Rules:       req.Rules,
		MapName:     req.MapName,
		ImageURL:    req.ImageURL,
	}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, dbError(err, "tournament")
	}
	t.Game = &game

	s.Log.Info("tournament created",
		zap.String("tournament_id", t.ID),
		zap.String("game", game.Name),
		zap.String("status", string(t.Status)))
	return t, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	s.sweep(ctx)
	var t models.Tournament
	if err := s.DB.WithContext(ctx).Preload("Game").First(&t, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "tournament")
	}
	return &t, nil
}

// ListOpen returns tournaments that are not finished, optionally for one game.
func (s *TournamentService) ListOpen(ctx context.Context, gameID string) ([]models.Tournament, error) {
	s.sweep(ctx)
	q := s.DB.WithContext(ctx).Preload("Game").
		Where("status NOT IN ?", []models.TournamentStatus{models.TournamentCompleted, models.TournamentCancelled})
	if gameID != "" {
		q = q.Where("game_id = ?", gameID)
	}
	var out []models.Tournament
	if err := q.Order("start_time ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	return out, nil
}

func (s *TournamentService) ListCompleted(ctx context.Context) ([]models.Tournament, error) {
	return s.listByStatus(ctx, models.TournamentCompleted, "end_time DESC")
}

// ListPendingResults returns tournaments awaiting an admin upload, oldest first.
func (s *TournamentService) ListPendingResults(ctx context.Context) ([]models.Tournament, error) {
	return s.listByStatus(ctx, models.TournamentPendingResults, "end_time ASC")
}

func (s *TournamentService) ListAll(ctx context.Context) ([]models.Tournament, error) {
	s.sweep(ctx)
	var out []models.Tournament
	if err := s.DB.WithContext(ctx).Preload("Game").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	return out, nil
}

func (s *TournamentService) listByStatus(ctx context.Context, status models.TournamentStatus, order string) ([]models.Tournament, error) {
	s.sweep(ctx)
	var out []models.Tournament
	if err := s.DB.WithContext(ctx).Preload("Game").
		Where("status = ?", status).
		Order(order).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %s tournaments: %w", status, err)
	}
	return out, nil
}

// JoinTournament charges the entry fee and takes a slot as a single transaction:
// the fee debit, entry row, player count and tournamentsPlayed all commit together.
func (s *TournamentService) JoinTournament(ctx context.Context, userID, tournamentID string) (*models.TournamentEntry, error) {
	s.sweep(ctx)

	var entry models.TournamentEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", tournamentID).Error; err != nil {
			return dbError(err, "tournament")
		}
		if t.Status != models.TournamentUpcoming {
			return validationf("tournament is %s; only upcoming tournaments can be joined", t.Status)
		}
		if t.CurrentPlayers >= t.MaxPlayers {
			return ErrCapacityExceeded
		}

		var already int64
		if err := tx.Model(&models.TournamentEntry{}).
			Where("tournament_id = ? AND user_id = ?", t.ID, userID).
			Count(&already).Error; err != nil {
			return fmt.Errorf("check existing entry: %w", err)
		}
		if already > 0 {
			return conflictf("already joined this tournament")
		}

		entry = models.TournamentEntry{
			ID:           uuid.NewString(),
			TournamentID: t.ID,
			UserID:       userID,
			EntryFee:     t.EntryFee,
		}

		if t.EntryFee.IsPositive() {
			split, _, err := s.Ledger.DebitAcrossWallets(tx, userID, t.EntryFee, models.TxTournamentEntry,
				fmt.Sprintf("Tournament entry fee - %s", t.Name), "TNT_"+entry.ID)
			if err != nil {
				return err
			}
			entry.PaidFromDeposit = split.Deposit
			entry.PaidFromReferral = split.Referral
		} else if _, err := s.Ledger.ActiveAccount(tx, userID); err != nil {
			return err
		}

		if err := tx.Create(&entry).Error; err != nil {
			return dbError(err, "tournament entry")
		}

		res := tx.Model(&models.Tournament{}).
			Where("id = ? AND current_players = ? AND current_players < max_players", t.ID, t.CurrentPlayers).
			Update("current_players", t.CurrentPlayers+1)
		if res.Error != nil {
			return fmt.Errorf("increment players: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrCapacityExceeded
		}

		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("tournaments_played", gorm.Expr("tournaments_played + ?", 1)).Error; err != nil {
			return fmt.Errorf("increment tournaments played: %w", err)
		}
		return nil
	})
	if err != nil {
		s.Metrics.Join(joinOutcome(err))
		return nil, err
	}

	s.Metrics.Join("ok")
	s.Log.Info("tournament joined",
		zap.String("tournament_id", tournamentID),
		zap.String("user_id", userID),
		zap.String("entry_id", entry.ID),
		zap.String("fee", entry.EntryFee.StringFixed(2)))
	return &entry, nil
}

func joinOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return "full"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrWalletFrozen):
		return "frozen"
	case errors.Is(err, ErrConflict):
		return "duplicate"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return "rejected"
	}
	return "error"
}

// CancelTournament moves an upcoming or active tournament to cancelled and
// returns every entrant's fee to the wallets it was drawn from.
func (s *TournamentService) CancelTournament(ctx context.Context, tournamentID string) (*models.Tournament, int, error) {
	s.sweep(ctx)

	var t models.Tournament
	refunded := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", tournamentID).Error; err != nil {
			return dbError(err, "tournament")
		}
		if t.Status != models.TournamentUpcoming && t.Status != models.TournamentActive {
			return validationf("tournament is %s and can no longer be cancelled", t.Status)
		}

		res := tx.Model(&models.Tournament{}).
			Where("id = ? AND status = ?", t.ID, t.Status).
			Update("status", models.TournamentCancelled)
		if res.Error != nil {
			return fmt.Errorf("cancel tournament: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return conflictf("tournament status changed concurrently")
		}
		t.Status = models.TournamentCancelled

		var entries []models.TournamentEntry
		if err := tx.Where("tournament_id = ? AND refunded = ?", t.ID, false).Find(&entries).Error; err != nil {
			return fmt.Errorf("load entries: %w", err)
		}
		for _, e := range entries {
			if err := s.refundEntry(tx, &t, &e); err != nil {
				return err
			}
			refunded++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.Log.Info("tournament cancelled", zap.String("tournament_id", t.ID), zap.Int("refunded_entries", refunded))
	return &t, refunded, nil
}

func (s *TournamentService) refundEntry(tx *gorm.DB, t *models.Tournament, e *models.TournamentEntry) error {
	parts := []struct {
		wallet models.WalletKind
		amount decimal.Decimal
	}{
		{models.WalletDeposit, e.PaidFromDeposit},
		{models.WalletReferral, e.PaidFromReferral},
	}
	for _, part := range parts {
		if !part.amount.IsPositive() {
			continue
		}
		_, err := s.Ledger.Credit(tx, Posting{
			UserID:      e.UserID,
			Wallet:      part.wallet,
			Amount:      part.amount,
			Type:        models.TxTournamentEntry,
			Description: fmt.Sprintf("Refund: %s cancelled", t.Name),
			ReferenceID: "TNT_REFUND_" + e.ID,
		})
		if err != nil {
			return fmt.Errorf("refund entry %s: %w", e.ID, err)
		}
	}
	return tx.Model(e).Update("refunded", true).Error
}

// SetTournamentImage uploads artwork and records its public URL.
func (s *TournamentService) SetTournamentImage(ctx context.Context, tournamentID string, fileHeader *multipart.FileHeader) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", tournamentID).Error; err != nil {
		return nil, dbError(err, "tournament")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return nil, validationf("unsupported image type %q", ext)
	}

	key := fmt.Sprintf("tournaments/%s/%s%s", t.ID, uuid.NewString(), ext)
	url, err := s.Images.Put(ctx, key, fileHeader)
	if err != nil {
		return nil, fmt.Errorf("store tournament image: %w", err)
	}
	if err := s.DB.WithContext(ctx).Model(&t).Update("image_url", url).Error; err != nil {
		return nil, fmt.Errorf("save image url: %w", err)
	}
	t.ImageURL = &url
	return &t, nil
}
