package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/olauber7232/tournament-latest-1/metrics"
	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResultInput is one finisher in an admin result upload.
type ResultInput struct {
	TournamentID  string          `json:"tournament_id"`
	UserID        string          `json:"user_id"`
	Position      int             `json:"position"`
	TotalKills    int             `json:"total_kills"`
	WinningAmount decimal.Decimal `json:"winning_amount"`
	IsLastWinner  bool            `json:"is_last_winner"`
}

type ResultFailure struct {
	UserID   string `json:"user_id"`
	Position int    `json:"position"`
	Message  string `json:"message"`
}

type IngestReport struct {
	TournamentID   string                  `json:"tournament_id"`
	ProcessedCount int                     `json:"processed_count"`
	TotalCount     int                     `json:"total_count"`
	Failures       []ResultFailure         `json:"failures,omitempty"`
	Status         models.TournamentStatus `json:"status"`
}

// ResultRow is a stored result with the player's username for leaderboards.
type ResultRow struct {
	models.TournamentResult
	Username string `json:"username"`
}

type ResultService struct {
	DB          *gorm.DB
	Ledger      *Ledger
	Tournaments *TournamentService
	Log         *zap.Logger
	Metrics     *metrics.Metrics
}

func NewResultService(db *gorm.DB, ledger *Ledger, tournaments *TournamentService, log *zap.Logger, m *metrics.Metrics) *ResultService {
	return &ResultService{DB: db, Ledger: ledger, Tournaments: tournaments, Log: log, Metrics: m}
}

// validateBatch checks everything that can be checked without the store.
func validateBatch(results []ResultInput) (string, error) {
	if len(results) == 0 {
		return "", validationf("results must not be empty")
	}
	tournamentID := results[0].TournamentID
	positions := make(map[int]struct{}, len(results))
	users := make(map[string]struct{}, len(results))
	for i, r := range results {
		if r.TournamentID == "" || r.UserID == "" || r.Position == 0 {
			return "", validationf("result %d: tournament_id, user_id and position are required", i+1)
		}
		if r.TournamentID != tournamentID {
			return "", validationf("all results must belong to the same tournament")
		}
		if r.Position < 0 {
			return "", validationf("result %d: position must be positive", i+1)
		}
		if r.TotalKills < 0 {
			return "", validationf("result %d: total_kills cannot be negative", i+1)
		}
		if r.WinningAmount.IsNegative() {
			return "", validationf("result %d: winning_amount cannot be negative", i+1)
		}
		if _, dup := positions[r.Position]; dup {
			return "", validationf("duplicate position %d in results", r.Position)
		}
		positions[r.Position] = struct{}{}
		if _, dup := users[r.UserID]; dup {
			return "", validationf("user %s appears more than once in results", r.UserID)
		}
		users[r.UserID] = struct{}{}
	}
	return tournamentID, nil
}

// Ingest validates the whole batch up front and rejects it without side effects
// on any problem. Valid entries are then processed in position order, each in its
// own transaction; a failing entry is reported and the rest continue. The
// tournament is completed once at least one result has been stored.
func (s *ResultService) Ingest(ctx context.Context, results []ResultInput) (*IngestReport, error) {
	tournamentID, err := validateBatch(results)
	if err != nil {
		return nil, err
	}

	t, err := s.Tournaments.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TournamentPendingResults && t.Status != models.TournamentCompleted {
		return nil, validationf("tournament is %s; results can only be uploaded after it ends", t.Status)
	}
	if err := s.checkAgainstStore(ctx, t.ID, results); err != nil {
		return nil, err
	}

	ordered := make([]ResultInput, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	report := &IngestReport{TournamentID: t.ID, TotalCount: len(ordered), Status: t.Status}
	for _, r := range ordered {
		if err := s.storeOne(ctx, t, r); err != nil {
			s.Log.Error("result entry failed",
				zap.String("tournament_id", t.ID),
				zap.String("user_id", r.UserID),
				zap.Int("position", r.Position),
				zap.Error(err))
			report.Failures = append(report.Failures, ResultFailure{UserID: r.UserID, Position: r.Position, Message: err.Error()})
			continue
		}
		report.ProcessedCount++
	}

	if report.ProcessedCount > 0 && t.Status == models.TournamentPendingResults {
		res := s.DB.WithContext(ctx).Model(&models.Tournament{}).
			Where("id = ? AND status = ?", t.ID, models.TournamentPendingResults).
			Update("status", models.TournamentCompleted)
		if res.Error != nil {
			return report, fmt.Errorf("complete tournament: %w", res.Error)
		}
		report.Status = models.TournamentCompleted
	}

	s.Log.Info("results ingested",
		zap.String("tournament_id", t.ID),
		zap.Int("processed", report.ProcessedCount),
		zap.Int("total", report.TotalCount))
	return report, nil
}

// checkAgainstStore rejects unknown users, non-entrants and positions or users
// that already have a stored result for this tournament.
func (s *ResultService) checkAgainstStore(ctx context.Context, tournamentID string, results []ResultInput) error {
	db := s.DB.WithContext(ctx)
	userIDs := make([]string, 0, len(results))
	positions := make([]int, 0, len(results))
	for _, r := range results {
		userIDs = append(userIDs, r.UserID)
		positions = append(positions, r.Position)
	}

	var users []models.User
	if err := db.Select("id").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}

	var entries []models.TournamentEntry
	if err := db.Select("user_id").Where("tournament_id = ? AND user_id IN ?", tournamentID, userIDs).Find(&entries).Error; err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	entrant := make(map[string]bool, len(entries))
	for _, e := range entries {
		entrant[e.UserID] = true
	}

	for _, r := range results {
		if !known[r.UserID] {
			return notFound("user " + r.UserID)
		}
		if !entrant[r.UserID] {
			return validationf("user %s did not join this tournament", r.UserID)
		}
	}

	var existing []models.TournamentResult
	if err := db.Where("tournament_id = ? AND (position IN ? OR user_id IN ?)", tournamentID, positions, userIDs).
		Find(&existing).Error; err != nil {
		return fmt.Errorf("load existing results: %w", err)
	}
	if len(existing) > 0 {
		return conflictf("position %d or user %s already has a result for this tournament",
			existing[0].Position, existing[0].UserID)
	}
	return nil
}

func (s *ResultService) storeOne(ctx context.Context, t *models.Tournament, r ResultInput) error {
	amount := r.WinningAmount.Round(2)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := models.TournamentResult{
			TournamentID:  t.ID,
			UserID:        r.UserID,
			GameID:        t.GameID,
			Position:      r.Position,
			TotalKills:    r.TotalKills,
			WinningAmount: amount,
			IsLastWinner:  r.IsLastWinner,
		}
		if err := tx.Create(&result).Error; err != nil {
			return dbError(err, "result")
		}

		position := r.Position
		if err := tx.Model(&models.TournamentEntry{}).
			Where("tournament_id = ? AND user_id = ?", t.ID, r.UserID).
			Updates(map[string]any{"position": position, "prize": amount}).Error; err != nil {
			return fmt.Errorf("mirror placement on entry: %w", err)
		}

		if amount.IsPositive() {
			if _, err := s.Ledger.Payout(tx, t.ID, r.UserID, r.Position, amount); err != nil {
				return err
			}
			s.Metrics.Payout(amount.InexactFloat64())
		} else if r.Position == 1 {
			if err := tx.Model(&models.User{}).Where("id = ?", r.UserID).
				UpdateColumn("wins", gorm.Expr("wins + ?", 1)).Error; err != nil {
				return fmt.Errorf("count win: %w", err)
			}
		}
		return nil
	})
}

// ListResults returns a tournament's stored results ordered by position.
func (s *ResultService) ListResults(ctx context.Context, tournamentID string) ([]ResultRow, error) {
	var rows []ResultRow
	err := s.DB.WithContext(ctx).
		Table("tournament_results AS r").
		Select("r.*, u.username").
		Joins("JOIN users u ON u.id = r.user_id").
		Where("r.tournament_id = ?", tournamentID).
		Order("r.position ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return rows, nil
}
