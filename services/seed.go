package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var defaultGames = []models.Game{
	{Name: "freefire", DisplayName: "Free Fire", Icon: "fas fa-fire", Description: "Battle Royale", IsActive: true},
	{Name: "bgmi", DisplayName: "BGMI", Icon: "fas fa-crosshairs", Description: "Battle Royale", IsActive: true},
	{Name: "codm", DisplayName: "Call of Duty Mobile", Icon: "fas fa-skull", Description: "FPS", IsActive: true},
}

type sampleTournament struct {
	game        string
	name        string
	description string
	fee         int64
	pool        int64
	maxPlayers  int
	startsIn    time.Duration
	rules       string
	mapName     string
}

var sampleTournaments = []sampleTournament{
	{"freefire", "Squad Championship", "4v4 Squad Battle", 50, 5000, 100, 2 * time.Hour, "No cheating, fair play only", "Bermuda"},
	{"bgmi", "Solo Victory", "Solo Battle Royale", 30, 3000, 50, 4 * time.Hour, "Solo gameplay only", "Erangel"},
}

// Seed creates the admin account and default games, and sample tournaments when
// withSamples is set and none exist yet. Running it again changes nothing.
func Seed(ctx context.Context, db *gorm.DB, auth *AuthService, tournaments *TournamentService, adminUser, adminPassword string, withSamples bool, log *zap.Logger) error {
	if _, err := auth.EnsureAdmin(ctx, adminUser, adminPassword); err != nil {
		if !errors.Is(err, ErrValidation) {
			return fmt.Errorf("seed admin: %w", err)
		}
		log.Warn("admin account not seeded", zap.Error(err))
	}

	games := make(map[string]string, len(defaultGames))
	for _, g := range defaultGames {
		game := g
		if err := db.WithContext(ctx).Where("name = ?", game.Name).FirstOrCreate(&game).Error; err != nil {
			return fmt.Errorf("seed game %s: %w", g.Name, err)
		}
		games[game.Name] = game.ID
	}

	if !withSamples {
		return nil
	}
	var existing int64
	if err := db.WithContext(ctx).Model(&models.Tournament{}).Count(&existing).Error; err != nil {
		return fmt.Errorf("count tournaments: %w", err)
	}
	if existing > 0 {
		return nil
	}

	now := tournaments.Clock.Now()
	for _, st := range sampleTournaments {
		mapName := st.mapName
		start := now.Add(st.startsIn)
		if _, err := tournaments.CreateTournament(ctx, CreateTournamentRequest{
			GameID:      games[st.game],
			Name:        st.name,
			Description: st.description,
			EntryFee:    decimal.NewFromInt(st.fee),
			PrizePool:   decimal.NewFromInt(st.pool),
			MaxPlayers:  st.maxPlayers,
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			Rules:       st.rules,
			MapName:     &mapName,
		}); err != nil {
			return fmt.Errorf("seed tournament %s: %w", st.name, err)
		}
	}
	log.Info("sample tournaments seeded", zap.Int("count", len(sampleTournaments)))
	return nil
}
