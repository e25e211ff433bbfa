package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))
	return db
}

type testEnv struct {
	DB          *gorm.DB
	Clock       *clockwork.FakeClock
	Ledger      *Ledger
	Tournaments *TournamentService
	Results     *ResultService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(testEpoch)
	log := zaptest.NewLogger(t)
	ledger := NewLedger(clock, log)
	tournaments := NewTournamentService(db, ledger, clock, log, &memoryImages{}, nil)
	return &testEnv{
		DB:          db,
		Clock:       clock,
		Ledger:      ledger,
		Tournaments: tournaments,
		Results:     NewResultService(db, ledger, tournaments, log, nil),
	}
}

type userOpt func(*models.User)

func withWallets(deposit, withdrawal, referral string) userOpt {
	return func(u *models.User) {
		u.DepositWallet = decimal.RequireFromString(deposit)
		u.WithdrawalWallet = decimal.RequireFromString(withdrawal)
		u.ReferralWallet = decimal.RequireFromString(referral)
	}
}

func referredBy(code string) userOpt {
	return func(u *models.User) { u.ReferredBy = pointer.String(code) }
}

func frozen() userOpt {
	return func(u *models.User) { u.IsWalletFrozen = true }
}

// createUser inserts a user directly, skipping password hashing.
func createUser(t *testing.T, db *gorm.DB, username string, opts ...userOpt) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		PasswordHash: "x",
		ReferralCode: "KIRDA" + strings.ToUpper(username),
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return &u
}

func createGame(t *testing.T, db *gorm.DB, name string) *models.Game {
	t.Helper()
	g := &models.Game{Name: name, DisplayName: name, IsActive: true}
	require.NoError(t, db.Create(g).Error)
	return g
}

type tournamentOpt func(*models.Tournament)

func withFee(fee string) tournamentOpt {
	return func(tm *models.Tournament) { tm.EntryFee = decimal.RequireFromString(fee) }
}

func withCapacity(n int) tournamentOpt {
	return func(tm *models.Tournament) { tm.MaxPlayers = n }
}

func withStatus(s models.TournamentStatus) tournamentOpt {
	return func(tm *models.Tournament) { tm.Status = s }
}

func withSchedule(start, end time.Time) tournamentOpt {
	return func(tm *models.Tournament) {
		tm.StartTime = start
		tm.EndTime = end
	}
}

// createTournament inserts an upcoming tournament starting in an hour.
func createTournament(t *testing.T, db *gorm.DB, game *models.Game, opts ...tournamentOpt) *models.Tournament {
	t.Helper()
	tm := &models.Tournament{
		GameID:     game.ID,
		Name:       "Cup " + uuid.NewString()[:8],
		EntryFee:   decimal.NewFromInt(50),
		PrizePool:  decimal.NewFromInt(5000),
		MaxPlayers: 100,
		StartTime:  testEpoch.Add(time.Hour),
		EndTime:    testEpoch.Add(2 * time.Hour),
		Status:     models.TournamentUpcoming,
	}
	for _, opt := range opts {
		opt(tm)
	}
	require.NoError(t, db.Create(tm).Error)
	return tm
}

func userTransactions(t *testing.T, db *gorm.DB, userID string) []models.Transaction {
	t.Helper()
	var txns []models.Transaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at ASC").Find(&txns).Error)
	return txns
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), fmt.Sprint(msgAndArgs...))
}

type memoryImages struct {
	mu   sync.Mutex
	keys []string
}

func (m *memoryImages) Put(_ context.Context, key string, _ *multipart.FileHeader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return "https://cdn.test/" + key, nil
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
