package services

import (
	"context"
	"testing"
	"time"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// finishedTournament returns a tournament in pending_results with the given entrants.
func finishedTournament(t *testing.T, env *testEnv, players ...string) (*models.Tournament, []*models.User) {
	t.Helper()
	ctx := context.Background()
	tm := createTournament(t, env.DB, createGame(t, env.DB, "freefire"), withFee("0"))
	users := make([]*models.User, len(players))
	for i, name := range players {
		users[i] = createUser(t, env.DB, name)
		_, err := env.Tournaments.JoinTournament(ctx, users[i].ID, tm.ID)
		require.NoError(t, err)
	}
	env.Clock.Advance(3 * time.Hour)
	_, err := env.Tournaments.UpdateStatusByTime(ctx)
	require.NoError(t, err)
	require.Equal(t, models.TournamentPendingResults, statusOf(t, env, tm.ID))
	return tm, users
}

func TestValidateBatch(t *testing.T) {
	ok := []ResultInput{
		{TournamentID: "t", UserID: "a", Position: 1, WinningAmount: dec("100")},
		{TournamentID: "t", UserID: "b", Position: 2},
	}
	id, err := validateBatch(ok)
	require.NoError(t, err)
	assert.Equal(t, "t", id)

	cases := map[string][]ResultInput{
		"empty":              nil,
		"missing user":       {{TournamentID: "t", Position: 1}},
		"mixed tournaments":  {{TournamentID: "t", UserID: "a", Position: 1}, {TournamentID: "u", UserID: "b", Position: 2}},
		"negative position":  {{TournamentID: "t", UserID: "a", Position: -1}},
		"negative kills":     {{TournamentID: "t", UserID: "a", Position: 1, TotalKills: -2}},
		"negative amount":    {{TournamentID: "t", UserID: "a", Position: 1, WinningAmount: dec("-1")}},
		"duplicate position": {{TournamentID: "t", UserID: "a", Position: 1}, {TournamentID: "t", UserID: "b", Position: 1}},
		"duplicate user":     {{TournamentID: "t", UserID: "a", Position: 1}, {TournamentID: "t", UserID: "a", Position: 2}},
	}
	for name, batch := range cases {
		_, err := validateBatch(batch)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
}

func TestIngestPaysWinnersAndCompletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tm, users := finishedTournament(t, env, "winner", "runner", "third")

	report, err := env.Results.Ingest(ctx, []ResultInput{
		{TournamentID: tm.ID, UserID: users[1].ID, Position: 2, TotalKills: 4, WinningAmount: dec("50")},
		{TournamentID: tm.ID, UserID: users[0].ID, Position: 1, TotalKills: 9, WinningAmount: dec("150"), IsLastWinner: true},
		{TournamentID: tm.ID, UserID: users[2].ID, Position: 3, TotalKills: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.ProcessedCount)
	assert.Equal(t, 3, report.TotalCount)
	assert.Empty(t, report.Failures)
	assert.Equal(t, models.TournamentCompleted, report.Status)
	assert.Equal(t, models.TournamentCompleted, statusOf(t, env, tm.ID))

	winner := reloadUser(t, env.DB, users[0].ID)
	assertDecimal(t, "150", winner.WithdrawalWallet)
	assertDecimal(t, "150", winner.TotalEarned)
	assert.Equal(t, 1, winner.Wins)

	runner := reloadUser(t, env.DB, users[1].ID)
	assertDecimal(t, "50", runner.WithdrawalWallet)
	assert.Equal(t, 0, runner.Wins)

	assert.Empty(t, userTransactions(t, env.DB, users[2].ID), "zero prize moves no money")

	var entry models.TournamentEntry
	require.NoError(t, env.DB.First(&entry, "tournament_id = ? AND user_id = ?", tm.ID, users[0].ID).Error)
	require.NotNil(t, entry.Position)
	assert.Equal(t, 1, *entry.Position)
	assertDecimal(t, "150", *entry.Prize)

	rows, err := env.Results.ListResults(ctx, tm.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "winner", rows[0].Username)
	assert.Equal(t, 1, rows[0].Position)
	assert.True(t, rows[0].IsLastWinner)
}

func TestIngestRejectsDuplicatePositionsWithoutSideEffects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tm, users := finishedTournament(t, env, "p1", "p2")

	_, err := env.Results.Ingest(ctx, []ResultInput{
		{TournamentID: tm.ID, UserID: users[0].ID, Position: 1, WinningAmount: dec("100")},
		{TournamentID: tm.ID, UserID: users[1].ID, Position: 1, WinningAmount: dec("100")},
	})
	require.ErrorIs(t, err, ErrValidation)

	var stored int64
	require.NoError(t, env.DB.Model(&models.TournamentResult{}).Count(&stored).Error)
	assert.Zero(t, stored)
	assertDecimal(t, "0", reloadUser(t, env.DB, users[0].ID).WithdrawalWallet)
	assert.Equal(t, models.TournamentPendingResults, statusOf(t, env, tm.ID))
}

func TestIngestAgainstStoredResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tm, users := finishedTournament(t, env, "p1", "p2", "p3")

	_, err := env.Results.Ingest(ctx, []ResultInput{
		{TournamentID: tm.ID, UserID: users[0].ID, Position: 1, WinningAmount: dec("100")},
	})
	require.NoError(t, err)

	_, err = env.Results.Ingest(ctx, []ResultInput{
		{TournamentID: tm.ID, UserID: users[1].ID, Position: 1, WinningAmount: dec("100")},
	})
	assert.ErrorIs(t, err, ErrConflict, "position already taken")

	report, err := env.Results.Ingest(ctx, []ResultInput{
		{TournamentID: tm.ID, UserID: users[1].ID, Position: 2, WinningAmount: dec("40")},
	})
	require.NoError(t, err, "a completed tournament accepts further positions")
	assert.Equal(t, 1, report.ProcessedCount)

	assertDecimal(t, "100", reloadUser(t, env.DB, users[0].ID).WithdrawalWallet)
}

func TestIngestPreconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game := createGame(t, env.DB, "bgmi")
	upcoming := createTournament(t, env.DB, game, withFee("0"))
	player := createUser(t, env.DB, "player")
	outsider := createUser(t, env.DB, "outsider")
	_, err := env.Tournaments.JoinTournament(ctx, player.ID, upcoming.ID)
	require.NoError(t, err)

	_, err = env.Results.Ingest(ctx, []ResultInput{{TournamentID: upcoming.ID, UserID: player.ID, Position: 1}})
	assert.ErrorIs(t, err, ErrValidation, "results before the tournament ends")

	env.Clock.Advance(3 * time.Hour)
	_, err = env.Results.Ingest(ctx, []ResultInput{{TournamentID: upcoming.ID, UserID: outsider.ID, Position: 1}})
	assert.ErrorIs(t, err, ErrValidation, "non-entrant")

	_, err = env.Results.Ingest(ctx, []ResultInput{{TournamentID: upcoming.ID, UserID: "ghost", Position: 1}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.Results.Ingest(ctx, []ResultInput{{TournamentID: "missing", UserID: player.ID, Position: 1}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIngestContinuesPastFrozenWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tm, users := finishedTournament(t, env, "cold", "warm")
	require.NoError(t, env.DB.Model(&models.User{}).Where("id = ?", users[0].ID).Update("is_wallet_frozen", true).Error)

	report, err := env.Results.Ingest(ctx, []ResultInput{
		{TournamentID: tm.ID, UserID: users[0].ID, Position: 1, WinningAmount: dec("100")},
		{TournamentID: tm.ID, UserID: users[1].ID, Position: 2, WinningAmount: dec("50")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ProcessedCount)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, users[0].ID, report.Failures[0].UserID)
	assert.Equal(t, models.TournamentCompleted, report.Status)

	var stored int64
	require.NoError(t, env.DB.Model(&models.TournamentResult{}).Where("user_id = ?", users[0].ID).Count(&stored).Error)
	assert.Zero(t, stored, "the failed entry's result row rolls back with its payout")
	assertDecimal(t, "50", reloadUser(t, env.DB, users[1].ID).WithdrawalWallet)
}
