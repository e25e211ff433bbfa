package services

import (
	"context"
	"testing"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWinRate(t *testing.T) {
	tests := []struct {
		wins, played int
		want         string
	}{
		{0, 0, "0%"},
		{0, 5, "0%"},
		{1, 3, "33%"},
		{2, 3, "67%"},
		{4, 4, "100%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WinRate(tt.wins, tt.played), "%d/%d", tt.wins, tt.played)
	}
}

func TestUserViewFixesBalances(t *testing.T) {
	u := &models.User{DepositWallet: dec("10.5"), WithdrawalWallet: dec("3"), ReferralWallet: dec("0.25"), TotalEarned: dec("7")}
	v := NewUserView(u)
	assert.Equal(t, "10.50", v.DepositWallet)
	assert.Equal(t, "3.00", v.WithdrawalWallet)
	assert.Equal(t, "13.75", v.TotalBalance)
	assert.Equal(t, "7.00", v.TotalEarned)
}

func TestUserReferralsAndHistory(t *testing.T) {
	env := newTestEnv(t)
	users := NewUserService(env.DB, env.Ledger, zaptest.NewLogger(t))
	ctx := context.Background()

	owner := createUser(t, env.DB, "owner", withWallets("500", "0", "0"))
	createUser(t, env.DB, "friend", referredBy(owner.ReferralCode))
	createUser(t, env.DB, "stranger")

	refs, err := users.Referrals(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "friend", refs[0].Username)

	name, err := users.ValidateReferralCode(ctx, " kirdaowner ")
	require.NoError(t, err)
	assert.Equal(t, "owner", name)
	_, err = users.ValidateReferralCode(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = users.ValidateReferralCode(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	tm := createTournament(t, env.DB, createGame(t, env.DB, "codm"))
	_, err = env.Tournaments.JoinTournament(ctx, owner.ID, tm.ID)
	require.NoError(t, err)

	history, err := users.GameHistory(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, tm.Name, history[0].TournamentName)
	assert.Equal(t, "codm", history[0].GameName)
	assert.Nil(t, history[0].Position)

	stats, err := users.Stats(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TournamentsPlayed)
	assert.Equal(t, "0%", stats.WinRate)

	found, err := users.ListUsers(ctx, "FRI", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "friend", found[0].Username)
}

func TestUserAdminWalletOps(t *testing.T) {
	env := newTestEnv(t)
	users := NewUserService(env.DB, env.Ledger, zaptest.NewLogger(t))
	ctx := context.Background()
	u := createUser(t, env.DB, "player", withWallets("100", "0", "0"))

	updated, txns, err := users.UpdateWallets(ctx, u.ID, WalletTargets{Deposit: decPtr("40"), Withdrawal: decPtr("10")})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	assertDecimal(t, "40", updated.DepositWallet)
	assertDecimal(t, "10", updated.WithdrawalWallet)

	frozenUser, err := users.SetFrozen(ctx, u.ID, true)
	require.NoError(t, err)
	assert.True(t, frozenUser.IsWalletFrozen)

	_, _, err = users.UpdateWallets(ctx, u.ID, WalletTargets{Deposit: decPtr("0")})
	assert.ErrorIs(t, err, ErrWalletFrozen)

	all, err := users.AllTransactions(ctx, string(models.TxAdminAdjustment), 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
