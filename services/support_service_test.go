package services

import (
	"context"
	"testing"
	"time"

	"github.com/olauber7232/tournament-latest-1/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"
	"go.uber.org/zap/zaptest"
)

func TestHelpRequests(t *testing.T) {
	env := newTestEnv(t)
	alerts := &recordingAlerter{}
	support := NewSupportService(env.DB, zaptest.NewLogger(t), alerts)
	ctx := context.Background()
	u := createUser(t, env.DB, "player")

	_, err := support.CreateHelpRequest(ctx, u.ID, HelpRequestInput{Subject: " ", Message: "hi"})
	assert.ErrorIs(t, err, ErrValidation)

	req, err := support.CreateHelpRequest(ctx, u.ID, HelpRequestInput{Subject: "Deposit missing", Message: "Paid 500 but wallet shows 0"})
	require.NoError(t, err)
	assert.Equal(t, models.HelpOpen, req.Status)
	assert.Equal(t, []string{"New help request: Deposit missing"}, alerts.subjects)

	updated, err := support.UpdateHelpRequest(ctx, req.ID, HelpRequestUpdate{
		Status:        models.HelpResolved,
		AdminResponse: pointer.String("Credited after verification"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.HelpResolved, updated.Status)

	open, err := support.AllHelpRequests(ctx, string(models.HelpOpen))
	require.NoError(t, err)
	assert.Empty(t, open)

	mine, err := support.UserHelpRequests(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Credited after verification", *mine[0].AdminResponse)

	_, err = support.UpdateHelpRequest(ctx, "missing", HelpRequestUpdate{Status: models.HelpResolved})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessagesFor(t *testing.T) {
	env := newTestEnv(t)
	support := NewSupportService(env.DB, zaptest.NewLogger(t), nil)
	ctx := context.Background()
	alice := createUser(t, env.DB, "alice")
	bob := createUser(t, env.DB, "bob")

	broadcast, err := support.CreateMessage(ctx, AdminMessageInput{Title: "Maintenance", Message: "Down at 2am"})
	require.NoError(t, err)
	assert.Equal(t, "info", broadcast.Type)

	_, err = support.CreateMessage(ctx, AdminMessageInput{Title: "Bonus", Message: "You won a bonus", Type: "success", TargetUserID: &alice.ID})
	require.NoError(t, err)
	_, err = support.CreateMessage(ctx, AdminMessageInput{Title: "x", Message: "y", TargetUserID: pointer.String("ghost")})
	assert.ErrorIs(t, err, ErrNotFound)

	forAlice, err := support.MessagesFor(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, forAlice, 2)

	forBob, err := support.MessagesFor(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Equal(t, "Maintenance", forBob[0].Title)

	all, err := support.AllMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSeedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	auth := newTestAuth(t, env)
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	require.NoError(t, Seed(ctx, env.DB, auth, env.Tournaments, "admin", "rootpass", true, log))
	require.NoError(t, Seed(ctx, env.DB, auth, env.Tournaments, "admin", "rootpass", true, log))

	var games, tournaments, admins int64
	require.NoError(t, env.DB.Model(&models.Game{}).Count(&games).Error)
	require.NoError(t, env.DB.Model(&models.Tournament{}).Count(&tournaments).Error)
	require.NoError(t, env.DB.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error)
	assert.EqualValues(t, 3, games)
	assert.EqualValues(t, 2, tournaments)
	assert.EqualValues(t, 1, admins)

	open, err := env.Tournaments.ListOpen(ctx, "")
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, tm := range open {
		assert.Zero(t, tm.CurrentPlayers)
		assert.Equal(t, time.Hour, tm.EndTime.Sub(tm.StartTime))
	}
}

func TestSeedWithoutAdminPassword(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, Seed(context.Background(), env.DB, newTestAuth(t, env), env.Tournaments, "admin", "", false, zaptest.NewLogger(t)))

	var users, tournaments int64
	require.NoError(t, env.DB.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, env.DB.Model(&models.Tournament{}).Count(&tournaments).Error)
	assert.Zero(t, users)
	assert.Zero(t, tournaments)
}
