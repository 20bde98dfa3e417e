package session

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrolive/retrolive/go/internal/activity"
	"github.com/retrolive/retrolive/go/internal/cards"
	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/models"
	"github.com/retrolive/retrolive/go/internal/timer"
)

type fixture struct {
	store      *docstore.MemoryStore
	app        *App
	cards      *cards.Repository
	activities *activity.Repository
	timers     *timer.Repository
	clock      *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := docstore.NewMemoryStoreWithClock(clock)
	cardRepo := cards.NewRepository(store)
	activityRepo := activity.NewRepository(store)
	timerRepo := timer.NewRepository(store)
	return &fixture{
		store:      store,
		app:        NewApp(NewRepository(store), cardRepo, activityRepo, timerRepo, clock),
		cards:      cardRepo,
		activities: activityRepo,
		timers:     timerRepo,
		clock:      clock,
	}
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.app.Create(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusOpen, sess.Status)
	assert.Equal(t, "alice", sess.AdminID)
	assert.Equal(t, "alice", sess.CreatedBy)
	assert.True(t, sess.CardsVisible)
	require.Len(t, sess.Participants, 1)
	assert.Equal(t, "alice", sess.Participants[0].DisplayName)
	assert.Equal(t, models.PresenceOnline, sess.Participants[0].Presence)

	assert.Len(t, sess.ShareCode, 6)
	for _, c := range sess.ShareCode {
		assert.True(t, strings.ContainsRune(shareCodeAlphabet, c), "share code uses the unambiguous alphabet")
	}

	_, err = f.app.Create(ctx, "   ")
	assert.Error(t, err)
}

func TestAddParticipantDeduplicatesCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.app.Create(ctx, "alice")
	require.NoError(t, err)

	bobID, err := f.app.AddParticipant(ctx, sess.ID, "Bob")
	require.NoError(t, err)

	againID, err := f.app.AddParticipant(ctx, sess.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, bobID, againID, "same name joins as the same participant")

	got, err := f.app.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 2)
}

func TestSetStatusRejectsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.app.Create(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, f.app.SetStatus(ctx, sess.ID, models.SessionStatusPaused))
	got, err := f.app.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPaused, got.Status)

	assert.Error(t, f.app.SetStatus(ctx, sess.ID, models.SessionStatusClosed), "close must go through Close")
}

func TestCloseCascadesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.app.Create(ctx, "alice")
	require.NoError(t, err)

	visible := true
	require.NoError(t, f.cards.CreateCard(ctx, &models.Card{
		ID: uuid.New(), SessionID: sess.ID, Text: "note", Author: "alice",
		Column: models.ColumnGlad, IsVisible: &visible, CreatedAt: f.clock.Now(),
	}))
	require.NoError(t, f.activities.CreateActivity(ctx, &models.Activity{
		ID: uuid.New(), SessionID: sess.ID, Type: models.ActivityMadSadGlad,
		Status: models.ActivityStatusPending, CreatedAt: f.clock.Now(),
	}))
	require.NoError(t, f.timers.PutTimer(ctx, &models.TimerState{
		SessionID: sess.ID, IsRunning: false, DurationMinutes: 5,
	}))

	require.NoError(t, f.app.Close(ctx, sess.ID))

	_, err = f.app.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	remaining, err := f.cards.ListCards(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	acts, err := f.activities.ListActivities(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, acts)

	_, err = f.timers.GetTimer(ctx, sess.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	// Closing again converges on the same end state.
	assert.NoError(t, f.app.Close(ctx, sess.ID))
}

func TestSetCurrentActivityVerifiesWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.app.Create(ctx, "alice")
	require.NoError(t, err)

	activityID := uuid.New()
	require.NoError(t, f.app.SetCurrentActivity(ctx, sess.ID, &activityID))

	got, err := f.app.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentActivityID)
	assert.Equal(t, activityID, *got.CurrentActivityID)

	require.NoError(t, f.app.SetCurrentActivity(ctx, sess.ID, nil))
	got, err = f.app.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentActivityID)
}

func TestSubscribeObservesClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.app.Create(ctx, "alice")
	require.NoError(t, err)

	var deliveries []*models.Session
	unsubscribe, err := f.app.Subscribe(ctx, sess.ID, func(s *models.Session) {
		deliveries = append(deliveries, s)
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, f.app.Close(ctx, sess.ID))

	require.NotEmpty(t, deliveries)
	assert.Nil(t, deliveries[len(deliveries)-1], "deletion arrives as a nil session")
}
