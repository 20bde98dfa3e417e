package activity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/models"
)

func newActivityApp(t *testing.T) (*App, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := docstore.NewMemoryStoreWithClock(clock)
	return NewApp(NewRepository(store), clock), clock
}

func TestAddCreatesPendingHiddenActivity(t *testing.T) {
	app, _ := newActivityApp(t)
	ctx := context.Background()

	act, err := app.Add(ctx, AddActivityRequest{
		SessionID: uuid.New(),
		Type:      models.ActivityMadSadGlad,
		AddedBy:   "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ActivityStatusPending, act.Status)
	assert.False(t, act.VisibleToAll)
	assert.False(t, act.Launched)
	assert.Nil(t, act.StartedAt)

	_, err = app.Add(ctx, AddActivityRequest{SessionID: uuid.Nil, Type: models.ActivityMadSadGlad})
	assert.Error(t, err)
	_, err = app.Add(ctx, AddActivityRequest{SessionID: uuid.New()})
	assert.Error(t, err)
}

func TestLaunchIsANoOpUnlessPending(t *testing.T) {
	app, clock := newActivityApp(t)
	ctx := context.Background()

	act, err := app.Add(ctx, AddActivityRequest{SessionID: uuid.New(), Type: models.ActivityStartStopContinue, AddedBy: "alice"})
	require.NoError(t, err)

	launched, err := app.Launch(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusActive, launched.Status)
	assert.True(t, launched.VisibleToAll)
	assert.True(t, launched.Launched)
	require.NotNil(t, launched.StartedAt)
	firstStart := *launched.StartedAt

	clock.Advance(time.Minute)
	again, err := app.Launch(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusActive, again.Status)
	assert.True(t, firstStart.Equal(*again.StartedAt), "double launch changes nothing")

	completed, err := app.Complete(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusCompleted, completed.Status)

	after, err := app.Launch(ctx, act.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusCompleted, after.Status, "status never regresses")
}

func TestCompleteIsIdempotent(t *testing.T) {
	app, clock := newActivityApp(t)
	ctx := context.Background()

	act, err := app.Add(ctx, AddActivityRequest{SessionID: uuid.New(), Type: models.ActivityMadSadGlad, AddedBy: "alice"})
	require.NoError(t, err)
	_, err = app.Launch(ctx, act.ID)
	require.NoError(t, err)

	first, err := app.Complete(ctx, act.ID)
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)
	stamp := *first.CompletedAt

	clock.Advance(time.Minute)
	second, err := app.Complete(ctx, act.ID)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(*second.CompletedAt), "repeat completion keeps the original timestamp")
}

func TestGetWithRetryWaitsForSettle(t *testing.T) {
	app, clock := newActivityApp(t)
	ctx := context.Background()
	id := uuid.New()

	type result struct {
		act *models.Activity
		err error
	}
	done := make(chan result, 1)
	go func() {
		act, err := app.GetWithRetry(ctx, id)
		done <- result{act, err}
	}()

	// First lookup misses; while the caller sits out the settle delay the
	// document arrives.
	clock.BlockUntil(1)
	require.NoError(t, app.repo.CreateActivity(ctx, &models.Activity{
		ID: id, SessionID: uuid.New(), Type: models.ActivityMadSadGlad,
		Status: models.ActivityStatusPending, CreatedAt: clock.Now(),
	}))
	clock.Advance(lookupSettleDelay)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, id, res.act.ID)
}

func TestGetWithRetryEventuallyGivesUp(t *testing.T) {
	app, clock := newActivityApp(t)

	done := make(chan error, 1)
	go func() {
		_, err := app.GetWithRetry(context.Background(), uuid.New())
		done <- err
	}()

	for i := 0; i < lookupRetries-1; i++ {
		clock.BlockUntil(1)
		clock.Advance(lookupSettleDelay)
	}

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestListIsNewestFirstAndFiltered(t *testing.T) {
	app, clock := newActivityApp(t)
	ctx := context.Background()
	sid := uuid.New()

	older, err := app.Add(ctx, AddActivityRequest{SessionID: sid, Type: models.ActivityMadSadGlad, AddedBy: "alice"})
	require.NoError(t, err)
	clock.Advance(time.Second)
	newer, err := app.Add(ctx, AddActivityRequest{SessionID: sid, Type: models.ActivityStartStopContinue, AddedBy: "alice"})
	require.NoError(t, err)

	admin, err := app.List(ctx, sid, true)
	require.NoError(t, err)
	require.Len(t, admin, 2)
	assert.Equal(t, newer.ID, admin[0].ID)
	assert.Equal(t, older.ID, admin[1].ID)

	participant, err := app.List(ctx, sid, false)
	require.NoError(t, err)
	assert.Empty(t, participant, "pending activities stay hidden")

	_, err = app.Launch(ctx, newer.ID)
	require.NoError(t, err)
	participant, err = app.List(ctx, sid, false)
	require.NoError(t, err)
	require.Len(t, participant, 1)
	assert.Equal(t, newer.ID, participant[0].ID)
}
