package cards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/models"
)

type stubSessions struct {
	session *models.Session
}

func (s *stubSessions) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if s.session == nil || s.session.ID != id {
		return nil, docstore.ErrNotFound
	}
	return s.session, nil
}

// flakyStore fails the first N card Puts to exercise the retry path.
type flakyStore struct {
	docstore.Store

	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyStore) Put(ctx context.Context, doc docstore.Doc) error {
	if doc.Collection == docstore.CollectionCards {
		f.mu.Lock()
		f.attempts++
		fail := f.attempts <= f.failures
		f.mu.Unlock()
		if fail {
			return errors.New("transient store failure")
		}
	}
	return f.Store.Put(ctx, doc)
}

func newCardApp(t *testing.T, status models.SessionStatus) (*App, *stubSessions, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := docstore.NewMemoryStoreWithClock(clock)
	sessions := &stubSessions{session: &models.Session{
		ID:     uuid.New(),
		Status: status,
	}}
	return NewApp(NewRepository(store), sessions, clock), sessions, clock
}

func TestAddCardValidation(t *testing.T) {
	app, sessions, _ := newCardApp(t, models.SessionStatusOpen)
	ctx := context.Background()

	_, err := app.AddCard(ctx, AddCardRequest{SessionID: uuid.Nil, Text: "x", Author: "a"})
	assert.Error(t, err)

	_, err = app.AddCard(ctx, AddCardRequest{SessionID: sessions.session.ID, Text: "   ", Author: "a"})
	assert.Error(t, err)

	_, err = app.AddCard(ctx, AddCardRequest{SessionID: sessions.session.ID, Text: "x", Author: ""})
	assert.Error(t, err)
}

func TestAddCardRejectsPausedAndClosedSessions(t *testing.T) {
	ctx := context.Background()

	app, sessions, _ := newCardApp(t, models.SessionStatusPaused)
	_, err := app.AddCard(ctx, AddCardRequest{SessionID: sessions.session.ID, Text: "x", Author: "a", Column: models.ColumnMad})
	assert.ErrorIs(t, err, ErrSessionPaused)

	app, sessions, _ = newCardApp(t, models.SessionStatusClosed)
	_, err = app.AddCard(ctx, AddCardRequest{SessionID: sessions.session.ID, Text: "x", Author: "a", Column: models.ColumnMad})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestAddCardRetriesTransientFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &flakyStore{Store: docstore.NewMemoryStoreWithClock(clock), failures: 2}
	sessions := &stubSessions{session: &models.Session{ID: uuid.New(), Status: models.SessionStatusOpen}}
	app := NewApp(NewRepository(store), sessions, clock)
	ctx := context.Background()

	type result struct {
		id  uuid.UUID
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := app.AddCard(ctx, AddCardRequest{
			SessionID: sessions.session.ID, Text: "stubborn", Author: "a", Column: models.ColumnGlad, IsVisible: true,
		})
		done <- result{id, err}
	}()

	// Two failures, each followed by a fixed delay before the next attempt.
	clock.BlockUntil(1)
	clock.Advance(createRetryDelay)
	clock.BlockUntil(1)
	clock.Advance(createRetryDelay)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 3, store.attempts)

	cards, err := app.ListCards(ctx, sessions.session.ID, false)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "stubborn", cards[0].Text)
}

func TestAddCardGivesUpAfterRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &flakyStore{Store: docstore.NewMemoryStoreWithClock(clock), failures: 10}
	sessions := &stubSessions{session: &models.Session{ID: uuid.New(), Status: models.SessionStatusOpen}}
	app := NewApp(NewRepository(store), sessions, clock)

	done := make(chan error, 1)
	go func() {
		_, err := app.AddCard(context.Background(), AddCardRequest{
			SessionID: sessions.session.ID, Text: "doomed", Author: "a", Column: models.ColumnSad,
		})
		done <- err
	}()

	clock.BlockUntil(1)
	clock.Advance(createRetryDelay)
	clock.BlockUntil(1)
	clock.Advance(createRetryDelay)

	err := <-done
	require.Error(t, err)
	assert.Equal(t, createRetries+1, store.attempts)
}

func TestVisibilityToggles(t *testing.T) {
	app, sessions, clock := newCardApp(t, models.SessionStatusOpen)
	ctx := context.Background()
	sid := sessions.session.ID

	add := func(text string, column models.ColumnType) uuid.UUID {
		id, err := app.AddCard(ctx, AddCardRequest{SessionID: sid, Text: text, Author: "a", Column: column, IsVisible: false})
		require.NoError(t, err)
		clock.Advance(time.Millisecond) // distinct creation timestamps
		return id
	}

	mad := add("m", models.ColumnMad)
	add("s", models.ColumnSad)
	add("g", models.ColumnGlad)

	// Everything hidden from participants, everything visible to the admin.
	participant, err := app.ListCards(ctx, sid, false)
	require.NoError(t, err)
	assert.Empty(t, participant)
	admin, err := app.ListCards(ctx, sid, true)
	require.NoError(t, err)
	assert.Len(t, admin, 3)

	require.NoError(t, app.SetCardVisibility(ctx, mad, true))
	participant, err = app.ListCards(ctx, sid, false)
	require.NoError(t, err)
	require.Len(t, participant, 1)
	assert.Equal(t, "m", participant[0].Text)

	require.NoError(t, app.SetColumnVisibility(ctx, sid, models.ColumnSad, true))
	participant, err = app.ListCards(ctx, sid, false)
	require.NoError(t, err)
	assert.Len(t, participant, 2)

	require.NoError(t, app.SetAllCardsVisibility(ctx, sid, true))
	participant, err = app.ListCards(ctx, sid, false)
	require.NoError(t, err)
	assert.Len(t, participant, 3)

	require.NoError(t, app.SetAllCardsVisibility(ctx, sid, false))
	participant, err = app.ListCards(ctx, sid, false)
	require.NoError(t, err)
	assert.Empty(t, participant)
}

func TestSubscribeCardsFiltersForViewer(t *testing.T) {
	app, sessions, _ := newCardApp(t, models.SessionStatusOpen)
	ctx := context.Background()
	sid := sessions.session.ID

	var snapshots [][]models.Card
	unsubscribe, err := app.SubscribeCards(ctx, sid, false, func(cards []models.Card) {
		snapshots = append(snapshots, cards)
	})
	require.NoError(t, err)
	defer unsubscribe()

	_, err = app.AddCard(ctx, AddCardRequest{SessionID: sid, Text: "hidden", Author: "a", Column: models.ColumnMad, IsVisible: false})
	require.NoError(t, err)
	_, err = app.AddCard(ctx, AddCardRequest{SessionID: sid, Text: "shown", Author: "a", Column: models.ColumnMad, IsVisible: true})
	require.NoError(t, err)

	require.NotEmpty(t, snapshots)
	last := snapshots[len(snapshots)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "shown", last[0].Text)
}
