package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/models"
)

// Repository stores at most one timer document per session, keyed by the
// session's ID.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) PutTimer(ctx context.Context, state *models.TimerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal timer: %w", err)
	}
	if err := r.store.Put(ctx, docstore.Doc{
		Collection: docstore.CollectionTimers,
		ID:         state.SessionID,
		SessionID:  state.SessionID,
		Data:       data,
	}); err != nil {
		return fmt.Errorf("failed to put timer: %w", err)
	}
	return nil
}

func (r *Repository) GetTimer(ctx context.Context, sessionID uuid.UUID) (*models.TimerState, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionTimers, sessionID)
	if err != nil {
		return nil, err
	}
	var state models.TimerState
	if err := json.Unmarshal(doc.Data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timer: %w", err)
	}
	return &state, nil
}

// UpdateTimer applies fn to the stored timer inside a read-modify-write.
func (r *Repository) UpdateTimer(ctx context.Context, sessionID uuid.UUID, fn func(state *models.TimerState)) (*models.TimerState, error) {
	var out models.TimerState
	_, err := r.store.Update(ctx, docstore.CollectionTimers, sessionID, func(data json.RawMessage) (json.RawMessage, error) {
		var state models.TimerState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal timer: %w", err)
		}
		fn(&state)
		out = state
		return json.Marshal(state)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repository) DeleteTimer(ctx context.Context, sessionID uuid.UUID) error {
	if err := r.store.Delete(ctx, docstore.CollectionTimers, sessionID); err != nil {
		return fmt.Errorf("failed to delete timer: %w", err)
	}
	return nil
}

// WatchTimer streams one session's timer document. A nil state means the
// document was deleted.
func (r *Repository) WatchTimer(ctx context.Context, sessionID uuid.UUID, fn func(*models.TimerState)) (func(), error) {
	return r.store.WatchDoc(ctx, docstore.CollectionTimers, sessionID, func(doc *docstore.Doc) {
		if doc == nil {
			fn(nil)
			return
		}
		var state models.TimerState
		if err := json.Unmarshal(doc.Data, &state); err != nil {
			// Keep the subscriber's last good state.
			return
		}
		fn(&state)
	})
}

// Now returns the store's authoritative time for timer math.
func (r *Repository) Now(ctx context.Context) time.Time {
	return r.store.Now(ctx)
}
