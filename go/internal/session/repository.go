package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/models"
)

// Repository stores sessions as documents keyed by their own ID.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) CreateSession(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.store.Put(ctx, docstore.Doc{
		Collection: docstore.CollectionSessions,
		ID:         session.ID,
		SessionID:  session.ID,
		Data:       data,
	}); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionSessions, id)
	if err != nil {
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(doc.Data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// UpdateSession applies fn to the stored session inside a read-modify-write.
func (r *Repository) UpdateSession(ctx context.Context, id uuid.UUID, fn func(session *models.Session)) (*models.Session, error) {
	var out models.Session
	_, err := r.store.Update(ctx, docstore.CollectionSessions, id, func(data json.RawMessage) (json.RawMessage, error) {
		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		fn(&session)
		out = session
		return json.Marshal(session)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Delete(ctx, docstore.CollectionSessions, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// WatchSession streams one session's change feed. A nil session means the
// document was deleted.
func (r *Repository) WatchSession(ctx context.Context, id uuid.UUID, fn func(*models.Session)) (func(), error) {
	return r.store.WatchDoc(ctx, docstore.CollectionSessions, id, func(doc *docstore.Doc) {
		if doc == nil {
			fn(nil)
			return
		}
		var session models.Session
		if err := json.Unmarshal(doc.Data, &session); err != nil {
			// Keep the subscriber's last good state.
			return
		}
		fn(&session)
	})
}
