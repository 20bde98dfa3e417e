package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/models"
)

// Repository stores activities as documents in the activities collection.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	if err := r.store.Put(ctx, docstore.Doc{
		Collection: docstore.CollectionActivities,
		ID:         activity.ID,
		SessionID:  activity.SessionID,
		Data:       data,
	}); err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

func (r *Repository) GetActivity(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionActivities, id)
	if err != nil {
		return nil, err
	}
	var activity models.Activity
	if err := json.Unmarshal(doc.Data, &activity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activity: %w", err)
	}
	return &activity, nil
}

// UpdateActivity applies fn to the stored activity inside a read-modify-write.
func (r *Repository) UpdateActivity(ctx context.Context, id uuid.UUID, fn func(activity *models.Activity)) (*models.Activity, error) {
	var out models.Activity
	_, err := r.store.Update(ctx, docstore.CollectionActivities, id, func(data json.RawMessage) (json.RawMessage, error) {
		var activity models.Activity
		if err := json.Unmarshal(data, &activity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity: %w", err)
		}
		fn(&activity)
		out = activity
		return json.Marshal(activity)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repository) DeleteActivity(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Delete(ctx, docstore.CollectionActivities, id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

// ListActivities returns every activity in the session, newest first.
func (r *Repository) ListActivities(ctx context.Context, sessionID uuid.UUID) ([]models.Activity, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionActivities, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return decodeActivities(docs), nil
}

// WatchActivities streams activity snapshots for a session, newest first.
func (r *Repository) WatchActivities(ctx context.Context, sessionID uuid.UUID, fn func([]models.Activity)) (func(), error) {
	return r.store.Watch(ctx, docstore.CollectionActivities, sessionID, func(docs []docstore.Doc) {
		fn(decodeActivities(docs))
	})
}

// DeleteBySession removes every activity owned by the session. Deletes are
// independent and best-effort.
func (r *Repository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionActivities, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to list activities for deletion: %w", err)
	}
	deleted := 0
	for _, doc := range docs {
		if err := r.store.Delete(ctx, docstore.CollectionActivities, doc.ID); err != nil {
			log.Error().Err(err).Str("activity_id", doc.ID.String()).Msg("failed to delete activity during cascade")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func decodeActivities(docs []docstore.Doc) []models.Activity {
	out := make([]models.Activity, 0, len(docs))
	for _, doc := range docs {
		var activity models.Activity
		if err := json.Unmarshal(doc.Data, &activity); err != nil {
			log.Error().Err(err).Str("activity_id", doc.ID.String()).Msg("skipping undecodable activity snapshot")
			continue
		}
		out = append(out, activity)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
