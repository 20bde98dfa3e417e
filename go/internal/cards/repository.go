package cards

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

// Repository stores cards as documents in the cards collection.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to marshal card: %w", err)
	}
	if err := r.store.Put(ctx, docstore.Doc{
		Collection: docstore.CollectionCards,
		ID:         card.ID,
		SessionID:  card.SessionID,
		Data:       data,
	}); err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

func (r *Repository) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionCards, id)
	if err != nil {
		return nil, err
	}
	var card models.Card
	if err := json.Unmarshal(doc.Data, &card); err != nil {
		return nil, fmt.Errorf("failed to unmarshal card: %w", err)
	}
	return &card, nil
}

// UpdateCard applies fn to the stored card inside a read-modify-write.
func (r *Repository) UpdateCard(ctx context.Context, id uuid.UUID, fn func(card *models.Card)) (*models.Card, error) {
	var out models.Card
	_, err := r.store.Update(ctx, docstore.CollectionCards, id, func(data json.RawMessage) (json.RawMessage, error) {
		var card models.Card
		if err := json.Unmarshal(data, &card); err != nil {
			return nil, fmt.Errorf("failed to unmarshal card: %w", err)
		}
		fn(&card)
		out = card
		return json.Marshal(card)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repository) ListCards(ctx context.Context, sessionID uuid.UUID) ([]models.Card, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionCards, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return decodeCards(docs), nil
}

// WatchCards streams card snapshots for a session, in creation order. A
// snapshot that fails to decode is skipped so subscribers keep their last
// good state.
func (r *Repository) WatchCards(ctx context.Context, sessionID uuid.UUID, fn func([]models.Card)) (func(), error) {
	return r.store.Watch(ctx, docstore.CollectionCards, sessionID, func(docs []docstore.Doc) {
		fn(decodeCards(docs))
	})
}

func (r *Repository) DeleteCard(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Delete(ctx, docstore.CollectionCards, id); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

// DeleteBySession removes every card owned by the session. Deletes are
// independent and best-effort; the count of removed cards is returned.
func (r *Repository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionCards, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to list cards for deletion: %w", err)
	}
	deleted := 0
	for _, doc := range docs {
		if err := r.store.Delete(ctx, docstore.CollectionCards, doc.ID); err != nil {
			log.Error().Err(err).Str("card_id", doc.ID.String()).Msg("failed to delete card during cascade")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func decodeCards(docs []docstore.Doc) []models.Card {
	out := make([]models.Card, 0, len(docs))
	for _, doc := range docs {
		var card models.Card
		if err := json.Unmarshal(doc.Data, &card); err != nil {
			log.Error().Err(err).Str("card_id", doc.ID.String()).Msg("skipping undecodable card snapshot")
			continue
		}
		out = append(out, card)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
