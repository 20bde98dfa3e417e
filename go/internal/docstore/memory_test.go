package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putDoc(t *testing.T, store *MemoryStore, collection string, sessionID uuid.UUID, payload string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, store.Put(context.Background(), Doc{
		Collection: collection,
		ID:         id,
		SessionID:  sessionID,
		Data:       json.RawMessage(payload),
	}))
	return id
}

func TestMemoryStoreCRUD(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sessionID := uuid.New()

	id := putDoc(t, store, CollectionCards, sessionID, `{"text":"hello"}`)

	doc, err := store.Get(ctx, CollectionCards, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hello"}`, string(doc.Data))

	_, err = store.Get(ctx, CollectionCards, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := store.Update(ctx, CollectionCards, id, func(data json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"text":"edited"}`), nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"edited"}`, string(updated.Data))

	_, err = store.Update(ctx, CollectionCards, uuid.New(), func(data json.RawMessage) (json.RawMessage, error) {
		return data, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, CollectionCards, id))
	_, err = store.Get(ctx, CollectionCards, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreQueryScopedToSession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	mine := uuid.New()
	other := uuid.New()

	putDoc(t, store, CollectionCards, mine, `{"n":1}`)
	putDoc(t, store, CollectionCards, mine, `{"n":2}`)
	putDoc(t, store, CollectionCards, other, `{"n":3}`)

	docs, err := store.Query(ctx, CollectionCards, mine)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestMemoryStoreWatchDeliversSnapshots(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sessionID := uuid.New()

	putDoc(t, store, CollectionCards, sessionID, `{"n":1}`)

	var snapshots [][]Doc
	unsubscribe, err := store.Watch(ctx, CollectionCards, sessionID, func(docs []Doc) {
		snapshots = append(snapshots, docs)
	})
	require.NoError(t, err)
	defer unsubscribe()

	// Initial snapshot arrives before any further writes.
	require.Len(t, snapshots, 1)
	assert.Len(t, snapshots[0], 1)

	putDoc(t, store, CollectionCards, sessionID, `{"n":2}`)
	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1], 2)

	// Writes in other sessions do not reach this watcher.
	putDoc(t, store, CollectionCards, uuid.New(), `{"n":3}`)
	assert.Len(t, snapshots, 2)
}

func TestMemoryStoreWatchUnsubscribeStopsDelivery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sessionID := uuid.New()

	calls := 0
	unsubscribe, err := store.Watch(ctx, CollectionCards, sessionID, func(docs []Doc) {
		calls++
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	unsubscribe()
	putDoc(t, store, CollectionCards, sessionID, `{"n":1}`)
	assert.Equal(t, 1, calls)
}

func TestWatcherDropsStaleSnapshots(t *testing.T) {
	// Two writers can read their snapshots in order but deliver out of
	// order when one is preempted between read and callback. The sequence
	// stamp keeps the watcher on the newest state it has seen.
	var seen [][]Doc
	w := &queryWatcher{fn: func(docs []Doc) { seen = append(seen, docs) }}

	v1 := []Doc{{ID: uuid.New()}}
	v2 := append(v1, Doc{ID: uuid.New()})

	w.deliver(v2, 2)
	w.deliver(v1, 1) // late delivery from the preempted earlier writer
	w.deliver(v1, 2) // duplicate of already-seen state

	require.Len(t, seen, 1)
	assert.Len(t, seen[0], 2)

	var docs []*Doc
	d := &docWatcher{fn: func(doc *Doc) { docs = append(docs, doc) }}
	newer := Doc{ID: uuid.New()}
	d.deliver(&newer, 2)
	d.deliver(nil, 1)
	require.Len(t, docs, 1)
	assert.Equal(t, newer.ID, docs[0].ID)
}

func TestMemoryStoreConcurrentUpdatesConvergeWatchers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sessionID := uuid.New()
	id := putDoc(t, store, CollectionCards, sessionID, `{"n":0}`)

	var mu sync.Mutex
	var last json.RawMessage
	unsubscribe, err := store.WatchDoc(ctx, CollectionCards, id, func(doc *Doc) {
		mu.Lock()
		defer mu.Unlock()
		if doc != nil {
			last = doc.Data
		}
	})
	require.NoError(t, err)
	defer unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := json.RawMessage(fmt.Sprintf(`{"n":%d}`, n))
			_, err := store.Update(ctx, CollectionCards, id, func(json.RawMessage) (json.RawMessage, error) {
				return payload, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Whatever interleaving happened, the watcher's final state matches
	// the store's.
	doc, err := store.Get(ctx, CollectionCards, id)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.JSONEq(t, string(doc.Data), string(last))
}

func TestMemoryStoreWatchDocSignalsDeletion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sessionID := uuid.New()
	id := putDoc(t, store, CollectionTimers, sessionID, `{"running":true}`)

	var deliveries []*Doc
	unsubscribe, err := store.WatchDoc(ctx, CollectionTimers, id, func(doc *Doc) {
		deliveries = append(deliveries, doc)
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.Len(t, deliveries, 1)
	require.NotNil(t, deliveries[0])

	_, err = store.Update(ctx, CollectionTimers, id, func(data json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"running":false}`), nil
	})
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.JSONEq(t, `{"running":false}`, string(deliveries[1].Data))

	require.NoError(t, store.Delete(ctx, CollectionTimers, id))
	require.Len(t, deliveries, 3)
	assert.Nil(t, deliveries[2], "deletion is delivered as nil")
}
