package postgres

import (
	"sync"

	"github.com/google/uuid"
)

// watcherRegistry tracks live Watch/WatchDoc subscriptions so notification
// payloads can be routed to the callers that care about them.
type watcherRegistry struct {
	mu      sync.Mutex
	nextID  int
	queries map[int]*queryEntry
	docs    map[int]*docEntry
}

type queryEntry struct {
	collection string
	sessionID  uuid.UUID
	refresh    func()

	mu     sync.Mutex
	closed bool
}

type docEntry struct {
	collection string
	id         uuid.UUID
	refresh    func()

	mu     sync.Mutex
	closed bool
}

func newWatcherRegistry() *watcherRegistry {
	return &watcherRegistry{
		queries: make(map[int]*queryEntry),
		docs:    make(map[int]*docEntry),
	}
}

func (r *watcherRegistry) addQuery(collection string, sessionID uuid.UUID, refresh func()) func() {
	e := &queryEntry{collection: collection, sessionID: sessionID, refresh: refresh}
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.queries[id] = e
	r.mu.Unlock()

	return func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		r.mu.Lock()
		delete(r.queries, id)
		r.mu.Unlock()
	}
}

func (r *watcherRegistry) addDoc(collection string, id uuid.UUID, refresh func()) func() {
	e := &docEntry{collection: collection, id: id, refresh: refresh}
	r.mu.Lock()
	key := r.nextID
	r.nextID++
	r.docs[key] = e
	r.mu.Unlock()

	return func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		r.mu.Lock()
		delete(r.docs, key)
		r.mu.Unlock()
	}
}

func (r *watcherRegistry) dispatch(collection string, id, sessionID uuid.UUID) {
	r.mu.Lock()
	var queryTargets []*queryEntry
	for _, e := range r.queries {
		if e.collection == collection && e.sessionID == sessionID {
			queryTargets = append(queryTargets, e)
		}
	}
	var docTargets []*docEntry
	for _, e := range r.docs {
		if e.collection == collection && e.id == id {
			docTargets = append(docTargets, e)
		}
	}
	r.mu.Unlock()

	for _, e := range queryTargets {
		e.mu.Lock()
		if !e.closed {
			e.refresh()
		}
		e.mu.Unlock()
	}
	for _, e := range docTargets {
		e.mu.Lock()
		if !e.closed {
			e.refresh()
		}
		e.mu.Unlock()
	}
}
