package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// MemoryStore is an in-process Store with change-notification fanout. It
// backs tests and single-process deployments; the Postgres store covers
// everything else.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]map[uuid.UUID]Doc
	seq   uint64
	clock clockwork.Clock

	watcherMu    sync.Mutex
	nextWatcher  int
	queryWatcher map[int]*queryWatcher
	docWatcher   map[int]*docWatcher
}

// Snapshots are stamped with the store sequence observed while reading them.
// deliver drops anything at or below the last delivered stamp, so a writer
// preempted between its read and its callback cannot regress a watcher that
// already saw newer state.
type queryWatcher struct {
	collection string
	sessionID  uuid.UUID
	fn         SnapshotFunc

	mu      sync.Mutex
	closed  bool
	started bool
	lastSeq uint64
}

type docWatcher struct {
	collection string
	id         uuid.UUID
	fn         DocFunc

	mu      sync.Mutex
	closed  bool
	started bool
	lastSeq uint64
}

// NewMemoryStore creates an empty in-memory store using the real clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clockwork.NewRealClock())
}

// NewMemoryStoreWithClock creates an empty in-memory store with an injected
// clock for deterministic write timestamps in tests.
func NewMemoryStoreWithClock(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		docs:         make(map[string]map[uuid.UUID]Doc),
		clock:        clock,
		queryWatcher: make(map[int]*queryWatcher),
		docWatcher:   make(map[int]*docWatcher),
	}
}

func (s *MemoryStore) Put(ctx context.Context, doc Doc) error {
	s.mu.Lock()
	if s.docs[doc.Collection] == nil {
		s.docs[doc.Collection] = make(map[uuid.UUID]Doc)
	}
	doc.UpdatedAt = s.clock.Now()
	s.docs[doc.Collection][doc.ID] = doc
	s.seq++
	s.mu.Unlock()

	s.notify(doc.Collection, doc.ID, doc.SessionID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection string, id uuid.UUID) (*Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection string, id uuid.UUID, fn UpdateFunc) (*Doc, error) {
	s.mu.Lock()
	doc, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	data, err := fn(doc.Data)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	doc.Data = data
	doc.UpdatedAt = s.clock.Now()
	s.docs[collection][id] = doc
	s.seq++
	s.mu.Unlock()

	s.notify(collection, id, doc.SessionID)
	return &doc, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	s.mu.Lock()
	doc, ok := s.docs[collection][id]
	if ok {
		delete(s.docs[collection], id)
		s.seq++
	}
	s.mu.Unlock()

	if ok {
		s.notify(collection, id, doc.SessionID)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, sessionID uuid.UUID) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(collection, sessionID), nil
}

func (s *MemoryStore) queryLocked(collection string, sessionID uuid.UUID) []Doc {
	var out []Doc
	for _, doc := range s.docs[collection] {
		if doc.SessionID == sessionID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out
}

func (s *MemoryStore) Watch(ctx context.Context, collection string, sessionID uuid.UUID, fn SnapshotFunc) (func(), error) {
	w := &queryWatcher{collection: collection, sessionID: sessionID, fn: fn}

	s.watcherMu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.queryWatcher[id] = w
	s.watcherMu.Unlock()

	// Initial snapshot so subscribers never start from nothing.
	s.mu.RLock()
	snapshot := s.queryLocked(collection, sessionID)
	seq := s.seq
	s.mu.RUnlock()
	w.deliver(snapshot, seq)

	unsubscribe := func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		s.watcherMu.Lock()
		delete(s.queryWatcher, id)
		s.watcherMu.Unlock()
	}
	return unsubscribe, nil
}

func (s *MemoryStore) WatchDoc(ctx context.Context, collection string, id uuid.UUID, fn DocFunc) (func(), error) {
	w := &docWatcher{collection: collection, id: id, fn: fn}

	s.watcherMu.Lock()
	key := s.nextWatcher
	s.nextWatcher++
	s.docWatcher[key] = w
	s.watcherMu.Unlock()

	s.mu.RLock()
	doc, ok := s.docs[collection][id]
	seq := s.seq
	s.mu.RUnlock()
	if ok {
		w.deliver(&doc, seq)
	} else {
		w.deliver(nil, seq)
	}

	unsubscribe := func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		s.watcherMu.Lock()
		delete(s.docWatcher, key)
		s.watcherMu.Unlock()
	}
	return unsubscribe, nil
}

func (s *MemoryStore) Now(ctx context.Context) time.Time {
	return s.clock.Now()
}

// notify fans the change out to every watcher whose scope matches. Callbacks
// run outside the store lock; each watcher's own mutex plus the sequence
// stamp keep its deliveries in write order even when notifying goroutines
// interleave.
func (s *MemoryStore) notify(collection string, id, sessionID uuid.UUID) {
	s.watcherMu.Lock()
	var queryTargets []*queryWatcher
	for _, w := range s.queryWatcher {
		if w.collection == collection && w.sessionID == sessionID {
			queryTargets = append(queryTargets, w)
		}
	}
	var docTargets []*docWatcher
	for _, w := range s.docWatcher {
		if w.collection == collection && w.id == id {
			docTargets = append(docTargets, w)
		}
	}
	s.watcherMu.Unlock()

	if len(queryTargets) > 0 {
		s.mu.RLock()
		snapshot := s.queryLocked(collection, sessionID)
		seq := s.seq
		s.mu.RUnlock()
		for _, w := range queryTargets {
			w.deliver(snapshot, seq)
		}
	}

	for _, w := range docTargets {
		s.mu.RLock()
		doc, ok := s.docs[collection][id]
		seq := s.seq
		s.mu.RUnlock()
		if ok {
			w.deliver(&doc, seq)
		} else {
			w.deliver(nil, seq)
		}
	}

	log.Debug().
		Str("collection", collection).
		Str("doc_id", id.String()).
		Int("query_watchers", len(queryTargets)).
		Int("doc_watchers", len(docTargets)).
		Msg("document change fanned out")
}

func (w *queryWatcher) deliver(snapshot []Doc, seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.started && seq <= w.lastSeq {
		// Stale read from a preempted notifier; newer state already went out.
		return
	}
	w.started = true
	w.lastSeq = seq
	w.fn(snapshot)
}

func (w *docWatcher) deliver(doc *Doc, seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.started && seq <= w.lastSeq {
		return
	}
	w.started = true
	w.lastSeq = seq
	w.fn(doc)
}
