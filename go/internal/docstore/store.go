package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Collection names for all document kinds the engine stores.
const (
	CollectionSessions   = "sessions"
	CollectionCards      = "cards"
	CollectionActivities = "activities"
	CollectionTimers     = "timers"
)

// ErrNotFound is returned when a requested document does not exist. Callers
// treat it as a normal state, not a failure.
var ErrNotFound = errors.New("docstore: document not found")

// Doc is one stored document. SessionID is the indexed scope field used by
// queries and watches; for session documents it equals ID.
type Doc struct {
	Collection string
	ID         uuid.UUID
	SessionID  uuid.UUID
	Data       json.RawMessage
	UpdatedAt  time.Time
}

// UpdateFunc transforms a document's payload inside a read-modify-write.
// It receives the current payload and returns the replacement.
type UpdateFunc func(data json.RawMessage) (json.RawMessage, error)

// SnapshotFunc receives the full matching document set after every change to
// a watched query. Snapshots for one watcher are delivered in write order.
type SnapshotFunc func(docs []Doc)

// DocFunc receives the latest state of a watched document. A nil doc means
// the document was deleted.
type DocFunc func(doc *Doc)

// Store is the durable key/value document store the engine coordinates
// through. All cross-client state lives here; there is no other shared
// mutable resource.
type Store interface {
	// Put creates or replaces a document.
	Put(ctx context.Context, doc Doc) error

	// Get returns a document by id, or ErrNotFound.
	Get(ctx context.Context, collection string, id uuid.UUID) (*Doc, error)

	// Update applies fn to the document under the store's write lock and
	// persists the result. Returns ErrNotFound if the document is absent.
	Update(ctx context.Context, collection string, id uuid.UUID, fn UpdateFunc) (*Doc, error)

	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, collection string, id uuid.UUID) error

	// Query returns every document in collection scoped to sessionID.
	Query(ctx context.Context, collection string, sessionID uuid.UUID) ([]Doc, error)

	// Watch subscribes fn to snapshots of the query (collection, sessionID).
	// The current snapshot is delivered immediately, then after every
	// matching change. The returned function cancels the subscription.
	Watch(ctx context.Context, collection string, sessionID uuid.UUID, fn SnapshotFunc) (func(), error)

	// WatchDoc subscribes fn to one document's change stream. The returned
	// function cancels the subscription.
	WatchDoc(ctx context.Context, collection string, id uuid.UUID, fn DocFunc) (func(), error)

	// Now returns the store's notion of current time. Store time is
	// authoritative over client clocks for timer math.
	Now(ctx context.Context) time.Time
}
