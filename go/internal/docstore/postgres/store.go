package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/retrolive/retrolive/go/internal/docstore"
	"github.com/retrolive/retrolive/go/internal/sqlutil"
)

// Schema creates the documents table. Deleted documents are kept as NULL-data
// tombstones so the change feed can tell watchers about removals; the notify
// trigger carries "collection:id:session_id" as its payload.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection  text NOT NULL,
	id          uuid NOT NULL,
	session_id  uuid NOT NULL,
	data        jsonb,
	updated_at  timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS documents_session_idx
	ON documents (collection, session_id);

CREATE OR REPLACE FUNCTION notify_document_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('document_events',
		NEW.collection || ':' || NEW.id || ':' || NEW.session_id);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS documents_notify ON documents;
CREATE TRIGGER documents_notify
	AFTER INSERT OR UPDATE ON documents
	FOR EACH ROW EXECUTE FUNCTION notify_document_change();
`

// NotifyChannel is the LISTEN/NOTIFY channel the schema's trigger fires on.
const NotifyChannel = "document_events"

// Store is a docstore.Store backed by a Postgres documents table. Change
// subscriptions are driven by a Listener feeding LISTEN/NOTIFY payloads into
// the store's watcher registry.
type Store struct {
	db       *sql.DB
	watchers *watcherRegistry
}

var _ docstore.Store = (*Store)(nil)

// NewStore creates a Postgres-backed store and ensures the schema exists.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("failed to ensure documents schema: %w", err)
	}
	return &Store{db: db, watchers: newWatcherRegistry()}, nil
}

func (s *Store) Put(ctx context.Context, doc docstore.Doc) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, session_id, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, session_id = EXCLUDED.session_id, updated_at = now()`,
		doc.Collection, doc.ID, doc.SessionID, []byte(doc.Data),
	)
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection string, id uuid.UUID) (*docstore.Doc, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, id, session_id, data, updated_at
		FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	return scanDoc(row)
}

func (s *Store) Update(ctx context.Context, collection string, id uuid.UUID, fn docstore.UpdateFunc) (*docstore.Doc, error) {
	var out *docstore.Doc
	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT collection, id, session_id, data, updated_at
			FROM documents WHERE collection = $1 AND id = $2
			FOR UPDATE`,
			collection, id,
		)
		doc, err := scanDoc(row)
		if err != nil {
			return err
		}

		data, err := fn(doc.Data)
		if err != nil {
			return err
		}

		row = tx.QueryRowContext(ctx, `
			UPDATE documents SET data = $3, updated_at = now()
			WHERE collection = $1 AND id = $2
			RETURNING updated_at`,
			collection, id, []byte(data),
		)
		if err := row.Scan(&doc.UpdatedAt); err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		doc.Data = data
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	// Tombstone rather than remove, so the change trigger still fires and
	// watchers observe the deletion.
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET data = NULL, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, sessionID uuid.UUID) ([]docstore.Doc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, id, session_id, data, updated_at
		FROM documents
		WHERE collection = $1 AND session_id = $2 AND data IS NOT NULL
		ORDER BY updated_at, id`,
		collection, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []docstore.Doc
	for rows.Next() {
		var (
			doc  docstore.Doc
			data pqtype.NullRawMessage
		)
		if err := rows.Scan(&doc.Collection, &doc.ID, &doc.SessionID, &data, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Data = json.RawMessage(data.RawMessage)
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) Watch(ctx context.Context, collection string, sessionID uuid.UUID, fn docstore.SnapshotFunc) (func(), error) {
	unsubscribe := s.watchers.addQuery(collection, sessionID, func() {
		docs, err := s.Query(ctx, collection, sessionID)
		if err != nil {
			// Keep the last good snapshot; the next notification retries.
			return
		}
		fn(docs)
	})

	docs, err := s.Query(ctx, collection, sessionID)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	fn(docs)
	return unsubscribe, nil
}

func (s *Store) WatchDoc(ctx context.Context, collection string, id uuid.UUID, fn docstore.DocFunc) (func(), error) {
	refresh := func() {
		doc, err := s.Get(ctx, collection, id)
		if errors.Is(err, docstore.ErrNotFound) {
			fn(nil)
			return
		}
		if err != nil {
			return
		}
		fn(doc)
	}
	unsubscribe := s.watchers.addDoc(collection, id, refresh)
	refresh()
	return unsubscribe, nil
}

func (s *Store) Now(ctx context.Context) time.Time {
	var now time.Time
	if err := s.db.QueryRowContext(ctx, `SELECT now()`).Scan(&now); err != nil {
		return time.Now()
	}
	return now
}

// Dispatch routes a decoded notification payload to matching watchers. The
// Listener calls this for every LISTEN/NOTIFY event.
func (s *Store) Dispatch(collection string, id, sessionID uuid.UUID) {
	s.watchers.dispatch(collection, id, sessionID)
}

func scanDoc(row *sql.Row) (*docstore.Doc, error) {
	var (
		doc  docstore.Doc
		data pqtype.NullRawMessage
	)
	err := row.Scan(&doc.Collection, &doc.ID, &doc.SessionID, &data, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	if !data.Valid {
		// Tombstoned by Delete.
		return nil, docstore.ErrNotFound
	}
	doc.Data = json.RawMessage(data.RawMessage)
	return &doc, nil
}
