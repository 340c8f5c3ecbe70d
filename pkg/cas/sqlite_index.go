package cas

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver registration

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// SQLiteIndex is an optional queryable index over artifacts stored in a
// Store, generalizing the teacher's pkg/store/receipt_store_sqlite.go
// pattern. The filesystem remains the source of truth; this index exists so
// deployments that need "list all corridor-receipts for corridor X" style
// queries don't have to walk the filesystem tree.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLiteIndex opens (creating if needed) a SQLite index at path.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to open sqlite index", err)
	}
	idx := &SQLiteIndex{db: db}
	if err := idx.migrate(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *SQLiteIndex) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS artifact_index (
	artifact_type TEXT NOT NULL,
	digest TEXT NOT NULL,
	path TEXT NOT NULL,
	byte_length INTEGER NOT NULL,
	indexed_at TEXT NOT NULL,
	PRIMARY KEY (artifact_type, digest)
);
CREATE INDEX IF NOT EXISTS idx_artifact_index_type ON artifact_index(artifact_type);
`
	if _, err := i.db.ExecContext(ctx, ddl); err != nil {
		return msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to migrate sqlite index", err)
	}
	return nil
}

// Record upserts an index entry after a successful Store.Store call.
func (i *SQLiteIndex) Record(ctx context.Context, artifactType, digest, path string, byteLength int64) error {
	_, err := i.db.ExecContext(ctx, `
INSERT INTO artifact_index (artifact_type, digest, path, byte_length, indexed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(artifact_type, digest) DO UPDATE SET path=excluded.path, byte_length=excluded.byte_length, indexed_at=excluded.indexed_at
`, artifactType, digest, path, byteLength, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to record index entry", err)
	}
	return nil
}

// ListByType returns every indexed digest for a given artifact type,
// ordered by the time each entry was last recorded (one-second resolution,
// so entries recorded within the same second have no defined order), for
// "corridor state" style CLI listings.
func (i *SQLiteIndex) ListByType(ctx context.Context, artifactType string) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT digest FROM artifact_index WHERE artifact_type = ? ORDER BY indexed_at ASC`, artifactType)
	if err != nil {
		return nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to query index", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query cursor

	var out []string
	for rows.Next() {
		var digest string
		if err := rows.Scan(&digest); err != nil {
			return nil, msezerr.Wrap(msezerr.KindResource, msezerr.CodeIO, "failed to scan index row", err)
		}
		out = append(out, digest)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (i *SQLiteIndex) Close() error {
	if err := i.db.Close(); err != nil {
		return fmt.Errorf("close sqlite index: %w", err)
	}
	return nil
}
