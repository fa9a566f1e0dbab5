// Package history appends to the per-case audit trail. Rows are
// append-only; no update or delete path exists.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Metadata map[string]any

// Append writes a history row inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, action, caseID, description, actorID string, meta Metadata) error {
	ts, data, err := w.prepare(meta)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO history(ts,action,case_id,description,actor_id,metadata_json) VALUES (?,?,?,?,?,?)`,
		ts, action, caseID, description, actorID, data)
	return err
}

// Record writes a history row outside any transaction. Used for the
// best-effort audit side effects that must not be coupled to a core
// write's transaction.
func (w Writer) Record(ctx context.Context, action, caseID, description, actorID string, meta Metadata) error {
	ts, data, err := w.prepare(meta)
	if err != nil {
		return err
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO history(ts,action,case_id,description,actor_id,metadata_json) VALUES (?,?,?,?,?,?)`,
		ts, action, caseID, description, actorID, data)
	return err
}

func (w Writer) prepare(meta Metadata) (string, string, error) {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if meta == nil {
		meta = Metadata{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("marshal history metadata: %w", err)
	}
	return ts, string(data), nil
}
