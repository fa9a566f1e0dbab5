package repo

import (
	"context"
	"database/sql"

	"caseline/internal/domain"
)

func (r Repo) InsertOfficer(ctx context.Context, o domain.Officer) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO officers(id,display_name,role,created_at) VALUES (?,?,?,?)`,
		o.ID, o.DisplayName, o.Role, o.CreatedAt)
	return err
}

func (r Repo) GetOfficer(ctx context.Context, id string) (domain.Officer, error) {
	var o domain.Officer
	err := r.DB.QueryRowContext(ctx, `SELECT id,display_name,role,created_at FROM officers WHERE id=?`, id).
		Scan(&o.ID, &o.DisplayName, &o.Role, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) ListOfficers(ctx context.Context) ([]domain.Officer, error) {
	return r.listOfficers(ctx, `SELECT id,display_name,role,created_at FROM officers ORDER BY display_name ASC`)
}

// ListOfficersByRole returns the holders of a workflow role; notification
// fan-out targets them.
func (r Repo) ListOfficersByRole(ctx context.Context, role string) ([]domain.Officer, error) {
	return r.listOfficers(ctx, `SELECT id,display_name,role,created_at FROM officers WHERE role=? ORDER BY display_name ASC`, role)
}

func (r Repo) listOfficers(ctx context.Context, query string, args ...any) ([]domain.Officer, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Officer
	for rows.Next() {
		var o domain.Officer
		if err := rows.Scan(&o.ID, &o.DisplayName, &o.Role, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
