package repo

import (
	"context"
	"database/sql"

	"caseline/internal/domain"
)

const notificationColumns = `id,recipient_id,case_id,title,body,type,priority,action_required,target_url,metadata_json,read_at,created_at`

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(`+notificationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.RecipientID, nullable(n.CaseID), n.Title, nullable(n.Body), n.Type, nullable(n.Priority),
		boolToInt(n.ActionRequired), nullable(n.TargetURL), nullable(n.Metadata), nullableStringPtr(n.ReadAt), n.CreatedAt)
	return err
}

func (r Repo) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id=?`
	args := []any{recipientID}
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationRead(ctx context.Context, id, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read_at=? WHERE id=? AND read_at IS NULL`, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotification(scan func(dest ...any) error) (domain.Notification, error) {
	var n domain.Notification
	var caseID, body, priority, targetURL, metadata, readAt sql.NullString
	var actionRequired int
	err := scan(&n.ID, &n.RecipientID, &caseID, &n.Title, &body, &n.Type, &priority, &actionRequired, &targetURL, &metadata, &readAt, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	n.CaseID = caseID.String
	n.Body = body.String
	n.Priority = priority.String
	n.ActionRequired = actionRequired != 0
	n.TargetURL = targetURL.String
	n.Metadata = metadata.String
	if readAt.Valid {
		n.ReadAt = &readAt.String
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
