package engine

import (
	"context"
	"fmt"

	"caseline/internal/domain"
)

// notifyRole fans a notification out to every holder of a role, skipping
// the acting officer so nobody is notified about their own action.
func (e Engine) notifyRole(ctx context.Context, role Role, actorID string, tmpl domain.Notification) error {
	holders, err := e.Repo.ListOfficersByRole(ctx, string(role))
	if err != nil {
		return fmt.Errorf("list %s holders: %w", role, err)
	}
	var firstErr error
	for _, o := range holders {
		if o.ID == actorID {
			continue
		}
		if err := e.notifyOne(ctx, o.ID, tmpl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e Engine) notifyOne(ctx context.Context, recipientID string, tmpl domain.Notification) error {
	n := tmpl
	n.ID = e.newID()
	n.RecipientID = recipientID
	n.CreatedAt = e.nowRFC3339()
	return e.Repo.InsertNotification(ctx, n)
}
