package credential

import (
	"context"
	"fmt"

	metrics "github.com/hashicorp/go-metrics"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/notify"
)

// onUserEvent revokes every credential of a deleted or disabled user.
func (m *Manager) onUserEvent(ctx context.Context, topic string, payload any) error {
	var p notify.UserPayload
	if err := notify.Decode(payload, &p); err != nil {
		return err
	}
	if p.ResourceInfo == "" {
		return fmt.Errorf("%s event without a user id", topic)
	}
	m.log.Debug("revoking application credentials of user",
		logger.String("topic", topic),
		logger.String("user_id", p.ResourceInfo))
	return m.deleteForUser(ctx, p.ResourceInfo)
}

// onAssignmentRemoved revokes the credentials a user holds on a project
// once any of the user's role assignments there went away. Credentials are
// deleted outright rather than narrowed to the remaining roles.
func (m *Manager) onAssignmentRemoved(ctx context.Context, topic string, payload any) error {
	var p notify.AssignmentPayload
	if err := notify.Decode(payload, &p); err != nil {
		return err
	}
	info := p.ResourceInfo
	if info.UserID == "" || info.ProjectID == "" {
		return fmt.Errorf("%s event without user and project", topic)
	}
	m.log.Debug("revoking application credentials of user on project",
		logger.String("user_id", info.UserID),
		logger.String("project_id", info.ProjectID))
	return m.deleteForUserOnProject(ctx, info.UserID, info.ProjectID)
}

func (m *Manager) deleteForUser(ctx context.Context, userID string) error {
	ids, err := m.idsOf(ctx, userID, nil)
	if err != nil {
		return err
	}
	m.cache.Invalidate(ids...)
	if err := m.driver.DeleteForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete application credentials of user %s: %w", userID, err)
	}
	m.cache.Invalidate(ids...)
	metrics.IncrCounter([]string{"appcred", "revoked"}, float32(len(ids)))
	return nil
}

func (m *Manager) deleteForUserOnProject(ctx context.Context, userID, projectID string) error {
	ids, err := m.idsOf(ctx, userID, (*Hints)(nil).Filter("project_id", projectID))
	if err != nil {
		return err
	}
	m.cache.Invalidate(ids...)
	if err := m.driver.DeleteForUserOnProject(ctx, userID, projectID); err != nil {
		return fmt.Errorf("failed to delete application credentials of user %s on project %s: %w", userID, projectID, err)
	}
	m.cache.Invalidate(ids...)
	metrics.IncrCounter([]string{"appcred", "revoked"}, float32(len(ids)))
	return nil
}

func (m *Manager) idsOf(ctx context.Context, userID string, hints *Hints) ([]string, error) {
	creds, err := m.driver.ListForUser(ctx, userID, hints)
	if err != nil {
		return nil, fmt.Errorf("failed to list application credentials of user %s: %w", userID, err)
	}
	ids := make([]string, 0, len(creds))
	for _, cred := range creds {
		ids = append(ids, cred.ID)
	}
	return ids, nil
}
