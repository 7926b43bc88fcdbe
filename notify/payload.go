package notify

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// UserPayload is the shape of user-deleted and user-disabled events:
// {"resource_info": "<user id>"}.
type UserPayload struct {
	ResourceInfo string `mapstructure:"resource_info"`
}

// AssignmentPayload is the shape of assignment-removed events:
// {"resource_info": {"user_id": "...", "project_id": "..."}}.
type AssignmentPayload struct {
	ResourceInfo struct {
		UserID    string `mapstructure:"user_id"`
		ProjectID string `mapstructure:"project_id"`
	} `mapstructure:"resource_info"`
}

// AuditPayload is published on the audit topics after a credential was
// created or deleted.
type AuditPayload struct {
	ResourceType string    `mapstructure:"resource_type"`
	ResourceID   string    `mapstructure:"resource_id"`
	Initiator    string    `mapstructure:"initiator"`
	Timestamp    time.Time `mapstructure:"timestamp"`
}

// NewUserPayload builds the wire shape of a user event.
func NewUserPayload(userID string) map[string]any {
	return map[string]any{"resource_info": userID}
}

// NewAssignmentPayload builds the wire shape of an assignment-removed event.
func NewAssignmentPayload(userID, projectID string) map[string]any {
	return map[string]any{
		"resource_info": map[string]any{
			"user_id":    userID,
			"project_id": projectID,
		},
	}
}

// Decode converts an event payload (a map or a struct) into out. Keys
// that out does not declare are ignored.
func Decode(payload any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("failed to decode event payload: %w", err)
	}
	return nil
}
