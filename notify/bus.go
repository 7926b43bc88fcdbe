// Package notify carries lifecycle and audit events between subsystems that
// must not know about each other.
package notify

import "context"

// Topics published and consumed inside this module.
const (
	TopicUserDeleted       = "identity.user.deleted"
	TopicUserDisabled      = "identity.user.disabled"
	TopicAssignmentRemoved = "assignment.removed"
	TopicAuditCreated      = "audit.created"
	TopicAuditDeleted      = "audit.deleted"
)

// Handler processes a single event. A returned error is reported to the
// publisher (Publish) or to the bus failure handler (PublishAsync).
type Handler func(ctx context.Context, topic string, payload any) error

// Bus is a topic based publish/subscribe channel.
type Bus interface {
	// Subscribe registers h for topic and returns a function that removes
	// the subscription.
	Subscribe(topic string, h Handler) (unsubscribe func())

	// Publish delivers payload to every subscriber of topic and waits for
	// all of them. Handler errors are aggregated into the returned error.
	Publish(ctx context.Context, topic string, payload any) error

	// PublishAsync delivers payload without waiting.
	PublishAsync(ctx context.Context, topic string, payload any)
}
