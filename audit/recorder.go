package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/stephnangue/appcred/helper"
	"github.com/stephnangue/appcred/logger"
	"github.com/stephnangue/appcred/notify"
)

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Bus    notify.Bus
	Sink   Sink
	Format Format
	Logger *logger.GatedLogger
}

// Recorder turns audit notifications from the bus into formatted lines on
// a sink.
type Recorder struct {
	sink   Sink
	format Format
	log    *logger.GatedLogger
	unsub  []func()
}

// NewRecorder subscribes a Recorder to the audit topics. Format defaults
// to JSON without salting.
func NewRecorder(config RecorderConfig) (*Recorder, error) {
	if config.Bus == nil {
		return nil, errors.New("audit recorder requires an event bus")
	}
	if config.Sink == nil {
		return nil, errors.New("audit recorder requires a sink")
	}
	if config.Format == nil {
		config.Format = NewJSONFormat()
	}
	if config.Logger == nil {
		config.Logger = logger.NewNullLogger()
	}

	r := &Recorder{
		sink:   config.Sink,
		format: config.Format,
		log:    config.Logger.WithSubsystem("audit"),
	}
	r.unsub = []func(){
		config.Bus.Subscribe(notify.TopicAuditCreated, r.handle),
		config.Bus.Subscribe(notify.TopicAuditDeleted, r.handle),
	}
	return r, nil
}

func actionFor(topic string) (Action, error) {
	switch topic {
	case notify.TopicAuditCreated:
		return ActionCreated, nil
	case notify.TopicAuditDeleted:
		return ActionDeleted, nil
	}
	return "", fmt.Errorf("no audit action for topic %q", topic)
}

func (r *Recorder) handle(ctx context.Context, topic string, payload any) error {
	action, err := actionFor(topic)
	if err != nil {
		return err
	}
	var p notify.AuditPayload
	if err := notify.Decode(payload, &p); err != nil {
		return err
	}

	event := &Event{
		ID:           helper.GenerateEventID(),
		Action:       action,
		ResourceType: p.ResourceType,
		ResourceID:   p.ResourceID,
		Initiator:    p.Initiator,
		Timestamp:    p.Timestamp,
	}
	return r.Record(ctx, event)
}

// Record formats and writes one event.
func (r *Recorder) Record(ctx context.Context, event *Event) error {
	line, err := r.format.Format(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to format audit event %s: %w", event.ID, err)
	}
	if err := r.sink.Write(ctx, line); err != nil {
		return fmt.Errorf("failed to write audit event %s to %s: %w", event.ID, r.sink.Name(), err)
	}
	r.log.Trace("audit event recorded",
		logger.String("id", event.ID),
		logger.String("action", string(event.Action)))
	return nil
}

// Close unsubscribes the recorder and closes its sink.
func (r *Recorder) Close() error {
	for _, unsub := range r.unsub {
		unsub()
	}
	r.unsub = nil
	return r.sink.Close()
}
