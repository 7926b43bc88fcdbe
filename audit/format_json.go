package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event fields that can be salted or omitted.
const (
	FieldInitiator  = "initiator"
	FieldResourceID = "resource_id"
)

// JSONFormat formats audit events as JSON
type JSONFormat struct {
	prefix     string
	saltFn     SaltFunc
	omitFields map[string]struct{}
	saltFields []string
}

// NewJSONFormat creates a new JSON formatter. The initiator is salted by
// default once a salt function is configured.
func NewJSONFormat(opts ...JSONFormatOption) *JSONFormat {
	f := &JSONFormat{
		saltFields: []string{FieldInitiator},
		omitFields: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// JSONFormatOption configures the JSON formatter
type JSONFormatOption func(*JSONFormat)

// WithPrefix sets a prefix for each log line
func WithPrefix(prefix string) JSONFormatOption {
	return func(f *JSONFormat) {
		f.prefix = prefix
	}
}

// WithSaltFunc sets the function used to salt sensitive fields
func WithSaltFunc(fn SaltFunc) JSONFormatOption {
	return func(f *JSONFormat) {
		f.saltFn = fn
	}
}

// WithOmitFields drops the named fields from the output
func WithOmitFields(fields []string) JSONFormatOption {
	return func(f *JSONFormat) {
		for _, field := range fields {
			f.omitFields[field] = struct{}{}
		}
	}
}

// WithSaltFields replaces the set of salted fields
func WithSaltFields(fields []string) JSONFormatOption {
	return func(f *JSONFormat) {
		f.saltFields = fields
	}
}

// Format formats an event as a single JSON object
func (f *JSONFormat) Format(ctx context.Context, event *Event) ([]byte, error) {
	if f.saltFn != nil {
		if err := f.saltEvent(ctx, event); err != nil {
			return nil, err
		}
	}

	for field := range f.omitFields {
		switch field {
		case FieldInitiator:
			event.Initiator = ""
		case FieldResourceID:
			event.ResourceID = ""
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	if f.prefix != "" {
		return append([]byte(f.prefix), data...), nil
	}
	return data, nil
}

// Name returns the format name
func (f *JSONFormat) Name() string {
	return "json"
}

func (f *JSONFormat) saltEvent(ctx context.Context, event *Event) error {
	for _, field := range f.saltFields {
		var target *string
		switch field {
		case FieldInitiator:
			target = &event.Initiator
		case FieldResourceID:
			target = &event.ResourceID
		default:
			continue
		}
		salted, err := f.saltFn(ctx, *target)
		if err != nil {
			return fmt.Errorf("failed to salt %s: %w", field, err)
		}
		*target = salted
	}
	return nil
}
