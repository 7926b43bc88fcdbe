package notify

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/pubsub/v2"
	"github.com/stephnangue/appcred/logger"
)

// FailureHandler receives handler errors for events published with
// PublishAsync. It acts as the supervisor of asynchronous deliveries.
type FailureHandler func(topic string, err error)

// HubConfig configures a Hub.
type HubConfig struct {
	Logger    *logger.GatedLogger
	OnFailure FailureHandler
}

// Hub is an in-process Bus backed by a pubsub.SimpleHub. Each subscriber
// receives events in publish order on its own goroutine.
type Hub struct {
	hub       *pubsub.SimpleHub
	log       *logger.GatedLogger
	onFailure FailureHandler

	pending sync.WaitGroup
}

var _ Bus = (*Hub)(nil)

// envelope is what travels through the underlying hub; it lets handler
// errors flow back to the publisher.
type envelope struct {
	ctx     context.Context
	payload any

	mu   sync.Mutex
	errs *multierror.Error
}

func (e *envelope) fail(err error) {
	e.mu.Lock()
	e.errs = multierror.Append(e.errs, err)
	e.mu.Unlock()
}

func (e *envelope) err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs.ErrorOrNil()
}

// NewHub creates a Hub. A nil OnFailure logs failures at error level.
func NewHub(config HubConfig) *Hub {
	log := config.Logger
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithSubsystem("notify")

	h := &Hub{
		hub: pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
			Logger: logger.PubSubAdapter{Logger: log.Logger},
		}),
		log:       log,
		onFailure: config.OnFailure,
	}
	if h.onFailure == nil {
		h.onFailure = func(topic string, err error) {
			log.Error("event handler failed", logger.String("topic", topic), logger.Err(err))
		}
	}
	return h
}

// Subscribe registers handler for topic.
func (h *Hub) Subscribe(topic string, handler Handler) func() {
	return h.hub.Subscribe(topic, func(topic string, data interface{}) {
		env, ok := data.(*envelope)
		if !ok {
			h.log.Warn("dropping event with foreign payload", logger.String("topic", topic))
			return
		}
		if err := handler(env.ctx, topic, env.payload); err != nil {
			env.fail(err)
		}
	})
}

// Publish delivers payload and waits for every subscriber of topic.
func (h *Hub) Publish(ctx context.Context, topic string, payload any) error {
	env := &envelope{ctx: ctx, payload: payload}
	wait := h.hub.Publish(topic, env)
	wait()
	return env.err()
}

// PublishAsync delivers payload in the background. Handler errors go to the
// configured FailureHandler.
func (h *Hub) PublishAsync(ctx context.Context, topic string, payload any) {
	env := &envelope{ctx: context.WithoutCancel(ctx), payload: payload}
	wait := h.hub.Publish(topic, env)
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		wait()
		if err := env.err(); err != nil {
			h.onFailure(topic, err)
		}
	}()
}

// Wait blocks until every event published with PublishAsync so far has been
// handled by all its subscribers.
func (h *Hub) Wait() {
	h.pending.Wait()
}
