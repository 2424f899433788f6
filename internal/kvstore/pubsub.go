package kvstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/valkey-io/valkey-go"
)

// Pattern is the channel pattern the ingress subscribes to.
const Pattern = "fokabot:*"

// frameValidator checks decoded frames against their handler's schema.
var frameValidator = validator.New(validator.WithRequiredStructEnabled())

// ingressBinding ties a channel name to its decode target and handler.
type ingressBinding struct {
	decode func(ctx context.Context, payload []byte) error
}

// Ingress consumes the external pub/sub bus. Each published frame selects a
// pre-registered handler by its channel name; the body is JSON-decoded and
// validated against the handler's schema before the handler runs.
// Schema-rejected frames are logged and dropped; unknown channels are
// logged.
type Ingress struct {
	store    *Store
	bindings map[string]ingressBinding
}

// NewIngress creates an ingress over the store's connection. Handlers are
// registered before Run; registration is append-only.
func NewIngress(store *Store) *Ingress {
	return &Ingress{
		store:    store,
		bindings: make(map[string]ingressBinding),
	}
}

// Register binds a channel to a typed handler. T carries `json` tags for
// decoding and `validate` tags for the schema. Registering the same channel
// twice panics: bindings are wired once at startup.
func Register[T any](in *Ingress, channel string, handler func(ctx context.Context, frame T) error) {
	if _, dup := in.bindings[channel]; dup {
		panic(fmt.Sprintf("pubsub handler already registered for %q", channel))
	}
	in.bindings[channel] = ingressBinding{
		decode: func(ctx context.Context, payload []byte) error {
			var frame T
			if err := json.Unmarshal(payload, &frame); err != nil {
				return fmt.Errorf("decode frame: %w", err)
			}
			if err := frameValidator.StructCtx(ctx, &frame); err != nil {
				return fmt.Errorf("frame schema: %w", err)
			}
			return handler(ctx, frame)
		},
	}
}

// Run subscribes to the channel pattern and dispatches frames until the
// context is cancelled. Handler errors are logged and never stop the loop.
func (in *Ingress) Run(ctx context.Context) error {
	logger := in.store.logger
	client := in.store.client

	logger.Info("pubsub ingress subscribing", "pattern", Pattern)
	err := client.Receive(ctx, client.B().Psubscribe().Pattern(Pattern).Build(), func(msg valkey.PubSubMessage) {
		binding, ok := in.bindings[msg.Channel]
		if !ok {
			logger.Warn("pubsub frame for unregistered channel",
				"channel", msg.Channel,
				"payload", msg.Message,
			)
			return
		}
		logger.Debug("pubsub frame", "channel", msg.Channel, "payload", msg.Message)
		if err := binding.decode(ctx, []byte(msg.Message)); err != nil {
			logger.Warn("dropping pubsub frame",
				"channel", msg.Channel,
				"error", err,
			)
		}
	})
	if err != nil && ctx.Err() != nil {
		// Cancelled shutdown, not a failure.
		return nil
	}
	return err
}
