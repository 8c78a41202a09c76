package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/oklog/ulid/v2"

	"github.com/leapstack-labs/leaplineage/internal/jsoncodec"
	"github.com/leapstack-labs/leaplineage/internal/lineage"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// DefaultTopic is the topic PublisherEmitter publishes to when none is given.
const DefaultTopic = "lineage.events"

// Message metadata keys set by PublisherEmitter.
const (
	MetadataEventType = "event_type"
	MetadataRunID     = "run_id"
)

// ErrNoSubscriber is returned by Subscribe when the emitter's publisher cannot
// be subscribed to in process.
var ErrNoSubscriber = errors.New("lineage publisher has no in-process subscriber")

// PublisherEmitter publishes events to a watermill topic.
type PublisherEmitter struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
}

// pubSubLevels demotes watermill's subscription chatter below the run's output.
var pubSubLevels = map[slog.Level]slog.Level{
	slog.LevelInfo: slog.LevelDebug,
}

// NewInProcessEmitter creates an emitter backed by an in-process gochannel
// pub/sub. Emit blocks until every subscriber has acked the event.
func NewInProcessEmitter(topic string, logger *slog.Logger) *PublisherEmitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NewSlogLoggerWithLevelMapping(logger, pubSubLevels))

	e := NewPublisherEmitter(pubSub, topic)
	e.subscriber = pubSub
	return e
}

// NewPublisherEmitter creates an emitter publishing to topic.
func NewPublisherEmitter(publisher message.Publisher, topic string) *PublisherEmitter {
	if topic == "" {
		topic = DefaultTopic
	}
	return &PublisherEmitter{publisher: publisher, topic: topic}
}

// Emit publishes ev as a JSON message.
func (e *PublisherEmitter) Emit(ctx context.Context, ev *core.LineageEvent) error {
	payload, err := jsoncodec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode lineage event: %w", err)
	}

	msg := message.NewMessage(ulid.Make().String(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataEventType, string(ev.EventType))
	msg.Metadata.Set(MetadataRunID, ev.Run.RunID)

	if err := e.publisher.Publish(e.topic, msg); err != nil {
		return fmt.Errorf("failed to publish lineage event: %w", err)
	}
	return nil
}

// Topic returns the topic events are published to.
func (e *PublisherEmitter) Topic() string { return e.topic }

// Subscribe returns the events published from now on. Only emitters created
// by NewInProcessEmitter can be subscribed to.
func (e *PublisherEmitter) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	if e.subscriber == nil {
		return nil, ErrNoSubscriber
	}
	return e.subscriber.Subscribe(ctx, e.topic)
}

// Close closes the publisher and any in-process subscriptions.
func (e *PublisherEmitter) Close() error {
	return e.publisher.Close()
}

// Relay decodes published events and forwards them to dst until msgs is
// closed. Every message is acked; undecodable messages and dst errors are
// logged.
func Relay(msgs <-chan *message.Message, dst lineage.Emitter, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for msg := range msgs {
		var ev core.LineageEvent
		if err := jsoncodec.Unmarshal(msg.Payload, &ev); err != nil {
			logger.Error("failed to decode lineage message", "message_uuid", msg.UUID, "error", err)
			msg.Ack()
			continue
		}
		if err := dst.Emit(msg.Context(), &ev); err != nil {
			logger.Error("failed to relay lineage event",
				"event_type", ev.EventType, "run_id", ev.Run.RunID, "error", err)
		}
		msg.Ack()
	}
}
