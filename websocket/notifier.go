package websocket

import (
	"context"

	"github.com/sirupsen/logrus"

	"form-analytics-server/metrics"
	"form-analytics-server/models"
)

// Sink delivers an event somewhere: the local hub or a shared bus.
type Sink interface {
	Deliver(ctx context.Context, event models.ResponseEvent) error
}

// Notifier decouples the write path from delivery. Publish never blocks; a
// full queue drops the event.
type Notifier struct {
	queue chan models.ResponseEvent
	sink  Sink
	log   *logrus.Entry
}

func NewNotifier(sink Sink, queueSize int, log *logrus.Entry) *Notifier {
	return &Notifier{
		queue: make(chan models.ResponseEvent, queueSize),
		sink:  sink,
		log:   log,
	}
}

func (n *Notifier) Publish(event models.ResponseEvent) {
	select {
	case n.queue <- event:
		n.log.WithField("response_id", event.ResponseID).Debug("📡 Response event queued for broadcast")
	default:
		metrics.BroadcastsDropped.WithLabelValues("queue_full").Inc()
		n.log.WithField("response_id", event.ResponseID).Warn("⚠️ Broadcast queue is full, dropping event")
	}
}

// Run drains the queue into the sink until ctx is cancelled. Delivery errors
// are logged and swallowed.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			if err := n.sink.Deliver(ctx, event); err != nil {
				metrics.BroadcastsDropped.WithLabelValues("publish_error").Inc()
				n.log.WithError(err).WithField("response_id", event.ResponseID).Warn("⚠️ Failed to broadcast response event")
			}
		}
	}
}

// HubSink delivers straight to an in-process hub.
type HubSink struct {
	Hub *Hub
}

func (s HubSink) Deliver(ctx context.Context, event models.ResponseEvent) error {
	return s.Hub.Broadcast(ctx, NewEventMessage(event))
}
