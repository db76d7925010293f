package notify

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/creastat/voicedesk/metrics"
)

// Dispatcher publishes notifications without waiting for delivery.
type Dispatcher struct {
	publisher message.Publisher
	topic     string
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher publishes on topic; an empty topic means DefaultTopic.
func NewDispatcher(pub message.Publisher, topic string, logger zerolog.Logger) *Dispatcher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Dispatcher{
		publisher: pub,
		topic:     topic,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Publish sends n and waits for the publisher to accept it.
func (d *Dispatcher) Publish(n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("kind", string(n.Kind))
	msg.Metadata.Set("call_id", n.CallID)
	return errors.Wrapf(d.publisher.Publish(d.topic, msg), "publish to %s", d.topic)
}

// Dispatch publishes n in the background. Failures are logged and counted,
// never returned.
func (d *Dispatcher) Dispatch(n Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Publish(n); err != nil {
			metrics.Notifications.WithLabelValues(string(n.Kind), "publish_failed").Inc()
			d.logger.Error().Err(err).Str("call_id", n.CallID).Str("kind", string(n.Kind)).Msg("notification dispatch failed")
			return
		}
		metrics.Notifications.WithLabelValues(string(n.Kind), "published").Inc()
		d.logger.Debug().Str("call_id", n.CallID).Str("kind", string(n.Kind)).Msg("notification published")
	}()
}

// Wait blocks until every dispatched notification has been handed to the
// publisher.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for pending dispatches and closes the publisher.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	return d.publisher.Close()
}
