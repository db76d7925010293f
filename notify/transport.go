package notify

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Transport is the publisher/subscriber pair notifications travel over.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// StreamConfig selects Redis Streams. Without a client the transport is an
// in-process channel.
type StreamConfig struct {
	Client   *redis.Client
	Group    string
	Consumer string
}

// NewTransport builds a Redis Streams transport when cfg has a client and a
// gochannel one otherwise. The gochannel transport keeps nothing: messages
// published before the mail router subscribes are dropped, so start the
// router before accepting calls.
func NewTransport(cfg StreamConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if cfg.Client == nil {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, logger)
		return &Transport{Publisher: ch, Subscriber: ch}, nil
	}

	if cfg.Group == "" {
		cfg.Group = "voicedesk-mailer"
	}
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     cfg.Client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "create redis stream publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        cfg.Client,
		Unmarshaller:  marshaler,
		ConsumerGroup: cfg.Group,
		Consumer:      cfg.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, errors.Wrap(err, "create redis stream subscriber")
	}
	return &Transport{Publisher: pub, Subscriber: sub}, nil
}

// Close closes both ends.
func (t *Transport) Close() error {
	perr := t.Publisher.Close()
	serr := t.Subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}
