package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBody(t *testing.T) {
	body := Body("", "  ", map[string]string{"name": "Ana"})
	assert.True(t, strings.HasPrefix(body, "From: unknown\n\nMessage:\n(empty)\n\nContext:\n{"))
	assert.Contains(t, body, `"name": "Ana"`)

	n := NewMessage("CA1", "+4930123456", "Please call me back", nil)
	assert.Equal(t, KindMessage, n.Kind)
	assert.Equal(t, "New voice message from +4930123456", n.Subject)
	assert.Contains(t, n.Body, "Message:\nPlease call me back")
}

func TestDispatcherPublishes(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ch.Close()

	msgs, err := ch.Subscribe(context.Background(), DefaultTopic)
	require.NoError(t, err)

	d := NewDispatcher(ch, "", zerolog.Nop())
	d.Dispatch(NewOrder("CA1", "+4930123456", "2 x margherita pizza", nil))

	select {
	case msg := <-msgs:
		msg.Ack()
		var n Notification
		require.NoError(t, json.Unmarshal(msg.Payload, &n))
		assert.Equal(t, KindOrder, n.Kind)
		assert.Equal(t, "CA1", n.CallID)
		assert.Equal(t, "order", msg.Metadata.Get("kind"))
		assert.NotEmpty(t, msg.UUID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not published")
	}
	d.Wait()
}

type failingPublisher struct{}

func (failingPublisher) Publish(topic string, messages ...*message.Message) error {
	return errors.New("bus down")
}

func (failingPublisher) Close() error { return nil }

func TestDispatcherSwallowsFailures(t *testing.T) {
	d := NewDispatcher(failingPublisher{}, "", zerolog.Nop())
	d.Dispatch(NewMessage("CA1", "", "hi", nil))
	d.Wait()

	err := d.Publish(NewMessage("CA1", "", "hi", nil))
	assert.ErrorContains(t, err, "bus down")
	assert.NoError(t, d.Close())
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(ctx context.Context, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, subject)
	return nil
}

func (m *recordingMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func TestMailHandler(t *testing.T) {
	mailer := &recordingMailer{}
	h := MailHandler(mailer, zerolog.Nop())

	payload, err := json.Marshal(NewBooking("CA1", "+49301", "table for 4", nil))
	require.NoError(t, err)
	require.NoError(t, h(message.NewMessage("1", payload)))
	assert.Equal(t, []string{"New booking from +49301"}, mailer.subjects())

	assert.NoError(t, h(message.NewMessage("2", []byte("not json"))))
	assert.Len(t, mailer.subjects(), 1)

	failing := MailHandler(MailerFunc(func(ctx context.Context, subject, body string) error {
		return errors.New("smtp down")
	}), zerolog.Nop())
	assert.Error(t, failing(message.NewMessage("3", payload)))
}

func TestRouterMailsDispatchedNotifications(t *testing.T) {
	transport, err := NewTransport(StreamConfig{}, watermill.NopLogger{})
	require.NoError(t, err)

	mailer := &recordingMailer{}
	router, err := NewRouter(transport.Subscriber, "", mailer, zerolog.Nop(), watermill.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	d := NewDispatcher(transport.Publisher, "", zerolog.Nop())
	d.Dispatch(NewMessage("CA9", "+4930123456", "table for two tonight?", nil))

	assert.Eventually(t, func() bool {
		return len(mailer.subjects()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, router.Close())
	require.NoError(t, transport.Close())
}

func TestInProcessTransportDoesNotReplay(t *testing.T) {
	transport, err := NewTransport(StreamConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer transport.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first, err := transport.Subscriber.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	d := NewDispatcher(transport.Publisher, "", zerolog.Nop())
	for i := 0; i < 20; i++ {
		require.NoError(t, d.Publish(NewMessage("CA1", "", "hello", nil)))
		select {
		case msg := <-first:
			msg.Ack()
		case <-time.After(2 * time.Second):
			t.Fatal("notification not delivered")
		}
	}

	second, err := transport.Subscriber.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)
	select {
	case msg := <-second:
		msg.Ack()
		t.Fatalf("delivered notification %s was replayed to a new subscriber", msg.UUID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSMTPMailer(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{})
	assert.Error(t, err)

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Username: "desk@example.com", To: "a@example.com, b@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", m.addr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, m.to)

	raw := string(m.Compose("New voice message\nfrom x", "line one\nline two"))
	assert.Contains(t, raw, "From: desk@example.com\r\n")
	assert.Contains(t, raw, "Subject: New voice message from x\r\n")
	assert.True(t, strings.HasSuffix(raw, "line one\r\nline two"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "s", "b"), context.Canceled)
}
