// Package notify delivers call notifications (left messages, placed orders,
// bookings) to staff. Dispatch publishes to a watermill topic and never
// blocks a turn; a mail worker consumes the topic and sends email.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultTopic is the watermill topic notifications are published on.
const DefaultTopic = "voicedesk.notifications"

// Kind says what happened on the call.
type Kind string

const (
	KindMessage Kind = "message"
	KindOrder   Kind = "order"
	KindBooking Kind = "booking"
)

const unknownCaller = "unknown"

// Notification is one email-sized report.
type Notification struct {
	Kind    Kind   `json:"kind"`
	CallID  string `json:"call_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Caller returns from, or "unknown".
func Caller(from string) string {
	if strings.TrimSpace(from) == "" {
		return unknownCaller
	}
	return from
}

// Body formats the sender, the free-form content and a snapshot of the call
// context.
func Body(from, content string, snapshot any) string {
	content = strings.TrimSpace(content)
	if content == "" {
		content = "(empty)"
	}
	ctx, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		ctx = []byte(fmt.Sprintf("%+v", snapshot))
	}
	return fmt.Sprintf("From: %s\n\nMessage:\n%s\n\nContext:\n%s", Caller(from), content, ctx)
}

// NewMessage reports a message the caller left.
func NewMessage(callID, from, content string, snapshot any) Notification {
	return Notification{
		Kind:    KindMessage,
		CallID:  callID,
		Subject: "New voice message from " + Caller(from),
		Body:    Body(from, content, snapshot),
	}
}

// NewOrder reports a placed order.
func NewOrder(callID, from, summary string, snapshot any) Notification {
	return Notification{
		Kind:    KindOrder,
		CallID:  callID,
		Subject: "New phone order from " + Caller(from),
		Body:    Body(from, summary, snapshot),
	}
}

// NewBooking reports a table booking.
func NewBooking(callID, from, summary string, snapshot any) Notification {
	return Notification{
		Kind:    KindBooking,
		CallID:  callID,
		Subject: "New booking from " + Caller(from),
		Body:    Body(from, summary, snapshot),
	}
}
