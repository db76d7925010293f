package dialogue

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/locale"
	"github.com/creastat/voicedesk/notify"
	"github.com/creastat/voicedesk/planner"
	"github.com/creastat/voicedesk/session"
)

const callID = "CA0001"

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Dispatch(n notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

func (f *fakeNotifier) all() []notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Notification(nil), f.sent...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	orders   []Order
	bookings []Booking
}

func (f *fakeRecorder) RecordOrder(ctx context.Context, o Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakeRecorder) RecordBooking(ctx context.Context, b Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings = append(f.bookings, b)
	return nil
}

// scripted is a planner that answers from a function and remembers requests.
type scripted struct {
	mu       sync.Mutex
	requests []planner.Request
	next     func(req planner.Request) planner.TurnPlan
}

func (s *scripted) Plan(ctx context.Context, req planner.Request) (planner.TurnPlan, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	next := s.next
	s.mu.Unlock()
	return next(req), nil
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scripted) last() planner.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func (s *scripted) reply(plan planner.TurnPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = func(planner.Request) planner.TurnPlan { return plan }
}

type fakeMenu struct {
	mu    sync.Mutex
	items []catalog.Item
	err   error
	calls int
}

func (f *fakeMenu) Menu(ctx context.Context) ([]catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.items, f.err
}

func (f *fakeMenu) set(items []catalog.Item, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.err = items, err
}

type harness struct {
	orch     *Orchestrator
	store    session.Store
	sessions *session.Manager
	planner  *scripted
	notifier *fakeNotifier
	recorder *fakeRecorder
}

func newHarness(t *testing.T, p planner.Planner, timeout time.Duration, opts ...Option) *harness {
	t.Helper()
	store, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)

	h := &harness{
		store:    store,
		sessions: session.NewManager(store),
		notifier: &fakeNotifier{},
		recorder: &fakeRecorder{},
	}
	if p == nil {
		h.planner = &scripted{next: func(planner.Request) planner.TurnPlan {
			return planner.TurnPlan{Say: "Okay.", Listen: true}
		}}
		p = h.planner
	}
	locales := locale.Builtin(locale.English().Tag)
	gw := planner.NewGateway(p, timeout, locales, zerolog.Nop())
	opts = append([]Option{
		WithNotifier(h.notifier),
		WithRecorder(h.recorder),
		WithLogger(zerolog.Nop()),
	}, opts...)
	h.orch = NewOrchestrator(h.sessions, gw, catalog.DefaultBusiness(), locales, opts...)
	return h
}

func (h *harness) seed(t *testing.T, mutate func(s *session.Session)) {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), callID)
	require.NoError(t, err)
	mutate(s)
	require.NoError(t, h.sessions.Save(context.Background(), s))
}

func (h *harness) stored(t *testing.T) *session.Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), callID)
	require.NoError(t, err)
	return s
}

func (h *harness) say(t *testing.T, utterance string) Reply {
	t.Helper()
	r, err := h.orch.HandleTurn(context.Background(), Turn{CallID: callID, CallerID: "+4930999999", Utterance: utterance, Confidence: 0.9})
	require.NoError(t, err)
	return r
}

func TestResolve(t *testing.T) {
	c := session.New(callID).Context
	assert.Equal(t, Objective{Kind: session.TaskNone, Missing: []string{}}, Resolve(c))

	c.Dialogue.Begin(session.TaskOrder)
	c.Address = ""
	assert.Equal(t, []string{FieldName, FieldPhone, FieldOrderItem, FieldOrderQty}, Resolve(c).Missing)

	c.Name, c.Phone, c.OrderItem, c.OrderQty = "Ana", "+4930123456", "tiramisu", 1
	assert.Empty(t, Resolve(c).Missing)

	c.Dialogue.Begin(session.TaskBooking)
	obj := Resolve(c)
	assert.Equal(t, session.TaskBooking, obj.Kind)
	assert.Equal(t, []string{FieldService, FieldWhen}, obj.Missing)

	c.Dialogue.Begin(session.TaskMessage)
	assert.Empty(t, Resolve(c).Missing)
}

func redirect(t session.Task) string {
	return locale.English().RedirectSentence(t)
}

func TestLock(t *testing.T) {
	t.Run("adopts a proposal when idle", func(t *testing.T) {
		d := session.Dialogue{Phase: session.PhaseIdle}
		plan := planner.TurnPlan{Pipeline: session.TaskOrder, Action: planner.ActionNone}
		res := Lock(&d, &plan, redirect)
		assert.True(t, res.Adopted)
		assert.Equal(t, session.TaskOrder, d.Active())
		assert.False(t, res.Overridden)
	})

	t.Run("explicit switch wins", func(t *testing.T) {
		d := session.Dialogue{Phase: session.PhaseIdle}
		d.Begin(session.TaskOrder)
		plan := planner.TurnPlan{Say: "Sure.", Pipeline: session.TaskOrder, SwitchTo: session.TaskBooking}
		res := Lock(&d, &plan, redirect)
		assert.True(t, res.Switched)
		assert.False(t, res.Overridden)
		assert.Equal(t, session.TaskBooking, d.Active())
		assert.Equal(t, session.TaskBooking, plan.Pipeline)
		assert.Equal(t, "Sure.", plan.Say)
	})

	t.Run("switch clears awaiting more", func(t *testing.T) {
		d := session.Dialogue{Phase: session.PhaseIdle}
		d.Complete()
		plan := planner.TurnPlan{SwitchTo: session.TaskMessage}
		Lock(&d, &plan, redirect)
		assert.False(t, d.AwaitingMore())
		assert.Equal(t, session.TaskMessage, d.Active())
	})

	t.Run("drift is overridden idempotently", func(t *testing.T) {
		d := session.Dialogue{Phase: session.PhaseIdle}
		d.Begin(session.TaskOrder)
		for i := 0; i < 3; i++ {
			plan := planner.TurnPlan{Say: "When would you like to come?", Pipeline: session.TaskBooking, EndCall: true, Action: planner.ActionBookAppointment}
			res := Lock(&d, &plan, redirect)
			assert.True(t, res.Overridden)
			assert.Equal(t, session.TaskOrder, d.Active())
			assert.Equal(t, session.TaskOrder, plan.Pipeline)
			assert.True(t, plan.Listen)
			assert.False(t, plan.EndCall)
			assert.Equal(t, planner.ActionNone, plan.Action)
			assert.Equal(t, planner.ActionBookAppointment, res.Downgraded)
			assert.Equal(t, "Let's finish your order first. When would you like to come?", plan.Say)

			again := Lock(&d, &plan, redirect)
			assert.False(t, again.Overridden)
			assert.Equal(t, "Let's finish your order first. When would you like to come?", plan.Say)
		}
	})

	t.Run("idle proposal keeps the lock without redirect", func(t *testing.T) {
		d := session.Dialogue{Phase: session.PhaseIdle}
		d.Begin(session.TaskBooking)
		plan := planner.TurnPlan{Say: "For how many people?", Action: planner.ActionUpdateField}
		res := Lock(&d, &plan, redirect)
		assert.False(t, res.Overridden)
		assert.Equal(t, session.TaskBooking, plan.Pipeline)
		assert.Equal(t, planner.ActionUpdateField, plan.Action)
		assert.Equal(t, "For how many people?", plan.Say)
	})

	t.Run("allowed actions", func(t *testing.T) {
		assert.True(t, Allowed(session.TaskOrder, planner.ActionPlaceOrder))
		assert.False(t, Allowed(session.TaskOrder, planner.ActionSendMessage))
		assert.True(t, Allowed(session.TaskBooking, planner.ActionBookAppointment))
		assert.False(t, Allowed(session.TaskBooking, planner.ActionStartMessage))
		assert.True(t, Allowed(session.TaskMessage, planner.ActionSendMessage))
		assert.False(t, Allowed(session.TaskMessage, planner.ActionPlaceOrder))
	})
}

func TestWelcome(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	r, err := h.orch.Welcome(context.Background(), callID)
	require.NoError(t, err)

	assert.Equal(t, "Hi! Welcome to Bilal's Restaurant. How can I help you today?", r.Text())
	require.NotNil(t, r.Gather)
	assert.Equal(t, DefaultGatherAction, r.Gather.Action)
	assert.Equal(t, "en-US", r.Gather.Language)
	assert.Equal(t, "auto", r.Gather.SpeechTimeout)
	assert.Equal(t, "phone_call", r.Gather.SpeechModel)
	assert.True(t, r.Gather.ActionOnEmptyResult)
	assert.Equal(t, "Go ahead.", r.Gather.Prompt.Text)
	assert.Contains(t, r.Gather.Hints, "margherita pizza")
	assert.Contains(t, r.Gather.Hints, "reservation")
	assert.Equal(t, "Polly.Joanna", r.Segments[0].Voice)
	assert.NotNil(t, h.stored(t))

	_, err = h.orch.Welcome(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrMissingCallID)
}

func TestOrderTotalAnnounced(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.seed(t, func(s *session.Session) {
		s.Context.Dialogue.Begin(session.TaskOrder)
		s.Context.Name = "Ana"
		s.Context.OrderItem = "margherita pizza"
		s.Context.OrderQty = 2
	})
	suggested := 25.0
	h.planner.reply(planner.TurnPlan{
		Say:            "Your order is confirmed.",
		Listen:         true,
		Pipeline:       session.TaskOrder,
		PipelineDone:   true,
		Action:         planner.ActionPlaceOrder,
		Fields:         planner.Fields{OrderItem: "margherita pizza", OrderQty: 2},
		SuggestedTotal: &suggested,
	})

	r := h.say(t, "two margherita pizza")

	assert.False(t, r.Hangup)
	assert.Equal(t, "Total price: 19.00 euros. Your order is confirmed. Is there anything else you'd like?", r.Text())
	assert.Contains(t, r.Text(), "19.00")

	s := h.stored(t)
	require.NotNil(t, s.Context.ComputedTotal)
	assert.Equal(t, 19.0, *s.Context.ComputedTotal)
	assert.True(t, s.Context.Dialogue.AwaitingMore())
	assert.Equal(t, session.TaskNone, s.Context.Dialogue.Active())

	h.orch.Wait()
	require.Len(t, h.recorder.orders, 1)
	ord := h.recorder.orders[0]
	assert.Equal(t, "margherita pizza", ord.Item)
	assert.Equal(t, 2, ord.Qty)
	require.NotNil(t, ord.Total)
	assert.Equal(t, 19.0, *ord.Total)

	sent := h.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindOrder, sent[0].Kind)
	assert.Contains(t, sent[0].Body, "Order: 2 x margherita pizza")
}

func TestOrderTotalRecomputedEachTurn(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.planner.reply(planner.TurnPlan{
		Say:      "How many?",
		Listen:   true,
		Pipeline: session.TaskOrder,
		Fields:   planner.Fields{OrderItem: "Tiramisu please"},
	})

	r := h.say(t, "I'd like tiramisu")
	assert.NotContains(t, r.Text(), "Total")
	s := h.stored(t)
	assert.Equal(t, "tiramisu", s.Context.OrderItem)
	require.NotNil(t, s.Context.ComputedTotal)
	assert.Equal(t, 6.5, *s.Context.ComputedTotal)

	h.planner.reply(planner.TurnPlan{Say: "Three, noted.", Listen: true, Pipeline: session.TaskOrder, Fields: planner.Fields{OrderQty: 3}})
	h.say(t, "three")
	h.say(t, "three")
	s = h.stored(t)
	assert.Equal(t, 19.5, *s.Context.ComputedTotal)
}

func TestPlannerTimeoutWhileIdle(t *testing.T) {
	slow := planner.PlannerFunc(func(ctx context.Context, req planner.Request) (planner.TurnPlan, error) {
		<-ctx.Done()
		return planner.TurnPlan{}, ctx.Err()
	})
	h := newHarness(t, slow, 20*time.Millisecond)

	r := h.say(t, "hello there")

	assert.Equal(t, "Would you like to order food, book a table, or leave a message?", r.Text())
	assert.False(t, r.Hangup)
	require.NotNil(t, r.Gather)
	assert.True(t, h.stored(t).Context.Dialogue.Idle())
}

func TestClosureWhileAwaitingMore(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.seed(t, func(s *session.Session) {
		s.Context.Dialogue.Begin(session.TaskBooking)
		s.Context.Dialogue.Complete()
	})

	r := h.say(t, "no thanks")

	assert.True(t, r.Hangup)
	assert.Nil(t, r.Gather)
	assert.Equal(t, "Thanks for calling. Goodbye!", r.Text())
	assert.Equal(t, 0, h.planner.calls())
	assert.Nil(t, h.stored(t))
}

func TestSpokenPhoneStored(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.seed(t, func(s *session.Session) { s.Context.Dialogue.Begin(session.TaskOrder) })

	h.say(t, "oh one two three four five six seven")
	assert.Equal(t, "01234567", h.stored(t).Context.Phone)
	assert.Equal(t, "01234567", h.planner.last().Context.Phone)

	h.say(t, "one two three")
	assert.Equal(t, "01234567", h.stored(t).Context.Phone)
}

func TestCallerNumberFallback(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.say(t, "I want to book a table")
	assert.Equal(t, "+4930999999", h.stored(t).Context.Phone)

	h.planner.reply(planner.TurnPlan{Say: "Noted.", Listen: true, Fields: planner.Fields{Phone: "+4917612345"}})
	h.say(t, "my number is different")
	assert.Equal(t, "+4917612345", h.stored(t).Context.Phone)

	h.planner.reply(planner.TurnPlan{Say: "Okay.", Listen: true})
	h.say(t, "thanks")
	assert.Equal(t, "+4917612345", h.stored(t).Context.Phone)
}

func TestDriftRedirectedToBooking(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.seed(t, func(s *session.Session) { s.Context.Dialogue.Begin(session.TaskBooking) })
	h.planner.reply(planner.TurnPlan{
		Say:      "Sure, what would you like to eat?",
		Listen:   false,
		EndCall:  true,
		Pipeline: session.TaskOrder,
		Action:   planner.ActionPlaceOrder,
	})

	r := h.say(t, "actually a pizza")

	assert.False(t, r.Hangup)
	require.NotNil(t, r.Gather)
	assert.True(t, strings.HasPrefix(r.Text(), "Let's finish your booking first."))
	assert.Equal(t, session.TaskBooking, h.stored(t).Context.Dialogue.Active())
	assert.Contains(t, r.Gather.Hints, "reservation")
	assert.NotContains(t, r.Gather.Hints, "margherita pizza")

	h.orch.Wait()
	assert.Empty(t, h.recorder.orders)
}

func TestRedirectWithoutReply(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.seed(t, func(s *session.Session) { s.Context.Dialogue.Begin(session.TaskOrder) })
	h.planner.reply(planner.TurnPlan{Pipeline: session.TaskMessage})

	r := h.say(t, "leave a message")
	assert.Equal(t, "Let's finish your order first. Please continue.", r.Text())
}

func TestKnownFieldsNeverMissingAgain(t *testing.T) {
	h := newHarness(t, nil, time.Second)

	h.planner.reply(planner.TurnPlan{
		Say:      "Thanks Ana, what would you like?",
		Listen:   true,
		Pipeline: session.TaskOrder,
		Fields:   planner.Fields{Name: "Ana", Address: "Hauptstraße 5"},
	})
	h.say(t, "I want to order, my name is Ana")

	h.planner.reply(planner.TurnPlan{Say: "Done.", Listen: true, Pipeline: session.TaskOrder, PipelineDone: true})
	h.say(t, "that's correct")

	h.planner.reply(planner.TurnPlan{Say: "For when?", Listen: true, SwitchTo: session.TaskBooking})
	h.say(t, "also book a table")

	h.planner.reply(planner.TurnPlan{Say: "And the time?", Listen: true, Pipeline: session.TaskBooking})
	h.say(t, "for four people")

	req := h.planner.last()
	assert.Equal(t, "booking", req.Objective)
	assert.NotContains(t, req.Missing, FieldName)
	assert.NotContains(t, req.Missing, FieldPhone)
	assert.NotContains(t, req.Missing, FieldAddress)
	assert.Contains(t, req.Missing, FieldWhen)
	assert.Equal(t, "Hauptstraße 5", req.Context.Address)

	h.planner.reply(planner.TurnPlan{
		Say:      "Corrected.",
		Listen:   true,
		Pipeline: session.TaskBooking,
		Action:   planner.ActionUpdateField,
		Fields:   planner.Fields{Changes: &planner.Change{Field: FieldName, Value: ""}},
	})
	h.say(t, "no, the name is wrong")
	h.say(t, "let me spell it")
	assert.Contains(t, h.planner.last().Missing, FieldName)
}

func TestTurnCap(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.seed(t, func(s *session.Session) { s.Context.Dialogue.Begin(session.TaskOrder) })

	for i := 1; i <= DefaultMaxTurns; i++ {
		r := h.say(t, "hmm")
		require.False(t, r.Hangup, "turn %d", i)
		assert.Equal(t, i, h.stored(t).Context.TurnCount)
	}

	r := h.say(t, "hmm")
	assert.True(t, r.Hangup)
	assert.Equal(t, 1, r.Pause)
	assert.Equal(t, "Thanks for calling. Goodbye!", r.Text())
	assert.Equal(t, DefaultMaxTurns, h.planner.calls())
	assert.Nil(t, h.stored(t))
}

func TestMessageCapture(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.planner.reply(planner.TurnPlan{
		Say:      "Sure, go ahead with your message.",
		Listen:   true,
		Pipeline: session.TaskMessage,
		Action:   planner.ActionStartMessage,
	})

	h.say(t, "I want to leave a message")
	s := h.stored(t)
	assert.True(t, s.Context.Dialogue.CollectingMessage())
	assert.Equal(t, session.TaskMessage, s.Context.Dialogue.Active())

	r := h.say(t, "Please call me back about the party on Friday")
	assert.Equal(t, 1, h.planner.calls())
	assert.Equal(t, "Thanks. Your message has been sent. Is there anything else you'd like?", r.Text())
	assert.True(t, h.stored(t).Context.Dialogue.AwaitingMore())

	sent := h.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindMessage, sent[0].Kind)
	assert.Equal(t, "New voice message from +4930999999", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Message:\nPlease call me back about the party on Friday")

	r = h.say(t, "nothing else")
	assert.True(t, r.Hangup)
}

func TestEmptyMessage(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.seed(t, func(s *session.Session) { s.Context.Dialogue.CaptureMessage() })

	h.say(t, "")
	sent := h.notifier.all()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "Message:\n(empty)")
}

func TestLowConfidenceClarifies(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	r, err := h.orch.HandleTurn(context.Background(), Turn{CallID: callID, Utterance: "ordr fut", Confidence: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "I might have misheard. Would you like to order food, book a table, or leave a message?", r.Text())
	assert.Equal(t, 0, h.planner.calls())

	h.seed(t, func(s *session.Session) { s.Context.Dialogue.Begin(session.TaskOrder) })
	_, err = h.orch.HandleTurn(context.Background(), Turn{CallID: callID, Utterance: "tiramsu", Confidence: 0.3})
	require.NoError(t, err)
	assert.Equal(t, 1, h.planner.calls())

	assert.Equal(t, 0.3, h.stored(t).Context.ASRConfidence)
}

func TestLanguages(t *testing.T) {
	h := newHarness(t, nil, time.Second)

	r := h.say(t, "I live in the Hauptstraße")
	assert.Equal(t, "en-US", r.Segments[0].Lang)
	assert.Equal(t, "de-DE", r.Gather.Language)

	r = h.say(t, "thanks")
	assert.Equal(t, "en-US", r.Gather.Language)

	r = h.say(t, "can you speak German please")
	assert.Equal(t, "de-DE", r.Segments[0].Lang)
	assert.Equal(t, "Polly.Vicki", r.Segments[0].Voice)
	assert.Equal(t, "de-DE", r.Gather.Language)
	assert.Equal(t, "Bitte sprechen Sie.", r.Gather.Prompt.Text)

	r = h.say(t, "thanks")
	assert.Equal(t, "de-DE", r.Segments[0].Lang)

	r = h.say(t, "nein danke, tschüss")
	assert.True(t, r.Hangup)
	assert.Equal(t, "Vielen Dank für Ihren Anruf. Auf Wiederhören!", r.Text())
}

func TestEndDecision(t *testing.T) {
	t.Run("planner may end an idle call", func(t *testing.T) {
		h := newHarness(t, nil, time.Second)
		h.planner.reply(planner.TurnPlan{Say: "We open at ten.", EndCall: true})
		r := h.say(t, "when do you open")
		assert.True(t, r.Hangup)
		assert.Nil(t, h.stored(t))
	})

	t.Run("planner may not end a locked task", func(t *testing.T) {
		h := newHarness(t, nil, time.Second)
		h.seed(t, func(s *session.Session) { s.Context.Dialogue.Begin(session.TaskBooking) })
		h.planner.reply(planner.TurnPlan{Say: "Goodbye.", EndCall: true, Pipeline: session.TaskBooking})
		r := h.say(t, "hmm")
		assert.False(t, r.Hangup)
		assert.NotNil(t, h.stored(t))
	})

	t.Run("completing a task keeps listening", func(t *testing.T) {
		h := newHarness(t, nil, time.Second)
		h.seed(t, func(s *session.Session) { s.Context.Dialogue.Begin(session.TaskBooking) })
		h.planner.reply(planner.TurnPlan{Say: "Booked. Anything else?", EndCall: true, Pipeline: session.TaskBooking, PipelineDone: true, Action: planner.ActionBookAppointment})
		r := h.say(t, "yes that's right")
		assert.False(t, r.Hangup)
		assert.Equal(t, "Booked. Anything else?", r.Text())

		h.orch.Wait()
		require.Len(t, h.recorder.bookings, 1)

		h.planner.reply(planner.TurnPlan{Say: "Have a nice day.", EndCall: true})
		r = h.say(t, "I think we're good")
		assert.True(t, r.Hangup)
	})

	t.Run("caller says goodbye mid task", func(t *testing.T) {
		h := newHarness(t, nil, time.Second)
		h.seed(t, func(s *session.Session) { s.Context.Dialogue.Begin(session.TaskOrder) })
		r := h.say(t, "ok bye")
		assert.True(t, r.Hangup)
		assert.Equal(t, 1, h.planner.calls())
	})
}

func TestEndCall(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	h.say(t, "hello")
	require.NotNil(t, h.stored(t))

	require.NoError(t, h.orch.EndCall(context.Background(), callID, "completed"))
	assert.Nil(t, h.stored(t))
	assert.ErrorIs(t, h.orch.EndCall(context.Background(), "", "completed"), session.ErrMissingCallID)
}

func TestMissingCallID(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	_, err := h.orch.HandleTurn(context.Background(), Turn{Utterance: "hello"})
	assert.ErrorIs(t, err, session.ErrMissingCallID)
}

func TestHistoryBounded(t *testing.T) {
	h := newHarness(t, nil, time.Second)
	for i := 0; i < 10; i++ {
		h.say(t, "hello")
	}
	s := h.stored(t)
	assert.Len(t, s.History, session.MaxHistory)
	assert.Equal(t, "Okay.", s.LastUtterance)
}

func TestApplyChange(t *testing.T) {
	c := session.Context{OrderQty: 2}
	total := 19.0
	c.ComputedTotal = &total

	assert.True(t, applyChange(&c, planner.Change{Field: "qty", Value: "3"}))
	assert.Equal(t, 3, c.OrderQty)
	assert.Nil(t, c.ComputedTotal)

	assert.False(t, applyChange(&c, planner.Change{Field: "order_qty", Value: "many"}))
	assert.Equal(t, 3, c.OrderQty)

	assert.False(t, applyChange(&c, planner.Change{Field: "shoe_size", Value: "42"}))
}

func TestMenuSourceReadEveryTurn(t *testing.T) {
	menu := &fakeMenu{}
	h := newHarness(t, nil, time.Second, WithMenuSource(menu))

	order := func(t *testing.T) Reply {
		t.Helper()
		h.seed(t, func(s *session.Session) {
			s.Context.Dialogue.Begin(session.TaskOrder)
			s.Context.Name = "Ana"
			s.Context.OrderItem = "margherita pizza"
			s.Context.OrderQty = 2
		})
		h.planner.reply(planner.TurnPlan{
			Say:          "Your order is confirmed.",
			Listen:       true,
			Pipeline:     session.TaskOrder,
			PipelineDone: true,
			Action:       planner.ActionPlaceOrder,
			Fields:       planner.Fields{OrderItem: "margherita pizza", OrderQty: 2},
		})
		return h.say(t, "two margherita pizza")
	}

	// no answer yet: the business profile menu applies
	menu.set(nil, errors.New("connection refused"))
	assert.Contains(t, order(t).Text(), "Total price: 19.00 euros.")

	menu.set([]catalog.Item{{Name: "margherita pizza", Price: 10}}, nil)
	assert.Contains(t, order(t).Text(), "Total price: 20.00 euros.")
	require.Len(t, h.planner.last().Menu, 1)
	assert.Equal(t, 10.0, h.planner.last().Menu[0].Price)

	menu.set([]catalog.Item{{Name: "margherita pizza", Price: 12}}, nil)
	assert.Contains(t, order(t).Text(), "Total price: 24.00 euros.")

	// failures and empty menus keep the last menu served
	menu.set(nil, errors.New("timeout"))
	assert.Contains(t, order(t).Text(), "Total price: 24.00 euros.")
	menu.set([]catalog.Item{}, nil)
	assert.Contains(t, order(t).Text(), "Total price: 24.00 euros.")

	assert.Equal(t, 5, menu.calls)
}
