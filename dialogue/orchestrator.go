// Package dialogue runs one turn of a receptionist call: it resolves what the
// call still needs, asks the planner, keeps the call locked on one task and
// turns the result into speech plus a capture or hangup directive.
package dialogue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/locale"
	"github.com/creastat/voicedesk/metrics"
	"github.com/creastat/voicedesk/notify"
	"github.com/creastat/voicedesk/planner"
	"github.com/creastat/voicedesk/session"
	"github.com/creastat/voicedesk/speech"
)

// Defaults for Config.
const (
	DefaultMaxTurns      = 30
	DefaultLowConfidence = 0.55
	DefaultGatherAction  = "/voice/handle"
	DefaultSpeechTimeout = "auto"
	DefaultSpeechModel   = "phone_call"
	DefaultRecordTimeout = 10 * time.Second
)

// Reasons a call ends.
const (
	EndTurnCap  = "turn_cap"
	EndClosure  = "closure"
	EndFarewell = "farewell"
	EndPlanned  = "planner"
)

// Config tunes the orchestrator.
type Config struct {
	// MaxTurns is the last turn answered normally; the next one hangs up.
	MaxTurns int
	// LowConfidence is the recognizer confidence below which an idle caller
	// is asked to repeat.
	LowConfidence float64
	GatherAction  string
	SpeechTimeout string
	SpeechModel   string
	RecordTimeout time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MaxTurns:      DefaultMaxTurns,
		LowConfidence: DefaultLowConfidence,
		GatherAction:  DefaultGatherAction,
		SpeechTimeout: DefaultSpeechTimeout,
		SpeechModel:   DefaultSpeechModel,
		RecordTimeout: DefaultRecordTimeout,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default configuration. Zero fields keep their
// defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		def := DefaultConfig()
		if cfg.MaxTurns <= 0 {
			cfg.MaxTurns = def.MaxTurns
		}
		if cfg.LowConfidence <= 0 {
			cfg.LowConfidence = def.LowConfidence
		}
		if cfg.GatherAction == "" {
			cfg.GatherAction = def.GatherAction
		}
		if cfg.SpeechTimeout == "" {
			cfg.SpeechTimeout = def.SpeechTimeout
		}
		if cfg.SpeechModel == "" {
			cfg.SpeechModel = def.SpeechModel
		}
		if cfg.RecordTimeout <= 0 {
			cfg.RecordTimeout = def.RecordTimeout
		}
		o.cfg = cfg
	}
}

// WithNotifier sets where left messages, orders and bookings are reported.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithRecorder sets where placed orders and bookings are stored.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithMenuSource prices orders and builds hints from src, read every turn.
// Until src answers, and whenever it fails, the last menu it served (or the
// business profile menu) is used.
func WithMenuSource(src MenuSource) Option {
	return func(o *Orchestrator) {
		o.menuSource = src
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Turn is one inbound utterance.
type Turn struct {
	CallID     string
	CallerID   string
	Utterance  string
	Confidence float64
}

// Orchestrator is the per-call dialogue state machine.
type Orchestrator struct {
	sessions *session.Manager
	gateway  *planner.Gateway
	business *catalog.Business
	locales  *locale.Set
	notifier Notifier
	recorder Recorder
	cfg      Config
	logger   zerolog.Logger

	menuSource MenuSource
	menuMu     sync.Mutex
	catalog    *catalog.Catalog

	wg sync.WaitGroup
}

// NewOrchestrator wires the components of a receptionist line.
func NewOrchestrator(sessions *session.Manager, gateway *planner.Gateway, business *catalog.Business, locales *locale.Set, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		gateway:  gateway,
		business: business,
		catalog:  business.Catalog(),
		locales:  locales,
		cfg:      DefaultConfig(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "dialogue").Logger()
	return o
}

// Welcome greets a new call and starts listening.
func (o *Orchestrator) Welcome(ctx context.Context, callID string) (Reply, error) {
	if callID == "" {
		return Reply{}, session.ErrMissingCallID
	}
	logger := o.logger.With().Str("call_id", callID).Logger()
	s := o.load(ctx, callID, logger)
	loc := o.locales.Default()
	s.Context.TTSLang = loc.Tag
	s.Context.STTLang = loc.Tag

	say := loc.Welcome(o.business.Name)
	s.LastUtterance = say
	logger.Info().Msg("call started")
	return o.continueCall(ctx, s, loc, o.menu(ctx, logger), say, session.TaskNone, logger), nil
}

// EndCall forgets a call the gateway reports as finished.
func (o *Orchestrator) EndCall(ctx context.Context, callID, reason string) error {
	if callID == "" {
		return session.ErrMissingCallID
	}
	if err := o.sessions.Delete(ctx, callID); err != nil {
		return err
	}
	metrics.CallsEnded.WithLabelValues(reason).Inc()
	o.updateActive()
	return nil
}

// HandleTurn answers one utterance. It only fails on a missing call id;
// every other problem is logged and the caller still gets an answer.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) (Reply, error) {
	if turn.CallID == "" {
		return Reply{}, session.ErrMissingCallID
	}
	logger := o.logger.With().Str("call_id", turn.CallID).Logger()
	utterance := strings.TrimSpace(turn.Utterance)

	s := o.load(ctx, turn.CallID, logger)
	c := &s.Context
	c.TurnCount++
	c.ASRConfidence = turn.Confidence

	if lang, ok := speech.RequestedSynthesisLanguage(utterance); ok && o.locales.Has(lang) {
		c.TTSLang = lang
	}
	loc := o.locales.Get(c.TTSLang)
	c.TTSLang = loc.Tag
	c.STTLang = speech.RecognitionLanguage(utterance, loc.Tag, loc.SecondaryRecognition)
	menu := o.menu(ctx, logger)

	logger.Debug().
		Int("turn", c.TurnCount).
		Str("phase", string(c.Dialogue.Phase)).
		Float64("confidence", turn.Confidence).
		Str("utterance", utterance).
		Msg("turn received")

	if c.TurnCount > o.cfg.MaxTurns {
		logger.Info().Int("turns", c.TurnCount).Msg("turn cap reached")
		metrics.TurnCount.WithLabelValues(EndTurnCap).Inc()
		return o.hangup(ctx, s, loc, EndTurnCap, 1, logger), nil
	}

	if c.Dialogue.CollectingMessage() {
		o.notify(notify.NewMessage(s.CallID, turn.CallerID, utterance, c))
		c.Dialogue.Complete()
		say := loc.Prompts.MessageSent
		s.RecordExchange(utterance, say)
		metrics.TurnCount.WithLabelValues("message_captured").Inc()
		return o.continueCall(ctx, s, loc, menu, say, session.TaskNone, logger), nil
	}

	if c.Dialogue.AwaitingMore() && o.locales.IsClosure(utterance) {
		metrics.TurnCount.WithLabelValues(EndClosure).Inc()
		return o.hangup(ctx, s, loc, EndClosure, 0, logger), nil
	}

	if c.Dialogue.Active() == session.TaskNone && utterance != "" &&
		turn.Confidence > 0 && turn.Confidence < o.cfg.LowConfidence {
		say := loc.Prompts.Clarify
		s.LastUtterance = say
		metrics.TurnCount.WithLabelValues("clarify").Inc()
		return o.continueCall(ctx, s, loc, menu, say, session.TaskNone, logger), nil
	}

	if phone := speech.NormalizePhone(utterance, c.STTLang); speech.AcceptablePhone(phone) {
		c.Phone = phone
	}

	obj := Resolve(*c)
	plan := o.gateway.Plan(ctx, planner.Request{
		CallID:    s.CallID,
		CallerID:  turn.CallerID,
		Utterance: utterance,
		Context:   *c,
		Objective: obj.Kind.String(),
		Missing:   obj.Missing,
		History:   s.History,
		Menu:      menu.Items(),
	})

	lock := Lock(&c.Dialogue, &plan, loc.RedirectSentence)
	if lock.Overridden {
		if plan.Say == loc.RedirectSentence(lock.Locked) {
			plan.Say += " " + loc.Prompts.Continue
		}
		logger.Info().Str("locked", string(lock.Locked)).Msg("planner drifted off the locked task")
	}
	if lock.Downgraded != "" {
		logger.Warn().Str("locked", string(lock.Locked)).Str("action", string(lock.Downgraded)).Msg("action not allowed for locked task")
	}

	mergeFields(c, plan.Fields, turn.CallerID)

	ordering := lock.Locked == session.TaskOrder || plan.Pipeline == session.TaskOrder
	if ordering {
		priceOrder(menu, c, plan.SuggestedTotal, logger)
	}

	if plan.PipelineDone {
		if ordering && c.ComputedTotal != nil {
			if total := loc.TotalSentence(*c.ComputedTotal); !strings.Contains(plan.Say, total) {
				plan.Say = joinSay(total, plan.Say)
			}
		}
		c.Dialogue.Complete()
		plan.Listen = true
		plan.EndCall = false
		if !loc.AsksAnythingElse(plan.Say) {
			plan.Say = joinSay(plan.Say, loc.Prompts.AnythingElse)
		}
	}

	say := plan.Say
	if say == "" {
		say = loc.Prompts.Okay
	}
	s.RecordExchange(utterance, say)

	o.perform(s, turn, plan, logger)

	outcome := "planned"
	if plan.Fallback {
		outcome = "fallback"
	}
	switch {
	case plan.EndCall && (c.Dialogue.AwaitingMore() || c.Dialogue.Idle()):
		metrics.TurnCount.WithLabelValues(outcome).Inc()
		return o.hangup(ctx, s, loc, EndPlanned, 0, logger), nil
	case o.locales.IsFarewell(utterance):
		metrics.TurnCount.WithLabelValues(outcome).Inc()
		return o.hangup(ctx, s, loc, EndFarewell, 0, logger), nil
	}

	hints := c.Dialogue.Active()
	if hints == session.TaskNone {
		hints = plan.Pipeline
	}
	metrics.TurnCount.WithLabelValues(outcome).Inc()
	return o.continueCall(ctx, s, loc, menu, say, hints, logger), nil
}

// Wait blocks until background order and booking records have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) load(ctx context.Context, callID string, logger zerolog.Logger) *session.Session {
	s, err := o.sessions.Get(ctx, callID)
	if err != nil {
		logger.Error().Err(err).Msg("session store unavailable; answering from a fresh session")
		return session.New(callID)
	}
	return s
}

func (o *Orchestrator) save(ctx context.Context, s *session.Session, logger zerolog.Logger) {
	if err := o.sessions.Save(ctx, s); err != nil {
		logger.Error().Err(err).Msg("failed to save session")
	}
	o.updateActive()
}

func (o *Orchestrator) updateActive() {
	if n := o.sessions.Active(); n >= 0 {
		metrics.ActiveCalls.Set(float64(n))
	}
}

func (o *Orchestrator) segment(loc *locale.Locale, text string) Segment {
	return Segment{Text: text, Lang: loc.Tag, Voice: loc.Voice}
}

// menu returns the catalog for this turn.
func (o *Orchestrator) menu(ctx context.Context, logger zerolog.Logger) *catalog.Catalog {
	if o.menuSource == nil {
		return o.catalog
	}
	items, err := o.menuSource.Menu(ctx)

	o.menuMu.Lock()
	defer o.menuMu.Unlock()
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("menu source unavailable; keeping the last menu")
	case len(items) == 0:
		logger.Warn().Msg("menu source returned no items; keeping the last menu")
	default:
		o.catalog = catalog.New(items)
	}
	return o.catalog
}

func (o *Orchestrator) continueCall(ctx context.Context, s *session.Session, loc *locale.Locale, menu *catalog.Catalog, say string, hints session.Task, logger zerolog.Logger) Reply {
	o.save(ctx, s, logger)
	return Reply{
		Segments: []Segment{o.segment(loc, say)},
		Gather: &Gather{
			Action:              o.cfg.GatherAction,
			Language:            s.Context.STTLang,
			Hints:               loc.HintsCSV(hints, menu.Names()),
			SpeechTimeout:       o.cfg.SpeechTimeout,
			SpeechModel:         o.cfg.SpeechModel,
			ActionOnEmptyResult: true,
			Prompt:              o.segment(loc, loc.Prompts.GoAhead),
		},
	}
}

func (o *Orchestrator) hangup(ctx context.Context, s *session.Session, loc *locale.Locale, reason string, pause int, logger zerolog.Logger) Reply {
	s.Context.Dialogue.End()
	if err := o.sessions.Delete(ctx, s.CallID); err != nil {
		logger.Error().Err(err).Msg("failed to delete session")
	}
	metrics.CallsEnded.WithLabelValues(reason).Inc()
	o.updateActive()
	logger.Info().Str("reason", reason).Int("turns", s.Context.TurnCount).Msg("call ended")
	return Reply{
		Segments: []Segment{o.segment(loc, loc.Prompts.Farewell)},
		Pause:    pause,
		Hangup:   true,
	}
}

// priceOrder recomputes the order total from the menu. The planner's own
// figure is only compared and logged.
func priceOrder(menu *catalog.Catalog, c *session.Context, suggested *float64, logger zerolog.Logger) {
	if c.OrderItem == "" {
		return
	}
	item, ok := menu.Find(c.OrderItem)
	if !ok {
		c.ComputedTotal = nil
		logger.Debug().Str("item", c.OrderItem).Msg("order item not on the menu")
		return
	}
	c.OrderItem = item.Name
	total, err := menu.Total(item.Name, c.OrderQty)
	if err != nil {
		c.ComputedTotal = nil
		return
	}
	c.ComputedTotal = &total
	if suggested != nil && catalog.Round2(*suggested) != total {
		logger.Warn().Float64("planner_total", *suggested).Float64("total", total).Msg("ignoring planner total")
	}
}

func (o *Orchestrator) perform(s *session.Session, turn Turn, plan planner.TurnPlan, logger zerolog.Logger) {
	c := &s.Context
	caller := turn.CallerID
	if caller == "" {
		caller = c.Phone
	}

	switch plan.Action {
	case planner.ActionStartMessage:
		c.Dialogue.CaptureMessage()
		logger.Info().Msg("capturing message")

	case planner.ActionSendMessage:
		o.notify(notify.NewMessage(s.CallID, caller, plan.Fields.Message, c))

	case planner.ActionBookAppointment:
		b := Booking{
			CallID:  s.CallID,
			Caller:  caller,
			Name:    c.Name,
			Phone:   c.Phone,
			Service: c.Service,
			When:    c.When,
		}
		logger.Info().Interface("booking", b).Msg("booking appointment")
		o.record(logger, "booking", func(ctx context.Context) error { return o.recorder.RecordBooking(ctx, b) })
		o.notify(notify.NewBooking(s.CallID, caller, bookingSummary(b), c))

	case planner.ActionPlaceOrder:
		qty := c.OrderQty
		if qty < 1 {
			qty = 1
		}
		ord := Order{
			CallID:  s.CallID,
			Caller:  caller,
			Name:    c.Name,
			Phone:   c.Phone,
			Address: c.Address,
			Item:    c.OrderItem,
			Qty:     qty,
			Total:   c.ComputedTotal,
		}
		logger.Info().Interface("order", ord).Msg("placing order")
		o.record(logger, "order", func(ctx context.Context) error { return o.recorder.RecordOrder(ctx, ord) })
		o.notify(notify.NewOrder(s.CallID, caller, orderSummary(ord), c))

	case planner.ActionUpdateField:
		logger.Info().Interface("fields", plan.Fields).Msg("field updated")
	}
}

func (o *Orchestrator) notify(n notify.Notification) {
	if o.notifier == nil {
		o.logger.Warn().Str("call_id", n.CallID).Str("kind", string(n.Kind)).Msg("no notifier configured; notification dropped")
		return
	}
	o.notifier.Dispatch(n)
}

func (o *Orchestrator) record(logger zerolog.Logger, what string, fn func(context.Context) error) {
	if o.recorder == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RecordTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Error().Err(err).Str("record", what).Msg("failed to record")
		}
	}()
}

func orderSummary(o Order) string {
	s := fmt.Sprintf("Order: %d x %s\nName: %s\nPhone: %s", o.Qty, o.Item, o.Name, o.Phone)
	if o.Address != "" {
		s += "\nAddress: " + o.Address
	}
	if o.Total != nil {
		s += fmt.Sprintf("\nTotal: %.2f", *o.Total)
	}
	return s
}

func bookingSummary(b Booking) string {
	return fmt.Sprintf("Booking: %s\nWhen: %s\nName: %s\nPhone: %s", b.Service, b.When, b.Name, b.Phone)
}

// mergeFields copies what the planner heard into the call context. Empty
// values never clear a field; only an explicit change does.
func mergeFields(c *session.Context, f planner.Fields, caller string) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Name, f.Name)
	set(&c.Phone, f.Phone)
	set(&c.Address, f.Address)
	set(&c.Service, f.Service)
	set(&c.When, f.When)
	set(&c.OrderItem, f.OrderItem)
	if f.OrderQty > 0 {
		c.OrderQty = f.OrderQty
	}
	if c.Phone == "" && caller != "" {
		c.Phone = caller
	}
	if f.Changes != nil {
		applyChange(c, *f.Changes)
	}
}

// applyChange applies an explicit correction. An empty value clears the
// field. It reports whether the field was known.
func applyChange(c *session.Context, ch planner.Change) bool {
	switch ch.Field {
	case FieldName:
		c.Name = ch.Value
	case FieldPhone:
		c.Phone = ch.Value
	case FieldAddress:
		c.Address = ch.Value
	case FieldService:
		c.Service = ch.Value
	case FieldWhen:
		c.When = ch.Value
	case FieldOrderItem, "item":
		c.OrderItem = ch.Value
		c.ComputedTotal = nil
	case FieldOrderQty, "qty", "quantity":
		qty, err := strconv.Atoi(strings.TrimSpace(ch.Value))
		if err != nil && ch.Value != "" {
			return false
		}
		c.OrderQty = qty
		c.ComputedTotal = nil
	default:
		return false
	}
	return true
}

func joinSay(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
