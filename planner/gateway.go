package planner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/creastat/voicedesk/locale"
	"github.com/creastat/voicedesk/metrics"
	"github.com/creastat/voicedesk/session"
)

// DefaultTimeout bounds one planner call.
const DefaultTimeout = 15 * time.Second

// Gateway calls a Planner under a deadline. It never fails: on timeout,
// transport error or an unparseable reply it returns the fallback plan.
type Gateway struct {
	planner Planner
	timeout time.Duration
	locales *locale.Set
	logger  zerolog.Logger
}

// NewGateway wraps p. A non-positive timeout means DefaultTimeout.
func NewGateway(p Planner, timeout time.Duration, locales *locale.Set, logger zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		planner: p,
		timeout: timeout,
		locales: locales,
		logger:  logger.With().Str("component", "planner").Logger(),
	}
}

// Fallback is the deterministic plan used when the planner is unavailable:
// offer the three tasks and keep listening.
func (g *Gateway) Fallback(req Request) TurnPlan {
	return TurnPlan{
		Say:      g.locales.Get(req.Context.TTSLang).Prompts.Fallback,
		Listen:   true,
		Pipeline: session.TaskNone,
		Action:   ActionNone,
		Fallback: true,
	}
}

type planResult struct {
	plan TurnPlan
	err  error
}

// Plan asks the planner for a turn plan. A call that outlives the deadline is
// abandoned and its result discarded.
func (g *Gateway) Plan(ctx context.Context, req Request) TurnPlan {
	if g.planner == nil {
		return g.fail(req, ErrPlannerNotWired, "unconfigured")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan planResult, 1)
	go func() {
		p, err := g.planner.Plan(ctx, req)
		done <- planResult{plan: p, err: err}
	}()

	select {
	case r := <-done:
		metrics.PlannerLatency.Observe(time.Since(start).Seconds())
		if r.err != nil {
			reason := "error"
			if errors.Is(r.err, ErrMalformedPlan) || errors.Is(r.err, ErrEmptyCompletion) {
				reason = "malformed"
			}
			if errors.Is(r.err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			return g.fail(req, r.err, reason)
		}
		if len(r.plan.Coerced) > 0 {
			g.logger.Warn().Str("call_id", req.CallID).Strs("fields", r.plan.Coerced).Msg("planner returned unknown enum values")
		}
		return r.plan
	case <-ctx.Done():
		metrics.PlannerLatency.Observe(time.Since(start).Seconds())
		return g.fail(req, errors.Wrap(ErrPlannerTimedOut, ctx.Err().Error()), "timeout")
	}
}

func (g *Gateway) fail(req Request, err error, reason string) TurnPlan {
	metrics.PlannerFallbacks.WithLabelValues(reason).Inc()
	g.logger.Warn().Err(err).Str("call_id", req.CallID).Str("reason", reason).Msg("using fallback plan")
	return g.Fallback(req)
}
