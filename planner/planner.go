// Package planner talks to the language-model planning oracle. The oracle
// proposes a TurnPlan; the Gateway bounds how long that may take and turns
// every failure into a usable fallback plan.
package planner

import (
	"context"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/session"
)

// Planner proposes the next turn of a call.
type Planner interface {
	Plan(ctx context.Context, req Request) (TurnPlan, error)
}

// PlannerFunc adapts a function to Planner.
type PlannerFunc func(ctx context.Context, req Request) (TurnPlan, error)

func (f PlannerFunc) Plan(ctx context.Context, req Request) (TurnPlan, error) {
	return f(ctx, req)
}

// Request is everything the planner sees for one turn.
type Request struct {
	CallID    string
	CallerID  string
	Utterance string
	Context   session.Context
	Objective string
	Missing   []string
	History   []session.Message
	// Menu is the menu in force this turn; nil means the business profile's.
	Menu []catalog.Item
}
