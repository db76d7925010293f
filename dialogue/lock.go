package dialogue

import (
	"strings"

	"github.com/creastat/voicedesk/metrics"
	"github.com/creastat/voicedesk/planner"
	"github.com/creastat/voicedesk/session"
)

var allowedActions = map[session.Task]map[planner.Action]bool{
	session.TaskOrder: {
		planner.ActionNone:        true,
		planner.ActionUpdateField: true,
		planner.ActionPlaceOrder:  true,
	},
	session.TaskBooking: {
		planner.ActionNone:            true,
		planner.ActionUpdateField:     true,
		planner.ActionBookAppointment: true,
	},
	session.TaskMessage: {
		planner.ActionNone:         true,
		planner.ActionUpdateField:  true,
		planner.ActionStartMessage: true,
		planner.ActionSendMessage:  true,
	},
}

// Allowed reports whether action may run while t is locked.
func Allowed(t session.Task, action planner.Action) bool {
	return allowedActions[t][action]
}

// LockResult describes what the lock manager did to a plan.
type LockResult struct {
	Locked     session.Task
	Switched   bool
	Adopted    bool
	Overridden bool
	Downgraded planner.Action
}

// Lock keeps the call on one task. An explicit switch_to replaces the active
// task; otherwise a proposed task is only adopted when nothing is locked. A
// plan that drifts to another task is pulled back to the locked one, prefixed
// with redirect(locked) and kept listening. Actions outside the locked task's
// set are downgraded to none.
// Applying Lock twice to the same plan changes nothing the second time.
func Lock(d *session.Dialogue, plan *planner.TurnPlan, redirect func(session.Task) string) LockResult {
	var res LockResult

	switch {
	case plan.SwitchTo != session.TaskNone:
		d.Begin(plan.SwitchTo)
		res.Switched = true
	case d.Active() == session.TaskNone && plan.Pipeline != session.TaskNone:
		d.Begin(plan.Pipeline)
		res.Adopted = d.Active() == plan.Pipeline
	}

	res.Locked = d.Active()
	if res.Locked == session.TaskNone {
		return res
	}

	if plan.Pipeline == session.TaskNone || res.Switched {
		plan.Pipeline = res.Locked
	}
	if plan.Pipeline != res.Locked && !res.Switched {
		res.Overridden = true
		plan.Pipeline = res.Locked
		plan.Listen = true
		plan.EndCall = false
		if redirect != nil {
			if sentence := redirect(res.Locked); sentence != "" && !strings.HasPrefix(plan.Say, sentence) {
				plan.Say = strings.TrimSpace(sentence + " " + plan.Say)
			}
		}
		metrics.LockOverrides.WithLabelValues(string(res.Locked)).Inc()
	}
	if !Allowed(res.Locked, plan.Action) {
		res.Downgraded = plan.Action
		plan.Action = planner.ActionNone
	}
	return res
}
