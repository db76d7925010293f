package planner

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/creastat/voicedesk/session"
)

var (
	ErrMalformedPlan   = errors.New("malformed plan")
	ErrEmptyCompletion = errors.New("empty completion")
	ErrPlannerTimedOut = errors.New("planner timed out")
	ErrPlannerNotWired = errors.New("planner not configured")
)

// Action is a side effect the planner asks the orchestrator to perform.
type Action string

const (
	ActionNone            Action = "none"
	ActionStartMessage    Action = "start_message"
	ActionSendMessage     Action = "send_message"
	ActionBookAppointment Action = "book_appointment"
	ActionPlaceOrder      Action = "place_order"
	ActionUpdateField     Action = "update_field"
)

func parseAction(s string) (Action, bool) {
	switch a := Action(strings.TrimSpace(s)); a {
	case "":
		return ActionNone, true
	case ActionNone, ActionStartMessage, ActionSendMessage, ActionBookAppointment, ActionPlaceOrder, ActionUpdateField:
		return a, true
	}
	return ActionNone, false
}

// Change is an explicit correction of one stored field.
type Change struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Fields are the values the planner extracted this turn. Empty means "not
// mentioned", never "clear".
type Fields struct {
	Name      string  `json:"name,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Address   string  `json:"address,omitempty"`
	Service   string  `json:"service,omitempty"`
	When      string  `json:"when,omitempty"`
	OrderItem string  `json:"order_item,omitempty"`
	OrderQty  int     `json:"order_qty,omitempty"`
	Message   string  `json:"message,omitempty"`
	Changes   *Change `json:"changes,omitempty"`
}

// TurnPlan is the planner's proposal for one turn. It is untrusted: the
// orchestrator reconciles it against the locked task and recomputes totals.
type TurnPlan struct {
	Say          string
	Listen       bool
	EndCall      bool
	Pipeline     session.Task
	PipelineDone bool
	SwitchTo     session.Task
	Action       Action
	Fields       Fields

	// SuggestedTotal is the planner's own arithmetic; it is only logged.
	SuggestedTotal *float64
	// Fallback is set when the plan did not come from the planner.
	Fallback bool
	// Coerced names enum fields whose unknown values were replaced by defaults.
	Coerced []string
}

// flexInt accepts 2, "2" and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(int(v))
	return nil
}

// flexFloat accepts 19.5, "19.50", "€19.50" and null.
type flexFloat struct {
	v  float64
	ok bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimLeft(s, "$€ ")
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.v, f.ok = v, true
	return nil
}

// flexString accepts strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*f = flexString(str)
		return nil
	}
	*f = flexString(strings.Trim(s, `"`))
	return nil
}

type wireFields struct {
	Name          flexString `json:"name"`
	Phone         flexString `json:"phone"`
	Address       flexString `json:"address"`
	Service       flexString `json:"service"`
	When          flexString `json:"when"`
	OrderItem     flexString `json:"order_item"`
	OrderQty      flexInt    `json:"order_qty"`
	Message       flexString `json:"message"`
	ComputedTotal flexFloat  `json:"computed_total"`
	Changes       *struct {
		Field flexString `json:"field"`
		Value flexString `json:"value"`
	} `json:"changes"`
}

type wirePlan struct {
	Say          string      `json:"say"`
	Listen       *bool       `json:"listen"`
	EndCall      bool        `json:"end_call"`
	Pipeline     flexString  `json:"pipeline"`
	PipelineDone bool        `json:"pipeline_done"`
	SwitchTo     flexString  `json:"switch_to"`
	Action       flexString  `json:"action"`
	Fields       *wireFields `json:"fields"`
}

// ParsePlan validates a planner reply. Anything that is not a JSON object is
// malformed. Unknown enum values do not fail the plan: pipeline and switch_to
// fall back to idle, action falls back to none, and the field is listed in
// Coerced.
func ParsePlan(raw string) (TurnPlan, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return TurnPlan{}, ErrEmptyCompletion
	}
	if !strings.HasPrefix(s, "{") {
		return TurnPlan{}, pkgerrors.Wrap(ErrMalformedPlan, "not a JSON object")
	}

	var w wirePlan
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return TurnPlan{}, pkgerrors.Wrapf(ErrMalformedPlan, "unmarshal planner json: %v", err)
	}

	plan := TurnPlan{
		Say:          strings.TrimSpace(w.Say),
		Listen:       w.Listen == nil || *w.Listen,
		EndCall:      w.EndCall,
		PipelineDone: w.PipelineDone,
	}

	var ok bool
	if plan.Pipeline, ok = session.ParseTask(strings.ToLower(strings.TrimSpace(string(w.Pipeline)))); !ok {
		plan.Coerced = append(plan.Coerced, "pipeline")
	}
	if plan.SwitchTo, ok = session.ParseTask(strings.ToLower(strings.TrimSpace(string(w.SwitchTo)))); !ok {
		plan.Coerced = append(plan.Coerced, "switch_to")
	}
	if plan.Action, ok = parseAction(strings.ToLower(string(w.Action))); !ok {
		plan.Coerced = append(plan.Coerced, "action")
	}

	if f := w.Fields; f != nil {
		plan.Fields = Fields{
			Name:      strings.TrimSpace(string(f.Name)),
			Phone:     strings.TrimSpace(string(f.Phone)),
			Address:   strings.TrimSpace(string(f.Address)),
			Service:   strings.TrimSpace(string(f.Service)),
			When:      strings.TrimSpace(string(f.When)),
			OrderItem: strings.TrimSpace(string(f.OrderItem)),
			OrderQty:  int(f.OrderQty),
			Message:   strings.TrimSpace(string(f.Message)),
		}
		if plan.Fields.OrderQty < 0 {
			plan.Fields.OrderQty = 0
		}
		if f.Changes != nil && strings.TrimSpace(string(f.Changes.Field)) != "" {
			plan.Fields.Changes = &Change{
				Field: strings.ToLower(strings.TrimSpace(string(f.Changes.Field))),
				Value: strings.TrimSpace(string(f.Changes.Value)),
			}
		}
		if f.ComputedTotal.ok {
			total := f.ComputedTotal.v
			plan.SuggestedTotal = &total
		}
	}
	return plan, nil
}
