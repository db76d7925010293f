package dialogue

import "github.com/creastat/voicedesk/session"

// Field names reported as missing.
const (
	FieldName      = "name"
	FieldPhone     = "phone"
	FieldAddress   = "address"
	FieldService   = "service"
	FieldWhen      = "when"
	FieldOrderItem = "order_item"
	FieldOrderQty  = "order_qty"
)

// Objective is what the call is trying to get done right now and which
// fields are still unknown. It is advice for the planner; the lock manager
// does the enforcing.
type Objective struct {
	Kind    session.Task
	Missing []string
}

// Resolve derives the objective from the call context. Address is never
// required for an order; whether it matters (delivery) is left to the
// planner.
func Resolve(c session.Context) Objective {
	obj := Objective{Kind: c.Dialogue.Active(), Missing: []string{}}
	missing := func(field, value string) {
		if value == "" {
			obj.Missing = append(obj.Missing, field)
		}
	}

	switch obj.Kind {
	case session.TaskOrder:
		missing(FieldName, c.Name)
		missing(FieldPhone, c.Phone)
		missing(FieldOrderItem, c.OrderItem)
		if c.OrderQty <= 0 {
			obj.Missing = append(obj.Missing, FieldOrderQty)
		}
	case session.TaskBooking:
		missing(FieldName, c.Name)
		missing(FieldPhone, c.Phone)
		missing(FieldService, c.Service)
		missing(FieldWhen, c.When)
	}
	return obj
}
