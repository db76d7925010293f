package session

// Task is one of the caller goals a call can be locked into.
type Task string

const (
	TaskNone    Task = ""
	TaskOrder   Task = "order"
	TaskBooking Task = "booking"
	TaskMessage Task = "message"
)

// Tasks lists every lockable task.
var Tasks = []Task{TaskOrder, TaskBooking, TaskMessage}

// ParseTask maps a wire name to a Task. "idle", "none", "null" and the empty
// string map to TaskNone; anything else unknown is rejected.
func ParseTask(s string) (Task, bool) {
	switch s {
	case "", "idle", "none", "null":
		return TaskNone, true
	case string(TaskOrder):
		return TaskOrder, true
	case string(TaskBooking):
		return TaskBooking, true
	case string(TaskMessage):
		return TaskMessage, true
	}
	return TaskNone, false
}

// String returns the wire name; TaskNone is reported as "idle".
func (t Task) String() string {
	if t == TaskNone {
		return "idle"
	}
	return string(t)
}

// Phase is the position of a call in the dialogue state machine.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseInTask            Phase = "in_task"
	PhaseCollectingMessage Phase = "collecting_message"
	PhaseAwaitingMore      Phase = "awaiting_more"
	PhaseEnded             Phase = "ended"
)

// Dialogue holds the phase and, where the phase has one, the locked task.
// Fields are only changed through the transition methods, which keep the
// pair consistent: in_task has a task, collecting_message is always the
// message task, and idle, awaiting_more and ended have none.
type Dialogue struct {
	Phase Phase `json:"phase"`
	Task  Task  `json:"task,omitempty"`
}

// Active returns the locked task, or TaskNone.
func (d Dialogue) Active() Task {
	switch d.Phase {
	case PhaseInTask, PhaseCollectingMessage:
		return d.Task
	}
	return TaskNone
}

func (d Dialogue) AwaitingMore() bool      { return d.Phase == PhaseAwaitingMore }
func (d Dialogue) CollectingMessage() bool { return d.Phase == PhaseCollectingMessage }
func (d Dialogue) Ended() bool             { return d.Phase == PhaseEnded }

// Idle reports whether no task is locked and nothing is pending.
func (d Dialogue) Idle() bool { return d.Phase == PhaseIdle || d.Phase == "" }

// Begin locks the call into t. Any awaiting-more state is cleared.
func (d *Dialogue) Begin(t Task) {
	if d.Ended() || t == TaskNone {
		return
	}
	d.Phase = PhaseInTask
	d.Task = t
}

// Complete unlocks the current task and waits for "anything else".
func (d *Dialogue) Complete() {
	if d.Ended() {
		return
	}
	d.Phase = PhaseAwaitingMore
	d.Task = TaskNone
}

// CaptureMessage makes the next utterance the body of a message.
func (d *Dialogue) CaptureMessage() {
	if d.Ended() {
		return
	}
	d.Phase = PhaseCollectingMessage
	d.Task = TaskMessage
}

// End is terminal.
func (d *Dialogue) End() {
	d.Phase = PhaseEnded
	d.Task = TaskNone
}
