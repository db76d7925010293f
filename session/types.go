package session

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Default languages for a fresh call.
const (
	DefaultTTSLang = "en-US"
	DefaultSTTLang = "en-US"
)

// Message represents a single conversation turn.
type Message struct {
	Role       string    `json:"role"` // "user" or "assistant"
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Context is the mutable, structured state of one call.
//
// Caller details (Name, Phone, Address) and task fields outlive the task that
// collected them, so a later task can reuse them without asking again.
type Context struct {
	TTSLang       string   `json:"tts_lang"`
	STTLang       string   `json:"stt_lang"`
	Dialogue      Dialogue `json:"dialogue"`
	ASRConfidence float64  `json:"asr_confidence"`
	TurnCount     int      `json:"turn_count"`

	Name          string   `json:"name,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Address       string   `json:"address,omitempty"`
	Service       string   `json:"service,omitempty"`
	When          string   `json:"when,omitempty"`
	OrderItem     string   `json:"order_item,omitempty"`
	OrderQty      int      `json:"order_qty,omitempty"`
	ComputedTotal *float64 `json:"computed_total,omitempty"`
}

// Session represents all state of one call.
// It lives only as long as the call; the Redis driver shares it between
// replicas but expires it with a TTL.
type Session struct {
	CallID        string    `json:"call_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"` // Monotonically increasing for optimistic locking
	Context       Context   `json:"context"`
	History       []Message `json:"history"`
	LastUtterance string    `json:"last_utterance"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	if s.History != nil {
		c.History = append([]Message(nil), s.History...)
	}
	if s.Context.ComputedTotal != nil {
		total := *s.Context.ComputedTotal
		c.Context.ComputedTotal = &total
	}
	return &c
}

// New returns the default state for a call that has not been seen yet.
func New(callID string) *Session {
	return &Session{
		CallID: callID,
		Context: Context{
			TTSLang:  DefaultTTSLang,
			STTLang:  DefaultSTTLang,
			Dialogue: Dialogue{Phase: PhaseIdle},
		},
	}
}
