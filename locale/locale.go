// Package locale holds everything that differs between the languages a
// receptionist line can run in: the synthesis voice, prompt wording,
// recognizer vocabulary hints and the phrases that close a call.
package locale

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/creastat/voicedesk/session"
)

// Prompts are the fixed sentences spoken by the orchestrator itself.
// Sentences taking a value use fmt verbs.
type Prompts struct {
	Welcome      string `yaml:"welcome"`  // %s business name
	GoAhead      string `yaml:"go_ahead"` // spoken inside the capture directive
	Farewell     string `yaml:"farewell"`
	AnythingElse string `yaml:"anything_else"`
	MessageSent  string `yaml:"message_sent"`
	Fallback     string `yaml:"fallback"` // offered when the planner is unavailable
	Clarify      string `yaml:"clarify"`  // low recognizer confidence while idle
	Total        string `yaml:"total"`    // %.2f computed total
	Redirect     string `yaml:"redirect"` // %s task name
	Continue     string `yaml:"continue"`
	Okay         string `yaml:"okay"` // reply when the planner said nothing
}

// Hints are recognizer vocabulary lists, scoped by task.
type Hints struct {
	Common  []string `yaml:"common"`
	Idle    []string `yaml:"idle"`
	Order   []string `yaml:"order"`
	Booking []string `yaml:"booking"`
	Message []string `yaml:"message"`
}

// Locale is the channel configuration for one synthesis language.
type Locale struct {
	Tag                  string            `yaml:"tag"`
	Voice                string            `yaml:"voice"`
	SecondaryRecognition string            `yaml:"secondary_recognition"`
	Prompts              Prompts           `yaml:"prompts"`
	TaskNames            map[string]string `yaml:"task_names"`
	Hints                Hints             `yaml:"hints"`
	ClosurePattern       string            `yaml:"closure_pattern"`
	FarewellPattern      string            `yaml:"farewell_pattern"`
	AnythingElsePattern  string            `yaml:"anything_else_pattern"`

	once                           sync.Once
	closure, farewell, anythingElse *regexp.Regexp
	compileErr                     error
}

// Compile validates the patterns. It is safe to call more than once.
func (l *Locale) Compile() error {
	l.once.Do(func() {
		compile := func(name, expr string) *regexp.Regexp {
			if expr == "" || l.compileErr != nil {
				return nil
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				l.compileErr = fmt.Errorf("locale %s: %s pattern: %w", l.Tag, name, err)
			}
			return re
		}
		l.closure = compile("closure", l.ClosurePattern)
		l.farewell = compile("farewell", l.FarewellPattern)
		l.anythingElse = compile("anything_else", l.AnythingElsePattern)
	})
	return l.compileErr
}

func matches(re *regexp.Regexp, text string) bool {
	return re != nil && text != "" && re.MatchString(text)
}

// IsClosure reports whether text declines further help ("no thanks").
func (l *Locale) IsClosure(text string) bool {
	_ = l.Compile()
	return matches(l.closure, text)
}

// IsFarewell reports whether text says goodbye.
func (l *Locale) IsFarewell(text string) bool {
	_ = l.Compile()
	return matches(l.farewell, text)
}

// AsksAnythingElse reports whether a reply already offers more help.
func (l *Locale) AsksAnythingElse(text string) bool {
	_ = l.Compile()
	return matches(l.anythingElse, text)
}

// TaskName is the spoken name of a task.
func (l *Locale) TaskName(t session.Task) string {
	if name, ok := l.TaskNames[string(t)]; ok && name != "" {
		return name
	}
	return t.String()
}

// Welcome greets a new caller.
func (l *Locale) Welcome(business string) string {
	return fmt.Sprintf(l.Prompts.Welcome, business)
}

// RedirectSentence steers the caller back to the locked task.
func (l *Locale) RedirectSentence(t session.Task) string {
	return fmt.Sprintf(l.Prompts.Redirect, l.TaskName(t))
}

// TotalSentence announces an order total.
func (l *Locale) TotalSentence(total float64) string {
	return fmt.Sprintf(l.Prompts.Total, total)
}

// HintList returns the recognizer vocabulary for the task, menu items included
// where ordering is possible. Idle hints are the union of all task hints.
func (l *Locale) HintList(t session.Task, menu []string) []string {
	h := l.Hints
	var parts [][]string
	switch t {
	case session.TaskOrder:
		parts = [][]string{h.Common, h.Order, menu}
	case session.TaskBooking:
		parts = [][]string{h.Common, h.Booking}
	case session.TaskMessage:
		parts = [][]string{h.Common, h.Message}
	default:
		parts = [][]string{h.Idle, menu, h.Order, h.Booking, h.Message, h.Common}
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range parts {
		for _, w := range p {
			w = strings.TrimSpace(w)
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// HintsCSV is HintList joined for the capture directive.
func (l *Locale) HintsCSV(t session.Task, menu []string) string {
	return strings.Join(l.HintList(t, menu), ",")
}
