package dialogue

// Segment is one piece of synthesized speech.
type Segment struct {
	Text  string
	Lang  string
	Voice string
}

// Gather asks the gateway to capture the caller's next utterance.
type Gather struct {
	Action              string
	Language            string
	Hints               string
	SpeechTimeout       string
	SpeechModel         string
	ActionOnEmptyResult bool
	Prompt              Segment
}

// Reply is the orchestrator's answer to one turn: speech, then either a
// hangup or a capture directive.
type Reply struct {
	Segments []Segment
	// Pause is spoken silence in seconds before hanging up.
	Pause  int
	Hangup bool
	Gather *Gather
}

// Text joins the spoken segments.
func (r Reply) Text() string {
	out := ""
	for i, s := range r.Segments {
		if i > 0 {
			out += " "
		}
		out += s.Text
	}
	return out
}
