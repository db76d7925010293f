// Package twiml renders the voice markup returned to the telephony gateway.
package twiml

import (
	"encoding/xml"

	"github.com/pkg/errors"
)

// ContentType is the media type of a rendered document.
const ContentType = "text/xml"

// Verb is one instruction inside a Response.
type Verb interface {
	verb()
}

// Say speaks text with a synthesis voice.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather captures the caller's speech and posts it to Action.
type Gather struct {
	XMLName             xml.Name `xml:"Gather"`
	Input               string   `xml:"input,attr"`
	Action              string   `xml:"action,attr,omitempty"`
	Method              string   `xml:"method,attr,omitempty"`
	Language            string   `xml:"language,attr,omitempty"`
	SpeechTimeout       string   `xml:"speechTimeout,attr,omitempty"`
	ActionOnEmptyResult bool     `xml:"actionOnEmptyResult,attr"`
	SpeechModel         string   `xml:"speechModel,attr,omitempty"`
	ProfanityFilter     bool     `xml:"profanityFilter,attr"`
	Hints               string   `xml:"hints,attr,omitempty"`
	Verbs               []Verb
}

// Pause is silence in seconds.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

func (Say) verb()    {}
func (Gather) verb() {}
func (Pause) verb()  {}
func (Hangup) verb() {}

// Response is a TwiML document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []Verb
}

// New returns an empty response.
func New() *Response {
	return &Response{}
}

// Add appends verbs.
func (r *Response) Add(verbs ...Verb) *Response {
	r.Verbs = append(r.Verbs, verbs...)
	return r
}

// Say appends a Say.
func (r *Response) Say(text, voice, language string) *Response {
	return r.Add(Say{Voice: voice, Language: language, Text: text})
}

// Pause appends a Pause.
func (r *Response) Pause(seconds int) *Response {
	return r.Add(Pause{Length: seconds})
}

// Hangup appends a Hangup.
func (r *Response) Hangup() *Response {
	return r.Add(Hangup{})
}

// SpeechGather returns a speech-only POST Gather with profanity filtering off.
func SpeechGather(action, language, hints string, prompt ...Verb) Gather {
	return Gather{
		Input:               "speech",
		Action:              action,
		Method:              "POST",
		Language:            language,
		SpeechTimeout:       "auto",
		ActionOnEmptyResult: true,
		SpeechModel:         "phone_call",
		Hints:               hints,
		Verbs:               prompt,
	}
}

// Render serializes the document with an XML declaration.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshal twiml")
	}
	return append([]byte(xml.Header), body...), nil
}
