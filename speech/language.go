package speech

import (
	"regexp"
	"strings"
	"unicode"
)

// Language tags understood by the telephony gateway.
const (
	LangEnglish = "en-US"
	LangGerman  = "de-DE"
)

// German words that only show up when a caller spells out an address, a time
// or digits in German.
var germanLexicon = map[string]bool{
	"straße": true, "strasse": true, "allee": true, "platz": true, "weg": true, "ring": true,
	"gasse": true, "ufer": true, "chaussee": true, "hausnummer": true, "postleitzahl": true,
	"stadt": true, "uhr": true,
	"eins": true, "zwei": true, "drei": true, "vier": true, "fünf": true, "funf": true,
	"sechs": true, "sieben": true, "acht": true, "neun": true, "zehn": true,
}

// Street suffixes that are also matched at the end of compounds
// ("Hauptstraße", "Lindenallee").
var germanStreetSuffixes = []string{"straße", "strasse", "allee", "platz", "gasse", "chaussee"}

const germanDiacritics = "äöüß"

// LooksGerman reports whether the transcript contains German address or
// number vocabulary or a German-only letter.
func LooksGerman(text string) bool {
	t := strings.ToLower(text)
	if strings.ContainsAny(t, germanDiacritics) {
		return true
	}
	words := strings.FieldsFunc(t, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if germanLexicon[w] {
			return true
		}
		for _, suffix := range germanStreetSuffixes {
			if strings.HasSuffix(w, suffix) {
				return true
			}
		}
	}
	return false
}

// RecognitionLanguage picks the recognizer language for the caller's next
// utterance from what they just said.
func RecognitionLanguage(text, primary, secondary string) string {
	if secondary != "" && LooksGerman(text) {
		return secondary
	}
	return primary
}

var synthesisRequests = []struct {
	re   *regexp.Regexp
	lang string
}{
	{regexp.MustCompile(`(?i)\b(speak|switch|can you talk|talk) (in |to )?german\b|\bauf deutsch\b`), LangGerman},
	{regexp.MustCompile(`(?i)\b(speak|switch|can you talk|talk) (in |to )?english\b|\bauf englisch\b`), LangEnglish},
}

// RequestedSynthesisLanguage detects an explicit request such as "can you
// speak German" and returns the language the reply voice should switch to.
func RequestedSynthesisLanguage(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lang, found := "", false
	for _, r := range synthesisRequests {
		if r.re.MatchString(text) {
			lang, found = r.lang, true
		}
	}
	return lang, found
}
