// Package speech turns recognizer transcripts into structured values: phone
// numbers spoken digit by digit, and the language the caller is using.
package speech

import (
	"regexp"
	"strings"
)

// MinPhoneDigits is the shortest digit run accepted as a phone number.
const MinPhoneDigits = 7

var wordDigitsEN = map[string]string{
	"zero": "0", "oh": "0", "o": "0",
	"one": "1", "two": "2", "three": "3", "four": "4", "for": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
	"plus": "+", "dash": "-", "minus": "-", "space": "", "dot": ".",
}

var wordDigitsDE = map[string]string{
	"null": "0",
	"eins": "1", "ein": "1", "zwei": "2", "drei": "3", "vier": "4",
	"fünf": "5", "funf": "5", "sechs": "6", "sieben": "7", "acht": "8", "neun": "9", "zehn": "10",
	"plus": "+", "minus": "-", "bindestrich": "-", "leerzeichen": "", "punkt": ".",
}

var (
	tokenSeparators = strings.NewReplacer(",", " ", ";", " ", ":", " ", "!", " ", "?", " ")
	literalNumber   = regexp.MustCompile(`^\+?\d+([.\-\s]?\d+)*$`)
	gluedDigitWords = regexp.MustCompile(`one|two|three|four|for|five|six|seven|eight|nine|zero|oh|o`)
	allDigits       = regexp.MustCompile(`^\d+$`)
	repeatedDash    = regexp.MustCompile(`--+`)
	repeatedDot     = regexp.MustCompile(`\.\.+`)
)

func digitTable(lang string) map[string]string {
	if strings.HasPrefix(strings.ToLower(lang), "de") {
		return wordDigitsDE
	}
	return wordDigitsEN
}

// NormalizePhone extracts a phone number from a transcript such as
// "oh one two three four five six seven" or "plus 49 30 1234-567".
// Tokens that are neither numbers nor number words are ignored. It returns ""
// when nothing number-like was spoken.
func NormalizePhone(utterance, lang string) string {
	if utterance == "" {
		return ""
	}
	table := digitTable(lang)
	tokens := strings.Fields(tokenSeparators.Replace(strings.ToLower(utterance)))

	var out strings.Builder
	for _, tok := range tokens {
		if literalNumber.MatchString(tok) {
			out.WriteString(tok)
			continue
		}
		if d, ok := table[tok]; ok {
			out.WriteString(d)
			continue
		}
		glued := gluedDigitWords.ReplaceAllStringFunc(tok, func(m string) string {
			return wordDigitsEN[m]
		})
		if allDigits.MatchString(glued) {
			out.WriteString(glued)
		}
	}

	s := repeatedDash.ReplaceAllString(out.String(), "-")
	s = repeatedDot.ReplaceAllString(s, ".")
	return keepLeadingPlus(s)
}

func keepLeadingPlus(s string) string {
	if s == "" {
		return s
	}
	lead := ""
	if s[0] == '+' {
		lead = "+"
	}
	return lead + strings.ReplaceAll(s, "+", "")
}

// DigitCount counts ASCII digits in s.
func DigitCount(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}

// AcceptablePhone reports whether a normalized number is long enough to be
// stored. Shorter digit runs are usually quantities or times.
func AcceptablePhone(s string) bool {
	return DigitCount(s) >= MinPhoneDigits
}
