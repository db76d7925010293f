package locale

import "github.com/creastat/voicedesk/speech"

var addressWordsDE = []string{"straße", "strasse", "allee", "platz", "weg", "ring", "gasse", "ufer", "chaussee", "hausnummer", "postleitzahl", "stadt", "uhr"}

var numberWordsDE = []string{"null", "eins", "zwei", "drei", "vier", "fünf", "funf", "sechs", "sieben", "acht", "neun", "zehn"}

// English is the default line: English voice, English recognition with a
// German fallback for callers dictating German addresses.
func English() *Locale {
	return &Locale{
		Tag:                  speech.LangEnglish,
		Voice:                "Polly.Joanna",
		SecondaryRecognition: speech.LangGerman,
		Prompts: Prompts{
			Welcome:      "Hi! Welcome to %s. How can I help you today?",
			GoAhead:      "Go ahead.",
			Farewell:     "Thanks for calling. Goodbye!",
			AnythingElse: "Is there anything else you'd like?",
			MessageSent:  "Thanks. Your message has been sent. Is there anything else you'd like?",
			Fallback:     "Would you like to order food, book a table, or leave a message?",
			Clarify:      "I might have misheard. Would you like to order food, book a table, or leave a message?",
			Total:        "Total price: %.2f euros.",
			Redirect:     "Let's finish your %s first.",
			Continue:     "Please continue.",
			Okay:         "Okay.",
		},
		TaskNames: map[string]string{"order": "order", "booking": "booking", "message": "message"},
		Hints: Hints{
			Common: append(append([]string{"yes", "no", "repeat", "help", "name", "phone", "number", "address", "cancel", "nothing", "that's all", "thats all", "no thanks", "no thank you"},
				addressWordsDE...), numberWordsDE...),
			Idle:    []string{"book", "reservation", "table", "order", "leave a message", "message", "price", "hours", "menu", "pizza", "pasta", "salad"},
			Order:   []string{"order", "quantity", "qty", "delivery", "pickup", "takeaway", "time", "price"},
			Booking: []string{"book", "reservation", "table", "people", "party", "time", "date", "today", "tomorrow"},
			Message: []string{"leave a message", "message", "done", "finish"},
		},
		ClosurePattern:      `(?i)\b(no(thing)?( else)?|that['’]?s all|no thanks|no thank you|nah|nope)\b`,
		FarewellPattern:     `(?i)\b(bye|goodbye|that['’]?s it|i['’]?m done|finished|thank you,? bye)\b`,
		AnythingElsePattern: `(?i)anything else`,
	}
}

// German runs the whole line in German.
func German() *Locale {
	return &Locale{
		Tag:   speech.LangGerman,
		Voice: "Polly.Vicki",
		Prompts: Prompts{
			Welcome:      "Hallo! Willkommen bei %s. Wie kann ich Ihnen helfen?",
			GoAhead:      "Bitte sprechen Sie.",
			Farewell:     "Vielen Dank für Ihren Anruf. Auf Wiederhören!",
			AnythingElse: "Möchten Sie sonst noch etwas?",
			MessageSent:  "Vielen Dank. Ihre Nachricht wurde versendet. Möchten Sie sonst noch etwas?",
			Fallback:     "Möchten Sie etwas bestellen, einen Tisch reservieren oder eine Nachricht hinterlassen?",
			Clarify:      "Ich habe Sie vielleicht falsch verstanden. Möchten Sie etwas bestellen, einen Tisch reservieren oder eine Nachricht hinterlassen?",
			Total:        "Gesamtpreis: %.2f Euro.",
			Redirect:     "Wir schließen zuerst Ihre %s ab.",
			Continue:     "Bitte fahren Sie fort.",
			Okay:         "In Ordnung.",
		},
		TaskNames: map[string]string{"order": "Bestellung", "booking": "Reservierung", "message": "Nachricht"},
		Hints: Hints{
			Common: append(append([]string{"ja", "nein", "wiederholen", "hilfe", "name", "telefon", "nummer", "adresse", "abbrechen", "nichts", "das ist alles", "nein danke"},
				append(addressWordsDE, "datum")...), numberWordsDE...),
			Idle:    []string{"reservieren", "tisch", "bestellen", "nachricht hinterlassen", "nachricht", "preis", "öffnungszeiten", "menü"},
			Order:   []string{"bestellen", "bestellung", "menge", "lieferung", "abholung", "mitnahme", "zeit", "preis"},
			Booking: []string{"reservieren", "tisch", "personen", "gruppe", "zeit", "datum", "heute", "morgen"},
			Message: []string{"nachricht hinterlassen", "nachricht", "fertig", "beenden"},
		},
		ClosurePattern:      `(?i)(^|[^\p{L}])(nein|nö|nichts( weiter)?|das ist alles|mehr nicht)([^\p{L}]|$)`,
		FarewellPattern:     `(?i)(^|[^\p{L}])(tschüss|auf wiedersehen|auf wiederhören|das war['’]?s|ich bin fertig)([^\p{L}]|$)`,
		AnythingElsePattern: `(?i)(noch etwas|weiteres)`,
	}
}
