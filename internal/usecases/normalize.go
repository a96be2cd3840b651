package usecases

import (
	"strings"
)

var keycapDigits = map[string]string{
	"0️⃣": "0", "1️⃣": "1", "2️⃣": "2", "3️⃣": "3", "4️⃣": "4",
	"5️⃣": "5", "6️⃣": "6", "7️⃣": "7", "8️⃣": "8", "9️⃣": "9",
	"🔟": "10",
}

var numberWords = map[string]string{
	"zero": "0",
	"um": "1", "uma": "1", "one": "1",
	"dois": "2", "duas": "2", "two": "2",
	"tres": "3", "três": "3", "three": "3",
	"quatro": "4", "four": "4",
	"cinco": "5", "five": "5",
	"seis": "6", "six": "6",
	"sete": "7", "seven": "7",
	"oito": "8", "eight": "8",
	"nove": "9", "nine": "9",
	"dez": "10", "ten": "10",
}

// NormalizeMenuInput maps emoji digits and number words to canonical digits.
// Anything else comes back trimmed and lowercased.
func NormalizeMenuInput(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.TrimRight(s, ".)-: ")
	if s == "" {
		return s
	}
	if d, ok := keycapDigits[s]; ok {
		return d
	}
	// keycaps sometimes arrive without the variation selector
	if d, ok := keycapDigits[strings.ReplaceAll(s, "⃣", "️⃣")]; ok {
		return d
	}
	if d, ok := numberWords[s]; ok {
		return d
	}
	return s
}
