package interpreter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const edgePunctuation = ".,!?;:\"“”"

// Normalize lowercases text, trims edge punctuation from each word, collapses
// whitespace and drops adjacent repeated words ("add add porotta" becomes
// "add porotta"). Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	// a Caser keeps state and is not safe for concurrent use
	lowered := cases.Lower(language.Und).String(text)

	words := strings.Fields(lowered)
	out := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.Trim(word, edgePunctuation)
		if word == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == word {
			continue
		}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}
