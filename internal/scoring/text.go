package scoring

import (
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"this": true, "that": true, "are": true, "was": true, "were": true,
	"will": true, "have": true, "has": true, "had": true, "not": true,
	"but": true, "you": true, "your": true, "our": true, "their": true,
	"they": true, "its": true, "all": true, "any": true, "can": true,
	"may": true, "more": true, "most": true, "other": true, "some": true,
	"such": true, "who": true, "what": true, "when": true, "where": true,
	"how": true, "out": true, "over": true, "under": true, "per": true,
	"via": true, "both": true, "each": true, "between": true, "during": true,
	"before": true, "after": true, "about": true, "into": true, "than": true,
	"then": true, "once": true, "here": true, "there": true, "very": true,
	"own": true, "same": true, "too": true, "only": true, "just": true,
	"should": true, "now": true, "also": true, "been": true, "being": true,
	"would": true, "could": true, "must": true, "these": true, "those": true,
}

// Stem strips one common English suffix, so "sculptures" and "sculpture"
// or "painting" and "painted" land on the same form. Deliberately crude:
// both sides of every comparison go through the same stemmer, so an ugly
// stem still matches.
func Stem(word string) string {
	n := len(word)
	switch {
	case n > 4 && strings.HasSuffix(word, "ies"):
		return word[:n-3] + "y"
	case n > 5 && strings.HasSuffix(word, "ing"):
		return word[:n-3]
	case n > 4 && strings.HasSuffix(word, "ed"):
		return word[:n-2]
	case n > 4 && (strings.HasSuffix(word, "sses") || strings.HasSuffix(word, "xes") ||
		strings.HasSuffix(word, "zes") || strings.HasSuffix(word, "ches") || strings.HasSuffix(word, "shes")):
		return word[:n-2]
	case n > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") &&
		!strings.HasSuffix(word, "us") && !strings.HasSuffix(word, "is"):
		return word[:n-1]
	}
	return word
}

// RawTokens lowercases and splits on non-alphanumerics, dropping stop words
// and fragments shorter than three characters. No stemming: place names
// like "paris" must survive intact.
func RawTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, tok := range fields {
		if len(tok) < 3 || stopWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Tokenize is RawTokens plus stemming.
func Tokenize(text string) []string {
	raw := RawTokens(text)
	tokens := raw[:0]
	for _, tok := range raw {
		tok = Stem(tok)
		if len(tok) >= 3 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// TokenSet folds any number of texts into one stemmed token set.
func TokenSet(texts ...string) map[string]bool {
	set := make(map[string]bool)
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			set[tok] = true
		}
	}
	return set
}
