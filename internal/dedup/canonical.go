package dedup

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Normalize lowercases text, strips punctuation and collapses whitespace so
// cosmetic differences between listings do not defeat matching.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CanonicalHash derives the identity hash for a listing. Two listings with
// the same normalized title, organization and deadline date are the same
// opportunity regardless of where they were discovered.
func CanonicalHash(title, organization string, deadline *time.Time) string {
	date := ""
	if deadline != nil {
		date = deadline.Format("2006-01-02")
	}
	data := Normalize(title) + "|" + Normalize(organization) + "|" + date
	return fmt.Sprintf("%x", sha256.Sum256([]byte(data)))
}
