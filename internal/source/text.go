package source

import (
	"regexp"
	"strings"
	"time"
)

// CleanText removes HTML tags and extra whitespace
func CleanText(text string) string {
	// Remove HTML tags (simple approach)
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "</p>", " ")
	text = strings.ReplaceAll(text, "<p>", "")

	// Remove remaining HTML tags
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}

	// Clean up whitespace
	text = result.String()
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

// opportunityMarkers gate which scraped texts become candidates. Text with
// none of these is conversation or navigation, not a listing.
var opportunityMarkers = []string{
	"open call", "apply", "deadline", "grant", "residency",
	"submission", "fellowship", "exhibition opportunity", "call for",
	"award", "commission",
}

// LooksLikeOpportunity reports whether free text reads like an opportunity
// listing rather than ordinary content.
func LooksLikeOpportunity(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range opportunityMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var deadlinePattern = regexp.MustCompile(`(?i)(?:deadline|due|apply by|closes?|applications? close[sd]?|submissions? (?:due|close))[:\s]+([A-Za-z0-9,/ .-]{6,40})`)

var deadlineLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02",
	"01/02/2006",
}

// ExtractDeadline scans listing text for an application deadline. It returns
// nil when no parseable date follows a deadline keyword.
func ExtractDeadline(text string) *time.Time {
	m := deadlinePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	candidate := strings.TrimSpace(m[1])
	fields := strings.Fields(candidate)

	// Dates span at most three fields ("March 15, 2026"). Try the longest
	// prefix first so a trailing year is not lost.
	for n := min(3, len(fields)); n >= 1; n-- {
		fragment := strings.Join(fields[:n], " ")
		fragment = strings.TrimRight(fragment, ".,;")
		for _, layout := range deadlineLayouts {
			if t, err := time.Parse(layout, fragment); err == nil {
				return &t
			}
		}
	}
	return nil
}
