package council

import (
	"fmt"
	"regexp"
	"strings"
)

const rankingMarker = "FINAL RANKING:"

var (
	numberedLabel = regexp.MustCompile(`\d+\.[ \t]*(Response [A-Z])`)
	anyLabel      = regexp.MustCompile(`Response [A-Z]`)
	blankLine     = regexp.MustCompile(`\n[ \t]*\n`)
)

// TypeError reports a ranking input that is not a string.
type TypeError struct {
	Got any
}

func (e *TypeError) Error() string {
	if e.Got == nil {
		return "council: ranking text is nil"
	}
	return fmt.Sprintf("council: ranking text must be a string, got %T", e.Got)
}

// ParseRanking extracts the ordered labels from a reviewer's reply.
//
// The section after the first "FINAL RANKING:" marker, up to the next blank
// line, is searched for numbered "N. Response X" entries. When the marker is
// missing or that section has no numbered entries, every "Response X" in the
// whole text is returned in document order, duplicates included. Matching is
// case-sensitive throughout.
func ParseRanking(text string) []string {
	out, _ := parseRanking(text)
	return out
}

// parseRanking also reports whether the numbered entries under the marker
// were unusable and the whole-text scan was used instead.
func parseRanking(text string) (labels []string, fallback bool) {
	if idx := strings.Index(text, rankingMarker); idx >= 0 {
		section := strings.TrimLeft(text[idx+len(rankingMarker):], " \t\r\n")
		if loc := blankLine.FindStringIndex(section); loc != nil {
			section = section[:loc[0]]
		}
		var out []string
		for _, m := range numberedLabel.FindAllStringSubmatch(section, -1) {
			out = append(out, m[1])
		}
		if len(out) > 0 {
			return out, false
		}
	}
	out := anyLabel.FindAllString(text, -1)
	if out == nil {
		return []string{}, true
	}
	return out, true
}

// ParseRankingFrom is ParseRanking for loosely typed input such as decoded
// JSON. Anything other than a string is a *TypeError.
func ParseRankingFrom(v any) ([]string, error) {
	switch s := v.(type) {
	case string:
		return ParseRanking(s), nil
	case *string:
		if s != nil {
			return ParseRanking(*s), nil
		}
	}
	return nil, &TypeError{Got: v}
}
