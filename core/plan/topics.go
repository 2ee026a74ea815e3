package plan

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// near-duplicate threshold of the topic similarity ratio
const similarTopicRatio = 0.9

var listMarkerRegex = regexp.MustCompile(`^\s*(?:[-*•·▪]+|\(?\d{1,3}[.)\-]+|[a-zA-Z][.)])\s+`)

// ParseTopicList splits a newline-separated topic list, dropping blank lines
// and leading bullets or numbering ("- ", "1. ", "2) ", "a) ").
func ParseTopicList(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	topics := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(listMarkerRegex.ReplaceAllString(line, ""))
		if line != "" {
			topics = append(topics, line)
		}
	}
	return topics
}

// Similar describes a pair of near-identical topic descriptions.
type Similar struct {
	Description string
	Of          string
	Ratio       float64
}

func normalizeTopic(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CompareTopics checks `descs` against each other and against `existing`.
// Exact duplicates (case and spacing insensitive) are returned in dups, near
// duplicates in similar.
func CompareTopics(descs, existing []string) (dups []string, similar []Similar) {
	type entry struct{ norm, orig string }
	seen := make([]entry, 0, len(descs)+len(existing))
	for _, e := range existing {
		seen = append(seen, entry{normalizeTopic(e), e})
	}

	for _, d := range descs {
		nd := normalizeTopic(d)
		var dup bool
		for _, s := range seen {
			if nd == s.norm {
				dups = append(dups, d)
				dup = true
				break
			}
			m := difflib.NewMatcher(strings.Split(nd, ""), strings.Split(s.norm, ""))
			if m.QuickRatio() < similarTopicRatio {
				continue
			}
			if r := m.Ratio(); r >= similarTopicRatio {
				similar = append(similar, Similar{Description: d, Of: s.orig, Ratio: r})
				break
			}
		}
		if !dup {
			seen = append(seen, entry{nd, d})
		}
	}
	return dups, similar
}
