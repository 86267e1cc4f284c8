package highlight

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var wordLike = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Pattern matches any glossary term in a piece of text. A nil *Pattern
// matches nothing.
type Pattern struct {
	re    *regexp.Regexp
	terms []string
}

// BuildPattern compiles terms into a single case-insensitive alternation.
// It returns nil when no usable term remains.
//
// Terms are ordered longest first: regexp alternation picks the first
// alternative that matches at a position, so "NoSQL" must come before "SQL"
// and "REST API" before "API". Alphanumeric terms get \b on both sides so
// "SQL" does not match inside "MySQLite"; terms with punctuation or spaces
// are matched as-is.
func BuildPattern(terms []string) *Pattern {
	seen := make(map[string]bool, len(terms))
	ordered := make([]string, 0, len(terms))
	for _, term := range terms {
		if strings.TrimSpace(term) == "" || seen[term] {
			continue
		}
		seen[term] = true
		ordered = append(ordered, term)
	}
	if len(ordered) == 0 {
		return nil
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(ordered[i]), utf8.RuneCountInString(ordered[j])
		if li != lj {
			return li > lj
		}
		return ordered[i] < ordered[j]
	})

	alternatives := make([]string, len(ordered))
	for i, term := range ordered {
		quoted := regexp.QuoteMeta(term)
		if wordLike.MatchString(term) {
			quoted = `\b` + quoted + `\b`
		}
		alternatives[i] = quoted
	}

	return &Pattern{
		re:    regexp.MustCompile(`(?i)(?:` + strings.Join(alternatives, "|") + `)`),
		terms: ordered,
	}
}

// Match reports whether text contains at least one term.
func (p *Pattern) Match(text string) bool {
	if p == nil {
		return false
	}
	return p.re.MatchString(text)
}

// FindAll returns the byte ranges of all non-overlapping matches, left to
// right.
func (p *Pattern) FindAll(text string) [][2]int {
	if p == nil {
		return nil
	}
	locs := p.re.FindAllStringIndex(text, -1)
	ranges := make([][2]int, 0, len(locs))
	for _, loc := range locs {
		if loc[1] > loc[0] {
			ranges = append(ranges, [2]int{loc[0], loc[1]})
		}
	}
	return ranges
}

// Terms returns the terms in match priority order.
func (p *Pattern) Terms() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.terms))
	copy(out, p.terms)
	return out
}

// String returns the compiled expression.
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return p.re.String()
}
