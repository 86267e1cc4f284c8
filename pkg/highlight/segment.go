package highlight

import "strings"

// Segment is one run of a segmented text: either plain text or a term match.
type Segment struct {
	Text  string
	Match bool
}

// Segment splits text into plain and matched runs. Concatenating the Text of
// every segment yields text unchanged. Text without matches yields a single
// plain segment; empty text yields nil.
func (p *Pattern) Segment(text string) []Segment {
	if text == "" {
		return nil
	}
	matches := p.FindAll(text)
	if len(matches) == 0 {
		return []Segment{{Text: text}}
	}

	segments := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			segments = append(segments, Segment{Text: text[last:m[0]]})
		}
		segments = append(segments, Segment{Text: text[m[0]:m[1]], Match: true})
		last = m[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

// CategoryClass derives the class name for a glossary category: lowercased,
// whitespace runs collapsed to "-", prefixed with "gloss-category-".
// A blank category yields "".
func CategoryClass(category string) string {
	fields := strings.Fields(strings.ToLower(category))
	if len(fields) == 0 {
		return ""
	}
	return categoryClassPrefix + strings.Join(fields, "-")
}
