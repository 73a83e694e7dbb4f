// Package extract turns free-form model output into named sections by
// scanning for marker keywords. It never fails: text without markers
// yields empty sections.
package extract

import "strings"

// DefaultSeparator splits a marker line into label and value.
const DefaultSeparator = "："

// Marker maps a keyword found in a line to a canonical section key.
type Marker struct {
	Keyword string
	Key     string
}

// Section is one recognized section with its lines in order.
type Section struct {
	Key   string
	Lines []string
}

// Extractor splits text into sections. The zero value scans lines and
// uses DefaultSeparator.
type Extractor struct {
	Markers []Marker
	// Separator overrides DefaultSeparator.
	Separator string
	// Paragraphs scans blank-line separated blocks instead of lines.
	Paragraphs bool
}

// Extract scans text line by line with the default separator and returns
// one value per marker key. See Extractor.Extract.
func Extract(text string, markers []Marker) map[string]string {
	return Extractor{Markers: markers}.Extract(text)
}

// Extract returns a map holding every marker key. A unit containing a
// marker keyword opens that key; its value starts after the first
// separator (or is the whole unit without one). Following units that
// match no marker continue the open key, joined by newlines. Units
// before the first marker are dropped.
func (e Extractor) Extract(text string) map[string]string {
	out := make(map[string]string, len(e.Markers))
	for _, m := range e.Markers {
		out[m.Key] = ""
	}
	for _, s := range e.Sections(text) {
		joined := strings.Join(s.Lines, "\n")
		if out[s.Key] != "" && joined != "" {
			out[s.Key] += "\n" + joined
		} else if joined != "" {
			out[s.Key] = joined
		}
	}
	return out
}

// Sections returns the recognized sections in the order they appear. A key
// that occurs twice yields two sections.
func (e Extractor) Sections(text string) []Section {
	sep := e.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	var units []string
	if e.Paragraphs {
		units = Paragraphs(text)
	} else {
		units = Lines(text)
	}

	var sections []Section
	var cur *Section
	for _, u := range units {
		if key, ok := e.match(u); ok {
			sections = append(sections, Section{Key: key})
			cur = &sections[len(sections)-1]
			if v := valueAfter(u, sep); v != "" {
				cur.Lines = append(cur.Lines, v)
			}
			continue
		}
		if cur != nil {
			cur.Lines = append(cur.Lines, u)
		}
	}
	return sections
}

func (e Extractor) match(unit string) (string, bool) {
	for _, m := range e.Markers {
		if m.Keyword != "" && strings.Contains(unit, m.Keyword) {
			return m.Key, true
		}
	}
	return "", false
}

func valueAfter(unit, sep string) string {
	if _, after, ok := strings.Cut(unit, sep); ok {
		return strings.TrimSpace(after)
	}
	return unit
}

// Lines splits text into trimmed, non-empty lines.
func Lines(text string) []string {
	var out []string
	for _, l := range strings.Split(normalize(text), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Paragraphs splits text on blank lines into trimmed, non-empty blocks.
func Paragraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
	}
	for _, l := range strings.Split(normalize(text), "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			flush()
			continue
		}
		cur = append(cur, l)
	}
	flush()
	return out
}

func normalize(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}
