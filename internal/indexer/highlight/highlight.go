// Package highlight marks every case-insensitive occurrence of a search term
// in a document. The matched text keeps its original casing and is wrapped
// in a configurable pair of emphasis delimiters.
package highlight

import (
	"regexp"
	"strings"
)

// Marker is the pair of strings placed around each highlighted match.
type Marker struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

var (
	// ANSIPurple renders matches in purple on a terminal.
	ANSIPurple = Marker{Start: "\x1b[35m", End: "\x1b[0m"}
	// HTMLMark wraps matches in a <mark> element.
	HTMLMark = Marker{Start: "<mark>", End: "</mark>"}
	// MarkdownBold wraps matches in Markdown strong emphasis.
	MarkdownBold = Marker{Start: "**", End: "**"}
)

var presets = map[string]Marker{
	"ansi":     ANSIPurple,
	"html":     HTMLMark,
	"markdown": MarkdownBold,
}

// Preset returns the named built-in marker ("ansi", "html" or "markdown").
func Preset(name string) (Marker, bool) {
	m, ok := presets[strings.ToLower(name)]
	return m, ok
}

// Highlighter applies a Marker to term matches.
type Highlighter struct {
	marker Marker
}

// New returns a Highlighter using m.
func New(m Marker) *Highlighter {
	return &Highlighter{marker: m}
}

// Default returns a Highlighter using ANSIPurple.
func Default() *Highlighter {
	return New(ANSIPurple)
}

// Marker returns the delimiters this Highlighter uses.
func (h *Highlighter) Marker() Marker {
	return h.marker
}

// Highlight returns a copy of content where every case-insensitive
// occurrence of term is wrapped in the marker. The term is matched as a
// literal string. An empty term leaves content unchanged.
func (h *Highlighter) Highlight(term, content string) string {
	if term == "" {
		return content
	}
	// QuoteMeta leaves no metacharacters behind, so compilation cannot fail.
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	return re.ReplaceAllStringFunc(content, func(match string) string {
		return h.marker.Start + match + h.marker.End
	})
}
