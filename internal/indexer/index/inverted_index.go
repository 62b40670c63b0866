package index

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/highlight"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/tokenizer"
)

// InvertedIndex maps lowercased terms to the documents that contain them and
// keeps each document's original text for highlighting.
//
// InvertedIndex is not safe for concurrent use; indexer.Engine wraps one
// behind a mutex for that.
type InvertedIndex struct {
	postings    map[string]PostingList
	documents   map[int]Document
	highlighter *highlight.Highlighter
	size        int
}

// New returns an empty index that highlights with highlight.ANSIPurple.
func New() *InvertedIndex {
	return NewWithHighlighter(highlight.Default())
}

// NewWithHighlighter returns an empty index that renders query results with h.
func NewWithHighlighter(h *highlight.Highlighter) *InvertedIndex {
	return &InvertedIndex{
		postings:    make(map[string]PostingList),
		documents:   make(map[int]Document),
		highlighter: h,
	}
}

// Add indexes content under id. Every token of the lowercased content appends
// id to that term's postings, so a term seen twice is posted twice. The
// original content then replaces whatever was stored under id.
//
// Re-adding an id does not remove the postings written by earlier calls.
func (m *InvertedIndex) Add(id int, content string) {
	for term := range tokenizer.Tokens(strings.ToLower(content)) {
		m.postings[term] = append(m.postings[term], id)
		m.size++
	}
	m.documents[id] = Document{ID: id, Content: content}
}

// Query returns the highlighted content of every document posted under the
// lowercased term, in postings order. A term that was never indexed yields an
// empty result. Ids without a stored document are skipped.
func (m *InvertedIndex) Query(term string) []string {
	term = strings.ToLower(term)
	ids, ok := m.postings[term]
	if !ok {
		return []string{}
	}
	results := make([]string, 0, len(ids))
	for _, id := range ids {
		doc, ok := m.documents[id]
		if !ok {
			continue
		}
		results = append(results, m.highlighter.Highlight(term, doc.Content))
	}
	return results
}

// Postings returns a copy of the postings list for the lowercased term, or
// nil if the term is unknown.
func (m *InvertedIndex) Postings(term string) PostingList {
	ids, ok := m.postings[strings.ToLower(term)]
	if !ok {
		return nil
	}
	out := make(PostingList, len(ids))
	copy(out, ids)
	return out
}

// Document returns the stored document for id.
func (m *InvertedIndex) Document(id int) (Document, bool) {
	doc, ok := m.documents[id]
	return doc, ok
}

func (m *InvertedIndex) Stats() Stats {
	return Stats{
		Documents: len(m.documents),
		Terms:     len(m.postings),
		Postings:  m.size,
	}
}
