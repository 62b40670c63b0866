package index

// Document is an ingested document. Content is kept exactly as supplied so
// highlighted results reproduce the original casing.
type Document struct {
	ID      int
	Content string
}

// PostingList holds the ids of the documents containing a term, one entry per
// occurrence, in the order they were added.
type PostingList []int

// Stats summarises the size of an index.
type Stats struct {
	Documents int `json:"documents"`
	Terms     int `json:"terms"`
	Postings  int `json:"postings"`
}
