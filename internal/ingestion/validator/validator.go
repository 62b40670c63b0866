// Package validator checks ingestion requests before they reach the index.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/ingestion"
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest requires a non-negative id and content no longer than
// maxContentBytes. Empty content is valid.
func ValidateIngestRequest(req *ingestion.IngestRequest, maxContentBytes int) error {
	errs := make(map[string]string)
	switch {
	case req.ID == nil:
		errs["id"] = "id is required"
	case *req.ID < 0:
		errs["id"] = "id must be non-negative"
	}
	if len(req.Content) > maxContentBytes {
		errs["content"] = fmt.Sprintf("content must be at most %d bytes", maxContentBytes)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
