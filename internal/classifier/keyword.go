package classifier

import (
	"context"
	"strings"

	"github.com/lawjfmiranda/jurbot1/internal/qualification"
)

// KeywordClassifier matches message text against the per-category keyword
// lists in the catalog. Deterministic, offline and cheap; the catalog keeps
// accented and unaccented spellings so no normalization pass is needed.
type KeywordClassifier struct {
	catalog *qualification.Catalog
}

// NewKeywordClassifier creates a keyword classifier over the catalog.
func NewKeywordClassifier(catalog *qualification.Catalog) *KeywordClassifier {
	return &KeywordClassifier{catalog: catalog}
}

// Classify picks the category with the most keyword hits. Ties resolve to
// the category declared first in the catalog.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (Result, error) {
	lowered := strings.ToLower(text)

	best := Result{}
	bestHits := 0
	for _, cat := range k.catalog.Categories() {
		hits := 0
		for _, keyword := range cat.Keywords {
			if strings.Contains(lowered, keyword) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = Result{Category: cat.Name, Confidence: 0.6}
		}
	}
	return best, nil
}

var _ Classifier = (*KeywordClassifier)(nil)
