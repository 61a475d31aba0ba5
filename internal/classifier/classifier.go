// Package classifier decides which legal practice area an inbound message
// belongs to. The primary classifier calls Gemini; a keyword matcher over
// the category catalog serves as deterministic fallback when the AI is
// unreachable or not configured.
package classifier

import (
	"context"
	"errors"
)

// ErrUnavailable means the classifier backend could not be reached or
// returned an unusable response. Callers fall back to the next classifier
// in the chain.
var ErrUnavailable = errors.New("classifier unavailable")

// Result is a classification outcome. An empty Category means the message
// could not be classified and the sender should be asked to clarify.
type Result struct {
	Category   string
	Confidence float64
}

// Classifier maps free-form text to a catalog category.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// minConfidence is the floor below which an AI result counts as
// unclassified.
const minConfidence = 0.5

// Chain tries classifiers in order. A classifier error moves on to the next
// one; a low-confidence result is discarded the same way. The final
// classifier's answer stands, classified or not.
type Chain struct {
	classifiers []Classifier
}

// NewChain builds a chain, skipping nil entries.
func NewChain(classifiers ...Classifier) *Chain {
	chain := &Chain{}
	for _, c := range classifiers {
		if c != nil {
			chain.classifiers = append(chain.classifiers, c)
		}
	}
	return chain
}

// Classify runs the chain.
func (c *Chain) Classify(ctx context.Context, text string) (Result, error) {
	var last Result
	for _, classifier := range c.classifiers {
		result, err := classifier.Classify(ctx, text)
		if err != nil {
			continue
		}
		if result.Category != "" && result.Confidence >= minConfidence {
			return result, nil
		}
		last = result
	}
	return last, nil
}

var _ Classifier = (*Chain)(nil)
