// Package cluster provides the statistics accumulators that tree building
// and shrinking operate on, and bottom-up agglomerative clustering over them.
package cluster

import (
	"fmt"

	"github.com/ieee0824/phonetree/internal/kio"
)

// Clusterable is an additive statistic whose Cost measures how badly a
// single model fits the data it holds. Cost is closer to zero when the fit
// is better; merging two accumulators never lowers the combined cost.
type Clusterable interface {
	// Copy returns an independent accumulator with the same contents.
	Copy() Clusterable
	// Merge adds other into the receiver. Both must be of the same kind.
	Merge(other Clusterable) error
	// Cost is e.g. the negative log-likelihood of the data.
	Cost() float64
	// Count is the total occupancy.
	Count() float64
	// Write serializes the accumulator, including its type token.
	Write(w *kio.Writer)
}

// mergedCoster is implemented by accumulators that can compute the cost of
// a merge without materializing it. ok is false when the pair cannot be
// merged, in which case MergeCost falls back to Merge for the error.
type mergedCoster interface {
	mergedCost(other Clusterable) (cost float64, ok bool)
}

// MergeCost is the cost increase caused by merging a and b. A nil
// accumulator holds no data and costs nothing.
func MergeCost(a, b Clusterable) (float64, error) {
	if a == nil || b == nil {
		return 0, nil
	}
	if mc, ok := a.(mergedCoster); ok {
		if c, ok := mc.mergedCost(b); ok {
			return c - a.Cost() - b.Cost(), nil
		}
	}
	m := a.Copy()
	if err := m.Merge(b); err != nil {
		return 0, err
	}
	return m.Cost() - a.Cost() - b.Cost(), nil
}

// Sum merges xs into a fresh accumulator. Nil entries are skipped; the
// result is nil when every entry is nil.
func Sum(xs []Clusterable) (Clusterable, error) {
	var total Clusterable
	for _, x := range xs {
		if x == nil {
			continue
		}
		if total == nil {
			total = x.Copy()
			continue
		}
		if err := total.Merge(x); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// Read parses an accumulator written by Clusterable.Write.
func Read(r *kio.Reader) (Clusterable, error) {
	tok, err := r.PeekToken()
	if err != nil {
		return nil, err
	}
	switch tok {
	case gaussToken:
		g, err := readGauss(r)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("%w: unknown accumulator type %q", kio.ErrFormat, tok)
}
