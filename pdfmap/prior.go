package pdfmap

import (
	"errors"
	"fmt"

	"github.com/ieee0824/phonetree/internal/mathutil"
)

// DefaultPriorFloor is the smallest prior Prior emits.
const DefaultPriorFloor = 1e-7

// ErrNoCounts is returned by Prior when nothing was counted.
var ErrNoCounts = errors.New("pdfmap: no pdf counts")

// Counter accumulates pdf occurrence counts from pdf alignments.
type Counter struct {
	counts []int64
	fixed  bool
}

// NewCounter returns a counter for numPdfs ids; 0 lets it grow with the data.
func NewCounter(numPdfs int) *Counter {
	return &Counter{counts: make([]int64, numPdfs), fixed: numPdfs > 0}
}

// Add counts every frame of ali. Ids outside a fixed range are an error
// and nothing from ali is counted.
func (c *Counter) Add(ali []int32) error {
	top := int32(-1)
	for i, id := range ali {
		if id < 0 || (c.fixed && int(id) >= len(c.counts)) {
			return fmt.Errorf("pdf %d at frame %d outside [0,%d)", id, i, len(c.counts))
		}
		top = max(top, id)
	}
	if int(top) >= len(c.counts) {
		c.counts = append(c.counts, make([]int64, int(top)+1-len(c.counts))...)
	}
	for _, id := range ali {
		c.counts[id]++
	}
	return nil
}

// Counts returns the per-pdf counts.
func (c *Counter) Counts() []int64 { return c.counts }

// Prior normalizes counts into pdf priors, floors them at floor and
// optionally takes the natural log.
func Prior(counts []int64, floor float64, log bool) ([]float64, error) {
	prior := make(mathutil.Vec, len(counts))
	for i, n := range counts {
		prior[i] = float64(n)
	}
	total := mathutil.SumVec(prior)
	if total <= 0 {
		return nil, ErrNoCounts
	}
	mathutil.ScaleVec(prior, 1/total)
	mathutil.FloorVec(prior, floor)
	if log {
		mathutil.LogVec(prior)
	}
	return prior, nil
}
