package tree

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ieee0824/phonetree/cluster"
)

// DefaultLowCount is the total count under which a shrunk leaf is reported.
const DefaultLowCount = 100

// ErrNegativeThreshold is returned when neither the threshold nor its
// fallback is usable.
var ErrNegativeThreshold = errors.New("tree: negative cluster threshold without a fallback")

// ShrinkOptions controls Shrink.
type ShrinkOptions struct {
	// Threshold is the largest cost increase a merge may cause. 0 disables
	// clustering; a negative value selects FallbackThreshold.
	Threshold float64
	// FallbackThreshold is usually the gain of the last split made while
	// growing the tree.
	FallbackThreshold float64
	// LowCount is the diagnostic count threshold; 0 means DefaultLowCount
	// and a negative value disables the report.
	LowCount float64
	Logger   *slog.Logger
}

// LowCountLeaf is a shrunk leaf whose statistics total less than LowCount.
type LowCountLeaf struct {
	Pdf   PdfID
	Count float64
}

// ShrinkResult is the output of Shrink.
type ShrinkResult struct {
	Tree *ContextDependency
	// Mapping is indexed by old leaf id and holds the new leaf id; NoPdf
	// marks ids that never occurred in the input tree.
	Mapping    []PdfID
	OldLeaves  int
	NewLeaves  int
	NumReduced int
	Threshold  float64 // the threshold actually applied
	LowCount   []LowCountLeaf
}

// Shrink merges leaves of cd whose statistics are similar enough that the
// summed cost increases by no more than the threshold per merge. The
// statistics are routed to leaves with Classify; an event the tree cannot
// classify is an error. Leaves without statistics take part with zero
// cost. The returned tree is relabeled, collapsed and densely renumbered;
// cd itself is not modified.
func Shrink(cd *ContextDependency, stats Stats, opts ShrinkOptions) (*ShrinkResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	thresh := opts.Threshold
	if thresh < 0 {
		if opts.FallbackThreshold < 0 {
			return nil, fmt.Errorf("%w (fallback %g)", ErrNegativeThreshold, opts.FallbackThreshold)
		}
		thresh = opts.FallbackThreshold
		logger.Info("using fallback cluster threshold", "threshold", thresh)
	}

	numPdfs := cd.NumPdfs()
	points := make([]cluster.Clusterable, numPdfs)
	for i, st := range stats {
		leaf, err := Classify(cd.Root, st.Event)
		if err != nil {
			return nil, fmt.Errorf("shrink: stat %d: %w", i, err)
		}
		if leaf < 0 {
			return nil, fmt.Errorf("shrink: stat %d reached negative leaf %d", i, leaf)
		}
		if points[leaf] == nil {
			points[leaf] = st.Stats.Copy()
			continue
		}
		if err := points[leaf].Merge(st.Stats); err != nil {
			return nil, fmt.Errorf("shrink: stat %d: %w", i, err)
		}
	}

	// Ids below NumPdfs that no leaf carries stay out of clustering and
	// map to NoPdf.
	present := Leaves(cd.Root)
	clusterOf := make([]PdfID, numPdfs)
	for i := range clusterOf {
		clusterOf[i] = NoPdf
	}
	if thresh == 0 {
		for _, id := range present {
			clusterOf[id] = id
		}
	} else {
		sub := make([]cluster.Clusterable, len(present))
		for k, id := range present {
			sub[k] = points[id]
		}
		assignment, _, err := cluster.BottomUp(sub, thresh)
		if err != nil {
			return nil, fmt.Errorf("shrink: %w", err)
		}
		for k, c := range assignment {
			clusterOf[present[k]] = PdfID(c)
		}
	}

	relabeled, err := CopyWithRelabeling(cd.Root, clusterOf)
	if err != nil {
		return nil, fmt.Errorf("shrink: %w", err)
	}
	root, renumber, newLeaves, err := Renumber(Collapse(relabeled))
	if err != nil {
		return nil, fmt.Errorf("shrink: %w", err)
	}
	out, err := New(cd.ContextWidth, cd.CentralPosition, root)
	if err != nil {
		return nil, err
	}

	mapping := make([]PdfID, numPdfs)
	for i, c := range clusterOf {
		mapping[i] = NoPdf
		if c != NoPdf && int(c) < len(renumber) {
			mapping[i] = renumber[c]
		}
	}

	res := &ShrinkResult{
		Tree:      out,
		Mapping:   mapping,
		OldLeaves: NumLeaves(cd.Root),
		NewLeaves: newLeaves,
		Threshold: thresh,
	}
	res.NumReduced = res.OldLeaves - res.NewLeaves

	lowCount := opts.LowCount
	if lowCount == 0 {
		lowCount = DefaultLowCount
	}
	if lowCount > 0 {
		counts := make([]float64, newLeaves)
		for i, p := range points {
			if p != nil && mapping[i] != NoPdf {
				counts[mapping[i]] += p.Count()
			}
		}
		for pdf, c := range counts {
			if c < lowCount {
				logger.Warn("low count after shrink", "pdf", pdf, "count", c, "min_count", lowCount)
				res.LowCount = append(res.LowCount, LowCountLeaf{Pdf: PdfID(pdf), Count: c})
			}
		}
	}

	logger.Info("shrink complete",
		"old_leaves", res.OldLeaves,
		"new_leaves", res.NewLeaves,
		"reduced", res.NumReduced,
		"threshold", thresh,
	)
	return res, nil
}
