package pdfmap

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/ieee0824/phonetree/posterior"
	"github.com/ieee0824/phonetree/tree"
)

// Builder accumulates co-occurrence counts of parallel source and
// destination alignments and turns them into a Stochastic map.
type Builder struct {
	logger *slog.Logger
	joint  map[tree.PdfID]map[tree.PdfID]int64
	src    map[tree.PdfID]int64
	maxSrc tree.PdfID
	maxDst tree.PdfID
	frames int64
}

// NewBuilder returns an empty builder. A nil logger discards diagnostics.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{
		logger: logger,
		joint:  make(map[tree.PdfID]map[tree.PdfID]int64),
		src:    make(map[tree.PdfID]int64),
		maxSrc: tree.NoPdf,
		maxDst: tree.NoPdf,
	}
}

// Add counts one utterance. The alignments must have equal length and
// hold non-negative ids; otherwise nothing is counted.
func (b *Builder) Add(src, dst []int32) error {
	if len(src) != len(dst) {
		return fmt.Errorf("alignment lengths differ: source %d, destination %d", len(src), len(dst))
	}
	for i := range src {
		if src[i] < 0 || dst[i] < 0 {
			return fmt.Errorf("negative pdf at frame %d (%d, %d)", i, src[i], dst[i])
		}
	}
	for i := range src {
		s, d := tree.PdfID(src[i]), tree.PdfID(dst[i])
		row, ok := b.joint[s]
		if !ok {
			row = make(map[tree.PdfID]int64)
			b.joint[s] = row
		}
		row[d]++
		b.src[s]++
		b.maxSrc = max(b.maxSrc, s)
		b.maxDst = max(b.maxDst, d)
	}
	b.frames += int64(len(src))
	return nil
}

// Frames is the number of frames counted so far.
func (b *Builder) Frames() int64 { return b.frames }

// Build emits P(dst|src) = count(src,dst)/count(src) for numSrc source
// ids, listing destinations in ascending order. A bound of 0 or less is
// inferred from the data. Source ids never observed get an empty row;
// observations beyond an explicit bound are dropped. Both are logged.
func (b *Builder) Build(numSrc, numDst int) Stochastic {
	if numSrc <= 0 {
		numSrc = int(b.maxSrc) + 1
	}
	if numDst <= 0 {
		numDst = int(b.maxDst) + 1
	}
	if int(b.maxSrc) >= numSrc {
		b.logger.Warn("source alignments exceed the number of source pdfs",
			"max_pdf", b.maxSrc, "num_pdfs", numSrc)
	}
	if int(b.maxDst) >= numDst {
		b.logger.Warn("destination alignments exceed the number of destination pdfs",
			"max_pdf", b.maxDst, "num_pdfs", numDst)
	}

	m := make(Stochastic, numSrc)
	for i := range m {
		s := tree.PdfID(i)
		total := b.src[s]
		if total == 0 {
			b.logger.Warn("source pdf not found in alignments, no mapping output", "pdf", s)
			m[i] = []posterior.Entry{}
			continue
		}
		dsts := make([]tree.PdfID, 0, len(b.joint[s]))
		for d := range b.joint[s] {
			if int(d) < numDst {
				dsts = append(dsts, d)
			}
		}
		sort.Slice(dsts, func(a, c int) bool { return dsts[a] < dsts[c] })
		row := make([]posterior.Entry, len(dsts))
		for j, d := range dsts {
			row[j] = posterior.Entry{ID: d, Weight: float64(b.joint[s][d]) / float64(total)}
		}
		m[i] = row
	}
	return m
}
