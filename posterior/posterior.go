// Package posterior holds per-frame weighted pdf-id lists, the soft labels
// exchanged between models.
package posterior

import (
	"fmt"
	"sort"

	"github.com/ieee0824/phonetree/internal/kio"
	"github.com/ieee0824/phonetree/tree"
)

// Entry is one weighted pdf-id.
type Entry struct {
	ID     tree.PdfID
	Weight float64
}

// Frame is the posterior of a single frame. Ids need not be unique until
// Merge is called.
type Frame []Entry

// Posterior is a frame sequence, one per utterance.
type Posterior []Frame

// Merge returns the frame with duplicate ids summed, sorted by id.
func (f Frame) Merge() Frame {
	acc := make(map[tree.PdfID]float64, len(f))
	for _, e := range f {
		acc[e.ID] += e.Weight
	}
	out := make(Frame, 0, len(acc))
	for id, w := range acc {
		out = append(out, Entry{ID: id, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Total is the summed weight of the frame.
func (f Frame) Total() float64 {
	s := 0.0
	for _, e := range f {
		s += e.Weight
	}
	return s
}

// Total is the summed weight of every frame.
func (p Posterior) Total() float64 {
	s := 0.0
	for _, f := range p {
		s += f.Total()
	}
	return s
}

// FromAlignment turns a hard alignment into a posterior with weight 1 per frame.
func FromAlignment(ali []int32) Posterior {
	p := make(Posterior, len(ali))
	for i, id := range ali {
		p[i] = Frame{{ID: tree.PdfID(id), Weight: 1}}
	}
	return p
}

// Write serializes p. Text mode writes "[ id w id w ] [ ... ]" on a
// single line; binary mode is count prefixed.
func (p Posterior) Write(w *kio.Writer) {
	if w.Binary() {
		w.Int32(int32(len(p)))
	}
	for _, f := range p {
		f.Write(w)
	}
}

// Write serializes a single frame.
func (f Frame) Write(w *kio.Writer) {
	if w.Binary() {
		w.Int32(int32(len(f)))
	} else {
		w.Token("[")
	}
	for _, e := range f {
		w.Int32(int32(e.ID))
		w.Float64(e.Weight)
	}
	if !w.Binary() {
		w.Token("]")
	}
}

// Read parses a posterior written by Write. In text mode it consumes
// frames until the end of the stream.
func Read(r *kio.Reader) (Posterior, error) {
	if r.Binary() {
		n, err := r.Int32()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative frame count %d", kio.ErrFormat, n)
		}
		p := make(Posterior, 0, kio.Prealloc(n))
		for i := int32(0); i < n; i++ {
			f, err := ReadFrame(r)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			p = append(p, f)
		}
		return p, nil
	}
	p := Posterior{}
	for !r.AtEOF() {
		f, err := ReadFrame(r)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(p), err)
		}
		p = append(p, f)
	}
	return p, nil
}

// ReadFrame parses a frame written by Frame.Write.
func ReadFrame(r *kio.Reader) (Frame, error) {
	if !r.Binary() {
		return readTextFrame(r)
	}
	n, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative entry count %d", kio.ErrFormat, n)
	}
	f := make(Frame, 0, kio.Prealloc(n))
	for i := int32(0); i < n; i++ {
		id, err := r.Int32()
		if err != nil {
			return nil, err
		}
		w, err := r.Float64()
		if err != nil {
			return nil, err
		}
		f = append(f, Entry{ID: tree.PdfID(id), Weight: w})
	}
	return f, nil
}

func readTextFrame(r *kio.Reader) (Frame, error) {
	if err := r.ExpectToken("["); err != nil {
		return nil, err
	}
	f := Frame{}
	for {
		tok, err := r.PeekToken()
		if err != nil {
			return nil, err
		}
		if tok == "]" {
			_, err := r.Token()
			return f, err
		}
		id, err := r.Int32()
		if err != nil {
			return nil, err
		}
		w, err := r.Float64()
		if err != nil {
			return nil, err
		}
		f = append(f, Entry{ID: tree.PdfID(id), Weight: w})
	}
}
