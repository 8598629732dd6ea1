// Package pdfmap relates the pdf-id spaces of two models trained on the
// same data, either as a many-to-one table or as a per-source distribution
// over destination ids, and applies such maps to posteriors.
package pdfmap

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ieee0824/phonetree/internal/kio"
	"github.com/ieee0824/phonetree/posterior"
	"github.com/ieee0824/phonetree/tree"
)

// ErrUnmappedPdf is returned when a posterior mentions a source id the map
// does not cover.
var ErrUnmappedPdf = errors.New("pdfmap: source pdf has no mapping")

// Mapper maps one frame of source-id posteriors to destination ids. The
// result has unique ids in ascending order; weights are redistributed but
// never renormalized.
type Mapper interface {
	Apply(f posterior.Frame) (posterior.Frame, error)
}

// Deterministic sends every source id to exactly one destination id.
type Deterministic []tree.PdfID

// Apply implements Mapper.
func (m Deterministic) Apply(f posterior.Frame) (posterior.Frame, error) {
	out := make(posterior.Frame, 0, len(f))
	for _, e := range f {
		if e.ID < 0 || int(e.ID) >= len(m) || m[e.ID] == tree.NoPdf {
			return nil, fmt.Errorf("%w: %d (map size %d)", ErrUnmappedPdf, e.ID, len(m))
		}
		out = append(out, posterior.Entry{ID: m[e.ID], Weight: e.Weight})
	}
	return out.Merge(), nil
}

// Identity is the deterministic map of n ids onto themselves.
func Identity(n int) Deterministic {
	m := make(Deterministic, n)
	for i := range m {
		m[i] = tree.PdfID(i)
	}
	return m
}

// Stochastic holds P(dst|src) for every source id, ascending by dst. Rows
// may be empty; missing destinations have probability 0.
type Stochastic [][]posterior.Entry

// Apply implements Mapper.
func (m Stochastic) Apply(f posterior.Frame) (posterior.Frame, error) {
	var out posterior.Frame
	for _, e := range f {
		if e.ID < 0 || int(e.ID) >= len(m) {
			return nil, fmt.Errorf("%w: %d (map size %d)", ErrUnmappedPdf, e.ID, len(m))
		}
		for _, d := range m[e.ID] {
			out = append(out, posterior.Entry{ID: d.ID, Weight: e.Weight * d.Weight})
		}
	}
	return out.Merge(), nil
}

// ApplyPosterior maps every frame of p.
func ApplyPosterior(m Mapper, p posterior.Posterior) (posterior.Posterior, error) {
	out := make(posterior.Posterior, len(p))
	for i, f := range p {
		g, err := m.Apply(f)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		out[i] = g
	}
	return out, nil
}

// Write serializes the table as an integer vector.
func (m Deterministic) Write(w *kio.Writer) {
	v := make([]int32, len(m))
	for i, id := range m {
		v[i] = int32(id)
	}
	w.Int32Vector(v)
	w.Newline()
}

// ReadDeterministic parses a table written by Deterministic.Write.
func ReadDeterministic(r *kio.Reader) (Deterministic, error) {
	v, err := r.Int32Vector()
	if err != nil {
		return nil, err
	}
	m := make(Deterministic, len(v))
	for i, id := range v {
		if id < 0 && tree.PdfID(id) != tree.NoPdf {
			return nil, fmt.Errorf("%w: negative pdf %d at %d", kio.ErrFormat, id, i)
		}
		m[i] = tree.PdfID(id)
	}
	return m, nil
}

// Write serializes the map: "<PdfMap> n" followed by one frame per source id.
func (m Stochastic) Write(w *kio.Writer) {
	w.Token("<PdfMap>")
	w.Int32(int32(len(m)))
	w.Newline()
	for _, row := range m {
		posterior.Frame(row).Write(w)
		w.Newline()
	}
	w.Token("</PdfMap>")
	w.Newline()
}

// ReadStochastic parses a map written by Stochastic.Write.
func ReadStochastic(r *kio.Reader) (Stochastic, error) {
	if err := r.ExpectToken("<PdfMap>"); err != nil {
		return nil, err
	}
	n, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative map size %d", kio.ErrFormat, n)
	}
	m := make(Stochastic, 0, kio.Prealloc(n))
	for i := int32(0); i < n; i++ {
		row, err := posterior.ReadFrame(r)
		if err != nil {
			return nil, fmt.Errorf("pdf %d: %w", i, err)
		}
		for _, e := range row {
			if e.ID < 0 || e.Weight < 0 {
				return nil, fmt.Errorf("%w: pdf %d: bad entry (%d, %g)", kio.ErrFormat, i, e.ID, e.Weight)
			}
		}
		m = append(m, row)
	}
	if err := r.ExpectToken("</PdfMap>"); err != nil {
		return nil, err
	}
	return m, nil
}

type writable interface {
	Write(w *kio.Writer)
}

func saveFile(path string, v writable, binary bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	kw := kio.NewWriter(f, binary)
	v.Write(kw)
	if err := kw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func loadFile[T any](path string, read func(*kio.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	v, err := load(f, read)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
	return v, nil
}

func load[T any](r io.Reader, read func(*kio.Reader) (T, error)) (T, error) {
	kr, err := kio.NewReader(r)
	if err != nil {
		var zero T
		return zero, err
	}
	return read(kr)
}

// SaveFile writes the table to path.
func (m Deterministic) SaveFile(path string, binary bool) error {
	return saveFile(path, m, binary)
}

// LoadDeterministic reads a table from r, detecting the mode.
func LoadDeterministic(r io.Reader) (Deterministic, error) {
	return load(r, ReadDeterministic)
}

// LoadDeterministicFile reads a table from path.
func LoadDeterministicFile(path string) (Deterministic, error) {
	return loadFile(path, ReadDeterministic)
}

// SaveFile writes the map to path.
func (m Stochastic) SaveFile(path string, binary bool) error {
	return saveFile(path, m, binary)
}

// LoadStochastic reads a map from r, detecting the mode.
func LoadStochastic(r io.Reader) (Stochastic, error) {
	return load(r, ReadStochastic)
}

// LoadStochasticFile reads a map from path.
func LoadStochasticFile(path string) (Stochastic, error) {
	return loadFile(path, ReadStochastic)
}
