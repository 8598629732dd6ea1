package archive

import (
	"fmt"

	"github.com/ieee0824/phonetree/internal/kio"
	"github.com/ieee0824/phonetree/posterior"
)

// Codec encodes one record value. In text mode Read sees exactly the
// payload of one record and must consume all of it; in binary mode the
// encoding must be self-delimiting. Text payloads never contain newlines.
type Codec[T any] struct {
	Name  string
	Write func(w *kio.Writer, v T)
	Read  func(r *kio.Reader) (T, error)
}

// Int32Vector stores alignments: one integer per frame.
var Int32Vector = Codec[[]int32]{
	Name:  "int32 vector",
	Write: func(w *kio.Writer, v []int32) { w.Int32Vector(v) },
	Read:  func(r *kio.Reader) ([]int32, error) { return r.Int32Vector() },
}

// Int32VectorVector stores full-context alignments: one vector per frame.
var Int32VectorVector = Codec[[][]int32]{
	Name: "int32 vector-vector",
	Write: func(w *kio.Writer, v [][]int32) {
		if w.Binary() {
			w.Int32(int32(len(v)))
		}
		for _, x := range v {
			w.Int32Vector(x)
		}
	},
	Read: func(r *kio.Reader) ([][]int32, error) {
		if !r.Binary() {
			out := [][]int32{}
			for !r.AtEOF() {
				v, err := r.Int32Vector()
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		}
		n, err := r.Int32()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative length %d", kio.ErrFormat, n)
		}
		out := make([][]int32, 0, kio.Prealloc(n))
		for i := int32(0); i < n; i++ {
			v, err := r.Int32Vector()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	},
}

// Posterior stores per-frame weighted pdf lists.
var Posterior = Codec[posterior.Posterior]{
	Name:  "posterior",
	Write: func(w *kio.Writer, p posterior.Posterior) { p.Write(w) },
	Read:  posterior.Read,
}
