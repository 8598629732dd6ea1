package cluster

import (
	"fmt"
	"math"

	"github.com/ieee0824/phonetree/internal/kio"
	"github.com/ieee0824/phonetree/internal/mathutil"
)

const gaussToken = "<GaussStats>"

// DefaultVarFloor keeps single-frame and constant-valued clusters finite.
const DefaultVarFloor = 0.01

// Gauss accumulates zeroth, first and second order statistics of feature
// vectors for a single diagonal-covariance Gaussian.
type Gauss struct {
	Occ      float64   // total count
	Sum      []float64 // [dim] Σ x
	SumSq    []float64 // [dim] Σ x²
	VarFloor float64
}

// NewGauss creates an empty accumulator of the given dimension.
func NewGauss(dim int, varFloor float64) *Gauss {
	return &Gauss{
		Sum:      make([]float64, dim),
		SumSq:    make([]float64, dim),
		VarFloor: varFloor,
	}
}

// Dim is the feature dimension.
func (g *Gauss) Dim() int { return len(g.Sum) }

// AddFrame accumulates one observation with the given weight.
func (g *Gauss) AddFrame(x []float64, weight float64) {
	g.Occ += weight
	mathutil.AxpyVec(g.Sum, weight, x)
	mathutil.AxpySqVec(g.SumSq, weight, x)
}

// Copy implements Clusterable.
func (g *Gauss) Copy() Clusterable {
	c := &Gauss{
		Occ:      g.Occ,
		Sum:      make([]float64, len(g.Sum)),
		SumSq:    make([]float64, len(g.SumSq)),
		VarFloor: g.VarFloor,
	}
	copy(c.Sum, g.Sum)
	copy(c.SumSq, g.SumSq)
	return c
}

// Merge implements Clusterable.
func (g *Gauss) Merge(other Clusterable) error {
	o, ok := other.(*Gauss)
	if !ok {
		return fmt.Errorf("merge %T into gauss stats", other)
	}
	if o.Dim() != g.Dim() {
		return fmt.Errorf("merge gauss stats: dimension %d into %d", o.Dim(), g.Dim())
	}
	g.Occ += o.Occ
	mathutil.AxpyVec(g.Sum, 1, o.Sum)
	mathutil.AxpyVec(g.SumSq, 1, o.SumSq)
	return nil
}

// Count implements Clusterable.
func (g *Gauss) Count() float64 { return g.Occ }

// Cost is the negative log-likelihood of the accumulated data under its
// maximum-likelihood Gaussian:
// 0.5 * occ * Σ_d (log(2π σ²_d) + 1), with σ²_d floored at VarFloor.
func (g *Gauss) Cost() float64 {
	return g.pooledCost(nil)
}

// pooledCost is the Cost g would have after merging o, or g's own Cost
// when o is nil. Nothing is allocated.
func (g *Gauss) pooledCost(o *Gauss) float64 {
	occ := g.Occ
	if o != nil {
		occ += o.Occ
	}
	if occ <= 0 {
		return 0
	}
	floor := g.VarFloor
	if floor <= 0 {
		floor = DefaultVarFloor
	}
	s := 0.0
	for d := range g.Sum {
		sum, sumSq := g.Sum[d], g.SumSq[d]
		if o != nil {
			sum += o.Sum[d]
			sumSq += o.SumSq[d]
		}
		mean := sum / occ
		variance := sumSq/occ - mean*mean
		if variance < floor {
			variance = floor
		}
		s += math.Log(2*math.Pi*variance) + 1
	}
	return 0.5 * occ * s
}

// mergedCost implements mergedCoster.
func (g *Gauss) mergedCost(other Clusterable) (float64, bool) {
	o, ok := other.(*Gauss)
	if !ok || o.Dim() != g.Dim() {
		return 0, false
	}
	return g.pooledCost(o), true
}

// Write implements Clusterable.
func (g *Gauss) Write(w *kio.Writer) {
	w.Token(gaussToken)
	w.Int32(int32(g.Dim()))
	w.Float64(g.VarFloor)
	w.Float64(g.Occ)
	for _, v := range g.Sum {
		w.Float64(v)
	}
	for _, v := range g.SumSq {
		w.Float64(v)
	}
}

func readGauss(r *kio.Reader) (*Gauss, error) {
	if err := r.ExpectToken(gaussToken); err != nil {
		return nil, err
	}
	dim, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if dim < 0 {
		return nil, fmt.Errorf("%w: negative gauss dimension %d", kio.ErrFormat, dim)
	}
	floor, err := r.Float64()
	if err != nil {
		return nil, err
	}
	occ, err := r.Float64()
	if err != nil {
		return nil, err
	}
	sum, err := readFloats(r, dim)
	if err != nil {
		return nil, err
	}
	sumSq, err := readFloats(r, dim)
	if err != nil {
		return nil, err
	}
	return &Gauss{Occ: occ, Sum: sum, SumSq: sumSq, VarFloor: floor}, nil
}

// readFloats reads n scalars, growing the slice as values arrive.
func readFloats(r *kio.Reader, n int32) ([]float64, error) {
	out := make([]float64, 0, kio.Prealloc(n))
	for i := int32(0); i < n; i++ {
		v, err := r.Float64()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
