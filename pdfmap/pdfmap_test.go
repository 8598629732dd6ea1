package pdfmap

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/phonetree/posterior"
	"github.com/ieee0824/phonetree/tree"
)

func TestDeterministicApply(t *testing.T) {
	m := Deterministic{0, 0, 1}
	got, err := m.Apply(posterior.Frame{{ID: 0, Weight: 0.3}, {ID: 1, Weight: 0.2}, {ID: 2, Weight: 0.5}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, tree.PdfID(0), got[0].ID)
	assert.InDelta(t, 0.5, got[0].Weight, 1e-12)
	assert.Equal(t, tree.PdfID(1), got[1].ID)
	assert.InDelta(t, 0.5, got[1].Weight, 1e-12)
}

func TestDeterministicUnmapped(t *testing.T) {
	tests := []struct {
		name string
		id   tree.PdfID
	}{
		{"beyond table", 3},
		{"negative", -2},
		{"no mapping", 1},
	}
	m := Deterministic{0, tree.NoPdf, 1}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Apply(posterior.Frame{{ID: tt.id, Weight: 1}})
			assert.ErrorIs(t, err, ErrUnmappedPdf)
		})
	}
}

func TestIdentityIdempotent(t *testing.T) {
	f := posterior.Frame{{ID: 3, Weight: 0.25}, {ID: 1, Weight: 0.5}, {ID: 3, Weight: 0.25}}
	got, err := Identity(4).Apply(f)
	require.NoError(t, err)
	assert.Equal(t, f.Merge(), got)
}

func TestStochasticApply(t *testing.T) {
	m := Stochastic{
		{{ID: 5, Weight: 1}},
		{{ID: 5, Weight: 0.5}, {ID: 6, Weight: 0.5}},
		{},
	}
	got, err := m.Apply(posterior.Frame{{ID: 0, Weight: 0.4}, {ID: 1, Weight: 0.6}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.7, got[0].Weight, 1e-12)
	assert.InDelta(t, 0.3, got[1].Weight, 1e-12)

	// empty rows absorb mass
	got, err = m.Apply(posterior.Frame{{ID: 2, Weight: 1}})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = m.Apply(posterior.Frame{{ID: 3, Weight: 1}})
	assert.ErrorIs(t, err, ErrUnmappedPdf)
}

func TestStochasticMassConservation(t *testing.T) {
	m := Stochastic{
		{{ID: 0, Weight: 0.2}, {ID: 1, Weight: 0.8}},
		{{ID: 1, Weight: 0.25}, {ID: 2, Weight: 0.5}},
	}
	f := posterior.Frame{{ID: 0, Weight: 0.7}, {ID: 1, Weight: 0.3}, {ID: 0, Weight: 0.5}}
	want := 0.0
	for _, e := range f {
		want += e.Weight * posterior.Frame(m[e.ID]).Total()
	}
	got, err := m.Apply(f)
	require.NoError(t, err)
	assert.InDelta(t, want, got.Total(), 1e-12)
	assert.LessOrEqual(t, got.Total(), f.Total())
}

func TestApplyPosterior(t *testing.T) {
	p := posterior.Posterior{{{ID: 0, Weight: 1}}, {{ID: 2, Weight: 1}}}
	got, err := ApplyPosterior(Deterministic{1, 1, 0}, p)
	require.NoError(t, err)
	assert.Equal(t, posterior.Posterior{{{ID: 1, Weight: 1}}, {{ID: 0, Weight: 1}}}, got)

	_, err = ApplyPosterior(Deterministic{0}, p)
	assert.ErrorIs(t, err, ErrUnmappedPdf)
	assert.Contains(t, err.Error(), "frame 1")
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.Add([]int32{0, 0, 1, 1}, []int32{5, 5, 5, 6}))
	m := b.Build(0, 0)
	require.Len(t, m, 2)
	assert.Equal(t, []posterior.Entry{{ID: 5, Weight: 1}}, m[0])
	assert.Equal(t, []posterior.Entry{{ID: 5, Weight: 0.5}, {ID: 6, Weight: 0.5}}, m[1])
	assert.Equal(t, int64(4), b.Frames())
}

func TestBuilderRejectsBadUtterance(t *testing.T) {
	b := NewBuilder(nil)
	assert.Error(t, b.Add([]int32{0, 1}, []int32{0}))
	assert.Error(t, b.Add([]int32{0, -1}, []int32{0, 0}))
	assert.Zero(t, b.Frames())
}

func TestBuilderBounds(t *testing.T) {
	var logs bytes.Buffer
	b := NewBuilder(slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, b.Add([]int32{0, 2, 2}, []int32{1, 0, 3}))

	m := b.Build(4, 2)
	require.Len(t, m, 4)
	assert.Equal(t, []posterior.Entry{{ID: 1, Weight: 1}}, m[0])
	assert.Empty(t, m[1])
	// dst 3 is beyond the bound and dropped without renormalizing
	assert.Equal(t, []posterior.Entry{{ID: 0, Weight: 0.5}}, m[2])
	assert.Empty(t, m[3])

	out := logs.String()
	assert.Contains(t, out, "source pdf not found")
	assert.Contains(t, out, "exceed the number of destination pdfs")
}

func TestMapRoundTrip(t *testing.T) {
	det := Deterministic{2, 0, tree.NoPdf, 1}
	sto := Stochastic{{{ID: 5, Weight: 1}}, {}, {{ID: 5, Weight: 0.5}, {ID: 6, Weight: 0.5}}}
	dir := t.TempDir()
	for _, binary := range []bool{false, true} {
		require.NoError(t, det.SaveFile(dir+"/det", binary))
		gotDet, err := LoadDeterministicFile(dir + "/det")
		require.NoError(t, err)
		assert.Equal(t, det, gotDet)

		require.NoError(t, sto.SaveFile(dir+"/sto", binary))
		gotSto, err := LoadStochasticFile(dir + "/sto")
		require.NoError(t, err)
		assert.Equal(t, sto, gotSto)
	}
}

func TestStochasticTextFormat(t *testing.T) {
	got, err := LoadStochastic(strings.NewReader("<PdfMap> 2\n[ 5 1 ]\n[ 5 0.5 6 0.5 ]\n</PdfMap>\n"))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = LoadStochastic(strings.NewReader("<PdfMap> 1\n[ 5 -1 ]\n</PdfMap>\n"))
	assert.Error(t, err)
	_, err = LoadDeterministic(strings.NewReader("[ 0 -3 ]"))
	assert.Error(t, err)
}

func TestPrior(t *testing.T) {
	c := NewCounter(0)
	require.NoError(t, c.Add([]int32{0, 0, 2}))
	require.NoError(t, c.Add([]int32{2}))
	assert.Equal(t, []int64{2, 0, 2}, c.Counts())

	prior, err := Prior(c.Counts(), DefaultPriorFloor, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, DefaultPriorFloor, 0.5}, prior)

	logPrior, err := Prior(c.Counts(), DefaultPriorFloor, true)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.5), logPrior[0], 1e-12)
	assert.InDelta(t, math.Log(DefaultPriorFloor), logPrior[1], 1e-12)

	_, err = Prior([]int64{0, 0}, DefaultPriorFloor, false)
	assert.ErrorIs(t, err, ErrNoCounts)
}

func TestCounterFixed(t *testing.T) {
	c := NewCounter(2)
	assert.Error(t, c.Add([]int32{0, 2}))
	assert.Equal(t, []int64{0, 0}, c.Counts())
	require.NoError(t, c.Add([]int32{1}))
	assert.Equal(t, []int64{0, 1}, c.Counts())
}
