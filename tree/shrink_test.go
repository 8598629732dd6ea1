package tree

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/phonetree/cluster"
)

func gauss(frames ...float64) *cluster.Gauss {
	g := cluster.NewGauss(1, cluster.DefaultVarFloor)
	for _, x := range frames {
		g.AddFrame([]float64{x}, 1)
	}
	return g
}

// sampleStats puts similar data on leaves 0 and 1 of sampleTree and
// well separated data on leaves 2 and 3.
func sampleStats() Stats {
	return Stats{
		{Event: MakeEvent([]Value{1, 5, 4}, 0), Stats: gauss(0, 1, 2)},
		{Event: MakeEvent([]Value{7, 5, 4}, 0), Stats: gauss(0.5, 1, 1.5)},
		{Event: MakeEvent([]Value{7, 5, 3}, 1), Stats: gauss(100, 101, 102)},
		{Event: MakeEvent([]Value{7, 5, 4}, 1), Stats: gauss(200, 201)},
	}
}

func TestShrinkZeroThreshold(t *testing.T) {
	cd := sampleCD(t)
	res, err := Shrink(cd, sampleStats(), ShrinkOptions{LowCount: -1})
	require.NoError(t, err)
	assert.Equal(t, 4, res.OldLeaves)
	assert.Equal(t, 4, res.NewLeaves)
	assert.Zero(t, res.NumReduced)
	assert.Equal(t, []PdfID{0, 1, 2, 3}, res.Mapping)
	assert.Equal(t, cd, res.Tree)
}

func TestShrinkMerges(t *testing.T) {
	cd := sampleCD(t)
	res, err := Shrink(cd, sampleStats(), ShrinkOptions{Threshold: 5, LowCount: -1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewLeaves)
	assert.Equal(t, 1, res.NumReduced)
	assert.Equal(t, []PdfID{0, 0, 1, 2}, res.Mapping)

	// the merged split collapses into a single leaf
	root, ok := res.Tree.Root.(*Split)
	require.True(t, ok)
	assert.Equal(t, NewLeaf(0), root.Yes)

	// classification agrees with the mapping
	for _, st := range sampleStats() {
		before, err := Classify(cd.Root, st.Event)
		require.NoError(t, err)
		after, err := Classify(res.Tree.Root, st.Event)
		require.NoError(t, err)
		assert.Equal(t, res.Mapping[before], after)
	}
}

func TestShrinkProperties(t *testing.T) {
	cd := sampleCD(t)
	for _, thresh := range []float64{0, 0.1, 1, 5, 50, 1e9} {
		res, err := Shrink(cd, sampleStats(), ShrinkOptions{Threshold: thresh, LowCount: -1})
		require.NoError(t, err)
		assert.LessOrEqual(t, res.NewLeaves, res.OldLeaves, "thresh=%g", thresh)
		require.Len(t, res.Mapping, res.OldLeaves)
		seen := make([]bool, res.NewLeaves)
		for _, m := range res.Mapping {
			require.GreaterOrEqual(t, int(m), 0)
			require.Less(t, int(m), res.NewLeaves)
			seen[m] = true
		}
		for i, s := range seen {
			assert.True(t, s, "new leaf %d has no preimage (thresh=%g)", i, thresh)
		}
	}
}

func TestShrinkThresholdPolicy(t *testing.T) {
	cd := sampleCD(t)

	res, err := Shrink(cd, sampleStats(), ShrinkOptions{Threshold: -1, FallbackThreshold: 5, LowCount: -1})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Threshold)
	assert.Equal(t, 3, res.NewLeaves)

	_, err = Shrink(cd, sampleStats(), ShrinkOptions{Threshold: -1, FallbackThreshold: -1})
	assert.ErrorIs(t, err, ErrNegativeThreshold)
}

func TestShrinkLowCount(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	stats := sampleStats()
	big := gauss()
	big.AddFrame([]float64{150}, 500)
	stats[2].Stats = big

	res, err := Shrink(sampleCD(t), stats, ShrinkOptions{Logger: logger})
	require.NoError(t, err)
	require.Len(t, res.LowCount, 3)
	for _, lc := range res.LowCount {
		assert.NotEqual(t, PdfID(2), lc.Pdf)
		assert.Less(t, lc.Count, float64(DefaultLowCount))
	}
	assert.Contains(t, logs.String(), "low count after shrink")
}

func TestShrinkUnobservedLeaf(t *testing.T) {
	stats := sampleStats()[:3]
	res, err := Shrink(sampleCD(t), stats, ShrinkOptions{Threshold: 5, LowCount: -1})
	require.NoError(t, err)
	// leaf 3 has no data and joins a cluster for free
	assert.Equal(t, 2, res.NewLeaves)
	assert.Len(t, res.Mapping, 4)
}

func TestShrinkSparseIDs(t *testing.T) {
	// leaf id 1 is never used by the tree
	cd, err := New(3, 1, NewSplit(PdfClassKey, []Value{0}, NewLeaf(0), NewLeaf(2)))
	require.NoError(t, err)
	stats := Stats{
		{Event: MakeEvent([]Value{1, 5, 4}, 0), Stats: gauss(0, 1, 2)},
		{Event: MakeEvent([]Value{1, 5, 4}, 1), Stats: gauss(100, 101, 102)},
	}

	tests := []struct {
		name      string
		threshold float64
	}{
		{"no clustering", 0},
		{"clustering", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Shrink(cd, stats, ShrinkOptions{Threshold: tt.threshold, LowCount: -1})
			require.NoError(t, err)
			assert.Equal(t, []PdfID{0, NoPdf, 1}, res.Mapping)
			assert.Equal(t, 2, res.OldLeaves)
			assert.Equal(t, 2, res.NewLeaves)
			assert.Zero(t, res.NumReduced)
		})
	}
}

func TestShrinkMissingKey(t *testing.T) {
	stats := Stats{{Event: Event{{Key: PdfClassKey, Value: 0}}, Stats: gauss(1)}}
	_, err := Shrink(sampleCD(t), stats, ShrinkOptions{Threshold: 1})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestStatsRoundTrip(t *testing.T) {
	for _, binary := range []bool{false, true} {
		stats := sampleStats()
		path := t.TempDir() + "/stats"
		require.NoError(t, stats.SaveFile(path, binary))
		got, err := LoadStatsFile(path)
		require.NoError(t, err)
		require.Len(t, got, len(stats))
		for i := range stats {
			assert.Equal(t, stats[i].Event, got[i].Event)
			assert.Equal(t, stats[i].Stats, got[i].Stats)
		}
	}
}

func TestStatsMerge(t *testing.T) {
	a := Stats{
		{Event: Event{{Key: 1, Value: 2}, {Key: 0, Value: 1}}, Stats: gauss(1)},
	}
	b := Stats{
		{Event: Event{{Key: 0, Value: 1}, {Key: 1, Value: 2}}, Stats: gauss(3)},
		{Event: Event{{Key: 0, Value: 0}}, Stats: gauss(5)},
	}
	got, err := a.Merge(b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Event{{Key: 0, Value: 0}}, got[0].Event)
	assert.Equal(t, 2.0, got[1].Stats.Count())
	// inputs untouched
	assert.Equal(t, 1.0, a[0].Stats.Count())
}
