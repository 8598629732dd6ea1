package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCounters(t *testing.T) {
	r := NewRun("map-pdf-post")
	r.Done()
	r.Done()
	r.Skipped()

	assert.Equal(t, "map-pdf-post", r.Tool())
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Records.WithLabelValues(StatusDone)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Records.WithLabelValues(StatusSkipped)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.Records.WithLabelValues(StatusFailed)))
}

func TestRunsAreIsolated(t *testing.T) {
	a := NewRun("shrink-tree")
	b := NewRun("shrink-tree")
	a.Done()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Records.WithLabelValues(StatusDone)))
}

func TestFinishWritesTextfile(t *testing.T) {
	r := NewRun("shrink-tree")
	r.Leaves.WithLabelValues("before").Set(10)
	r.Leaves.WithLabelValues("after").Set(4)
	r.Done()

	path := filepath.Join(t.TempDir(), "treetool.prom")
	require.NoError(t, r.Finish(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, `phonetree_leaves{stage="after",tool="shrink-tree"} 4`)
	assert.Contains(t, text, `phonetree_records_total{status="done",tool="shrink-tree"} 1`)
	assert.True(t, strings.Contains(text, "phonetree_run_duration_seconds"))
}

func TestFinishWithoutPath(t *testing.T) {
	require.NoError(t, NewRun("x").Finish(""))
}
