package tree

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/phonetree/internal/kio"
)

// sampleTree is a triphone tree over (left, center, right, pdf-class):
//
//	pdf-class ∈ {0}?
//	  left ∈ {1,2}?  -> 0 / 1
//	  right ∈ {3}?   -> 2 / 3
func sampleTree() Node {
	return NewSplit(PdfClassKey, []Value{0},
		NewSplit(0, []Value{2, 1}, NewLeaf(0), NewLeaf(1)),
		NewSplit(2, []Value{3}, NewLeaf(2), NewLeaf(3)),
	)
}

func sampleCD(t *testing.T) *ContextDependency {
	t.Helper()
	cd, err := New(3, 1, sampleTree())
	require.NoError(t, err)
	return cd
}

func TestClassify(t *testing.T) {
	root := sampleTree()
	tests := []struct {
		name   string
		window []Value
		class  int32
		want   PdfID
	}{
		{"left yes", []Value{1, 5, 4}, 0, 0},
		{"left no", []Value{7, 5, 4}, 0, 1},
		{"right yes", []Value{7, 5, 3}, 1, 2},
		{"right no", []Value{7, 5, 4}, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := MakeEvent(tt.window, tt.class)
			got, err := Classify(root, ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			again, err := Classify(root, ev)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestClassifyMissingKey(t *testing.T) {
	_, err := Classify(sampleTree(), Event{{Key: PdfClassKey, Value: 0}})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestEventValidate(t *testing.T) {
	assert.NoError(t, MakeEvent([]Value{1, 2}, 0).Validate())
	assert.Error(t, Event{{Key: 1, Value: 1}, {Key: 1, Value: 2}}.Validate())
	assert.Equal(t, "(0:1, -1:3)", Event{{Key: 0, Value: 1}, {Key: PdfClassKey, Value: 3}}.String())
}

func TestChildren(t *testing.T) {
	root := sampleTree()
	kids, err := Children(root)
	require.NoError(t, err)
	assert.IsType(t, &Split{}, kids[0])
	assert.IsType(t, &Split{}, kids[1])

	_, err = Children(NewLeaf(0))
	assert.ErrorIs(t, err, ErrNotASplitNode)
}

func TestNewSplitSortsYesSet(t *testing.T) {
	s := NewSplit(0, []Value{5, 1, 5, 3}, NewLeaf(0), NewLeaf(1))
	assert.Equal(t, []Value{1, 3, 5}, s.YesSet)
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(4))
}

func TestCopyWithRelabeling(t *testing.T) {
	root := sampleTree()
	out, err := CopyWithRelabeling(root, []PdfID{3, 2, 1, 0})
	require.NoError(t, err)
	got, err := Classify(out, MakeEvent([]Value{1, 5, 4}, 0))
	require.NoError(t, err)
	assert.Equal(t, PdfID(3), got)

	// original untouched
	orig, err := Classify(root, MakeEvent([]Value{1, 5, 4}, 0))
	require.NoError(t, err)
	assert.Equal(t, PdfID(0), orig)

	_, err = CopyWithRelabeling(root, []PdfID{0, 1})
	assert.Error(t, err)
	_, err = CopyWithRelabeling(root, []PdfID{0, NoPdf, 1, 2})
	assert.Error(t, err)
}

func TestRenumber(t *testing.T) {
	root := NewSplit(0, []Value{1},
		NewSplit(1, []Value{2}, NewLeaf(5), NewLeaf(2)),
		NewSplit(1, []Value{2}, NewLeaf(5), NewLeaf(9)),
	)
	out, mapping, n, err := Renumber(root)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, mapping, 10)
	assert.Equal(t, PdfID(0), mapping[5])
	assert.Equal(t, PdfID(1), mapping[2])
	assert.Equal(t, PdfID(2), mapping[9])
	assert.Equal(t, NoPdf, mapping[0])
	assert.Equal(t, []PdfID{0, 1, 2}, Leaves(out))
	assert.Equal(t, PdfID(2), MaxAnswer(out))
}

func TestCollapse(t *testing.T) {
	root := NewSplit(PdfClassKey, []Value{0},
		NewSplit(0, []Value{1}, NewLeaf(4), NewLeaf(4)),
		NewLeaf(6),
	)
	out := Collapse(root)
	s, ok := out.(*Split)
	require.True(t, ok)
	assert.Equal(t, NewLeaf(4), s.Yes)
	assert.Equal(t, 2, NumLeaves(out))

	assert.Equal(t, NewLeaf(1), Collapse(NewSplit(0, []Value{1}, NewLeaf(1), NewLeaf(1))))
}

func TestPartialEvaluation(t *testing.T) {
	root := NewSplit(PdfClassKey, []Value{0},
		NewLeaf(7),
		NewSplit(0, []Value{1}, NewLeaf(8), NewLeaf(9)),
	)
	ans, ok := LeafAnswerIgnoring(root, PdfClassKey, 0)
	assert.True(t, ok)
	assert.Equal(t, PdfID(7), ans)

	_, ok = LeafAnswerIgnoring(root, PdfClassKey, 1)
	assert.False(t, ok)

	ans, err := PartialClassify(root, Event{{Key: PdfClassKey, Value: 1}, {Key: 0, Value: 3}})
	require.NoError(t, err)
	assert.Equal(t, PdfID(9), ans)

	_, err = PartialClassify(root, Event{{Key: PdfClassKey, Value: 1}})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestNewValidates(t *testing.T) {
	_, err := New(3, 3, NewLeaf(0))
	assert.Error(t, err)
	_, err = New(0, 0, NewLeaf(0))
	assert.Error(t, err)
	_, err = New(3, 1, NewSplit(4, []Value{1}, NewLeaf(0), NewLeaf(1)))
	assert.Error(t, err)
	_, err = New(3, 1, nil)
	assert.Error(t, err)
}

func TestClassifyContext(t *testing.T) {
	cd := sampleCD(t)

	tests := []struct {
		name   string
		window []Value
		class  int32
		want   PdfID
	}{
		{"word start", []Value{0, 5, 3}, 0, 1},
		{"word end", []Value{1, 5, 0}, 0, 0},
		{"right boundary takes no branch", []Value{1, 5, 0}, 1, 3},
		{"right context", []Value{0, 5, 3}, 1, 2},
		{"unbound centre", []Value{2, 0, 3}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cd.ClassifyContext(tt.window, tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			direct, err := Classify(cd.Root, MakeEvent(tt.window, tt.class))
			require.NoError(t, err)
			assert.Equal(t, direct, got)
		})
	}

	_, err := cd.ClassifyContext([]Value{1, 5}, 0)
	assert.ErrorIs(t, err, ErrWindowWidth)

	assert.Equal(t, 4, cd.NumPdfs())
	_, ok := cd.ConstantAnswer(0)
	assert.False(t, ok)
}

func TestCodecRoundTrip(t *testing.T) {
	cd := sampleCD(t)
	inputs := []struct {
		window []Value
		class  int32
	}{
		{[]Value{1, 5, 4}, 0},
		{[]Value{7, 5, 4}, 0},
		{[]Value{7, 5, 3}, 1},
		{[]Value{2, 5, 9}, 2},
	}
	for _, binary := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, cd.Save(&buf, binary))
		got, err := Load(&buf)
		require.NoError(t, err, "binary=%v", binary)
		assert.Equal(t, cd.ContextWidth, got.ContextWidth)
		assert.Equal(t, cd.CentralPosition, got.CentralPosition)
		for _, in := range inputs {
			want, err := cd.ClassifyContext(in.window, in.class)
			require.NoError(t, err)
			have, err := got.ClassifyContext(in.window, in.class)
			require.NoError(t, err)
			assert.Equal(t, want, have, "binary=%v window=%v", binary, in.window)
		}
	}
}

func TestCodecTextFormat(t *testing.T) {
	cd, err := New(3, 1, NewSplit(PdfClassKey, []Value{0}, NewLeaf(0), NewLeaf(1)))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, cd.Save(&buf, false))
	want := "<ContextDependency> <ContextWidth> 3 <CentralPosition> 1 <ToPdf> \n" +
		"SPLIT -1 [ 0 ] LEAF 0 LEAF 1 \n" +
		"</ContextDependency> \n"
	assert.Equal(t, want, buf.String())
}

func TestCodecFileRoundTrip(t *testing.T) {
	cd := sampleCD(t)
	path := t.TempDir() + "/tree"
	require.NoError(t, cd.SaveFile(path, true))
	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cd, got)
}

func TestCodecErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unsorted yes-set", "<ContextDependency> <ContextWidth> 3 <CentralPosition> 1 <ToPdf> SPLIT 0 [ 2 1 ] LEAF 0 LEAF 1 </ContextDependency>"},
		{"key outside window", "<ContextDependency> <ContextWidth> 3 <CentralPosition> 1 <ToPdf> SPLIT 5 [ 1 ] LEAF 0 LEAF 1 </ContextDependency>"},
		{"bad node", "<ContextDependency> <ContextWidth> 3 <CentralPosition> 1 <ToPdf> NODE 0 </ContextDependency>"},
		{"central outside window", "<ContextDependency> <ContextWidth> 3 <CentralPosition> 3 <ToPdf> LEAF 0 </ContextDependency>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, kio.ErrFormat)
		})
	}

	_, err := Load(strings.NewReader("<ContextDependency> <ContextWidth> 3"))
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	root := NewSplit(0, []Value{1, 2}, NewLeaf(0), NewLeaf(1))
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, root, DumpOptions{}))
	assert.Equal(t, "Y:0 [1 2]\n  A:0\n  A:1\n", buf.String())

	buf.Reset()
	names := map[Value]string{1: "a", 2: "i"}
	err := Dump(&buf, root, DumpOptions{
		QuestionName: func(KeyID, []Value) string { return "L-vowel" },
		ValueName:    func(_ KeyID, v Value) string { return names[v] },
	})
	require.NoError(t, err)
	assert.Equal(t, "Y:0 [a i] L-vowel\n  A:0\n  A:1\n", buf.String())
}
