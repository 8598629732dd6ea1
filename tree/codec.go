package tree

import (
	"fmt"
	"io"
	"os"

	"github.com/ieee0824/phonetree/internal/kio"
)

const (
	tokSplit = "SPLIT"
	tokLeaf  = "LEAF"

	// maxDepth bounds recursion when reading untrusted files.
	maxDepth = 100000
)

// Write serializes the context dependency: header, then the tree in
// pre-order (split: key, yes-set, yes subtree, no subtree; leaf: marker
// and answer).
func (cd *ContextDependency) Write(w *kio.Writer) {
	w.Token("<ContextDependency>")
	w.Token("<ContextWidth>")
	w.Int32(cd.ContextWidth)
	w.Token("<CentralPosition>")
	w.Int32(cd.CentralPosition)
	w.Token("<ToPdf>")
	w.Newline()
	WriteNode(w, cd.Root)
	w.Newline()
	w.Token("</ContextDependency>")
	w.Newline()
}

// WriteNode writes a subtree in pre-order.
func WriteNode(w *kio.Writer, n Node) {
	switch node := n.(type) {
	case *Leaf:
		w.Token(tokLeaf)
		w.Int32(int32(node.Answer))
	case *Split:
		w.Token(tokSplit)
		w.Int32(int32(node.Key))
		yes := make([]int32, len(node.YesSet))
		for i, v := range node.YesSet {
			yes[i] = int32(v)
		}
		w.Int32Vector(yes)
		WriteNode(w, node.Yes)
		WriteNode(w, node.No)
	}
}

// Read parses a context dependency written by Write.
func Read(r *kio.Reader) (*ContextDependency, error) {
	if err := r.ExpectToken("<ContextDependency>"); err != nil {
		return nil, err
	}
	if err := r.ExpectToken("<ContextWidth>"); err != nil {
		return nil, err
	}
	width, err := r.Int32()
	if err != nil {
		return nil, fmt.Errorf("context width: %w", err)
	}
	if err := r.ExpectToken("<CentralPosition>"); err != nil {
		return nil, err
	}
	central, err := r.Int32()
	if err != nil {
		return nil, fmt.Errorf("central position: %w", err)
	}
	if err := r.ExpectToken("<ToPdf>"); err != nil {
		return nil, err
	}
	root, err := ReadNode(r)
	if err != nil {
		return nil, err
	}
	if err := r.ExpectToken("</ContextDependency>"); err != nil {
		return nil, err
	}
	cd, err := New(width, central, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kio.ErrFormat, err)
	}
	return cd, nil
}

// ReadNode parses a subtree written by WriteNode.
func ReadNode(r *kio.Reader) (Node, error) {
	return readNode(r, 0)
}

func readNode(r *kio.Reader, depth int) (Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: tree deeper than %d", kio.ErrFormat, maxDepth)
	}
	tok, err := r.Token()
	if err != nil {
		return nil, fmt.Errorf("read node: %w", err)
	}
	switch tok {
	case tokLeaf:
		ans, err := r.Int32()
		if err != nil {
			return nil, fmt.Errorf("leaf answer: %w", err)
		}
		return NewLeaf(PdfID(ans)), nil
	case tokSplit:
		key, err := r.Int32()
		if err != nil {
			return nil, fmt.Errorf("split key: %w", err)
		}
		raw, err := r.Int32Vector()
		if err != nil {
			return nil, fmt.Errorf("split yes-set: %w", err)
		}
		yesSet := make([]Value, len(raw))
		for i, v := range raw {
			yesSet[i] = Value(v)
			if i > 0 && yesSet[i] <= yesSet[i-1] {
				return nil, fmt.Errorf("%w: yes-set of key %d not sorted and unique", kio.ErrFormat, key)
			}
		}
		yes, err := readNode(r, depth+1)
		if err != nil {
			return nil, err
		}
		no, err := readNode(r, depth+1)
		if err != nil {
			return nil, err
		}
		return &Split{Key: KeyID(key), YesSet: yesSet, Yes: yes, No: no}, nil
	}
	return nil, fmt.Errorf("%w: expected %s or %s, got %q", kio.ErrFormat, tokSplit, tokLeaf, tok)
}

// Save writes cd to w in the requested mode.
func (cd *ContextDependency) Save(w io.Writer, binary bool) error {
	kw := kio.NewWriter(w, binary)
	cd.Write(kw)
	return kw.Flush()
}

// Load reads a context dependency from r, detecting the mode.
func Load(r io.Reader) (*ContextDependency, error) {
	kr, err := kio.NewReader(r)
	if err != nil {
		return nil, err
	}
	return Read(kr)
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*ContextDependency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cd, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", path, err)
	}
	return cd, nil
}

// SaveFile writes cd to path.
func (cd *ContextDependency) SaveFile(path string, binary bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cd.Save(f, binary); err != nil {
		f.Close()
		return fmt.Errorf("write tree %s: %w", path, err)
	}
	return f.Close()
}
