// Package tree implements the phonetic-context classification tree: a
// binary decision structure mapping a context vector (phones in a fixed
// window plus an HMM pdf-class) to a pdf-id, together with relabeling,
// renumbering, partial evaluation and the leaf-clustering shrink pass.
package tree

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMissingKey is returned when a split asks about a key the event does not bind.
	ErrMissingKey = errors.New("tree: context vector lacks key")
	// ErrNotASplitNode is returned by Children on a leaf.
	ErrNotASplitNode = errors.New("tree: not a split node")
)

// Node is either a *Split or a *Leaf.
type Node interface {
	isNode()
}

// Split routes an event to Yes when the value of Key is in YesSet, to No otherwise.
// YesSet is sorted and free of duplicates.
type Split struct {
	Key    KeyID
	YesSet []Value
	Yes    Node
	No     Node
}

// Leaf holds a constant answer.
type Leaf struct {
	Answer PdfID
}

func (*Split) isNode() {}
func (*Leaf) isNode()  {}

// NewSplit builds a split node, sorting and deduplicating the yes-set.
func NewSplit(key KeyID, yesSet []Value, yes, no Node) *Split {
	return &Split{Key: key, YesSet: SortedSet(yesSet), Yes: yes, No: no}
}

// NewLeaf builds a leaf node.
func NewLeaf(answer PdfID) *Leaf {
	return &Leaf{Answer: answer}
}

// SortedSet returns a sorted copy of values with duplicates removed.
func SortedSet(values []Value) []Value {
	out := make([]Value, len(values))
	copy(out, values)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}

// Contains reports whether v is in the yes-set.
func (s *Split) Contains(v Value) bool {
	i := sort.Search(len(s.YesSet), func(i int) bool { return s.YesSet[i] >= v })
	return i < len(s.YesSet) && s.YesSet[i] == v
}

// Classify walks from root to a leaf, answering each split from ev.
func Classify(root Node, ev Event) (PdfID, error) {
	n := root
	for {
		switch node := n.(type) {
		case *Leaf:
			return node.Answer, nil
		case *Split:
			v, ok := ev.Lookup(node.Key)
			if !ok {
				return NoPdf, fmt.Errorf("%w %d in %s", ErrMissingKey, node.Key, ev)
			}
			if node.Contains(v) {
				n = node.Yes
			} else {
				n = node.No
			}
		default:
			return NoPdf, fmt.Errorf("tree: unexpected node type %T", n)
		}
	}
}

// PartialClassify is Classify for events that leave some keys unbound on
// purpose. A split on an unbound key resolves only when both of its
// subtrees resolve to the same answer.
func PartialClassify(root Node, ev Event) (PdfID, error) {
	ans, missing, ok := partial(root, ev)
	if !ok {
		return NoPdf, fmt.Errorf("%w %d in %s", ErrMissingKey, missing, ev)
	}
	return ans, nil
}

func partial(n Node, ev Event) (PdfID, KeyID, bool) {
	switch node := n.(type) {
	case *Leaf:
		return node.Answer, 0, true
	case *Split:
		if v, ok := ev.Lookup(node.Key); ok {
			if node.Contains(v) {
				return partial(node.Yes, ev)
			}
			return partial(node.No, ev)
		}
		yes, k, ok := partial(node.Yes, ev)
		if !ok {
			return NoPdf, k, false
		}
		no, k, ok := partial(node.No, ev)
		if !ok {
			return NoPdf, k, false
		}
		if yes != no {
			return NoPdf, node.Key, false
		}
		return yes, 0, true
	}
	return NoPdf, 0, false
}

// LeafAnswerIgnoring evaluates the tree with only key bound to value. It
// reports false when the answer depends on any other key.
func LeafAnswerIgnoring(root Node, key KeyID, value Value) (PdfID, bool) {
	ans, _, ok := partial(root, Event{{Key: key, Value: value}})
	return ans, ok
}

// Children returns the yes and no subtrees of a split.
func Children(n Node) ([2]Node, error) {
	s, ok := n.(*Split)
	if !ok {
		return [2]Node{}, fmt.Errorf("%w (%T)", ErrNotASplitNode, n)
	}
	return [2]Node{s.Yes, s.No}, nil
}

// Walk visits nodes in pre-order, yes subtree before no subtree.
func Walk(n Node, fn func(Node)) {
	fn(n)
	if s, ok := n.(*Split); ok {
		Walk(s.Yes, fn)
		Walk(s.No, fn)
	}
}

// Leaves returns the distinct leaf answers in ascending order.
func Leaves(n Node) []PdfID {
	seen := map[PdfID]struct{}{}
	Walk(n, func(n Node) {
		if l, ok := n.(*Leaf); ok {
			seen[l.Answer] = struct{}{}
		}
	})
	out := make([]PdfID, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NumLeaves counts distinct leaf answers.
func NumLeaves(n Node) int {
	return len(Leaves(n))
}

// MaxAnswer returns the largest leaf answer, or NoPdf for a tree without leaves.
func MaxAnswer(n Node) PdfID {
	top := NoPdf
	Walk(n, func(n Node) {
		if l, ok := n.(*Leaf); ok && l.Answer > top {
			top = l.Answer
		}
	})
	return top
}

// CopyWithRelabeling returns a structurally identical tree whose leaf
// answers are passed through mapping.
func CopyWithRelabeling(n Node, mapping []PdfID) (Node, error) {
	switch node := n.(type) {
	case *Leaf:
		if node.Answer < 0 || int(node.Answer) >= len(mapping) {
			return nil, fmt.Errorf("relabel: leaf %d outside mapping of size %d", node.Answer, len(mapping))
		}
		to := mapping[node.Answer]
		if to == NoPdf {
			return nil, fmt.Errorf("relabel: leaf %d has no mapping", node.Answer)
		}
		return NewLeaf(to), nil
	case *Split:
		yes, err := CopyWithRelabeling(node.Yes, mapping)
		if err != nil {
			return nil, err
		}
		no, err := CopyWithRelabeling(node.No, mapping)
		if err != nil {
			return nil, err
		}
		yesSet := make([]Value, len(node.YesSet))
		copy(yesSet, node.YesSet)
		return &Split{Key: node.Key, YesSet: yesSet, Yes: yes, No: no}, nil
	}
	return nil, fmt.Errorf("relabel: unexpected node type %T", n)
}

// Renumber relabels leaves densely from 0 in pre-order of first
// appearance. It returns the new tree, the old-to-new mapping (indexed by
// old answer, NoPdf where the old id does not occur) and the leaf count.
// Negative leaf answers are an error.
func Renumber(n Node) (Node, []PdfID, int, error) {
	mapping := make([]PdfID, MaxAnswer(n)+1)
	for i := range mapping {
		mapping[i] = NoPdf
	}
	next := PdfID(0)
	Walk(n, func(n Node) {
		if l, ok := n.(*Leaf); ok && l.Answer >= 0 && mapping[l.Answer] == NoPdf {
			mapping[l.Answer] = next
			next++
		}
	})
	out, err := CopyWithRelabeling(n, mapping)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("renumber: %w", err)
	}
	return out, mapping, int(next), nil
}

// Collapse replaces every split whose two subtrees are leaves with the same
// answer by that leaf. Classification is unchanged.
func Collapse(n Node) Node {
	s, ok := n.(*Split)
	if !ok {
		return n
	}
	yes := Collapse(s.Yes)
	no := Collapse(s.No)
	ly, okY := yes.(*Leaf)
	ln, okN := no.(*Leaf)
	if okY && okN && ly.Answer == ln.Answer {
		return NewLeaf(ly.Answer)
	}
	return &Split{Key: s.Key, YesSet: s.YesSet, Yes: yes, No: no}
}
