package tree

import (
	"errors"
	"fmt"
)

// ErrWindowWidth is returned when a phone window does not match the context width.
var ErrWindowWidth = errors.New("tree: phone window length differs from context width")

// ContextDependency pairs a classification tree with the shape of its
// phone window. It is the entry point used at alignment and graph
// construction time.
type ContextDependency struct {
	ContextWidth    int32 // N, e.g. 3 for triphones
	CentralPosition int32 // P, index of the modeled phone in the window
	Root            Node
}

// New validates the window shape and the keys used by root.
func New(width, central int32, root Node) (*ContextDependency, error) {
	if width <= 0 {
		return nil, fmt.Errorf("context width must be positive, got %d", width)
	}
	if central < 0 || central >= width {
		return nil, fmt.Errorf("central position %d outside window of width %d", central, width)
	}
	if root == nil {
		return nil, errors.New("context dependency requires a tree")
	}
	var bad error
	Walk(root, func(n Node) {
		s, ok := n.(*Split)
		if !ok || bad != nil {
			return
		}
		if s.Key != PdfClassKey && (s.Key < 0 || int32(s.Key) >= width) {
			bad = fmt.Errorf("split key %d outside window of width %d", s.Key, width)
		}
	})
	if bad != nil {
		return nil, bad
	}
	return &ContextDependency{ContextWidth: width, CentralPosition: central, Root: root}, nil
}

// ClassifyContext maps a phone window and pdf-class to a pdf-id. Every
// window position is bound, including phone 0 at utterance boundaries,
// which answers "no" to any context question that does not list it.
func (cd *ContextDependency) ClassifyContext(window []Value, pdfClass int32) (PdfID, error) {
	if len(window) != int(cd.ContextWidth) {
		return NoPdf, fmt.Errorf("%w: got %d, want %d", ErrWindowWidth, len(window), cd.ContextWidth)
	}
	return Classify(cd.Root, MakeEvent(window, pdfClass))
}

// ConstantAnswer returns the pdf-id shared by every context with the given
// pdf-class, if there is one.
func (cd *ContextDependency) ConstantAnswer(pdfClass int32) (PdfID, bool) {
	return LeafAnswerIgnoring(cd.Root, PdfClassKey, Value(pdfClass))
}

// NumPdfs is one more than the largest leaf answer.
func (cd *ContextDependency) NumPdfs() int {
	return int(MaxAnswer(cd.Root)) + 1
}
