package main

import (
	"fmt"
	"os"

	"github.com/ieee0824/phonetree/internal/kio"
	"github.com/ieee0824/phonetree/tree"
)

// loadTree reads a context-dependency tree; "-" reads standard input.
func loadTree(path string) (*tree.ContextDependency, error) {
	if path == "-" {
		return tree.Load(os.Stdin)
	}
	return tree.LoadFile(path)
}

// classifyFrames maps full-context frames to pdf-ids. The last element of
// every frame is the pdf-class; the others form the phone window.
func classifyFrames(cd *tree.ContextDependency, frames [][]int32) ([]int32, error) {
	pdfs := make([]int32, len(frames))
	for i, frame := range frames {
		if len(frame) < 2 {
			return nil, fmt.Errorf("frame %d: need a phone window and a pdf-class, got %v", i, frame)
		}
		window := make([]tree.Value, len(frame)-1)
		for j, v := range frame[:len(frame)-1] {
			window[j] = tree.Value(v)
		}
		pdfClass := frame[len(frame)-1]
		pdf, err := cd.ClassifyContext(window, pdfClass)
		if err != nil {
			return nil, fmt.Errorf("frame %d: no answer for pdf-class %d, context window %v: %w", i, pdfClass, window, err)
		}
		pdfs[i] = int32(pdf)
	}
	return pdfs, nil
}

func saveVector(path string, v []float64, binary bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	kw := kio.NewWriter(f, binary)
	kw.Float64Vector(v)
	kw.Newline()
	if err := kw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
