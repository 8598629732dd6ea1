// Package kio implements the token streams used by every on-disk object:
// trees, question sets, statistics, pdf maps and archive payloads.
//
// A stream is either text (whitespace separated tokens, vectors written as
// "[ a b c ]") or binary. Binary streams start with the two-byte header
// "\x00B"; readers detect the mode from that header so a single --binary
// switch on the writing side is enough.
package kio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrFormat is wrapped by every parse failure.
var ErrFormat = errors.New("kio: malformed stream")

// maxPrealloc bounds the capacity reserved for a length prefix before any
// of its elements has been read.
const maxPrealloc = 1024

// Prealloc is the initial capacity for a sequence whose length n was read
// from a stream. Readers append past it, so a corrupt prefix costs no more
// memory than the data actually present.
func Prealloc(n int32) int {
	return min(int(max(n, 0)), maxPrealloc)
}

// BinaryHeader prefixes every binary stream.
const BinaryHeader = "\x00B"

const (
	sizeInt32   = 4
	sizeFloat64 = 8
)

// Writer emits tokens in text or binary mode. Errors are sticky and
// reported by Flush.
type Writer struct {
	w      *bufio.Writer
	binary bool
	err    error
}

// NewWriter returns a Writer; in binary mode the header is written
// immediately.
func NewWriter(w io.Writer, binaryMode bool) *Writer {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	kw := &Writer{w: bw, binary: binaryMode}
	if binaryMode {
		kw.write([]byte(BinaryHeader))
	}
	return kw
}

// Binary reports the write mode.
func (w *Writer) Binary() bool { return w.binary }

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// Token writes a single whitespace-free token.
func (w *Writer) Token(tok string) {
	if tok == "" || strings.ContainsAny(tok, " \t\n\r") {
		if w.err == nil {
			w.err = fmt.Errorf("%w: invalid token %q", ErrFormat, tok)
		}
		return
	}
	w.write([]byte(tok))
	w.write([]byte{' '})
}

// Int32 writes an integer.
func (w *Writer) Int32(v int32) {
	if w.binary {
		var buf [1 + sizeInt32]byte
		buf[0] = sizeInt32
		binary.LittleEndian.PutUint32(buf[1:], uint32(v))
		w.write(buf[:])
		return
	}
	w.write([]byte(strconv.FormatInt(int64(v), 10)))
	w.write([]byte{' '})
}

// Float64 writes a floating point value.
func (w *Writer) Float64(v float64) {
	if w.binary {
		var buf [1 + sizeFloat64]byte
		buf[0] = sizeFloat64
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v))
		w.write(buf[:])
		return
	}
	w.write([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
	w.write([]byte{' '})
}

// Int32Vector writes a length-prefixed vector (binary) or "[ ... ]" (text).
func (w *Writer) Int32Vector(v []int32) {
	if w.binary {
		w.Int32(int32(len(v)))
		for _, x := range v {
			w.Int32(x)
		}
		return
	}
	w.write([]byte("[ "))
	for _, x := range v {
		w.Int32(x)
	}
	w.write([]byte("] "))
}

// Float64Vector writes a length-prefixed vector (binary) or "[ ... ]" (text).
func (w *Writer) Float64Vector(v []float64) {
	if w.binary {
		w.Int32(int32(len(v)))
		for _, x := range v {
			w.Float64(x)
		}
		return
	}
	w.write([]byte("[ "))
	for _, x := range v {
		w.Float64(x)
	}
	w.write([]byte("] "))
}

// Newline ends a line in text mode; binary streams ignore it.
func (w *Writer) Newline() {
	if !w.binary {
		w.write([]byte{'\n'})
	}
}

// Flush writes buffered data and returns the first error seen.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// Reader consumes a token stream.
type Reader struct {
	r      *bufio.Reader
	binary bool
	peeked *string
}

// NewReader detects the stream mode from the header.
func NewReader(r io.Reader) (*Reader, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	head, err := br.Peek(len(BinaryHeader))
	if err == nil && string(head) == BinaryHeader {
		if _, err := br.Discard(len(BinaryHeader)); err != nil {
			return nil, err
		}
		return &Reader{r: br, binary: true}, nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &Reader{r: br}, nil
}

// Binary reports the detected mode.
func (r *Reader) Binary() bool { return r.binary }

func (r *Reader) skipSpace() error {
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return err
		}
		if !isSpace(b) {
			return r.r.UnreadByte()
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// word reads the next whitespace-delimited word (text) or the next
// space-terminated token (binary).
func (r *Reader) word() (string, error) {
	if r.peeked != nil {
		w := *r.peeked
		r.peeked = nil
		return w, nil
	}
	if !r.binary {
		if err := r.skipSpace(); err != nil {
			return "", unexpectedEOF(err)
		}
	}
	var sb strings.Builder
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", unexpectedEOF(err)
		}
		if isSpace(b) {
			if sb.Len() == 0 && r.binary {
				return "", fmt.Errorf("%w: empty token", ErrFormat)
			}
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Token reads the next token.
func (r *Reader) Token() (string, error) {
	return r.word()
}

// PeekToken returns the next token without consuming it.
func (r *Reader) PeekToken() (string, error) {
	if r.peeked != nil {
		return *r.peeked, nil
	}
	w, err := r.word()
	if err != nil {
		return "", err
	}
	r.peeked = &w
	return w, nil
}

// ExpectToken fails unless the next token equals want.
func (r *Reader) ExpectToken(want string) error {
	got, err := r.Token()
	if err != nil {
		return fmt.Errorf("expecting %s: %w", want, err)
	}
	if got != want {
		return fmt.Errorf("%w: expected %s, got %q", ErrFormat, want, got)
	}
	return nil
}

func (r *Reader) sized(size byte) ([]byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if b != size {
		return nil, fmt.Errorf("%w: expected %d-byte value, size marker is %d", ErrFormat, size, b)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, unexpectedEOF(err)
	}
	return buf, nil
}

// Int32 reads an integer.
func (r *Reader) Int32() (int32, error) {
	if r.binary {
		buf, err := r.sized(sizeInt32)
		if err != nil {
			return 0, err
		}
		return int32(binary.LittleEndian.Uint32(buf)), nil
	}
	w, err := r.word()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(w, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad integer %q", ErrFormat, w)
	}
	return int32(v), nil
}

// Float64 reads a floating point value.
func (r *Reader) Float64() (float64, error) {
	if r.binary {
		buf, err := r.sized(sizeFloat64)
		if err != nil {
			return 0, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	}
	w, err := r.word()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad float %q", ErrFormat, w)
	}
	return v, nil
}

// Int32Vector reads a vector written by Writer.Int32Vector.
func (r *Reader) Int32Vector() ([]int32, error) {
	if r.binary {
		n, err := r.Int32()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative vector length %d", ErrFormat, n)
		}
		v := make([]int32, 0, Prealloc(n))
		for i := int32(0); i < n; i++ {
			x, err := r.Int32()
			if err != nil {
				return nil, err
			}
			v = append(v, x)
		}
		return v, nil
	}
	if err := r.ExpectToken("["); err != nil {
		return nil, err
	}
	v := []int32{}
	for {
		w, err := r.word()
		if err != nil {
			return nil, err
		}
		if w == "]" {
			return v, nil
		}
		x, err := strconv.ParseInt(w, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad vector element %q", ErrFormat, w)
		}
		v = append(v, int32(x))
	}
}

// Float64Vector reads a vector written by Writer.Float64Vector.
func (r *Reader) Float64Vector() ([]float64, error) {
	if r.binary {
		n, err := r.Int32()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative vector length %d", ErrFormat, n)
		}
		v := make([]float64, 0, Prealloc(n))
		for i := int32(0); i < n; i++ {
			x, err := r.Float64()
			if err != nil {
				return nil, err
			}
			v = append(v, x)
		}
		return v, nil
	}
	if err := r.ExpectToken("["); err != nil {
		return nil, err
	}
	v := []float64{}
	for {
		w, err := r.word()
		if err != nil {
			return nil, err
		}
		if w == "]" {
			return v, nil
		}
		x, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad vector element %q", ErrFormat, w)
		}
		v = append(v, x)
	}
}

// AtEOF reports whether only whitespace remains (text) or nothing remains
// (binary).
func (r *Reader) AtEOF() bool {
	if r.peeked != nil {
		return false
	}
	if !r.binary {
		if err := r.skipSpace(); err != nil {
			return true
		}
	}
	_, err := r.r.Peek(1)
	return err != nil
}
