// Package archive stores utterance-keyed records: alignments, full-context
// alignments and posteriors. Two backends exist, selected by a specifier:
//
//	ark:PATH     token-stream archive ("-" is stdin/stdout); a bare path means the same
//	sqlite:PATH  SQLite table records(key TEXT PRIMARY KEY, value BLOB)
//
// Writers hold an exclusive lock on PATH.lock for their lifetime.
package archive

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSpecifier is returned for an unusable archive specifier.
var ErrSpecifier = errors.New("archive: bad specifier")

// Kind selects the backend.
type Kind int

const (
	KindArk Kind = iota
	KindSQLite
)

func (k Kind) String() string {
	switch k {
	case KindArk:
		return "ark"
	case KindSQLite:
		return "sqlite"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Spec is a parsed archive specifier.
type Spec struct {
	Kind Kind
	Path string
}

// Stdio reports whether the archive is stdin or stdout.
func (s Spec) Stdio() bool { return s.Kind == KindArk && s.Path == "-" }

func (s Spec) String() string { return s.Kind.String() + ":" + s.Path }

// Parse interprets an archive specifier.
func Parse(spec string) (Spec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Spec{}, fmt.Errorf("%w: empty", ErrSpecifier)
	}
	prefix, path, found := strings.Cut(spec, ":")
	if !found {
		return Spec{Kind: KindArk, Path: spec}, nil
	}
	var kind Kind
	switch prefix {
	case "ark":
		kind = KindArk
	case "sqlite":
		kind = KindSQLite
	default:
		return Spec{}, fmt.Errorf("%w: unknown archive type %q in %q", ErrSpecifier, prefix, spec)
	}
	if path == "" {
		return Spec{}, fmt.Errorf("%w: missing path in %q", ErrSpecifier, spec)
	}
	if kind == KindSQLite && path == "-" {
		return Spec{}, fmt.Errorf("%w: sqlite archives cannot use stdio", ErrSpecifier)
	}
	return Spec{Kind: kind, Path: path}, nil
}

// SequentialReader iterates over the records of an archive in order.
//
//	for r.Next() {
//		use(r.Key(), r.Value())
//	}
//	if err := r.Err(); err != nil { ... }
type SequentialReader[T any] interface {
	Next() bool
	Key() string
	Value() T
	Err() error
	Close() error
}

// RandomAccessReader looks records up by key. A missing key is reported
// through the boolean, not as an error.
type RandomAccessReader[T any] interface {
	Value(key string) (T, bool, error)
	Close() error
}

// Writer appends records to an archive.
type Writer[T any] interface {
	Write(key string, value T) error
	Close() error
}

// OpenSequential opens spec for sequential reading.
func OpenSequential[T any](spec string, codec Codec[T]) (SequentialReader[T], error) {
	s, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if s.Kind == KindSQLite {
		r, err := openSQLiteSequential(s.Path, codec)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := openArkSequential(s.Path, codec)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// OpenRandomAccess opens spec for keyed lookup.
func OpenRandomAccess[T any](spec string, codec Codec[T]) (RandomAccessReader[T], error) {
	s, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if s.Kind == KindSQLite {
		r, err := openSQLiteRandomAccess(s.Path, codec)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := openArkRandomAccess(s.Path, codec)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create opens spec for writing, truncating an existing archive. binary
// selects the payload encoding of ark archives; sqlite values are always
// binary.
func Create[T any](spec string, codec Codec[T], binary bool) (Writer[T], error) {
	s, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if s.Kind == KindSQLite {
		w, err := createSQLite(s.Path, codec)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	w, err := createArk(s.Path, codec, binary)
	if err != nil {
		return nil, err
	}
	return w, nil
}
