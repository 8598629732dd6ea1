package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofrs/flock"

	"github.com/ieee0824/phonetree/internal/kio"
)

// ark archives hold one record after another:
//
//	text:   <key> <payload>\n
//	binary: <key> \x00B<payload>

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("archive: invalid key %q", key)
	}
	return nil
}

func lockArchive(path string) (*flock.Flock, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("archive %s is being written by another process", path)
	}
	return lock, nil
}

type arkWriter[T any] struct {
	path   string
	file   *os.File // nil for stdout
	bw     *bufio.Writer
	codec  Codec[T]
	binary bool
	lock   *flock.Flock
}

func createArk[T any](path string, codec Codec[T], binary bool) (*arkWriter[T], error) {
	w := &arkWriter[T]{path: path, codec: codec, binary: binary}
	if path == "-" {
		w.bw = bufio.NewWriter(os.Stdout)
		return w, nil
	}
	lock, err := lockArchive(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("create archive: %w", err)
	}
	w.file, w.bw, w.lock = f, bufio.NewWriter(f), lock
	return w, nil
}

func (w *arkWriter[T]) Write(key string, value T) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(key + " "); err != nil {
		return err
	}
	kw := kio.NewWriter(w.bw, w.binary)
	w.codec.Write(kw, value)
	if !w.binary {
		kw.Newline()
	}
	if err := kw.Flush(); err != nil {
		return fmt.Errorf("write %s record %q: %w", w.codec.Name, key, err)
	}
	return nil
}

func (w *arkWriter[T]) Close() error {
	err := w.bw.Flush()
	if w.file != nil {
		err = errors.Join(err, w.file.Close())
	}
	if w.lock != nil {
		err = errors.Join(err, w.lock.Unlock())
	}
	return err
}

type arkReader[T any] struct {
	path  string
	file  *os.File // nil for stdin
	br    *bufio.Reader
	codec Codec[T]
	key   string
	value T
	err   error
}

func openArkSequential[T any](path string, codec Codec[T]) (*arkReader[T], error) {
	r := &arkReader[T]{path: path, codec: codec}
	if path == "-" {
		r.br = bufio.NewReader(os.Stdin)
		return r, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	r.file, r.br = f, bufio.NewReader(f)
	return r, nil
}

func (r *arkReader[T]) Next() bool {
	if r.err != nil {
		return false
	}
	key, err := r.readKey()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("%s: %w", r.path, err)
		}
		return false
	}
	value, err := r.readValue()
	if err != nil {
		r.err = fmt.Errorf("%s: record %q: %w", r.path, key, err)
		return false
	}
	r.key, r.value = key, value
	return true
}

// readKey returns io.EOF only at a clean record boundary.
func (r *arkReader[T]) readKey() (string, error) {
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			return "", err
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			if err := r.br.UnreadByte(); err != nil {
				return "", err
			}
			break
		}
	}
	key, err := r.br.ReadString(' ')
	if err != nil {
		return "", fmt.Errorf("%w: truncated key %q", kio.ErrFormat, key)
	}
	key = strings.TrimSuffix(key, " ")
	if err := validKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", kio.ErrFormat, err)
	}
	return key, nil
}

func (r *arkReader[T]) readValue() (T, error) {
	var zero T
	head, _ := r.br.Peek(len(kio.BinaryHeader))
	if string(head) == kio.BinaryHeader {
		kr, err := kio.NewReader(r.br)
		if err != nil {
			return zero, err
		}
		return r.codec.Read(kr)
	}
	line, err := r.br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return zero, err
	}
	kr, err := kio.NewReader(strings.NewReader(line))
	if err != nil {
		return zero, err
	}
	v, err := r.codec.Read(kr)
	if err != nil {
		return zero, err
	}
	if !kr.AtEOF() {
		return zero, fmt.Errorf("%w: trailing data after %s", kio.ErrFormat, r.codec.Name)
	}
	return v, nil
}

func (r *arkReader[T]) Key() string { return r.key }
func (r *arkReader[T]) Value() T    { return r.value }
func (r *arkReader[T]) Err() error  { return r.err }

func (r *arkReader[T]) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// arkTable answers keyed lookups from an archive read fully at open time.
type arkTable[T any] struct {
	records map[string]T
}

func openArkRandomAccess[T any](path string, codec Codec[T]) (*arkTable[T], error) {
	r, err := openArkSequential(path, codec)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	t := &arkTable[T]{records: make(map[string]T)}
	for r.Next() {
		t.records[r.Key()] = r.Value()
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *arkTable[T]) Value(key string) (T, bool, error) {
	v, ok := t.records[key]
	return v, ok, nil
}

func (t *arkTable[T]) Close() error { return nil }
