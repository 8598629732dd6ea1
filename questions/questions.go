// Package questions holds the candidate binary partitions of each context
// key that tree growing chooses splits from.
package questions

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ieee0824/phonetree/internal/kio"
	"github.com/ieee0824/phonetree/tree"
)

// ErrUnknownKey is returned when a key has no questions.
var ErrUnknownKey = errors.New("questions: no questions for key")

// ErrParse wraps every keyed-question text error.
var ErrParse = errors.New("questions: parse error")

// RefineOptions are the per-key cluster refinement settings stored
// alongside the questions.
type RefineOptions struct {
	NumIters int32
	TopN     int32
}

// DefaultRefineOptions are used for keys created by AddQuestion.
var DefaultRefineOptions = RefineOptions{NumIters: 5, TopN: 2}

// ForKey is the question list of a single key.
type ForKey struct {
	Questions [][]tree.Value
	Refine    RefineOptions
}

// Set maps keys to their questions.
type Set struct {
	byKey map[tree.KeyID]*ForKey
}

// New returns an empty set.
func New() *Set {
	return &Set{byKey: make(map[tree.KeyID]*ForKey)}
}

// AddQuestion appends a yes-set for key. Values are sorted and deduplicated.
func (s *Set) AddQuestion(key tree.KeyID, values []tree.Value) {
	fk, ok := s.byKey[key]
	if !ok {
		fk = &ForKey{Refine: DefaultRefineOptions}
		s.byKey[key] = fk
	}
	fk.Questions = append(fk.Questions, tree.SortedSet(values))
}

// SetRefineOptions overrides the refinement settings of a key that already
// has questions.
func (s *Set) SetRefineOptions(key tree.KeyID, opts RefineOptions) error {
	fk, ok := s.byKey[key]
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownKey, key)
	}
	fk.Refine = opts
	return nil
}

// QuestionsFor returns the yes-sets registered for key.
func (s *Set) QuestionsFor(key tree.KeyID) ([][]tree.Value, error) {
	fk, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownKey, key)
	}
	return fk.Questions, nil
}

// RefineOptionsFor returns the refinement settings of key.
func (s *Set) RefineOptionsFor(key tree.KeyID) (RefineOptions, error) {
	fk, ok := s.byKey[key]
	if !ok {
		return RefineOptions{}, fmt.Errorf("%w %d", ErrUnknownKey, key)
	}
	return fk.Refine, nil
}

// Keys returns the keys that have questions, in ascending order.
func (s *Set) Keys() []tree.KeyID {
	keys := make([]tree.KeyID, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len is the total number of questions over all keys.
func (s *Set) Len() int {
	n := 0
	for _, fk := range s.byKey {
		n += len(fk.Questions)
	}
	return n
}

// Lookup finds the name of a question, the form used by Name, if key has
// a question with exactly this yes-set.
func (s *Set) Lookup(key tree.KeyID, yesSet []tree.Value) (string, bool) {
	fk, ok := s.byKey[key]
	if !ok {
		return "", false
	}
	for _, q := range fk.Questions {
		if equal(q, yesSet) {
			return Name(key, q), true
		}
	}
	return "", false
}

func equal(a, b []tree.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Name renders a question in the keyed text form, "k ? v1 v2".
func Name(key tree.KeyID, values []tree.Value) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d ?", key)
	for _, v := range values {
		fmt.Fprintf(&sb, " %d", v)
	}
	return sb.String()
}

// ParseKeyed reads keyed questions, one "<key> ? <v1> ... <vn>" per line.
// Every line must have that form; a blank or comment line fails the whole
// parse like any other malformed line.
func ParseKeyed(r io.Reader) (*Set, error) {
	s := New()
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "?" {
			return nil, fmt.Errorf("%w: line %d: expected \"<key> ? <values>\", got %q", ErrParse, lineNum, line)
		}
		key, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad key %q", ErrParse, lineNum, fields[0])
		}
		values := make([]tree.Value, 0, len(fields)-2)
		for _, f := range fields[2:] {
			v, err := strconv.ParseInt(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad value %q", ErrParse, lineNum, f)
			}
			values = append(values, tree.Value(v))
		}
		s.AddQuestion(tree.KeyID(key), values)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseKeyedFile is a convenience wrapper that opens a file path.
func ParseKeyedFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ParseKeyed(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Write serializes the set in ascending key order.
func (s *Set) Write(w *kio.Writer) {
	w.Token("<Questions>")
	w.Newline()
	for _, key := range s.Keys() {
		fk := s.byKey[key]
		w.Token("<Key>")
		w.Int32(int32(key))
		w.Token("<QuestionsForKey>")
		w.Int32(int32(len(fk.Questions)))
		for _, q := range fk.Questions {
			vals := make([]int32, len(q))
			for i, v := range q {
				vals[i] = int32(v)
			}
			w.Int32Vector(vals)
		}
		w.Token("<RefineClustersOptions>")
		w.Token("<NumIters>")
		w.Int32(fk.Refine.NumIters)
		w.Token("<TopN>")
		w.Int32(fk.Refine.TopN)
		w.Token("</RefineClustersOptions>")
		w.Token("</QuestionsForKey>")
		w.Newline()
	}
	w.Token("</Questions>")
	w.Newline()
}

// Read parses a set written by Write.
func Read(r *kio.Reader) (*Set, error) {
	if err := r.ExpectToken("<Questions>"); err != nil {
		return nil, err
	}
	s := New()
	for {
		tok, err := r.Token()
		if err != nil {
			return nil, err
		}
		if tok == "</Questions>" {
			return s, nil
		}
		if tok != "<Key>" {
			return nil, fmt.Errorf("%w: expected <Key>, got %q", kio.ErrFormat, tok)
		}
		key, err := r.Int32()
		if err != nil {
			return nil, err
		}
		if _, dup := s.byKey[tree.KeyID(key)]; dup {
			return nil, fmt.Errorf("%w: duplicate key %d", kio.ErrFormat, key)
		}
		fk, err := readForKey(r)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", key, err)
		}
		s.byKey[tree.KeyID(key)] = fk
	}
}

func readForKey(r *kio.Reader) (*ForKey, error) {
	if err := r.ExpectToken("<QuestionsForKey>"); err != nil {
		return nil, err
	}
	n, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative question count %d", kio.ErrFormat, n)
	}
	fk := &ForKey{Questions: make([][]tree.Value, 0, kio.Prealloc(n))}
	for i := int32(0); i < n; i++ {
		raw, err := r.Int32Vector()
		if err != nil {
			return nil, err
		}
		q := make([]tree.Value, len(raw))
		for j, v := range raw {
			q[j] = tree.Value(v)
			if j > 0 && q[j] <= q[j-1] {
				return nil, fmt.Errorf("%w: question %d not sorted and unique", kio.ErrFormat, i)
			}
		}
		fk.Questions = append(fk.Questions, q)
	}
	for _, step := range []struct {
		tok string
		dst *int32
	}{
		{"<RefineClustersOptions>", nil},
		{"<NumIters>", &fk.Refine.NumIters},
		{"<TopN>", &fk.Refine.TopN},
		{"</RefineClustersOptions>", nil},
		{"</QuestionsForKey>", nil},
	} {
		if err := r.ExpectToken(step.tok); err != nil {
			return nil, err
		}
		if step.dst != nil {
			if *step.dst, err = r.Int32(); err != nil {
				return nil, err
			}
		}
	}
	return fk, nil
}

// Save writes the set to w in the requested mode.
func (s *Set) Save(w io.Writer, binary bool) error {
	kw := kio.NewWriter(w, binary)
	s.Write(kw)
	return kw.Flush()
}

// Load reads a set from r, detecting the mode.
func Load(r io.Reader) (*Set, error) {
	kr, err := kio.NewReader(r)
	if err != nil {
		return nil, err
	}
	return Read(kr)
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("read questions %s: %w", path, err)
	}
	return s, nil
}

// SaveFile writes the set to path.
func (s *Set) SaveFile(path string, binary bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Save(f, binary); err != nil {
		f.Close()
		return fmt.Errorf("write questions %s: %w", path, err)
	}
	return f.Close()
}
