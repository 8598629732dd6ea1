// Package phones maps phone symbols to the integer ids used in context
// vectors and renders context windows in "left-center+right" notation.
package phones

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Epsilon is the reserved symbol for phone id 0, used for unbound window
// positions.
const Epsilon = "<eps>"

// WordBoundary is printed for an unbound context position.
const WordBoundary = "#"

// Table is a bidirectional phone symbol table.
type Table struct {
	byID  map[int32]string
	bySym map[string]int32
}

// NewTable creates a table holding only the epsilon symbol.
func NewTable() *Table {
	t := &Table{
		byID:  make(map[int32]string),
		bySym: make(map[string]int32),
	}
	t.byID[0] = Epsilon
	t.bySym[Epsilon] = 0
	return t
}

// Add registers a symbol under id.
func (t *Table) Add(sym string, id int32) error {
	if id < 0 {
		return fmt.Errorf("phone %q: negative id %d", sym, id)
	}
	if prev, ok := t.byID[id]; ok && prev != sym {
		return fmt.Errorf("phone id %d assigned to both %q and %q", id, prev, sym)
	}
	if prev, ok := t.bySym[sym]; ok && prev != id {
		return fmt.Errorf("phone %q assigned to both %d and %d", sym, prev, id)
	}
	t.byID[id] = sym
	t.bySym[sym] = id
	return nil
}

// Load reads a symbol table: one "symbol id" pair per line.
func Load(r io.Reader) (*Table, error) {
	t := NewTable()
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"symbol id\", got %q", lineNum, line)
		}
		id, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad id %q", lineNum, fields[1])
		}
		if err := t.Add(fields[0], int32(id)); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Symbol returns the symbol for id, or the decimal id when unknown.
func (t *Table) Symbol(id int32) string {
	if t != nil {
		if s, ok := t.byID[id]; ok {
			return s
		}
	}
	return strconv.FormatInt(int64(id), 10)
}

// ID returns the id of sym.
func (t *Table) ID(sym string) (int32, bool) {
	id, ok := t.bySym[sym]
	return id, ok
}

// IDs returns all ids except epsilon, ascending.
func (t *Table) IDs() []int32 {
	ids := make([]int32, 0, len(t.byID))
	for id := range t.byID {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Window renders a context window in "left-center+right" notation.
// Positions before central are joined with "-", positions after it with
// "+"; unbound positions (id 0) print as WordBoundary.
// Example: width 3, central 1, [i k u] → "i-k+u".
func (t *Table) Window(window []int32, central int) string {
	var sb strings.Builder
	for i, id := range window {
		sym := WordBoundary
		if id != 0 {
			sym = t.Symbol(id)
		}
		switch {
		case i == 0:
		case i <= central:
			sb.WriteByte('-')
		default:
			sb.WriteByte('+')
		}
		sb.WriteString(sym)
	}
	return sb.String()
}
