package tree

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ieee0824/phonetree/cluster"
	"github.com/ieee0824/phonetree/internal/kio"
)

// Stat is the accumulator collected for one context vector. Stats must
// not be nil.
type Stat struct {
	Event Event
	Stats cluster.Clusterable
}

// Stats is the per-context statistics table consumed by tree building and
// Shrink.
type Stats []Stat

// Write serializes the table: "<Stats> n", then per entry the event as a
// pair count followed by key/value pairs and the accumulator.
func (s Stats) Write(w *kio.Writer) {
	w.Token("<Stats>")
	w.Int32(int32(len(s)))
	w.Newline()
	for _, st := range s {
		w.Int32(int32(len(st.Event)))
		for _, kv := range st.Event {
			w.Int32(int32(kv.Key))
			w.Int32(int32(kv.Value))
		}
		st.Stats.Write(w)
		w.Newline()
	}
	w.Token("</Stats>")
	w.Newline()
}

// ReadStats parses a table written by Stats.Write.
func ReadStats(r *kio.Reader) (Stats, error) {
	if err := r.ExpectToken("<Stats>"); err != nil {
		return nil, err
	}
	n, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative stats count %d", kio.ErrFormat, n)
	}
	out := make(Stats, 0, kio.Prealloc(n))
	for i := int32(0); i < n; i++ {
		pairs, err := r.Int32()
		if err != nil {
			return nil, fmt.Errorf("stat %d: %w", i, err)
		}
		if pairs < 0 {
			return nil, fmt.Errorf("%w: stat %d has negative event size", kio.ErrFormat, i)
		}
		ev := make(Event, 0, kio.Prealloc(pairs))
		for j := int32(0); j < pairs; j++ {
			k, err := r.Int32()
			if err != nil {
				return nil, fmt.Errorf("stat %d: %w", i, err)
			}
			v, err := r.Int32()
			if err != nil {
				return nil, fmt.Errorf("stat %d: %w", i, err)
			}
			ev = append(ev, KeyValue{Key: KeyID(k), Value: Value(v)})
		}
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("%w: stat %d: %v", kio.ErrFormat, i, err)
		}
		acc, err := cluster.Read(r)
		if err != nil {
			return nil, fmt.Errorf("stat %d: %w", i, err)
		}
		out = append(out, Stat{Event: ev, Stats: acc})
	}
	if err := r.ExpectToken("</Stats>"); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge folds other into s, summing the accumulators of identical events.
// The result is ordered by event.
func (s Stats) Merge(other Stats) (Stats, error) {
	index := make(map[string]int, len(s)+len(other))
	out := make(Stats, 0, len(s)+len(other))
	for _, src := range []Stats{s, other} {
		for _, st := range src {
			ev := canonical(st.Event)
			key := ev.String()
			if i, ok := index[key]; ok {
				if err := out[i].Stats.Merge(st.Stats); err != nil {
					return nil, fmt.Errorf("merge stats for %s: %w", key, err)
				}
				continue
			}
			index[key] = len(out)
			out = append(out, Stat{Event: ev, Stats: st.Stats.Copy()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return eventLess(out[i].Event, out[j].Event) })
	return out, nil
}

func canonical(ev Event) Event {
	out := make(Event, len(ev))
	copy(out, ev)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func eventLess(a, b Event) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i].Key != b[i].Key {
				return a[i].Key < b[i].Key
			}
			return a[i].Value < b[i].Value
		}
	}
	return len(a) < len(b)
}

// LoadStats reads a statistics table from r, detecting the mode.
func LoadStats(r io.Reader) (Stats, error) {
	kr, err := kio.NewReader(r)
	if err != nil {
		return nil, err
	}
	return ReadStats(kr)
}

// LoadStatsFile is a convenience wrapper that opens a file path.
func LoadStatsFile(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := LoadStats(f)
	if err != nil {
		return nil, fmt.Errorf("read stats %s: %w", path, err)
	}
	return s, nil
}

// SaveFile writes the table to path.
func (s Stats) SaveFile(path string, binary bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	kw := kio.NewWriter(f, binary)
	s.Write(kw)
	if err := kw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write stats %s: %w", path, err)
	}
	return f.Close()
}
