package tree

import (
	"fmt"
	"strings"
)

// KeyID names one feature of a context vector: a window position
// (0..ContextWidth-1) or PdfClassKey.
type KeyID int32

// Value is a feature value: a phone id or an HMM pdf-class.
type Value int32

// PdfID is a leaf answer, the index of a tied probability density.
type PdfID int32

// NoPdf marks a leaf id that has no image in a mapping.
const NoPdf PdfID = -1

// PdfClassKey is the reserved key carrying the HMM pdf-class.
const PdfClassKey KeyID = -1

// KeyValue binds one key of a context vector.
type KeyValue struct {
	Key   KeyID
	Value Value
}

// Event is a context vector. Keys are unique; order carries no meaning.
type Event []KeyValue

// MakeEvent binds window position i to window[i] and PdfClassKey to pdfClass.
func MakeEvent(window []Value, pdfClass int32) Event {
	ev := make(Event, 0, len(window)+1)
	for i, v := range window {
		ev = append(ev, KeyValue{Key: KeyID(i), Value: v})
	}
	return append(ev, KeyValue{Key: PdfClassKey, Value: Value(pdfClass)})
}

// Lookup returns the value bound to key.
func (e Event) Lookup(key KeyID) (Value, bool) {
	for _, kv := range e {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return 0, false
}

// Validate rejects events with a repeated key.
func (e Event) Validate() error {
	seen := make(map[KeyID]struct{}, len(e))
	for _, kv := range e {
		if _, dup := seen[kv.Key]; dup {
			return fmt.Errorf("event %s: duplicate key %d", e, kv.Key)
		}
		seen[kv.Key] = struct{}{}
	}
	return nil
}

func (e Event) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, kv := range e {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d:%d", kv.Key, kv.Value)
	}
	sb.WriteByte(')')
	return sb.String()
}
