package tree

import (
	"fmt"
	"io"
	"strings"
)

// DumpOptions controls how Dump renders keys and values.
type DumpOptions struct {
	// QuestionName names a split's question; "" leaves it unnamed.
	QuestionName func(key KeyID, yesSet []Value) string
	// ValueName renders a value of key; nil prints the integer.
	ValueName func(key KeyID, v Value) string
}

// Dump writes an indented listing of the tree:
//
//	Y:<key> [<values>] <question name>
//	  A:<answer>
//
// Each split is followed by its yes subtree and then its no subtree, one
// level deeper.
func Dump(w io.Writer, root Node, opts DumpOptions) error {
	var err error
	dumpNode(w, root, "", opts, &err)
	return err
}

func dumpNode(w io.Writer, n Node, indent string, opts DumpOptions, err *error) {
	if *err != nil {
		return
	}
	switch node := n.(type) {
	case *Leaf:
		_, *err = fmt.Fprintf(w, "%sA:%d\n", indent, node.Answer)
	case *Split:
		vals := make([]string, len(node.YesSet))
		for i, v := range node.YesSet {
			if opts.ValueName != nil {
				vals[i] = opts.ValueName(node.Key, v)
			} else {
				vals[i] = fmt.Sprint(v)
			}
		}
		line := fmt.Sprintf("%sY:%d [%s]", indent, node.Key, strings.Join(vals, " "))
		if opts.QuestionName != nil {
			if name := opts.QuestionName(node.Key, node.YesSet); name != "" {
				line += " " + name
			}
		}
		if _, *err = fmt.Fprintln(w, line); *err != nil {
			return
		}
		dumpNode(w, node.Yes, indent+"  ", opts, err)
		dumpNode(w, node.No, indent+"  ", opts, err)
	}
}
