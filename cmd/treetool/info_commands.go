package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ieee0824/phonetree/phones"
	"github.com/ieee0824/phonetree/questions"
	"github.com/ieee0824/phonetree/tree"
)

type treeInfo struct {
	ContextWidth    int32          `yaml:"context_width"`
	CentralPosition int32          `yaml:"central_position"`
	NumPdfs         int            `yaml:"num_pdfs"`
	NumLeaves       int            `yaml:"num_leaves"`
	NumSplits       int            `yaml:"num_splits"`
	Depth           int            `yaml:"depth"`
	SplitsPerKey    map[string]int `yaml:"splits_per_key"`
}

func summarizeTree(cd *tree.ContextDependency) treeInfo {
	info := treeInfo{
		ContextWidth:    cd.ContextWidth,
		CentralPosition: cd.CentralPosition,
		NumPdfs:         cd.NumPdfs(),
		NumLeaves:       tree.NumLeaves(cd.Root),
		Depth:           depth(cd.Root),
		SplitsPerKey:    map[string]int{},
	}
	tree.Walk(cd.Root, func(n tree.Node) {
		if s, ok := n.(*tree.Split); ok {
			info.NumSplits++
			info.SplitsPerKey[keyName(s.Key)]++
		}
	})
	return info
}

func depth(n tree.Node) int {
	s, ok := n.(*tree.Split)
	if !ok {
		return 0
	}
	return 1 + max(depth(s.Yes), depth(s.No))
}

func keyName(k tree.KeyID) string {
	if k == tree.PdfClassKey {
		return "pdf-class"
	}
	return strconv.Itoa(int(k))
}

func newTreeInfoCommand(ctx *commandContext) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "tree-info <tree>",
		Short: "Summarize a context-dependency tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			cd, err := loadTree(args[0])
			if err != nil {
				return run.finish(err)
			}
			info := summarizeTree(cd)
			out := cmd.OutOrStdout()
			if asYAML {
				data, err := yaml.Marshal(info)
				if err != nil {
					return run.finish(err)
				}
				_, err = out.Write(data)
				return run.finish(err)
			}

			rows := [][]string{
				{"context width", strconv.Itoa(int(info.ContextWidth))},
				{"central position", strconv.Itoa(int(info.CentralPosition))},
				{"pdfs", strconv.Itoa(info.NumPdfs)},
				{"leaves", strconv.Itoa(info.NumLeaves)},
				{"splits", strconv.Itoa(info.NumSplits)},
				{"depth", strconv.Itoa(info.Depth)},
			}
			keys := make([]string, 0, len(info.SplitsPerKey))
			for k := range info.SplitsPerKey {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				rows = append(rows, []string{"splits on key " + k, strconv.Itoa(info.SplitsPerKey[k])})
			}
			_, err = fmt.Fprintln(out, renderTable(out, []string{"Property", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return run.finish(err)
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the summary as YAML")
	return cmd
}

func newPrintTreeCommand(ctx *commandContext) *cobra.Command {
	var questionsPath, phonesPath string
	cmd := &cobra.Command{
		Use:   "print-tree <tree>",
		Short: "Print the tree as an indented listing",
		Long: "Prints one line per node. With --questions, splits are annotated\n" +
			"with the matching question; with --names, phone values are printed\n" +
			"as symbols from a phones.txt table.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			return run.finish(printTree(cmd, args[0], questionsPath, phonesPath))
		},
	}
	cmd.Flags().StringVar(&questionsPath, "questions", "", "Question set written by compile-questions")
	cmd.Flags().StringVar(&phonesPath, "names", "", "Phone symbol table (phones.txt)")
	return cmd
}

func printTree(cmd *cobra.Command, treePath, questionsPath, phonesPath string) error {
	cd, err := loadTree(treePath)
	if err != nil {
		return err
	}
	var opts tree.DumpOptions
	if questionsPath != "" {
		set, err := questions.LoadFile(questionsPath)
		if err != nil {
			return err
		}
		opts.QuestionName = func(key tree.KeyID, yesSet []tree.Value) string {
			name, _ := set.Lookup(key, yesSet)
			return name
		}
	}
	if phonesPath != "" {
		table, err := phones.LoadFile(phonesPath)
		if err != nil {
			return err
		}
		opts.ValueName = func(key tree.KeyID, v tree.Value) string {
			if key == tree.PdfClassKey {
				return strconv.Itoa(int(v))
			}
			return table.Symbol(int32(v))
		}
	}
	return tree.Dump(cmd.OutOrStdout(), cd.Root, opts)
}
