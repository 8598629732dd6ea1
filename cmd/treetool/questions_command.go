package main

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/ieee0824/phonetree/questions"
)

func newCompileQuestionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compile-questions <keyed-questions-in> <questions-out>",
		Short: "Compile a keyed question list into a question set",
		Long: "Reads lines of the form \"<key> ? <v1> <v2> ...\" and writes the\n" +
			"question set used by tree building. A missing input file only\n" +
			"produces a warning and an empty set.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			return run.finish(compileQuestions(run, args[0], args[1]))
		},
	}
}

func compileQuestions(run *toolRun, in, out string) error {
	set, err := questions.ParseKeyedFile(in)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		run.logger.Warn("questions file not found, writing empty question set", "path", in)
		set = questions.New()
	case err != nil:
		return err
	}
	if err := set.SaveFile(out, run.cfg.IO.Binary); err != nil {
		return err
	}
	run.logger.Info("wrote questions", "keys", len(set.Keys()), "questions", set.Len(), "path", out)
	return nil
}
