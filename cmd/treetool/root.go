package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "treetool",
		Short:         "Phonetic context tree tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.BoolVar(&flags.binary, "binary", false, "Write output in binary mode")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format (console, json)")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	rootCmd.AddCommand(newCompileQuestionsCommand(ctx))
	rootCmd.AddCommand(newShrinkTreeCommand(ctx))
	rootCmd.AddCommand(newSumTreeStatsCommand(ctx))
	rootCmd.AddCommand(newGetPdfMapCommand(ctx))
	rootCmd.AddCommand(newApplyPdfMapCommand(ctx))
	rootCmd.AddCommand(newMapPdfPostCommand(ctx))
	rootCmd.AddCommand(newFullctxToPdfCommand(ctx))
	rootCmd.AddCommand(newPdfToPriorCommand(ctx))
	rootCmd.AddCommand(newTreeInfoCommand(ctx))
	rootCmd.AddCommand(newPrintTreeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
