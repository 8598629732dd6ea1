package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/phonetree/pdfmap"
	"github.com/ieee0824/phonetree/tree"
)

type shrinkFlags struct {
	clusterThresh   float64
	fallbackThresh  float64
	contextWidth    int
	centralPosition int
}

func newShrinkTreeCommand(ctx *commandContext) *cobra.Command {
	var flags shrinkFlags
	cmd := &cobra.Command{
		Use:   "shrink-tree <stats-in> <tree-in> <map-out> <tree-out>",
		Short: "Cluster the leaves of a tree and write the old-to-new pdf map",
		Long: "Merges leaves whose statistics are similar enough that each merge\n" +
			"raises the total cost by at most --cluster-thresh. 0 disables\n" +
			"clustering; a negative threshold uses --fallback-thresh instead.",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("cluster-thresh") {
				run.cfg.Shrink.ClusterThresh = flags.clusterThresh
			}
			if fs.Changed("fallback-thresh") {
				run.cfg.Shrink.FallbackThresh = flags.fallbackThresh
			}
			if fs.Changed("context-width") {
				run.cfg.Tree.ContextWidth = flags.contextWidth
			}
			if fs.Changed("central-position") {
				run.cfg.Tree.CentralPosition = flags.centralPosition
			}
			return run.finish(shrinkTree(run, args[0], args[1], args[2], args[3]))
		},
	}
	cmd.Flags().Float64Var(&flags.clusterThresh, "cluster-thresh", 0, "Cost increase threshold for merging leaves; 0 disables clustering, negative uses --fallback-thresh")
	cmd.Flags().Float64Var(&flags.fallbackThresh, "fallback-thresh", 0, "Threshold used when --cluster-thresh is negative")
	cmd.Flags().IntVar(&flags.contextWidth, "context-width", 0, "Context window size of the output tree")
	cmd.Flags().IntVar(&flags.centralPosition, "central-position", 0, "Central position of the output tree's window")
	return cmd
}

func shrinkTree(run *toolRun, statsIn, treeIn, mapOut, treeOut string) error {
	stats, err := tree.LoadStatsFile(statsIn)
	if err != nil {
		return err
	}
	run.logger.Info("read stats", "count", len(stats))

	cd, err := tree.LoadFile(treeIn)
	if err != nil {
		return err
	}
	width, central := int32(run.cfg.Tree.ContextWidth), int32(run.cfg.Tree.CentralPosition)
	if width != cd.ContextWidth || central != cd.CentralPosition {
		run.logger.Warn("output window differs from input tree",
			"context_width", width, "central_position", central,
			"input_context_width", cd.ContextWidth, "input_central_position", cd.CentralPosition)
	}

	res, err := tree.Shrink(cd, stats, tree.ShrinkOptions{
		Threshold:         run.cfg.Shrink.ClusterThresh,
		FallbackThreshold: run.cfg.Shrink.FallbackThresh,
		LowCount:          run.cfg.Shrink.LowCount,
		Logger:            run.logger,
	})
	if err != nil {
		return err
	}
	out, err := tree.New(width, central, res.Tree.Root)
	if err != nil {
		return fmt.Errorf("output tree: %w", err)
	}

	binary := run.cfg.IO.Binary
	if err := pdfmap.Deterministic(res.Mapping).SaveFile(mapOut, binary); err != nil {
		return err
	}
	if err := out.SaveFile(treeOut, binary); err != nil {
		return err
	}
	run.metrics.Leaves.WithLabelValues("before").Set(float64(res.OldLeaves))
	run.metrics.Leaves.WithLabelValues("after").Set(float64(res.NewLeaves))
	run.logger.Info("shrinking finished", "reduced", res.NumReduced, "leaves", res.NewLeaves)
	return nil
}

func newSumTreeStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sum-tree-stats <stats-out> <stats-in>...",
		Short: "Sum tree statistics from several accumulation jobs",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			return run.finish(sumTreeStats(run, args[0], args[1:]))
		},
	}
}

func sumTreeStats(run *toolRun, out string, ins []string) error {
	var total tree.Stats
	for _, in := range ins {
		stats, err := tree.LoadStatsFile(in)
		if err != nil {
			return err
		}
		if total, err = total.Merge(stats); err != nil {
			return fmt.Errorf("sum %s: %w", in, err)
		}
	}
	if err := total.SaveFile(out, run.cfg.IO.Binary); err != nil {
		return err
	}
	run.logger.Info("summed stats", "inputs", len(ins), "events", len(total))
	return nil
}
