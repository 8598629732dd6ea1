package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/phonetree/internal/archive"
	"github.com/ieee0824/phonetree/pdfmap"
)

func newGetPdfMapCommand(ctx *commandContext) *cobra.Command {
	var srcNumPdfs, destNumPdfs int
	cmd := &cobra.Command{
		Use:   "get-pdf-map <src-ali-in> <dest-ali-in> <map-out>",
		Short: "Estimate P(dest pdf | src pdf) from parallel pdf alignments",
		Long: "Reads source alignments sequentially and looks the same utterance\n" +
			"up in the destination archive. Pdf counts of 0 are inferred from\n" +
			"the alignments.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("src_num_pdfs") {
				run.cfg.PdfMap.SrcNumPdfs = srcNumPdfs
			}
			if cmd.Flags().Changed("dest_num_pdfs") {
				run.cfg.PdfMap.DestNumPdfs = destNumPdfs
			}
			return run.finishRecords(getPdfMap(run, args[0], args[1], args[2]))
		},
	}
	cmd.Flags().IntVar(&srcNumPdfs, "src_num_pdfs", 0, "Number of pdfs of the source tree")
	cmd.Flags().IntVar(&destNumPdfs, "dest_num_pdfs", 0, "Number of pdfs of the destination tree")
	return cmd
}

func getPdfMap(run *toolRun, srcSpec, destSpec, out string) (err error) {
	if run.cfg.PdfMap.SrcNumPdfs < 0 || run.cfg.PdfMap.DestNumPdfs < 0 {
		return fmt.Errorf("pdf counts must not be negative")
	}
	src, err := archive.OpenSequential(srcSpec, archive.Int32Vector)
	if err != nil {
		return err
	}
	defer closeAll(&err, src, srcSpec)
	dest, err := archive.OpenRandomAccess(destSpec, archive.Int32Vector)
	if err != nil {
		return err
	}
	defer closeAll(&err, dest, destSpec)

	builder := pdfmap.NewBuilder(run.logger)
	for src.Next() {
		key := src.Key()
		destAli, ok, err := dest.Value(key)
		if err != nil {
			return err
		}
		if !ok {
			run.recordSkipped(key, "no destination alignment for utterance")
			continue
		}
		if err := builder.Add(src.Value(), destAli); err != nil {
			run.recordSkipped(key, "skipping utterance", "error", err)
			continue
		}
		run.recordDone()
	}
	if err := src.Err(); err != nil {
		return err
	}
	if run.done == 0 {
		return nil
	}

	m := builder.Build(run.cfg.PdfMap.SrcNumPdfs, run.cfg.PdfMap.DestNumPdfs)
	if err := m.SaveFile(out, run.cfg.IO.Binary); err != nil {
		return err
	}
	run.logger.Info("wrote pdf map", "src_pdfs", len(m), "frames", builder.Frames(), "path", out)
	return nil
}

func newApplyPdfMapCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply-pdf-map <map-in> <posteriors-in> <posteriors-out>",
		Short: "Map posteriors through a stochastic pdf map",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			m, err := pdfmap.LoadStochasticFile(args[0])
			if err != nil {
				return run.finish(err)
			}
			return run.finishRecords(mapPosteriors(run, m, args[1], args[2]))
		},
	}
}

func newMapPdfPostCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "map-pdf-post <posteriors-in> <map-in> <posteriors-out>",
		Short: "Map posteriors through a deterministic pdf map",
		Long: "Replaces every pdf-id of the posteriors by its image under the map\n" +
			"written by shrink-tree, merging entries that land on the same pdf.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			m, err := pdfmap.LoadDeterministicFile(args[1])
			if err != nil {
				return run.finish(err)
			}
			return run.finishRecords(mapPosteriors(run, m, args[0], args[2]))
		},
	}
}

func mapPosteriors(run *toolRun, m pdfmap.Mapper, in, out string) (err error) {
	reader, err := archive.OpenSequential(in, archive.Posterior)
	if err != nil {
		return err
	}
	defer closeAll(&err, reader, in)
	writer, err := archive.Create(out, archive.Posterior, run.cfg.IO.Binary)
	if err != nil {
		return err
	}
	defer closeAll(&err, writer, out)

	for reader.Next() {
		key := reader.Key()
		mapped, err := pdfmap.ApplyPosterior(m, reader.Value())
		if err != nil {
			run.recordFailed(key, err)
			continue
		}
		if err := writer.Write(key, mapped); err != nil {
			return err
		}
		run.recordDone()
	}
	return reader.Err()
}

func newPdfToPriorCommand(ctx *commandContext) *cobra.Command {
	var (
		numPdfs int
		log     bool
		floor   float64
	)
	cmd := &cobra.Command{
		Use:   "pdf-to-prior <pdf-ali-in> <prior-out>",
		Short: "Compute pdf priors from pdf alignments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("num-pdfs") {
				run.cfg.Prior.NumPdfs = numPdfs
			}
			if fs.Changed("log") {
				run.cfg.Prior.Log = log
			}
			if fs.Changed("prior-floor") {
				run.cfg.Prior.Floor = floor
			}
			return run.finishRecords(pdfToPrior(run, args[0], args[1]))
		},
	}
	cmd.Flags().IntVar(&numPdfs, "num-pdfs", 0, "Number of pdfs; 0 infers it from the alignments")
	cmd.Flags().BoolVar(&log, "log", true, "Write log priors")
	cmd.Flags().Float64Var(&floor, "prior-floor", pdfmap.DefaultPriorFloor, "Smallest prior written")
	return cmd
}

func pdfToPrior(run *toolRun, in, out string) (err error) {
	if run.cfg.Prior.NumPdfs < 0 {
		return fmt.Errorf("num-pdfs must not be negative")
	}
	reader, err := archive.OpenSequential(in, archive.Int32Vector)
	if err != nil {
		return err
	}
	defer closeAll(&err, reader, in)

	counter := pdfmap.NewCounter(run.cfg.Prior.NumPdfs)
	for reader.Next() {
		if err := counter.Add(reader.Value()); err != nil {
			run.recordFailed(reader.Key(), err)
			continue
		}
		run.recordDone()
	}
	if err := reader.Err(); err != nil {
		return err
	}
	if run.done == 0 {
		return nil
	}

	prior, err := pdfmap.Prior(counter.Counts(), run.cfg.Prior.Floor, run.cfg.Prior.Log)
	if err != nil {
		return err
	}
	if err := saveVector(out, prior, run.cfg.IO.Binary); err != nil {
		return err
	}
	run.logger.Info("wrote prior", "num_pdfs", len(prior), "log", run.cfg.Prior.Log, "path", out)
	return nil
}

func newFullctxToPdfCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fullctx-to-pdf <tree> <fullctx-ali-in> <pdf-ali-out>",
		Short: "Convert frame-level full-context alignments to pdf alignments",
		Long: "Each frame of the input holds the phone window followed by the\n" +
			"pdf-class. A frame the tree cannot classify stops the run.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := ctx.begin(cmd)
			if err != nil {
				return err
			}
			return run.finishRecords(fullctxToPdf(run, args[0], args[1], args[2]))
		},
	}
}

func fullctxToPdf(run *toolRun, treeIn, in, out string) (err error) {
	cd, err := loadTree(treeIn)
	if err != nil {
		return err
	}
	reader, err := archive.OpenSequential(in, archive.Int32VectorVector)
	if err != nil {
		return err
	}
	defer closeAll(&err, reader, in)
	writer, err := archive.Create(out, archive.Int32Vector, run.cfg.IO.Binary)
	if err != nil {
		return err
	}
	defer closeAll(&err, writer, out)

	for reader.Next() {
		key := reader.Key()
		pdfs, err := classifyFrames(cd, reader.Value())
		if err != nil {
			return fmt.Errorf("utterance %s: %w", key, err)
		}
		if err := writer.Write(key, pdfs); err != nil {
			return err
		}
		run.recordDone()
	}
	if err := reader.Err(); err != nil {
		return err
	}
	run.logger.Info("converted alignments to pdf sequences", "count", run.done)
	return nil
}
