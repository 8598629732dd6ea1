package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ieee0824/phonetree/internal/config"
	"github.com/ieee0824/phonetree/internal/logging"
	"github.com/ieee0824/phonetree/internal/metrics"
)

type globalFlags struct {
	config      string
	binary      bool
	logLevel    string
	logFormat   string
	metricsFile string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configRead bool
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration once and applies the global flags
// the user set explicitly.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		pf := cmd.Flags()
		if pf.Changed("binary") {
			cfg.IO.Binary = c.flags.binary
		}
		if pf.Changed("log-level") {
			cfg.Logging.Level = c.flags.logLevel
		}
		if pf.Changed("log-format") {
			cfg.Logging.Format = c.flags.logFormat
		}
		if pf.Changed("metrics-file") {
			cfg.Metrics.Textfile = c.flags.metricsFile
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config, c.configPath, c.configRead = cfg, path, exists
	})
	return c.config, c.configErr
}

// toolRun carries the per-invocation logger, metrics and record tally of
// one subcommand.
type toolRun struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Run
	closeFn func() error

	done, skipped, failed int
}

func (c *commandContext) begin(cmd *cobra.Command) (*toolRun, error) {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	tool := cmd.Name()
	logger, closeFn, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	logger = logger.With(logging.ToolKey, tool, "run_id", uuid.NewString())
	if c.configRead {
		logger.Debug("loaded config", "path", c.configPath)
	}
	return &toolRun{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewRun(tool),
		closeFn: closeFn,
	}, nil
}

func (r *toolRun) recordDone() {
	r.done++
	r.metrics.Done()
}

func (r *toolRun) recordSkipped(key, reason string, attrs ...any) {
	r.skipped++
	r.metrics.Skipped()
	r.logger.Warn(reason, append([]any{"key", key}, attrs...)...)
}

func (r *toolRun) recordFailed(key string, err error) {
	r.failed++
	r.metrics.Failed()
	r.logger.Warn("record failed", "key", key, "error", err)
}

// finishRecords logs the summary line and reports failure when no record
// was processed successfully.
func (r *toolRun) finishRecords(runErr error) error {
	r.logger.Info("summary", "done", r.done, "skipped", r.skipped, "failed", r.failed)
	if runErr == nil && r.done == 0 {
		runErr = errors.New("no records processed successfully")
	}
	return r.finish(runErr)
}

// finish flushes metrics and closes the log file. runErr wins over
// cleanup errors.
func (r *toolRun) finish(runErr error) error {
	if err := r.metrics.Finish(r.cfg.Metrics.Textfile); err != nil {
		r.logger.Warn("write metrics", "path", r.cfg.Metrics.Textfile, "error", err)
	}
	closeErr := r.closeFn()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// closeAll closes c and keeps the first error.
func closeAll(err *error, c interface{ Close() error }, what string) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close %s: %w", what, cerr)
	}
}
