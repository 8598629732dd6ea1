package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTree(); err != nil {
		return err
	}
	if err := c.validatePdfMap(); err != nil {
		return err
	}
	if err := c.validatePrior(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTree() error {
	if c.Tree.ContextWidth <= 0 {
		return fmt.Errorf("tree.context_width must be positive, got %d", c.Tree.ContextWidth)
	}
	if c.Tree.CentralPosition < 0 || c.Tree.CentralPosition >= c.Tree.ContextWidth {
		return fmt.Errorf("tree.central_position must be in [0, %d), got %d", c.Tree.ContextWidth, c.Tree.CentralPosition)
	}
	return nil
}

func (c *Config) validatePdfMap() error {
	if c.PdfMap.SrcNumPdfs < 0 || c.PdfMap.DestNumPdfs < 0 {
		return errors.New("pdfmap.src_num_pdfs and pdfmap.dest_num_pdfs must not be negative")
	}
	return nil
}

func (c *Config) validatePrior() error {
	if c.Prior.NumPdfs < 0 {
		return fmt.Errorf("prior.num_pdfs must not be negative, got %d", c.Prior.NumPdfs)
	}
	if c.Prior.Floor <= 0 || c.Prior.Floor >= 1 {
		return fmt.Errorf("prior.floor must be in (0, 1), got %g", c.Prior.Floor)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
