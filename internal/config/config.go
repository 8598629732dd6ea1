// Package config loads the phonetree TOML configuration shared by every
// treetool subcommand.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given.
const EnvConfigPath = "PHONETREE_CONFIG"

// ProjectConfigName is looked up in the working directory as a last resort.
const ProjectConfigName = "phonetree.toml"

// IO contains archive and object encoding settings.
type IO struct {
	Binary bool `toml:"binary"`
}

// Tree describes the phone window of context-dependency trees.
type Tree struct {
	ContextWidth    int `toml:"context_width"`
	CentralPosition int `toml:"central_position"`
}

// Shrink contains leaf clustering settings.
type Shrink struct {
	ClusterThresh  float64 `toml:"cluster_thresh"`
	FallbackThresh float64 `toml:"fallback_thresh"`
	LowCount       float64 `toml:"low_count"`
}

// PdfMap contains pdf-space sizes for get-pdf-map; 0 infers them.
type PdfMap struct {
	SrcNumPdfs  int `toml:"src_num_pdfs"`
	DestNumPdfs int `toml:"dest_num_pdfs"`
}

// Prior contains pdf-to-prior settings.
type Prior struct {
	NumPdfs int     `toml:"num_pdfs"`
	Floor   float64 `toml:"floor"`
	Log     bool    `toml:"log"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Metrics configures the Prometheus textfile written at the end of a run.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Config encapsulates all configuration values for treetool.
type Config struct {
	IO      IO      `toml:"io"`
	Tree    Tree    `toml:"tree"`
	Shrink  Shrink  `toml:"shrink"`
	PdfMap  PdfMap  `toml:"pdfmap"`
	Prior   Prior   `toml:"prior"`
	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`
}

// Load locates, parses, and validates a configuration file. It returns the
// resolved path and whether a file was read; with no file the defaults
// are returned.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

// resolveConfigPath: explicit path (must exist), then $PHONETREE_CONFIG,
// then ./phonetree.toml.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		expanded, err := expandPath(env)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			return "", false, fmt.Errorf("%s: %w", EnvConfigPath, err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(ProjectConfigName)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(projectPath)
	switch {
	case err == nil && !info.IsDir():
		return projectPath, true, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return projectPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
