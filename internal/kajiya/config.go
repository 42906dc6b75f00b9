package kajiya

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MirrorConfig holds credentials for the optional archive mirror.
// Endpoint must be an S3-compatible URL (R2, MinIO, S3 itself).
type MirrorConfig struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// Config is the structured configuration document passed via --config.
// Component fields are upstream version strings; prefix fields are the
// four install prefixes, one per toolchain variant.
type Config struct {
	Binutils string `json:"binutils"`
	GDB      string `json:"gdb"`
	GCC      string `json:"gcc"`
	MinGW    string `json:"mingw"`

	MinGWPrefix    string `json:"mingw_prefix"`
	ELFPrefix      string `json:"elf_prefix"`
	MinGWWinPrefix string `json:"mingw_win_prefix"`
	ELFWinPrefix   string `json:"elf_win_prefix"`

	ArchivePrefix string `json:"archive_prefix"`

	Mirror *MirrorConfig `json:"mirror,omitempty"`
}

// loadConfig reads and validates the JSON configuration document.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
	}

	required := map[string]string{
		"binutils":         cfg.Binutils,
		"gdb":              cfg.GDB,
		"gcc":              cfg.GCC,
		"mingw":            cfg.MinGW,
		"mingw_prefix":     cfg.MinGWPrefix,
		"elf_prefix":       cfg.ELFPrefix,
		"mingw_win_prefix": cfg.MinGWWinPrefix,
		"elf_win_prefix":   cfg.ELFWinPrefix,
		"archive_prefix":   cfg.ArchivePrefix,
	}
	for key, val := range required {
		if val == "" {
			return nil, fmt.Errorf("config field %q is missing or empty", key)
		}
	}

	return cfg, nil
}

// PrefixFor returns the configured install prefix for a variant.
func (c *Config) PrefixFor(v Variant) string {
	switch v {
	case VariantMinGW:
		return c.MinGWPrefix
	case VariantELF:
		return c.ELFPrefix
	case VariantWinMinGW:
		return c.MinGWWinPrefix
	case VariantWinELF:
		return c.ELFWinPrefix
	}
	return ""
}

// absPrefix resolves a configured prefix to an absolute path. Configure
// scripts are invoked from nested build directories, so relative prefixes
// would install into the wrong place.
func absPrefix(prefix string) string {
	abs, err := filepath.Abs(prefix)
	if err != nil {
		return prefix
	}
	return abs
}
