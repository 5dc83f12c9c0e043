// Package config loads indexing settings from .indexconfig.yaml and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up at the project root.
const FileName = ".indexconfig.yaml"

// TargetSizeEnv overrides MaxIndexSize, in thousands of tokens.
const TargetSizeEnv = "INDEX_TARGET_SIZE_K"

// BytesPerKToken converts a token budget in thousands to bytes.
const BytesPerKToken = 4000

// Config holds indexing limits and filters.
type Config struct {
	MaxFiles        int      `yaml:"max_files"`
	MaxIndexSize    int      `yaml:"max_index_size"`
	MaxTreeDepth    int      `yaml:"max_tree_depth"`
	MaxTreeEntries  int      `yaml:"max_tree_entries"`
	MaxFileSize     int64    `yaml:"max_file_size"`
	IgnoreDirs      []string `yaml:"ignore_dirs"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	// Languages restricts parsing to these language names. Empty means all.
	Languages []string `yaml:"languages"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		MaxFiles:       10000,
		MaxIndexSize:   1 << 20,
		MaxTreeDepth:   5,
		MaxTreeEntries: 40,
		MaxFileSize:    1_000_000,
	}
}

// Path returns the config file location for a project root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads the config file under root, if any, on top of the defaults and
// applies environment overrides. A missing file is not an error. On any
// other error the defaults (with overrides) are returned alongside it.
func Load(root string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(Path(root))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		applyEnvOverrides(&cfg)
		return cfg, nil
	case err != nil:
		applyEnvOverrides(&cfg)
		return cfg, fmt.Errorf("reading %s: %w", FileName, err)
	}

	loaded, err := Parse(data)
	if err != nil {
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	applyEnvOverrides(&loaded)
	return loaded, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return cfg, nil
}

// Validate returns an error if any limit is out of range.
func (c Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value int64
	}{
		{"max_files", int64(c.MaxFiles)},
		{"max_index_size", int64(c.MaxIndexSize)},
		{"max_tree_depth", int64(c.MaxTreeDepth)},
		{"max_tree_entries", int64(c.MaxTreeEntries)},
		{"max_file_size", c.MaxFileSize},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s=%d must be positive", f.name, f.value))
		}
	}
	for _, d := range c.IgnoreDirs {
		if strings.ContainsRune(d, '/') {
			errs = append(errs, fmt.Errorf("ignore_dirs entry %q must be a directory name, not a path", d))
		}
	}
	return errors.Join(errs...)
}

// LanguageSet returns the language filter as a set, or nil for all.
func (c Config) LanguageSet() map[string]bool {
	if len(c.Languages) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.Languages))
	for _, l := range c.Languages {
		set[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return set
}

// Settings renders every field that shapes the index as stable "key=value"
// lines, so an index built under other settings is never reused.
func (c Config) Settings() []string {
	langs := make([]string, 0, len(c.Languages))
	for l := range c.LanguageSet() {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	ignoreDirs := append([]string(nil), c.IgnoreDirs...)
	sort.Strings(ignoreDirs)
	return []string{
		"languages=" + strings.Join(langs, ","),
		"max_files=" + strconv.Itoa(c.MaxFiles),
		"max_index_size=" + strconv.Itoa(c.MaxIndexSize),
		"max_tree_depth=" + strconv.Itoa(c.MaxTreeDepth),
		"max_tree_entries=" + strconv.Itoa(c.MaxTreeEntries),
		"max_file_size=" + strconv.FormatInt(c.MaxFileSize, 10),
		"ignore_dirs=" + strings.Join(ignoreDirs, ","),
		// Pattern order matters for negations.
		"exclude_patterns=" + strings.Join(c.ExcludePatterns, "\x00"),
	}
}

func applyEnvOverrides(cfg *Config) {
	for _, setter := range []struct {
		env   string
		apply func(string)
	}{
		{TargetSizeEnv, func(v string) {
			if k, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && k > 0 {
				cfg.MaxIndexSize = k * BytesPerKToken
			}
		}},
	} {
		setter.apply(os.Getenv(setter.env))
	}
}
