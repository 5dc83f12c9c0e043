package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	t.Setenv(TargetSizeEnv, "")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(TargetSizeEnv, "")
	dir := t.TempDir()
	writeConfig(t, dir, `max_files: 50
max_tree_depth: 2
ignore_dirs: [vendor, tmp]
exclude_patterns: ["*.gen.go"]
languages: [Python, go]
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxFiles != 50 || cfg.MaxTreeDepth != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxIndexSize != Default().MaxIndexSize {
		t.Errorf("unset field changed: %d", cfg.MaxIndexSize)
	}
	if !reflect.DeepEqual(cfg.IgnoreDirs, []string{"vendor", "tmp"}) {
		t.Errorf("IgnoreDirs = %v", cfg.IgnoreDirs)
	}
	want := map[string]bool{"python": true, "go": true}
	if got := cfg.LanguageSet(); !reflect.DeepEqual(got, want) {
		t.Errorf("LanguageSet = %v, want %v", got, want)
	}
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv(TargetSizeEnv, "")
	tests := map[string]string{
		"syntax":         "max_files: [",
		"unknown field":  "max_filez: 3\n",
		"negative limit": "max_files: -1\n",
		"path in ignore": "ignore_dirs: [a/b]\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, content)
			cfg, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !reflect.DeepEqual(cfg, Default()) {
				t.Errorf("cfg = %+v, want defaults", cfg)
			}
		})
	}
}

func TestEnvTargetSize(t *testing.T) {
	t.Setenv(TargetSizeEnv, "50")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxIndexSize != 50*BytesPerKToken {
		t.Errorf("MaxIndexSize = %d, want %d", cfg.MaxIndexSize, 50*BytesPerKToken)
	}
}

func TestLanguageSetEmpty(t *testing.T) {
	t.Parallel()
	if got := Default().LanguageSet(); got != nil {
		t.Errorf("LanguageSet = %v, want nil", got)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	t.Parallel()
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestSettings(t *testing.T) {
	t.Parallel()
	a := Default()
	a.Languages = []string{"Shell", "python"}
	b := Default()
	b.Languages = []string{"python", "shell"}
	if !reflect.DeepEqual(a.Settings(), b.Settings()) {
		t.Errorf("language order changed settings:\n%v\n%v", a.Settings(), b.Settings())
	}

	changed := map[string]func(*Config){
		"languages":     func(c *Config) { c.Languages = []string{"go"} },
		"max_file_size": func(c *Config) { c.MaxFileSize = 5 },
		"target":        func(c *Config) { c.MaxIndexSize = 4000 },
		"tree depth":    func(c *Config) { c.MaxTreeDepth = 2 },
		"excludes":      func(c *Config) { c.ExcludePatterns = []string{"*.gen.go"} },
	}
	for name, mutate := range changed {
		c := Default()
		mutate(&c)
		if reflect.DeepEqual(c.Settings(), Default().Settings()) {
			t.Errorf("%s: settings unchanged", name)
		}
	}
}
