package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phobologic/projindex/internal/dense"
	"github.com/phobologic/projindex/internal/discover"
	"github.com/phobologic/projindex/internal/model"
)

func entries() []discover.Entry {
	t0 := time.Unix(1700000000, 0)
	return []discover.Entry{
		{Path: "a.py", Size: 10, ModTime: t0},
		{Path: "lib/b.go", Size: 20, ModTime: t0.Add(time.Second)},
	}
}

func TestFingerprintStable(t *testing.T) {
	t.Parallel()
	e := entries()
	reversed := []discover.Entry{e[1], e[0]}
	if Fingerprint(e, nil) != Fingerprint(reversed, nil) {
		t.Error("fingerprint depends on entry order")
	}
	if len(Fingerprint(e, nil)) != 64 {
		t.Errorf("fingerprint %q is not sha256 hex", Fingerprint(e, nil))
	}
}

func TestFingerprintChanges(t *testing.T) {
	t.Parallel()
	base := Fingerprint(entries(), nil)

	touched := entries()
	touched[0].ModTime = touched[0].ModTime.Add(time.Nanosecond)
	resized := entries()
	resized[1].Size++
	added := append(entries(), discover.Entry{Path: "c.py"})

	for name, e := range map[string][]discover.Entry{
		"mtime": touched, "size": resized, "added": added, "removed": entries()[:1],
	} {
		if Fingerprint(e, nil) == base {
			t.Errorf("%s: fingerprint unchanged", name)
		}
	}
}

func TestFingerprintSettings(t *testing.T) {
	t.Parallel()
	base := Fingerprint(entries(), []string{"languages=python,shell", "max_file_size=100"})
	if got := Fingerprint(entries(), []string{"max_file_size=100", "languages=python,shell"}); got != base {
		t.Error("fingerprint depends on settings order")
	}
	for name, settings := range map[string][]string{
		"none":     nil,
		"language": {"languages=shell", "max_file_size=100"},
		"ceiling":  {"languages=python,shell", "max_file_size=5"},
	} {
		if Fingerprint(entries(), settings) == base {
			t.Errorf("%s: fingerprint unchanged", name)
		}
	}
}

func TestFingerprintExtraFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := filepath.Join(dir, ".indexconfig.yaml")

	without := Fingerprint(entries(), nil, cfg)
	if without != Fingerprint(entries(), nil) {
		t.Error("missing extra file changed fingerprint")
	}
	if err := os.WriteFile(cfg, []byte("max_files: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if Fingerprint(entries(), nil, cfg) == without {
		t.Error("config file not reflected in fingerprint")
	}
}

func writeIndex(t *testing.T, path, fingerprint string) *model.IndexDocument {
	t.Helper()
	doc := &model.IndexDocument{
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Root:        "/p",
		Fingerprint: fingerprint,
		Files:       map[string]model.FileRecord{"a.py": {Tag: model.TagPython}},
	}
	data, err := dense.Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestDecide(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	fresh := filepath.Join(dir, "fresh.json")
	writeIndex(t, fresh, "fp1")
	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	badBody := filepath.Join(dir, "badbody.json")
	if err := os.WriteFile(badBody, []byte(`{"fp":"fp1","at":"x","f":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		fp      string
		force   bool
		rebuild bool
		reason  Reason
	}{
		{"fresh", fresh, "fp1", false, false, ReasonFresh},
		{"forced", fresh, "fp1", true, true, ReasonForced},
		{"changed", fresh, "fp2", false, true, ReasonChanged},
		{"missing", filepath.Join(dir, "none.json"), "fp1", false, true, ReasonMissing},
		{"corrupt", corrupt, "fp1", false, true, ReasonCorrupt},
		{"corrupt body", badBody, "fp1", false, true, ReasonCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Decide(tt.path, tt.fp, tt.force)
			if d.Rebuild != tt.rebuild || d.Reason != tt.reason {
				t.Errorf("Decide = {%v %q}, want {%v %q}", d.Rebuild, d.Reason, tt.rebuild, tt.reason)
			}
			if !d.Rebuild && d.Doc == nil {
				t.Error("reuse without a document")
			}
			if d.Reason == ReasonCorrupt && !errors.Is(d.Err, ErrCacheCorrupt) {
				t.Errorf("Err = %v, want ErrCacheCorrupt", d.Err)
			}
		})
	}
}

func TestDecideReturnsStoredDocument(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.json")
	want := writeIndex(t, path, "abc")
	d := Decide(path, "abc", false)
	if d.Rebuild {
		t.Fatalf("unexpected rebuild: %s", d.Reason)
	}
	if !d.Doc.GeneratedAt.Equal(want.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", d.Doc.GeneratedAt, want.GeneratedAt)
	}
}

func TestWriteAtomic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "PROJECT_INDEX.json")

	if err := WriteAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if err := WriteAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "second" {
		t.Errorf("content = %q, %v", got, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("perm = %v", info.Mode().Perm())
	}

	left, _ := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
}

func TestWriteAtomicFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", "index.json")
	err := WriteAtomic(path, []byte("x"), 0o644)
	if !errors.Is(err, ErrWriteFailure) {
		t.Errorf("err = %v, want ErrWriteFailure", err)
	}

	// Renaming onto a directory fails after the temp file exists.
	target := filepath.Join(dir, "occupied")
	if err := os.MkdirAll(filepath.Join(target, "child"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(target, []byte("x"), 0o644); !errors.Is(err, ErrWriteFailure) {
		t.Errorf("err = %v, want ErrWriteFailure", err)
	}
	left, _ := filepath.Glob(filepath.Join(dir, "occupied.tmp-*"))
	if len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
}
