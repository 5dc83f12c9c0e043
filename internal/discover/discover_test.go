package discover

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func paths(l *Listing) []string {
	out := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = e.Path
	}
	return out
}

func TestWalkCandidates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "main.py", "print('hello')")
	writeFile(t, dir, "lib/util.py", "def helper(): pass")
	writeFile(t, dir, "lib/core.rs", "fn main() {}")
	writeFile(t, dir, "docs/guide.md", "# Guide")
	writeFile(t, dir, "readme.txt", "hello")
	writeFile(t, dir, ".hidden.py", "secret")

	l, err := Walk(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"docs/guide.md", "lib/core.rs", "lib/util.py", "main.py"}
	if got := paths(l); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
	if l.DirCount != 2 {
		t.Errorf("DirCount = %d, want 2", l.DirCount)
	}
	if l.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", l.Skipped)
	}
	for _, e := range l.Entries {
		if e.Size == 0 || e.ModTime.IsZero() || e.Abs == "" {
			t.Errorf("entry %s missing metadata: %+v", e.Path, e)
		}
	}
	if !reflect.DeepEqual(l.Dirs["lib"], []string{"core.rs", "util.py"}) {
		t.Errorf("Dirs[lib] = %v", l.Dirs["lib"])
	}
	if !l.Entries[0].Markdown() || l.Entries[1].Markdown() {
		t.Error("Markdown() misclassifies entries")
	}
}

func TestWalkSkipDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "node_modules/pkg/index.js", "x")
	writeFile(t, dir, "__pycache__/cached.py", "pass")
	writeFile(t, dir, ".hidden/secret.py", "pass")
	writeFile(t, dir, "vendor/dep.go", "package dep")

	l, err := Walk(context.Background(), dir, Options{IgnoreDirs: []string{"vendor"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if got := paths(l); !reflect.DeepEqual(got, []string{"main.py"}) {
		t.Errorf("paths = %v, want [main.py]", got)
	}
}

func TestWalkGitignoreAndExcludes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\n*.log.py\n")
	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "generated/out.py", "pass")
	writeFile(t, dir, "debug.log.py", "pass")
	writeFile(t, dir, "api/schema.gen.ts", "x")
	writeFile(t, dir, "api/client.ts", "x")

	l, err := Walk(context.Background(), dir, Options{ExcludePatterns: []string{"*.gen.ts"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"api/client.ts", "main.py"}
	if got := paths(l); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	cmd := exec.Command("git", "init", "-q")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init: %v\n%s", err, out)
	}
}

func TestWalkGitNonASCIINames(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "héllo.py", "pass")
	writeFile(t, dir, "plain.py", "pass")
	writeFile(t, dir, "données/modèle.py", "pass")
	initGitRepo(t, dir)

	l, err := Walk(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"données/modèle.py", "héllo.py", "plain.py"}
	if got := paths(l); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestWalkGitPrunesIgnoredDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "out/\n")
	writeFile(t, dir, "out/gen.py", "pass")
	writeFile(t, dir, "out/deep/more.py", "pass")
	writeFile(t, dir, "src/main.py", "pass")
	initGitRepo(t, dir)

	l, err := Walk(context.Background(), dir, Options{MaxTreeDepth: 5, MaxTreeEntries: 40})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if got := paths(l); !reflect.DeepEqual(got, []string{"src/main.py"}) {
		t.Errorf("paths = %v", got)
	}
	if l.DirCount != 1 {
		t.Errorf("DirCount = %d, want 1", l.DirCount)
	}
	for _, line := range l.Tree {
		if strings.Contains(line, "out") {
			t.Errorf("ignored directory drawn in tree: %q", line)
		}
	}
}

func TestWalkExcludesArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "PROJECT_INDEX.json", "{}")
	writeFile(t, dir, "PROJECT_INDEX.json.tmp123.json", "{}")
	writeFile(t, dir, "config.json", "{}")
	writeFile(t, dir, "sub/PROJECT_INDEX.json", "{}")

	l, err := Walk(context.Background(), dir, Options{Artifacts: []string{"PROJECT_INDEX.json"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"config.json", "sub/PROJECT_INDEX.json"}
	if got := paths(l); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestWalkMaxFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"a.py", "b.py", "c.py", "d.py"} {
		writeFile(t, dir, name, "pass")
	}
	l, err := Walk(context.Background(), dir, Options{MaxFiles: 3})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(l.Entries) != 3 || l.Dropped != 1 {
		t.Errorf("entries = %v, dropped = %d", paths(l), l.Dropped)
	}
}

func TestWalkFollowsSymlinkedDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "shared.py", "pass")
	writeFile(t, dir, "real/mod.py", "pass")

	if err := os.Symlink(outside, filepath.Join(dir, "linked")); err != nil {
		t.Skip("symlinks not supported")
	}
	// A cycle back to the root must not loop.
	if err := os.Symlink(dir, filepath.Join(dir, "real", "loop")); err != nil {
		t.Skip("symlinks not supported")
	}

	l, err := Walk(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"linked/shared.py", "real/mod.py"}
	if got := paths(l); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestWalkSymlinkedFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "real.py", "pass")
	if err := os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "link.py")); err != nil {
		t.Skip("symlinks not supported")
	}
	l, err := Walk(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if got := paths(l); !reflect.DeepEqual(got, []string{"link.py", "real.py"}) {
		t.Errorf("paths = %v", got)
	}
}

func TestWalkErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "file.py", "pass")

	if _, err := Walk(context.Background(), filepath.Join(dir, "missing"), Options{}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing root err = %v", err)
	}
	if _, err := Walk(context.Background(), filepath.Join(dir, "file.py"), Options{}); err == nil {
		t.Error("file root: expected error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Walk(ctx, dir, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled err = %v", err)
	}
}

func TestTree(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# x")
	writeFile(t, dir, "go.mod", "module x")
	writeFile(t, dir, "src/a.py", "pass")
	writeFile(t, dir, "src/deep/b.py", "pass")
	writeFile(t, dir, "Docs/notes.md", "# n")

	l, err := Walk(context.Background(), dir, Options{MaxTreeDepth: 5, MaxTreeEntries: 40})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{
		".",
		"├── Docs/",
		"├── src/ (2 files)",
		"│   └── deep/ (1 files)",
		"├── go.mod",
		"└── README.md",
	}
	if !reflect.DeepEqual(l.Tree, want) {
		t.Errorf("tree =\n%s\nwant\n%s", strings.Join(l.Tree, "\n"), strings.Join(want, "\n"))
	}
}

func TestTreeLimits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a/b/c/d.py", "pass")
	for _, name := range []string{"p", "q", "r", "s"} {
		writeFile(t, dir, "many/"+name+"/x.py", "pass")
	}

	l, err := Walk(context.Background(), dir, Options{MaxTreeDepth: 1, MaxTreeEntries: 2})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	got := strings.Join(l.Tree, "\n")
	for _, want := range []string{"└── ...", "... (2 more)"} {
		if !strings.Contains(got, want) {
			t.Errorf("tree missing %q:\n%s", want, got)
		}
	}
}

func TestIsTestFile(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want bool
	}{
		{"tests/test_scenes.py", true},
		{"tests/conftest.py", true},
		{"spec/models/user_spec.rb", true},
		{"src/__tests__/foo.js", true},
		{"src/test/java/FooTest.java", true},
		{"internal/graph/graph_test.go", true},
		{"test_helpers.py", true},
		{"user_spec.rb", true},
		{"foo.test.js", true},
		{"foo.spec.ts", true},
		{"loom/models.py", false},
		{"internal/graph/graph.go", false},
		{"conftest.py", false},
		{"testing_utils.go", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			if got := IsTestFile(tc.path); got != tc.want {
				t.Errorf("IsTestFile(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
