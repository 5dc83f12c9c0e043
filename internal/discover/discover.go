// Package discover walks a project tree and lists the files worth indexing.
package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/projindex/internal/lang"
)

// Entry is one candidate file.
type Entry struct {
	Path    string // relative to root, slash-separated
	Abs     string
	Size    int64
	ModTime time.Time
	Ext     string
}

// Markdown reports whether the entry is a documentation file.
func (e Entry) Markdown() bool {
	return lang.IsMarkdown(e.Ext)
}

// Options configure a walk.
type Options struct {
	IgnoreDirs      []string
	ExcludePatterns []string
	// MaxFiles caps the number of candidates; zero means no cap.
	MaxFiles       int
	MaxTreeDepth   int
	MaxTreeEntries int
	// Artifacts are root-level file names never listed, such as the index
	// output. Temporary files derived from them are excluded too.
	Artifacts []string
}

// Listing is the result of a walk.
type Listing struct {
	Root    string
	Entries []Entry // code and Markdown files, sorted by path
	// Dirs maps each non-root directory to the candidate basenames it holds.
	Dirs map[string][]string
	// DirCount is the number of directories visited below the root.
	DirCount int
	Tree     []string
	// Dropped counts candidates cut by MaxFiles; Skipped counts visited
	// files that were not candidates.
	Dropped int
	Skipped int
}

var skipDirs = map[string]struct{}{
	".git":          {},
	".hg":           {},
	".svn":          {},
	"node_modules":  {},
	"__pycache__":   {},
	".venv":         {},
	"venv":          {},
	"env":           {},
	"build":         {},
	"dist":          {},
	".next":         {},
	"target":        {},
	".pytest_cache": {},
	"coverage":      {},
	".idea":         {},
	".vscode":       {},
	"eggs":          {},
	".eggs":         {},
	".claude":       {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
}

// importantFiles are shown in the tree even though they are not indexed.
var importantFiles = map[string]struct{}{
	"README.md": {}, "package.json": {}, "requirements.txt": {},
	"Cargo.toml": {}, "go.mod": {}, "pom.xml": {}, "build.gradle": {},
	"setup.py": {}, "pyproject.toml": {}, "Makefile": {},
	".indexconfig.yaml": {},
}

type dirNode struct {
	name      string
	subdirs   []*dirNode
	important []string
	codeFiles int // recursive
}

type walker struct {
	ctx       context.Context
	root      string
	opts      Options
	skip      map[string]struct{}
	gitFiles  map[string]struct{}
	gitDirs   map[string]struct{}
	gitignore *ignore.GitIgnore
	excludes  *ignore.GitIgnore
	visited   map[string]struct{}
	listing   *Listing
}

// Walk lists candidate files under root. Symlinked directories are followed
// once per physical directory.
func Walk(ctx context.Context, root string, opts Options) (*Listing, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	w := &walker{
		ctx:     ctx,
		root:    abs,
		opts:    opts,
		skip:    make(map[string]struct{}, len(skipDirs)+len(opts.IgnoreDirs)),
		visited: make(map[string]struct{}),
		listing: &Listing{Root: abs, Dirs: make(map[string][]string)},
	}
	for d := range skipDirs {
		w.skip[d] = struct{}{}
	}
	for _, d := range opts.IgnoreDirs {
		w.skip[d] = struct{}{}
	}
	w.gitFiles = gitLsFiles(ctx, abs)
	if w.gitFiles == nil {
		w.gitignore = loadGitignore(abs)
	} else {
		w.gitDirs = gitDirs(w.gitFiles)
	}
	if len(opts.ExcludePatterns) > 0 {
		w.excludes = ignore.CompileIgnoreLines(opts.ExcludePatterns...)
	}

	top := &dirNode{name: "."}
	if err := w.walkDir(abs, "", top); err != nil {
		return nil, err
	}

	l := w.listing
	sort.Slice(l.Entries, func(i, j int) bool { return l.Entries[i].Path < l.Entries[j].Path })
	if opts.MaxFiles > 0 && len(l.Entries) > opts.MaxFiles {
		l.Dropped = len(l.Entries) - opts.MaxFiles
		l.Entries = l.Entries[:opts.MaxFiles]
	}
	l.Tree = renderTree(top, opts.MaxTreeDepth, opts.MaxTreeEntries)
	return l, nil
}

func (w *walker) walkDir(absDir, rel string, node *dirNode) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	phys, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return nil
	}
	if _, seen := w.visited[phys]; seen {
		return nil
	}
	w.visited[phys] = struct{}{}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil // unreadable directories are skipped
	}
	for _, d := range entries {
		name := d.Name()
		childAbs := filepath.Join(absDir, name)
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}

		isDir := d.IsDir()
		var info os.FileInfo
		if d.Type()&os.ModeSymlink != 0 {
			info, err = os.Stat(childAbs)
			if err != nil {
				continue // broken link
			}
			isDir = info.IsDir()
		}

		if isDir {
			if !w.includeDir(name, childRel) {
				continue
			}
			child := &dirNode{name: name}
			before := len(w.visited)
			if err := w.walkDir(childAbs, childRel, child); err != nil {
				return err
			}
			if len(w.visited) == before {
				continue // cycle
			}
			w.listing.DirCount++
			node.subdirs = append(node.subdirs, child)
			node.codeFiles += child.codeFiles
			continue
		}

		if _, ok := importantFiles[name]; ok {
			node.important = append(node.important, name)
		}
		if strings.HasPrefix(name, ".") {
			continue
		}
		if rel == "" && w.isArtifact(name) {
			continue
		}
		ext := strings.ToLower(path.Ext(name))
		if !lang.IsCode(ext) && !lang.IsMarkdown(ext) {
			if d.Type().IsRegular() || info != nil {
				w.listing.Skipped++
			}
			continue
		}
		if w.ignored(childRel) {
			w.listing.Skipped++
			continue
		}
		if info == nil {
			if info, err = d.Info(); err != nil {
				continue
			}
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if lang.IsCode(ext) {
			node.codeFiles++
		}
		if rel != "" {
			w.listing.Dirs[rel] = append(w.listing.Dirs[rel], name)
		}
		w.listing.Entries = append(w.listing.Entries, Entry{
			Path:    childRel,
			Abs:     childAbs,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Ext:     ext,
		})
	}
	return nil
}

func (w *walker) includeDir(name, rel string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if _, skip := w.skip[name]; skip {
		return false
	}
	if w.gitDirs != nil {
		// Ignored or empty in git: nothing below it can be listed.
		if _, ok := w.gitDirs[rel]; !ok {
			return false
		}
	} else if w.gitignore != nil && w.gitignore.MatchesPath(rel+"/") {
		return false
	}
	if w.excludes != nil && w.excludes.MatchesPath(rel+"/") {
		return false
	}
	return true
}

func (w *walker) ignored(rel string) bool {
	if w.gitFiles != nil {
		if _, ok := w.gitFiles[rel]; !ok {
			return true
		}
	} else if w.gitignore != nil && w.gitignore.MatchesPath(rel) {
		return true
	}
	return w.excludes != nil && w.excludes.MatchesPath(rel)
}

func (w *walker) isArtifact(name string) bool {
	for _, a := range w.opts.Artifacts {
		if name == a || strings.HasPrefix(name, a+".tmp") {
			return true
		}
	}
	return false
}

func gitLsFiles(ctx context.Context, root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	if _, err := os.Stat(gitDir); err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// -z with quotePath off keeps non-ASCII and newline names verbatim.
	cmd := exec.CommandContext(ctx, "git", "-c", "core.quotePath=false",
		"ls-files", "-z", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, name := range strings.Split(string(out), "\x00") {
		if name != "" {
			files[name] = struct{}{}
		}
	}
	return files
}

// gitDirs returns every directory that holds at least one listed file.
func gitDirs(files map[string]struct{}) map[string]struct{} {
	dirs := make(map[string]struct{})
	for f := range files {
		for d := path.Dir(f); d != "." && d != "/"; d = path.Dir(d) {
			if _, seen := dirs[d]; seen {
				break
			}
			dirs[d] = struct{}{}
		}
	}
	return dirs
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

var testDirs = map[string]struct{}{
	"test": {}, "tests": {}, "spec": {}, "__tests__": {},
}

// IsTestFile reports whether a slash-separated path looks like a test file,
// either by living under a test directory or by its name.
func IsTestFile(p string) bool {
	parts := strings.Split(p, "/")
	for _, dir := range parts[:len(parts)-1] {
		if _, ok := testDirs[dir]; ok {
			return true
		}
	}
	name := parts[len(parts)-1]
	stem := strings.TrimSuffix(name, path.Ext(name))
	switch {
	case strings.HasPrefix(name, "test_"):
		return true
	case strings.HasSuffix(stem, "_test"), strings.HasSuffix(stem, "_spec"):
		return true
	case strings.HasSuffix(stem, ".test"), strings.HasSuffix(stem, ".spec"):
		return true
	}
	return false
}
