// Package project locates the project root and recognizes its build system.
package project

import (
	"os"
	"path/filepath"
)

// RootEnv names the environment variable that pins the project root.
const RootEnv = "CLAUDE_PROJECT_DIR"

// Kind identifies a recognized build system.
type Kind int

const (
	Unknown Kind = iota
	Go
	Node
	Python
	Rust
	Swift
	Maven
	Gradle
	Make
)

var kindNames = map[Kind]string{
	Unknown: "unknown",
	Go:      "go",
	Node:    "node",
	Python:  "python",
	Rust:    "rust",
	Swift:   "swift",
	Maven:   "maven",
	Gradle:  "gradle",
	Make:    "make",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// BuildSystem is the result of Detect. Marker is the file that matched and
// is empty when Kind is Unknown.
type BuildSystem struct {
	Kind   Kind
	Marker string
}

// Recognized reports whether a build system was found.
func (b BuildSystem) Recognized() bool {
	return b.Kind != Unknown
}

// markers are checked in order; the first one present wins.
var markers = []struct {
	file string
	kind Kind
}{
	{"go.mod", Go},
	{"package.json", Node},
	{"pyproject.toml", Python},
	{"setup.py", Python},
	{"requirements.txt", Python},
	{"Cargo.toml", Rust},
	{"Package.swift", Swift},
	{"pom.xml", Maven},
	{"build.gradle", Gradle},
	{"build.gradle.kts", Gradle},
	{"Makefile", Make},
}

// Detect looks for build marker files directly inside dir.
func Detect(dir string) BuildSystem {
	for _, m := range markers {
		info, err := os.Stat(filepath.Join(dir, m.file))
		if err == nil && !info.IsDir() {
			return BuildSystem{Kind: m.kind, Marker: m.file}
		}
	}
	return BuildSystem{}
}

// FindRoot returns the project root for start. $CLAUDE_PROJECT_DIR wins
// when set; otherwise the nearest ancestor of start (inclusive) holding
// .git or a build marker is used, falling back to start itself.
func FindRoot(start string) (string, error) {
	if dir := os.Getenv(RootEnv); dir != "" {
		return filepath.Abs(dir)
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for dir := abs; ; {
		if isRoot(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

func isRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	return Detect(dir).Recognized()
}
