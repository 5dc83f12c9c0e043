// Package lang provides a language registry mapping file extensions to
// signature extractors for each supported language.
package lang

import (
	"errors"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/phobologic/projindex/internal/model"
)

// ErrParseFailure is returned when a parser cannot produce structured output.
var ErrParseFailure = errors.New("parse failure")

var whitespaceRe = regexp.MustCompile(`\s+`)

// Parser extracts a FileRecord from file contents.
type Parser interface {
	Parse(src []byte) (model.FileRecord, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(src []byte) (model.FileRecord, error)

// Parse calls f(src).
func (f ParserFunc) Parse(src []byte) (model.FileRecord, error) {
	return f(src)
}

// Language describes one parseable language.
type Language struct {
	Name       string
	Tag        string
	Extensions []string
	Parser     Parser
}

// Registry maps extensions and names to languages.
type Registry struct {
	byName map[string]*Language
	byExt  map[string]*Language
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Language),
		byExt:  make(map[string]*Language),
	}
}

// Default returns a registry with every built-in language.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Python())
	r.Register(JavaScript())
	r.Register(TypeScript())
	r.Register(TSX())
	r.Register(Shell())
	r.Register(Swift())
	r.Register(Go())
	r.Register(Ruby())
	return r
}

// Register adds l, replacing any language previously registered under the
// same name or extension.
func (r *Registry) Register(l *Language) {
	r.byName[l.Name] = l
	for _, ext := range l.Extensions {
		r.byExt[ext] = l
	}
}

// ForExtension returns the language for a file extension, or nil if none.
func (r *Registry) ForExtension(ext string) *Language {
	return r.byExt[strings.ToLower(ext)]
}

// Lookup returns the language registered under name.
func (r *Registry) Lookup(name string) (*Language, bool) {
	l, ok := r.byName[name]
	return l, ok
}

// Names returns the registered language names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NameForPath returns the language name used in stats for a file: the
// registered language when there is one, else the bare extension.
func (r *Registry) NameForPath(p string) string {
	ext := path.Ext(p)
	if l := r.ForExtension(ext); l != nil {
		return l.Name
	}
	if ext == "" {
		return "unknown"
	}
	return strings.ToLower(ext[1:])
}

// codeExtensions are recognized source extensions. Files with one of these
// but no registered parser are listed without signatures.
var codeExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {}, ".swift": {},
	".go": {}, ".rs": {}, ".java": {}, ".c": {}, ".cpp": {}, ".cc": {},
	".cxx": {}, ".h": {}, ".hpp": {}, ".rb": {}, ".php": {}, ".kt": {},
	".scala": {}, ".cs": {}, ".sh": {}, ".bash": {}, ".sql": {}, ".r": {},
	".lua": {}, ".m": {}, ".ex": {}, ".exs": {}, ".jl": {}, ".dart": {},
	".vue": {}, ".svelte": {}, ".json": {}, ".html": {}, ".css": {},
}

var markdownExtensions = map[string]struct{}{
	".md": {}, ".markdown": {}, ".rst": {},
}

// IsCode reports whether ext is a recognized source extension.
func IsCode(ext string) bool {
	_, ok := codeExtensions[strings.ToLower(ext)]
	return ok
}

// IsMarkdown reports whether ext is a documentation extension.
func IsMarkdown(ext string) bool {
	_, ok := markdownExtensions[strings.ToLower(ext)]
	return ok
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// TruncateDoc collapses whitespace and cuts s to max characters, marking
// the cut with "...".
func TruncateDoc(s string, max int) string {
	s = CollapseWhitespace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// callSet collects call names, skipping excluded words.
type callSet struct {
	exclude map[string]struct{}
	names   map[string]struct{}
}

func newCallSet(exclude map[string]struct{}) *callSet {
	return &callSet{exclude: exclude, names: make(map[string]struct{})}
}

func (c *callSet) add(name string) {
	if name == "" {
		return
	}
	if _, skip := c.exclude[name]; skip {
		return
	}
	c.names[name] = struct{}{}
}

// sorted returns the collected names in order, or nil when empty.
func (c *callSet) sorted() []string {
	if len(c.names) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// appendUnique appends s to list unless already present.
func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
