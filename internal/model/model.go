// Package model defines core data structures for projindex.
package model

import "time"

// Language tags used in the dense encoding.
const (
	TagPython     = "p"
	TagJavaScript = "j"
	TagTypeScript = "t"
	TagShell      = "s"
	TagSwift      = "w"
	TagGo         = "g"
	TagRuby       = "r"
	TagUnknown    = "u"
)

// MaxDocLength bounds docstring and comment summaries.
const MaxDocLength = 120

// FunctionSignature is one function or method extracted from a source file.
type FunctionSignature struct {
	Name      string
	Line      int
	Signature string
	Calls     []string
	Doc       string
}

// ClassRecord holds a class-like definition and its methods in source order.
type ClassRecord struct {
	Line    int
	Methods []FunctionSignature
}

// FileRecord holds the extracted signature data for a single file.
// Imports are consumed while building the dependency map and are not
// serialized per file.
type FileRecord struct {
	Tag       string
	Parsed    bool
	Functions []FunctionSignature
	Classes   map[string]ClassRecord
	Imports   []string
}

// Empty reports whether the record carries no signatures.
func (r FileRecord) Empty() bool {
	return len(r.Functions) == 0 && len(r.Classes) == 0
}

// SetClass stores a class record. A later definition with the same name
// replaces the earlier one.
func (r *FileRecord) SetClass(name string, c ClassRecord) {
	if r.Classes == nil {
		r.Classes = make(map[string]ClassRecord)
	}
	r.Classes[name] = c
}

// CallEdge is a heuristic caller → callee edge.
type CallEdge struct {
	Caller string
	Callee string
}

// Stats summarizes parse outcomes by language.
type Stats struct {
	TotalFiles       int
	TotalDirectories int
	FullyParsed      map[string]int
	ListedOnly       map[string]int
	MarkdownFiles    int
	Omitted          int
}

// IndexDocument is the complete project index, ready for serialization.
type IndexDocument struct {
	GeneratedAt       time.Time
	Root              string
	BuildSystem       string
	Fingerprint       string
	Tree              []string
	Stats             Stats
	Files             map[string]FileRecord
	CallGraph         []CallEdge
	Dependencies      map[string][]string
	Documentation     map[string][]string
	DirectoryPurposes map[string]string
}

// RecountStats rebuilds the parse-outcome partition from Files.
// Languages are keyed by name via langOf, which maps a path to its language.
func (d *IndexDocument) RecountStats(langOf func(path string) string) {
	d.Stats.FullyParsed = nil
	d.Stats.ListedOnly = nil
	for path, rec := range d.Files {
		name := langOf(path)
		if rec.Parsed {
			if d.Stats.FullyParsed == nil {
				d.Stats.FullyParsed = make(map[string]int)
			}
			d.Stats.FullyParsed[name]++
		} else {
			if d.Stats.ListedOnly == nil {
				d.Stats.ListedOnly = make(map[string]int)
			}
			d.Stats.ListedOnly[name]++
		}
	}
	d.Stats.TotalFiles = len(d.Files)
}
