// Package ranking shrinks an index to fit a byte budget, keeping the most
// important files when it has to drop some.
package ranking

import (
	"fmt"
	"sort"

	"github.com/phobologic/projindex/internal/discover"
	"github.com/phobologic/projindex/internal/graph"
	"github.com/phobologic/projindex/internal/lang"
	"github.com/phobologic/projindex/internal/model"
)

const (
	treeLines     = 10
	treeMarker    = "... (truncated)"
	shortDocLen   = 40
	minKeptFiles  = 10
	keepHeadroom  = 0.9
	classesWeight = 5
)

// Encoder serializes a document so its size can be measured.
type Encoder func(*model.IndexDocument) ([]byte, error)

// Report describes what Fit did.
type Report struct {
	InitialSize int
	FinalSize   int
	// Steps lists the compression steps applied, in order.
	Steps   []string
	Omitted int
}

// Fit applies progressively lossier steps to doc until its encoding is at
// most target bytes: cut the tree, shorten docs, drop docs, drop the
// documentation map, then drop the least important files. doc is modified
// in place. langOf names the language of a path for recounting stats after
// files are dropped. Fit returns as soon as the document fits; a document
// that still exceeds the target after every step is returned as small as
// it could be made.
func Fit(doc *model.IndexDocument, target int, encode Encoder, langOf func(string) string) (Report, error) {
	size, err := measure(doc, encode)
	if err != nil {
		return Report{}, err
	}
	r := Report{InitialSize: size, FinalSize: size}
	if target <= 0 || size <= target {
		return r, nil
	}

	steps := []struct {
		name  string
		apply func(*model.IndexDocument) bool
	}{
		{"tree", cutTree},
		{"short docs", func(d *model.IndexDocument) bool { return rewriteDocs(d, shortDocLen) }},
		{"no docs", func(d *model.IndexDocument) bool { return rewriteDocs(d, 0) }},
		{"no documentation map", dropDocumentation},
	}
	for _, step := range steps {
		if !step.apply(doc) {
			continue
		}
		r.Steps = append(r.Steps, step.name)
		if r.FinalSize, err = measure(doc, encode); err != nil {
			return r, err
		}
		if r.FinalSize <= target {
			return r, nil
		}
	}

	for r.FinalSize > target {
		n := len(doc.Files)
		keep := int(float64(n) * float64(target) / float64(r.FinalSize) * keepHeadroom)
		if keep < minKeptFiles {
			keep = minKeptFiles
		}
		if keep >= n {
			break
		}
		kept := make(map[string]struct{}, keep)
		for _, p := range Order(doc.Files)[:keep] {
			kept[p] = struct{}{}
		}
		removed := n - keep
		*doc = *SelectFiles(doc, kept)
		doc.RecountStats(langOf)
		doc.Stats.Omitted += removed
		r.Omitted += removed
		r.Steps = append(r.Steps, fmt.Sprintf("kept %d files", keep))
		if r.FinalSize, err = measure(doc, encode); err != nil {
			return r, err
		}
	}
	return r, nil
}

func measure(doc *model.IndexDocument, encode Encoder) (int, error) {
	data, err := encode(doc)
	if err != nil {
		return 0, fmt.Errorf("measuring index: %w", err)
	}
	return len(data), nil
}

func cutTree(doc *model.IndexDocument) bool {
	if len(doc.Tree) <= treeLines {
		return false
	}
	tree := make([]string, treeLines, treeLines+1)
	copy(tree, doc.Tree)
	doc.Tree = append(tree, treeMarker)
	return true
}

// rewriteDocs shortens every function and method doc to max characters, or
// clears it when max is 0. It reports whether anything changed.
func rewriteDocs(doc *model.IndexDocument, max int) bool {
	changed := false
	shorten := func(fns []model.FunctionSignature) {
		for i := range fns {
			if fns[i].Doc == "" {
				continue
			}
			d := ""
			if max > 0 {
				d = lang.TruncateDoc(fns[i].Doc, max)
			}
			if d != fns[i].Doc {
				fns[i].Doc = d
				changed = true
			}
		}
	}
	for _, rec := range doc.Files {
		shorten(rec.Functions)
		for _, c := range rec.Classes {
			shorten(c.Methods)
		}
	}
	return changed
}

func dropDocumentation(doc *model.IndexDocument) bool {
	if len(doc.Documentation) == 0 {
		return false
	}
	doc.Documentation = nil
	return true
}

// Order returns file paths most important first. Files that others call
// into rank higher (PageRank over resolved calls); test files come after
// everything else. Ties fall back to the number of functions, a bonus for
// files that define classes, and finally the path.
func Order(files map[string]model.FileRecord) []string {
	ranks := graph.Rank(graph.BuildFileGraph(files))
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if ta, tb := discover.IsTestFile(a), discover.IsTestFile(b); ta != tb {
			return tb
		}
		if ranks[a] != ranks[b] {
			return ranks[a] > ranks[b]
		}
		if ia, ib := importance(files[a]), importance(files[b]); ia != ib {
			return ia > ib
		}
		return a < b
	})
	return paths
}

func importance(rec model.FileRecord) int {
	score := len(rec.Functions)
	if len(rec.Classes) > 0 {
		score += classesWeight
	}
	return score
}

// SelectFiles returns a copy of doc holding only the files in keep. Call
// edges survive when their caller is defined in a kept file; dependencies
// survive for kept sources, with imports of dropped files removed.
func SelectFiles(doc *model.IndexDocument, keep map[string]struct{}) *model.IndexDocument {
	out := *doc
	out.Files = make(map[string]model.FileRecord, len(keep))
	for p, rec := range doc.Files {
		if _, ok := keep[p]; ok {
			out.Files[p] = rec
		}
	}

	// Build set of caller names defined in kept files to filter call edges.
	callers := make(map[string]struct{})
	for _, rec := range out.Files {
		for _, fn := range rec.Functions {
			callers[fn.Name] = struct{}{}
		}
		for cls, c := range rec.Classes {
			for _, m := range c.Methods {
				callers[cls+"."+m.Name] = struct{}{}
			}
		}
	}
	out.CallGraph = nil
	for _, e := range doc.CallGraph {
		if _, ok := callers[e.Caller]; ok {
			out.CallGraph = append(out.CallGraph, e)
		}
	}

	out.Dependencies = nil
	for src, targets := range doc.Dependencies {
		if _, ok := keep[src]; !ok {
			continue
		}
		var kept []string
		for _, t := range targets {
			_, indexed := doc.Files[t]
			_, selected := keep[t]
			if !indexed || selected {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			continue
		}
		if out.Dependencies == nil {
			out.Dependencies = make(map[string][]string)
		}
		out.Dependencies[src] = kept
	}
	return &out
}
