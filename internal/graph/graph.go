// Package graph resolves calls across files, builds the call graph and
// import dependencies, and ranks files with PageRank.
package graph

import (
	"math"
	"path"
	"sort"
	"strings"

	"github.com/phobologic/projindex/internal/model"
)

// Definitions indexes every function, method and class name to the set of
// files that define it.
func Definitions(files map[string]model.FileRecord) map[string]map[string]struct{} {
	defines := make(map[string]map[string]struct{})
	add := func(name, file string) {
		if defines[name] == nil {
			defines[name] = make(map[string]struct{})
		}
		defines[name][file] = struct{}{}
	}
	for p, rec := range files {
		for _, fn := range rec.Functions {
			add(fn.Name, p)
		}
		for cls, c := range rec.Classes {
			add(cls, p)
			for _, m := range c.Methods {
				add(m.Name, p)
			}
		}
	}
	return defines
}

// ResolveCalls drops call names that no file in the project defines. Calls
// keep their sorted order.
func ResolveCalls(files map[string]model.FileRecord) {
	defines := Definitions(files)
	keep := func(calls []string) []string {
		var out []string
		for _, c := range calls {
			if _, ok := defines[c]; ok {
				out = append(out, c)
			}
		}
		return out
	}
	for p, rec := range files {
		for i := range rec.Functions {
			rec.Functions[i].Calls = keep(rec.Functions[i].Calls)
		}
		for name, c := range rec.Classes {
			for i := range c.Methods {
				c.Methods[i].Calls = keep(c.Methods[i].Calls)
			}
			rec.Classes[name] = c
		}
		files[p] = rec
	}
}

// BuildCallGraph returns caller → callee edges from resolved calls. Methods
// appear as "Class.method". Edges are deduplicated and sorted.
func BuildCallGraph(files map[string]model.FileRecord) []model.CallEdge {
	type edgeKey struct{ caller, callee string }
	seen := make(map[edgeKey]struct{})
	var edges []model.CallEdge
	add := func(caller string, calls []string) {
		for _, callee := range calls {
			key := edgeKey{caller, callee}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, model.CallEdge{Caller: caller, Callee: callee})
		}
	}
	for _, rec := range files {
		for _, fn := range rec.Functions {
			add(fn.Name, fn.Calls)
		}
		for cls, c := range rec.Classes {
			for _, m := range c.Methods {
				add(cls+"."+m.Name, m.Calls)
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		return edges[i].Callee < edges[j].Callee
	})
	return edges
}

var resolveSuffixes = []string{"", ".py", ".js", ".ts", ".jsx", ".tsx", ".rb", ".sh", "/index.js", "/index.ts", "/__init__.py"}

// BuildDependencies maps each file to its imports. Relative imports ("./x",
// "../x", Python ".mod") resolve to indexed files and are dropped when no
// file matches. Python dotted imports that name an indexed module resolve
// to it; anything else is kept verbatim as an external dependency.
func BuildDependencies(files map[string]model.FileRecord) map[string][]string {
	deps := make(map[string][]string)
	for p, rec := range files {
		dir := path.Dir(p)
		var out []string
		for _, imp := range rec.Imports {
			target, ok := resolveImport(files, dir, rec.Tag, imp)
			if !ok {
				continue
			}
			if !containsString(out, target) {
				out = append(out, target)
			}
		}
		if len(out) > 0 {
			deps[p] = out
		}
	}
	if len(deps) == 0 {
		return nil
	}
	return deps
}

func resolveImport(files map[string]model.FileRecord, dir, tag, imp string) (string, bool) {
	switch {
	case strings.HasPrefix(imp, "./"), strings.HasPrefix(imp, "../"):
		return lookup(files, path.Join(dir, imp))
	case strings.HasPrefix(imp, "."):
		// Python relative: one dot is the current package, each extra dot
		// climbs one level.
		rest := strings.TrimLeft(imp, ".")
		base := dir
		for i := 1; i < len(imp)-len(rest); i++ {
			base = path.Dir(base)
		}
		return lookup(files, path.Join(base, strings.ReplaceAll(rest, ".", "/")))
	case tag == model.TagPython:
		if target, ok := lookup(files, strings.ReplaceAll(imp, ".", "/")); ok {
			return target, true
		}
	}
	return imp, true
}

func lookup(files map[string]model.FileRecord, base string) (string, bool) {
	for _, suffix := range resolveSuffixes {
		candidate := strings.TrimPrefix(base+suffix, "./")
		if _, ok := files[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// FileGraph links files by resolved calls: an edge runs from the calling
// file to each file defining the callee. Self-edges are dropped.
type FileGraph struct {
	Nodes []string
	Edges map[string][]string
}

// BuildFileGraph builds a FileGraph from resolved records.
func BuildFileGraph(files map[string]model.FileRecord) FileGraph {
	defines := Definitions(files)
	g := FileGraph{Edges: make(map[string][]string)}
	for p := range files {
		g.Nodes = append(g.Nodes, p)
	}
	sort.Strings(g.Nodes)

	for _, p := range g.Nodes {
		rec := files[p]
		var calls []string
		for _, fn := range rec.Functions {
			calls = append(calls, fn.Calls...)
		}
		for _, c := range rec.Classes {
			for _, m := range c.Methods {
				calls = append(calls, m.Calls...)
			}
		}
		sort.Strings(calls)
		for _, callee := range calls {
			for _, target := range sortedKeys(defines[callee]) {
				if target != p {
					g.Edges[p] = append(g.Edges[p], target)
				}
			}
		}
	}
	return g
}

// Rank applies PageRank (damping 0.85) to the file graph. Every node gets a
// score; scores sum to 1.
func Rank(g FileGraph) map[string]float64 {
	n := len(g.Nodes)
	if n == 0 {
		return nil
	}
	if len(g.Edges) == 0 {
		uniform := 1.0 / float64(n)
		ranks := make(map[string]float64, n)
		for _, node := range g.Nodes {
			ranks[node] = uniform
		}
		return ranks
	}
	return pageRank(g.Nodes, g.Edges, 0.85, 100, 1e-6)
}

// pageRank iterates over nodes in slice order so results are reproducible
// bit for bit.
func pageRank(nodes []string, outEdges map[string][]string, alpha float64, maxIter int, tol float64) map[string]float64 {
	n := len(nodes)
	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for _, node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for _, node := range nodes {
			if len(outEdges[node]) == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for _, node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for _, src := range nodes {
			targets := outEdges[src]
			if len(targets) == 0 {
				continue
			}
			contrib := alpha * rank[src] / float64(len(targets))
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for _, node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
