// Package toon renders an index in TOON (Token-Oriented Object Notation).
package toon

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/phobologic/projindex/internal/graph"
	"github.com/phobologic/projindex/internal/model"
	"github.com/phobologic/projindex/internal/purpose"
	"github.com/phobologic/projindex/internal/ranking"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts an index into TOON tables. Files are listed most
// important first with their PageRank score.
func Encode(doc *model.IndexDocument) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(doc.Root)))
	if !doc.GeneratedAt.IsZero() {
		parts = append(parts, fmt.Sprintf("at: %s", encodeValue(doc.GeneratedAt.UTC().Format(time.RFC3339))))
	}
	if doc.BuildSystem != "" {
		parts = append(parts, fmt.Sprintf("build: %s", encodeValue(doc.BuildSystem)))
	}

	ranks := graph.Rank(graph.BuildFileGraph(doc.Files))
	order := ranking.Order(doc.Files)

	var fileRows [][]string
	for _, p := range order {
		rec := doc.Files[p]
		fileRows = append(fileRows, []string{
			p,
			rec.Tag,
			status(rec),
			fmt.Sprintf("%.4f", ranks[p]),
			purpose.File(p),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "lang", "status", "rank", "purpose"}, fileRows))

	var symbolRows [][]string
	for _, p := range order {
		rec := doc.Files[p]
		for _, fn := range rec.Functions {
			symbolRows = append(symbolRows, symbolRow(p, fn.Name, "function", fn))
		}
		classes := make([]string, 0, len(rec.Classes))
		for name := range rec.Classes {
			classes = append(classes, name)
		}
		sort.Strings(classes)
		for _, name := range classes {
			c := rec.Classes[name]
			symbolRows = append(symbolRows, []string{p, name, "class", strconv.Itoa(c.Line), ""})
			for _, m := range c.Methods {
				symbolRows = append(symbolRows, symbolRow(p, name+"."+m.Name, "method", m))
			}
		}
	}
	parts = append(parts, formatTabular("symbols", []string{"file", "name", "kind", "line", "signature"}, symbolRows))

	var depRows [][]string
	sources := make([]string, 0, len(doc.Dependencies))
	for src := range doc.Dependencies {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		for _, target := range doc.Dependencies[src] {
			depRows = append(depRows, []string{src, target})
		}
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target"}, depRows))

	var callRows [][]string
	for _, ce := range doc.CallGraph {
		callRows = append(callRows, []string{ce.Caller, ce.Callee})
	}
	parts = append(parts, formatTabular("calls", []string{"caller", "callee"}, callRows))

	if len(doc.DirectoryPurposes) > 0 {
		dirs := make([]string, 0, len(doc.DirectoryPurposes))
		for d := range doc.DirectoryPurposes {
			dirs = append(dirs, d)
		}
		sort.Strings(dirs)
		var dirRows [][]string
		for _, d := range dirs {
			dirRows = append(dirRows, []string{d, doc.DirectoryPurposes[d]})
		}
		parts = append(parts, formatTabular("directories", []string{"path", "purpose"}, dirRows))
	}

	return strings.Join(parts, "\n")
}

func status(rec model.FileRecord) string {
	if rec.Parsed {
		return "parsed"
	}
	return "listed"
}

func symbolRow(file, name, kind string, fn model.FunctionSignature) []string {
	return []string{file, name, kind, strconv.Itoa(fn.Line), fn.Name + fn.Signature}
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
