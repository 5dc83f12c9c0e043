// Package dense encodes an IndexDocument into the compact JSON layout
// written to PROJECT_INDEX.json, and decodes it back.
//
// Functions are stored as "name:line:signature:calls:doc" strings. A
// backslash escapes ':' and '\' in every field, and ',' inside call names,
// so decoding recovers each field exactly.
package dense

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/phobologic/projindex/internal/model"
)

// ErrMalformed reports input that is not a valid dense document.
var ErrMalformed = errors.New("malformed dense data")

// EncodeSignature renders one function as a delimited string.
func EncodeSignature(fs model.FunctionSignature) string {
	calls := make([]string, len(fs.Calls))
	for i, c := range fs.Calls {
		calls[i] = escape(c, true)
	}
	var b strings.Builder
	b.WriteString(escape(fs.Name, false))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(fs.Line))
	b.WriteByte(':')
	b.WriteString(escape(fs.Signature, false))
	b.WriteByte(':')
	b.WriteString(strings.Join(calls, ","))
	b.WriteByte(':')
	b.WriteString(escape(fs.Doc, false))
	return b.String()
}

// DecodeSignature parses a string produced by EncodeSignature.
func DecodeSignature(s string) (model.FunctionSignature, error) {
	fields := split(s, ':')
	if len(fields) != 5 {
		return model.FunctionSignature{}, fmt.Errorf("%w: signature %q has %d fields", ErrMalformed, s, len(fields))
	}
	line, err := strconv.Atoi(fields[1])
	if err != nil {
		return model.FunctionSignature{}, fmt.Errorf("%w: signature %q: bad line: %v", ErrMalformed, s, err)
	}
	fs := model.FunctionSignature{
		Name:      unescape(fields[0]),
		Line:      line,
		Signature: unescape(fields[2]),
		Doc:       unescape(fields[4]),
	}
	if fields[3] != "" {
		for _, c := range split(fields[3], ',') {
			fs.Calls = append(fs.Calls, unescape(c))
		}
	}
	return fs, nil
}

func escape(s string, inList bool) string {
	if !strings.ContainsAny(s, `\:,`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || r == ':' || (inList && r == ',') {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// split cuts s at every sep not preceded by an escaping backslash. Escapes
// are kept in the parts.
func split(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

type wireStats struct {
	TotalFiles       int            `json:"total_files"`
	TotalDirectories int            `json:"total_directories"`
	FullyParsed      map[string]int `json:"fully_parsed,omitempty"`
	ListedOnly       map[string]int `json:"listed_only,omitempty"`
	MarkdownFiles    int            `json:"markdown_files"`
	Omitted          int            `json:"omitted,omitempty"`
}

type wireDoc struct {
	At          string                     `json:"at"`
	Root        string                     `json:"root"`
	BuildSystem string                     `json:"bs,omitempty"`
	Fingerprint string                     `json:"fp,omitempty"`
	Tree        []string                   `json:"tree,omitempty"`
	Stats       wireStats                  `json:"stats"`
	Files       map[string]json.RawMessage `json:"f"`
	Graph       [][2]string                `json:"g,omitempty"`
	Deps        map[string][]string        `json:"deps,omitempty"`
	Docs        map[string][]string        `json:"d,omitempty"`
	Purposes    map[string]string          `json:"dir_purposes,omitempty"`
}

// Encode renders doc as minified JSON. Output is deterministic for a given
// document: object keys are sorted and slices keep their order.
func Encode(doc *model.IndexDocument) ([]byte, error) {
	w := wireDoc{
		At:          doc.GeneratedAt.UTC().Format(time.RFC3339Nano),
		Root:        doc.Root,
		BuildSystem: doc.BuildSystem,
		Fingerprint: doc.Fingerprint,
		Tree:        doc.Tree,
		Stats: wireStats{
			TotalFiles:       doc.Stats.TotalFiles,
			TotalDirectories: doc.Stats.TotalDirectories,
			FullyParsed:      doc.Stats.FullyParsed,
			ListedOnly:       doc.Stats.ListedOnly,
			MarkdownFiles:    doc.Stats.MarkdownFiles,
			Omitted:          doc.Stats.Omitted,
		},
		Files:    make(map[string]json.RawMessage, len(doc.Files)),
		Deps:     doc.Dependencies,
		Docs:     doc.Documentation,
		Purposes: doc.DirectoryPurposes,
	}
	for path, rec := range doc.Files {
		raw, err := encodeFile(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", path, err)
		}
		w.Files[path] = raw
	}
	for _, e := range doc.CallGraph {
		w.Graph = append(w.Graph, [2]string{e.Caller, e.Callee})
	}
	return marshal(w)
}

func encodeFile(rec model.FileRecord) (json.RawMessage, error) {
	if !rec.Parsed {
		return marshal(rec.Tag)
	}
	entry := []any{rec.Tag}
	if len(rec.Functions) > 0 || len(rec.Classes) > 0 {
		entry = append(entry, encodeFunctions(rec.Functions))
	}
	if len(rec.Classes) > 0 {
		classes := make(map[string][]any, len(rec.Classes))
		for name, c := range rec.Classes {
			classes[name] = []any{c.Line, encodeFunctions(c.Methods)}
		}
		entry = append(entry, classes)
	}
	return marshal(entry)
}

func encodeFunctions(fns []model.FunctionSignature) []string {
	out := make([]string, len(fns))
	for i, fn := range fns {
		out[i] = EncodeSignature(fn)
	}
	return out
}

// marshal is json.Marshal without HTML escaping or a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*model.IndexDocument, error) {
	var w wireDoc
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Files == nil {
		return nil, fmt.Errorf("%w: missing files", ErrMalformed)
	}
	at, err := time.Parse(time.RFC3339Nano, w.At)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp: %v", ErrMalformed, err)
	}

	doc := &model.IndexDocument{
		GeneratedAt: at,
		Root:        w.Root,
		BuildSystem: w.BuildSystem,
		Fingerprint: w.Fingerprint,
		Tree:        w.Tree,
		Stats: model.Stats{
			TotalFiles:       w.Stats.TotalFiles,
			TotalDirectories: w.Stats.TotalDirectories,
			FullyParsed:      w.Stats.FullyParsed,
			ListedOnly:       w.Stats.ListedOnly,
			MarkdownFiles:    w.Stats.MarkdownFiles,
			Omitted:          w.Stats.Omitted,
		},
		Files:             make(map[string]model.FileRecord, len(w.Files)),
		Dependencies:      w.Deps,
		Documentation:     w.Docs,
		DirectoryPurposes: w.Purposes,
	}
	paths := make([]string, 0, len(w.Files))
	for p := range w.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		rec, err := decodeFile(w.Files[p])
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", p, err)
		}
		doc.Files[p] = rec
	}
	for _, e := range w.Graph {
		doc.CallGraph = append(doc.CallGraph, model.CallEdge{Caller: e[0], Callee: e[1]})
	}
	return doc, nil
}

func decodeFile(raw json.RawMessage) (model.FileRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil {
			return model.FileRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return model.FileRecord{Tag: tag}, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) == 0 || len(parts) > 3 {
		return model.FileRecord{}, fmt.Errorf("%w: file entry must be a tag or [tag, funcs, classes]", ErrMalformed)
	}
	rec := model.FileRecord{Parsed: true}
	if err := json.Unmarshal(parts[0], &rec.Tag); err != nil {
		return model.FileRecord{}, fmt.Errorf("%w: tag: %v", ErrMalformed, err)
	}
	if len(parts) > 1 {
		fns, err := decodeFunctions(parts[1])
		if err != nil {
			return model.FileRecord{}, err
		}
		rec.Functions = fns
	}
	if len(parts) > 2 {
		var classes map[string][]json.RawMessage
		if err := json.Unmarshal(parts[2], &classes); err != nil {
			return model.FileRecord{}, fmt.Errorf("%w: classes: %v", ErrMalformed, err)
		}
		for name, c := range classes {
			if len(c) != 2 {
				return model.FileRecord{}, fmt.Errorf("%w: class %s must be [line, methods]", ErrMalformed, name)
			}
			var class model.ClassRecord
			if err := json.Unmarshal(c[0], &class.Line); err != nil {
				return model.FileRecord{}, fmt.Errorf("%w: class %s line: %v", ErrMalformed, name, err)
			}
			methods, err := decodeFunctions(c[1])
			if err != nil {
				return model.FileRecord{}, fmt.Errorf("class %s: %w", name, err)
			}
			class.Methods = methods
			rec.SetClass(name, class)
		}
	}
	return rec, nil
}

func decodeFunctions(raw json.RawMessage) ([]model.FunctionSignature, error) {
	var encoded []string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("%w: functions: %v", ErrMalformed, err)
	}
	var out []model.FunctionSignature
	for _, s := range encoded {
		fs, err := DecodeSignature(s)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, nil
}
