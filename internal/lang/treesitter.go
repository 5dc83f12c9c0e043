package lang

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/projindex/internal/model"
)

// treeSitterParser parses with a tree-sitter grammar and hands the syntax
// tree to extract. A fresh sitter.Parser is made per call; parsers are not
// safe for concurrent use.
type treeSitterParser struct {
	language *sitter.Language
	extract  func(root *sitter.Node, src []byte) model.FileRecord
}

func (p treeSitterParser) Parse(src []byte) (rec model.FileRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = model.FileRecord{}
			err = fmt.Errorf("%w: %v", ErrParseFailure, r)
		}
	}()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.language)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return model.FileRecord{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return model.FileRecord{}, fmt.Errorf("%w: syntax error at line %d", ErrParseFailure, errorLine(root))
	}
	return p.extract(root, src), nil
}

// errorLine returns the 1-based line of the first ERROR or missing node.
func errorLine(root *sitter.Node) int {
	found := 0
	walk(root, func(n *sitter.Node) bool {
		if found != 0 {
			return false
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = line(n)
			return false
		}
		return n.HasError()
	})
	if found == 0 {
		return line(root)
	}
	return found
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// walk visits n and its descendants in pre-order. Children are skipped when
// fn returns false.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}

// field returns the named field of n, falling back to the first named child
// whose type is one of types.
func field(n *sitter.Node, name string, types ...string) *sitter.Node {
	if c := n.ChildByFieldName(name); c != nil {
		return c
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

// fieldText is NodeText of a field, or "" when the field is absent.
func fieldText(n *sitter.Node, name string, src []byte, types ...string) string {
	if c := field(n, name, types...); c != nil {
		return NodeText(c, src)
	}
	return ""
}

// hasToken reports whether n has a direct anonymous child of the given type,
// such as the "async" keyword.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

// leadingComment returns the text of the comment block directly above n.
// Consecutive comment siblings count as one block as long as no blank line
// separates them.
func leadingComment(n *sitter.Node, src []byte, commentTypes ...string) string {
	var parts []string
	wantRow := n.StartPoint().Row
	for prev := n.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if !isOneOf(prev.Type(), commentTypes) {
			break
		}
		if prev.EndPoint().Row+1 < wantRow {
			break
		}
		parts = append(parts, NodeText(prev, src))
		wantRow = prev.StartPoint().Row
	}
	if len(parts) == 0 {
		return ""
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return cleanComment(strings.Join(parts, "\n"))
}

func isOneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

var commentMarkers = []string{"/**", "/*", "*/", "///", "//", "#", "*"}

// cleanComment strips comment markers from every line and joins the rest.
func cleanComment(text string) string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		l = strings.TrimSuffix(l, "*/")
		for _, m := range commentMarkers {
			if strings.HasPrefix(l, m) {
				l = strings.TrimPrefix(l, m)
				break
			}
		}
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return TruncateDoc(strings.Join(out, " "), model.MaxDocLength)
}

// trimQuotes removes matching string delimiters.
func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, `'''`, `"`, `'`, "`"} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
