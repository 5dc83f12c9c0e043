package lang

import (
	"bytes"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	markdownScanBytes   = 5000
	markdownMaxSections = 10
	markdownMaxHints    = 5
)

var architectureHints = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:located?|found?|stored?)\s+in\s+` + "`?" + `([\w\-./]+)` + "`?"),
	regexp.MustCompile(`(?i)` + "`?" + `([\w\-./]+)` + "`?" + `\s+(?:contains?|houses?|holds?)`),
	regexp.MustCompile(`(?i)(?:see|check|look)\s+(?:in\s+)?` + "`?" + `([\w\-./]+)` + "`?" + `\s+for`),
	regexp.MustCompile(`(?i)(?:file|module|component)\s+` + "`?" + `([\w\-./]+)` + "`?"),
}

// Outline is the section structure of a documentation file.
type Outline struct {
	Sections []string
	Hints    []string
}

// Empty reports whether the outline found nothing.
func (o Outline) Empty() bool {
	return len(o.Sections) == 0 && len(o.Hints) == 0
}

// ParseMarkdown returns up to ten level 1-3 headings and up to five path
// hints ("stored in src/db") from the head of a Markdown document.
func ParseMarkdown(src []byte) Outline {
	head := src
	if len(head) > markdownScanBytes {
		head = head[:markdownScanBytes]
		for i := 0; i < utf8.UTFMax && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}

	var out Outline
	doc := goldmark.New().Parser().Parse(text.NewReader(head))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level <= 3 && len(out.Sections) < markdownMaxSections {
			if title := CollapseWhitespace(inlineText(h, head)); title != "" {
				out.Sections = append(out.Sections, title)
			}
		}
		return ast.WalkSkipChildren, nil
	})

	hints := make(map[string]struct{})
	for _, re := range architectureHints {
		for _, m := range re.FindAllSubmatch(head, -1) {
			hint := string(m[1])
			if strings.Contains(hint, "/") && !strings.HasPrefix(hint, "http") {
				hints[hint] = struct{}{}
			}
		}
	}
	for h := range hints {
		out.Hints = append(out.Hints, h)
	}
	sort.Strings(out.Hints)
	if len(out.Hints) > markdownMaxHints {
		out.Hints = out.Hints[:markdownMaxHints]
	}
	return out
}

// inlineText concatenates the text segments under n.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
