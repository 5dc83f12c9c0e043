package lang

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/phobologic/projindex/internal/model"
)

var shellExcluded = wordSet(
	"echo", "printf", "cd", "exit", "return", "local", "export", "set",
	"unset", "shift", "read", "test", "[", "[[", "eval", "exec", "source",
	".", "true", "false", "declare", "readonly", "trap", "wait",
)

// Shell returns the shell language definition.
func Shell() *Language {
	return &Language{
		Name:       "shell",
		Tag:        model.TagShell,
		Extensions: []string{".sh", ".bash"},
		Parser:     ParserFunc(parseShell),
	}
}

func parseShell(src []byte) (rec model.FileRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = model.FileRecord{}
			err = fmt.Errorf("%w: %v", ErrParseFailure, r)
		}
	}()

	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(bytes.NewReader(src), "")
	if err != nil {
		return model.FileRecord{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	for _, stmt := range file.Stmts {
		if fd, ok := stmt.Cmd.(*syntax.FuncDecl); ok && fd.Name != nil {
			rec.Functions = append(rec.Functions, shellFunction(stmt, fd))
		}
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) < 2 {
			return true
		}
		switch call.Args[0].Lit() {
		case "source", ".":
			rec.Imports = appendUnique(rec.Imports, call.Args[1].Lit())
		}
		return true
	})
	return rec, nil
}

func shellFunction(stmt *syntax.Stmt, fd *syntax.FuncDecl) model.FunctionSignature {
	fn := model.FunctionSignature{
		Name: fd.Name.Value,
		Line: int(stmt.Pos().Line()),
		Doc:  shellDoc(stmt),
	}

	params := make(map[int]struct{})
	calls := newCallSet(shellExcluded)
	syntax.Walk(fd.Body, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil {
				if idx, err := strconv.Atoi(n.Param.Value); err == nil && idx > 0 {
					params[idx] = struct{}{}
				}
			}
		case *syntax.CallExpr:
			if len(n.Args) > 0 {
				calls.add(n.Args[0].Lit())
			}
		}
		return true
	})
	fn.Calls = calls.sorted()

	idx := make([]int, 0, len(params))
	for i := range params {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	names := make([]string, len(idx))
	for i, n := range idx {
		names[i] = "$" + strconv.Itoa(n)
	}
	fn.Signature = "(" + strings.Join(names, " ") + ")"
	return fn
}

// shellDoc returns the comment block ending on the line above the function.
func shellDoc(stmt *syntax.Stmt) string {
	want := stmt.Pos().Line()
	var parts []string
	for i := len(stmt.Comments) - 1; i >= 0; i-- {
		c := stmt.Comments[i]
		l := c.Hash.Line()
		if l >= stmt.Pos().Line() {
			continue
		}
		if l+1 != want {
			break
		}
		parts = append([]string{strings.TrimSpace(c.Text)}, parts...)
		want = l
	}
	return TruncateDoc(strings.Join(parts, " "), model.MaxDocLength)
}
