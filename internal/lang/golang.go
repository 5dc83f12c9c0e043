package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/phobologic/projindex/internal/model"
)

var goExcluded = wordSet(
	"append", "cap", "close", "complex", "copy", "delete", "imag", "len",
	"make", "new", "panic", "print", "println", "real", "recover", "min",
	"max", "clear", "string", "int", "int64", "int32", "uint", "uint64",
	"uint32", "byte", "rune", "float64", "float32", "bool", "error",
)

// Go returns the Go language definition.
func Go() *Language {
	return &Language{
		Name:       "go",
		Tag:        model.TagGo,
		Extensions: []string{".go"},
		Parser:     treeSitterParser{language: golang.GetLanguage(), extract: extractGo},
	}
}

func extractGo(root *sitter.Node, src []byte) model.FileRecord {
	var rec model.FileRecord
	typeLines := make(map[string]int)
	methods := make(map[string][]model.FunctionSignature)
	var order []string

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "function_declaration":
			rec.Functions = append(rec.Functions, goFunction(node, src))
		case "method_declaration":
			recv := goReceiverType(node, src)
			if recv == "" {
				continue
			}
			if _, seen := methods[recv]; !seen {
				order = append(order, recv)
			}
			methods[recv] = append(methods[recv], goFunction(node, src))
		case "type_declaration":
			for j := 0; j < int(node.NamedChildCount()); j++ {
				spec := node.NamedChild(j)
				if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
					continue
				}
				name := fieldText(spec, "name", src, "type_identifier")
				if name == "" {
					continue
				}
				if _, seen := typeLines[name]; !seen {
					order = append(order, name)
				}
				typeLines[name] = line(spec)
			}
		case "import_declaration":
			rec.Imports = append(rec.Imports, goImports(node, src)...)
		}
	}

	// Methods whose receiver type is declared elsewhere get line 0.
	seen := make(map[string]bool)
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		rec.SetClass(name, model.ClassRecord{Line: typeLines[name], Methods: methods[name]})
	}
	return rec
}

func goFunction(node *sitter.Node, src []byte) model.FunctionSignature {
	fn := model.FunctionSignature{
		Name: fieldText(node, "name", src, "identifier", "field_identifier"),
		Line: line(node),
		Doc:  leadingComment(node, src, "comment"),
	}
	sig := "()"
	if params := node.ChildByFieldName("parameters"); params != nil {
		sig = CollapseWhitespace(NodeText(params, src))
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		sig = CollapseWhitespace(NodeText(tp, src)) + sig
	}
	if result := node.ChildByFieldName("result"); result != nil {
		sig += " " + CollapseWhitespace(NodeText(result, src))
	}
	fn.Signature = sig
	if body := node.ChildByFieldName("body"); body != nil {
		fn.Calls = goCalls(body, src)
	}
	return fn
}

// goReceiverType extracts the receiver type name from a method_declaration,
// unwrapping pointers and type arguments.
func goReceiverType(node *sitter.Node, src []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		return goTypeName(param.ChildByFieldName("type"), src)
	}
	return ""
}

func goTypeName(t *sitter.Node, src []byte) string {
	for t != nil {
		switch t.Type() {
		case "type_identifier":
			return NodeText(t, src)
		case "pointer_type":
			t = t.NamedChild(0)
		case "generic_type":
			t = t.ChildByFieldName("type")
		default:
			return ""
		}
	}
	return ""
}

func goCalls(body *sitter.Node, src []byte) []string {
	calls := newCallSet(goExcluded)
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		switch fn := n.ChildByFieldName("function"); {
		case fn == nil:
		case fn.Type() == "identifier":
			calls.add(NodeText(fn, src))
		case fn.Type() == "selector_expression":
			calls.add(fieldText(fn, "field", src))
		}
		return true
	})
	return calls.sorted()
}

func goImports(node *sitter.Node, src []byte) []string {
	var out []string
	walk(node, func(n *sitter.Node) bool {
		if n.Type() == "import_spec" {
			if p := n.ChildByFieldName("path"); p != nil {
				out = appendUnique(out, trimQuotes(NodeText(p, src)))
			}
			return false
		}
		return true
	})
	return out
}
