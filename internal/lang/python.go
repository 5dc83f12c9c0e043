package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/projindex/internal/model"
)

// pythonExcluded are builtins and keywords never reported as calls.
var pythonExcluded = wordSet(
	"if", "elif", "while", "for", "with", "except", "def", "class",
	"return", "yield", "raise", "assert", "print", "len", "str",
	"int", "float", "bool", "list", "dict", "set", "tuple", "type",
	"isinstance", "issubclass", "super", "range", "enumerate", "zip",
	"map", "filter", "sorted", "reversed", "open", "input", "eval",
)

// Python returns the Python language definition.
func Python() *Language {
	return &Language{
		Name:       "python",
		Tag:        model.TagPython,
		Extensions: []string{".py"},
		Parser: treeSitterParser{
			language: python.GetLanguage(),
			extract:  extractPython,
		},
	}
}

func extractPython(root *sitter.Node, src []byte) model.FileRecord {
	var rec model.FileRecord
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "decorated_definition" {
			if def := node.ChildByFieldName("definition"); def != nil {
				node = def
			}
		}
		switch node.Type() {
		case "function_definition":
			rec.Functions = append(rec.Functions, pythonFunction(node, src))
		case "class_definition":
			name, class := pythonClass(node, src)
			if name != "" {
				rec.SetClass(name, class)
			}
		}
	}
	rec.Imports = pythonImports(root, src)
	return rec
}

func pythonFunction(node *sitter.Node, src []byte) model.FunctionSignature {
	fn := model.FunctionSignature{
		Name: fieldText(node, "name", src, "identifier"),
		Line: line(node),
	}

	sig := "()"
	if params := node.ChildByFieldName("parameters"); params != nil {
		sig = CollapseWhitespace(NodeText(params, src))
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		sig += " -> " + CollapseWhitespace(NodeText(ret, src))
	}
	if hasToken(node, "async") {
		sig = "async " + sig
	}
	fn.Signature = sig

	if body := node.ChildByFieldName("body"); body != nil {
		fn.Doc = pythonDocstring(body, src)
		fn.Calls = pythonCalls(body, src)
	}
	return fn
}

// pythonDocstring returns the first statement of body if it is a string.
func pythonDocstring(body *sitter.Node, src []byte) string {
	if body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	text := strings.TrimLeft(NodeText(str, src), "rRbBuUfF")
	return TruncateDoc(trimQuotes(text), model.MaxDocLength)
}

func pythonCalls(body *sitter.Node, src []byte) []string {
	calls := newCallSet(pythonExcluded)
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		switch fn := n.ChildByFieldName("function"); {
		case fn == nil:
		case fn.Type() == "identifier":
			calls.add(NodeText(fn, src))
		case fn.Type() == "attribute":
			calls.add(fieldText(fn, "attribute", src))
		}
		return true
	})
	return calls.sorted()
}

func pythonClass(node *sitter.Node, src []byte) (string, model.ClassRecord) {
	name := fieldText(node, "name", src, "identifier")
	class := model.ClassRecord{Line: line(node)}
	body := node.ChildByFieldName("body")
	if body == nil {
		return name, class
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() == "decorated_definition" {
			if def := member.ChildByFieldName("definition"); def != nil {
				member = def
			}
		}
		if member.Type() == "function_definition" {
			class.Methods = append(class.Methods, pythonFunction(member, src))
		}
	}
	return name, class
}

func pythonImports(root *sitter.Node, src []byte) []string {
	var imports []string
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				switch c.Type() {
				case "dotted_name":
					imports = appendUnique(imports, NodeText(c, src))
				case "aliased_import":
					imports = appendUnique(imports, fieldText(c, "name", src))
				}
			}
			return false
		case "import_from_statement":
			imports = appendUnique(imports, fieldText(n, "module_name", src))
			return false
		}
		return true
	})
	return imports
}
