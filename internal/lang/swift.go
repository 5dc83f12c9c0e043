package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/swift"

	"github.com/phobologic/projindex/internal/model"
)

var swiftExcluded = wordSet(
	"print", "debugPrint", "fatalError", "precondition", "assert",
	"if", "guard", "switch", "while", "for", "return", "String", "Int",
	"Double", "Float", "Bool", "Array", "Dictionary", "Set", "min", "max",
)

var swiftComments = []string{"comment", "multiline_comment"}

// Swift returns the Swift language definition.
func Swift() *Language {
	return &Language{
		Name:       "swift",
		Tag:        model.TagSwift,
		Extensions: []string{".swift"},
		Parser:     treeSitterParser{language: swift.GetLanguage(), extract: extractSwift},
	}
}

func extractSwift(root *sitter.Node, src []byte) model.FileRecord {
	var rec model.FileRecord
	// extended holds types so far seen only through extensions.
	extended := make(map[string]bool)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "function_declaration":
			rec.Functions = append(rec.Functions, swiftFunction(node, src))
		case "class_declaration", "protocol_declaration":
			name := fieldText(node, "name", src, "type_identifier", "user_type")
			if name == "" {
				continue
			}
			class := model.ClassRecord{Line: line(node)}
			if body := field(node, "body", "class_body", "enum_class_body", "protocol_body"); body != nil {
				for j := 0; j < int(body.NamedChildCount()); j++ {
					member := body.NamedChild(j)
					switch member.Type() {
					case "function_declaration", "protocol_function_declaration":
						class.Methods = append(class.Methods, swiftFunction(member, src))
					}
				}
			}
			// Extensions merge with the type they extend, whichever comes
			// first in the file. The declaration supplies the line.
			ext := isSwiftExtension(node)
			if prev, ok := rec.Classes[name]; ok && (ext || extended[name]) {
				prev.Methods = append(prev.Methods, class.Methods...)
				if !ext {
					prev.Line = class.Line
				}
				class = prev
				extended[name] = ext && extended[name]
			} else {
				extended[name] = ext
			}
			rec.SetClass(name, class)
		case "import_declaration":
			for j := 0; j < int(node.NamedChildCount()); j++ {
				if c := node.NamedChild(j); c.Type() == "identifier" || c.Type() == "simple_identifier" {
					rec.Imports = appendUnique(rec.Imports, NodeText(c, src))
				}
			}
		}
	}
	return rec
}

func isSwiftExtension(node *sitter.Node) bool {
	return hasToken(node, "extension")
}

// swiftFunction builds a signature from the text between the function name
// and its body, so generics, throws and return arrows are kept verbatim.
func swiftFunction(node *sitter.Node, src []byte) model.FunctionSignature {
	fn := model.FunctionSignature{
		Line: line(node),
		Doc:  leadingComment(node, src, swiftComments...),
	}
	name := field(node, "name", "simple_identifier")
	if name == nil {
		return fn
	}
	fn.Name = NodeText(name, src)

	body := field(node, "body", "function_body")
	end := node.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	if sig := CollapseWhitespace(string(src[name.EndByte():end])); sig != "" {
		fn.Signature = sig
	} else {
		fn.Signature = "()"
	}

	if body != nil {
		calls := newCallSet(swiftExcluded)
		walk(body, func(n *sitter.Node) bool {
			if n.Type() == "call_expression" && n.NamedChildCount() > 0 {
				calls.add(swiftCallee(n.NamedChild(0), src))
			}
			return true
		})
		fn.Calls = calls.sorted()
	}
	return fn
}

// swiftCallee names the function in a call: a bare identifier or the last
// component of a navigation expression such as self.load.
func swiftCallee(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "simple_identifier":
		return NodeText(n, src)
	case "navigation_expression":
		if suffix := field(n, "suffix", "navigation_suffix"); suffix != nil {
			if id := field(suffix, "suffix", "simple_identifier"); id != nil {
				return NodeText(id, src)
			}
		}
	}
	return ""
}
