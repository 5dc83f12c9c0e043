package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/phobologic/projindex/internal/model"
)

var jsExcluded = wordSet(
	"if", "while", "for", "switch", "catch", "function", "class",
	"return", "throw", "new", "typeof", "instanceof", "void",
	"console", "Array", "Object", "String", "Number", "Boolean",
	"Promise", "Math", "Date", "JSON", "parseInt", "parseFloat",
	"require",
)

// JavaScript returns the JavaScript language definition (.js, .jsx).
func JavaScript() *Language {
	return &Language{
		Name:       "javascript",
		Tag:        model.TagJavaScript,
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		Parser:     treeSitterParser{language: javascript.GetLanguage(), extract: extractJS},
	}
}

// TypeScript returns the TypeScript language definition for .ts files.
func TypeScript() *Language {
	return &Language{
		Name:       "typescript",
		Tag:        model.TagTypeScript,
		Extensions: []string{".ts"},
		Parser:     treeSitterParser{language: typescript.GetLanguage(), extract: extractJS},
	}
}

// TSX returns the TypeScript definition for .tsx files, which need the
// JSX-aware grammar.
func TSX() *Language {
	return &Language{
		Name:       "typescript",
		Tag:        model.TagTypeScript,
		Extensions: []string{".tsx"},
		Parser:     treeSitterParser{language: tsx.GetLanguage(), extract: extractJS},
	}
}

func extractJS(root *sitter.Node, src []byte) model.FileRecord {
	var rec model.FileRecord
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		jsDeclaration(&rec, node, node, src)
	}
	rec.Imports = jsImports(root, src)
	return rec
}

// jsDeclaration records node into rec. docNode is the node whose leading
// comment documents the declaration; it differs from node for exports.
func jsDeclaration(rec *model.FileRecord, node, docNode *sitter.Node, src []byte) {
	switch node.Type() {
	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			jsDeclaration(rec, decl, docNode, src)
		}
	case "function_declaration", "generator_function_declaration":
		fn := jsFunction(node, node, src)
		fn.Doc = leadingComment(docNode, src, "comment")
		rec.Functions = append(rec.Functions, fn)
	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			decl := node.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			value := decl.ChildByFieldName("value")
			if value == nil {
				continue
			}
			switch value.Type() {
			case "arrow_function", "function_expression", "function", "generator_function":
				fn := jsFunction(value, decl, src)
				fn.Line = line(node)
				fn.Doc = leadingComment(docNode, src, "comment")
				rec.Functions = append(rec.Functions, fn)
			}
		}
	case "class_declaration", "abstract_class_declaration", "class":
		name := fieldText(node, "name", src, "identifier", "type_identifier")
		if name == "" {
			return
		}
		rec.SetClass(name, jsClass(node, src))
	}
}

// jsFunction builds a signature from fn. The name comes from nameNode,
// which is the declarator for arrow functions bound to a constant.
func jsFunction(fn, nameNode *sitter.Node, src []byte) model.FunctionSignature {
	out := model.FunctionSignature{
		Name: fieldText(nameNode, "name", src, "identifier", "property_identifier"),
		Line: line(fn),
	}

	sig := "()"
	if params := fn.ChildByFieldName("parameters"); params != nil {
		sig = CollapseWhitespace(NodeText(params, src))
	} else if param := fn.ChildByFieldName("parameter"); param != nil {
		sig = "(" + NodeText(param, src) + ")"
	}
	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		sig += CollapseWhitespace(NodeText(ret, src))
	}
	if hasToken(fn, "async") {
		sig = "async " + sig
	}
	out.Signature = sig

	if body := fn.ChildByFieldName("body"); body != nil {
		out.Calls = jsCalls(body, src)
	}
	return out
}

func jsClass(node *sitter.Node, src []byte) model.ClassRecord {
	class := model.ClassRecord{Line: line(node)}
	body := field(node, "body", "class_body")
	if body == nil {
		return class
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() != "method_definition" {
			continue
		}
		m := jsFunction(member, member, src)
		m.Name = fieldText(member, "name", src)
		m.Doc = leadingComment(member, src, "comment")
		class.Methods = append(class.Methods, m)
	}
	return class
}

func jsCalls(body *sitter.Node, src []byte) []string {
	calls := newCallSet(jsExcluded)
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		switch fn := n.ChildByFieldName("function"); {
		case fn == nil:
		case fn.Type() == "identifier":
			calls.add(NodeText(fn, src))
		case fn.Type() == "member_expression":
			calls.add(fieldText(fn, "property", src))
		}
		return true
	})
	return calls.sorted()
}

// jsImports collects ES module sources and require("x") arguments.
func jsImports(root *sitter.Node, src []byte) []string {
	var imports []string
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			if source := n.ChildByFieldName("source"); source != nil {
				imports = appendUnique(imports, trimQuotes(NodeText(source, src)))
			}
			return false
		case "call_expression":
			fn := n.ChildByFieldName("function")
			args := n.ChildByFieldName("arguments")
			if fn != nil && args != nil && fn.Type() == "identifier" && NodeText(fn, src) == "require" &&
				args.NamedChildCount() > 0 && args.NamedChild(0).Type() == "string" {
				imports = appendUnique(imports, trimQuotes(NodeText(args.NamedChild(0), src)))
			}
		}
		return true
	})
	return imports
}
