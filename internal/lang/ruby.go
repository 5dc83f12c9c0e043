package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/phobologic/projindex/internal/model"
)

var rubyExcluded = wordSet(
	"puts", "print", "p", "pp", "require", "require_relative", "raise",
	"attr_accessor", "attr_reader", "attr_writer", "include", "extend",
	"private", "protected", "public", "new", "lambda", "proc", "loop",
)

// Ruby returns the Ruby language definition.
func Ruby() *Language {
	return &Language{
		Name:       "ruby",
		Tag:        model.TagRuby,
		Extensions: []string{".rb"},
		Parser:     treeSitterParser{language: ruby.GetLanguage(), extract: extractRuby},
	}
}

func extractRuby(root *sitter.Node, src []byte) model.FileRecord {
	var rec model.FileRecord
	rubyBody(&rec, root, "", src)
	rec.Imports = rubyRequires(root, src)
	return rec
}

// rubyBody records the definitions in a program, class or module body.
// Nested modules and classes are flattened with their qualified names.
func rubyBody(rec *model.FileRecord, node *sitter.Node, prefix string, src []byte) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "body_statement":
			rubyBody(rec, child, prefix, src)
		case "method", "singleton_method":
			if prefix == "" {
				rec.Functions = append(rec.Functions, rubyMethod(child, src))
			}
		case "class", "module":
			name := rubyClassName(child, src)
			if name == "" {
				continue
			}
			if prefix != "" {
				name = prefix + "::" + name
			}
			rec.SetClass(name, model.ClassRecord{Line: line(child), Methods: rubyMethods(child, src)})
			rubyBody(rec, child, name, src)
		}
	}
}

// rubyMethods returns the methods defined directly in a class or module.
func rubyMethods(node *sitter.Node, src []byte) []model.FunctionSignature {
	var out []model.FunctionSignature
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "body_statement":
				visit(c)
			case "method", "singleton_method":
				out = append(out, rubyMethod(c, src))
			}
		}
	}
	visit(node)
	return out
}

// rubyClassName extracts the name from a class or module node.
func rubyClassName(node *sitter.Node, src []byte) string {
	return fieldText(node, "name", src, "constant", "scope_resolution")
}

func rubyMethod(node *sitter.Node, src []byte) model.FunctionSignature {
	fn := model.FunctionSignature{
		Name: fieldText(node, "name", src, "identifier"),
		Line: line(node),
		Doc:  leadingComment(node, src, "comment"),
	}
	if node.Type() == "singleton_method" {
		fn.Name = "self." + fn.Name
	}
	fn.Signature = "()"
	if params := field(node, "parameters", "method_parameters"); params != nil {
		fn.Signature = CollapseWhitespace(NodeText(params, src))
	}

	calls := newCallSet(rubyExcluded)
	walk(node, func(n *sitter.Node) bool {
		if n.Type() == "call" || n.Type() == "method_call" {
			calls.add(fieldText(n, "method", src))
		}
		return true
	})
	fn.Calls = calls.sorted()
	return fn
}

func rubyRequires(root *sitter.Node, src []byte) []string {
	var out []string
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call" && n.Type() != "method_call" {
			return true
		}
		switch fieldText(n, "method", src) {
		case "require", "require_relative", "load":
		default:
			return true
		}
		args := field(n, "arguments", "argument_list")
		if args == nil || args.NamedChildCount() == 0 {
			return false
		}
		if arg := args.NamedChild(0); arg.Type() == "string" {
			out = appendUnique(out, trimQuotes(NodeText(arg, src)))
		}
		return false
	})
	return out
}
