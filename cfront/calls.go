package cfront

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// CallExpr is one call-expression call site: callee name, location, and the
// function it was found inside (empty for calls at file scope, which C
// doesn't allow but tree-sitter's error recovery can still surface while
// parsing a malformed TU).
type CallExpr struct {
	Callee            string
	File              string
	Line              int
	ContainingFunction string
	Args              int // argument count, for sink param-index bookkeeping
}

// CallExpressions returns every call expression in the translation unit,
// tagged with the name of the enclosing function definition. Mirrors the
// per-language CallInfo/ParseCallExpression shape the teacher uses for its
// other front-ends, narrowed to C's single call_expression node type.
func (tu *TranslationUnit) CallExpressions() []CallExpr {
	var out []CallExpr
	var walkFn func(node *sitter.Node, enclosing string)
	walkFn = func(node *sitter.Node, enclosing string) {
		if node == nil {
			return
		}
		if node.Type() == "function_definition" {
			if declarator := node.ChildByFieldName("declarator"); declarator != nil {
				if name, _, ok := functionName(declarator, tu.Source); ok {
					enclosing = name
				}
			}
		}
		if node.Type() == "call_expression" {
			if ce, ok := parseCallExpression(node, tu, enclosing); ok {
				out = append(out, ce)
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walkFn(node.Child(i), enclosing)
		}
	}
	walkFn(tu.Tree.RootNode(), "")
	return out
}

func parseCallExpression(node *sitter.Node, tu *TranslationUnit, enclosing string) (CallExpr, bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return CallExpr{}, false
	}
	callee := calleeName(fn, tu.Source)
	if callee == "" {
		return CallExpr{}, false
	}

	args := 0
	if argList := node.ChildByFieldName("arguments"); argList != nil {
		for i := 0; i < int(argList.ChildCount()); i++ {
			child := argList.Child(i)
			if child == nil {
				continue
			}
			switch child.Type() {
			case "(", ")", ",":
				continue
			default:
				args++
			}
		}
	}

	return CallExpr{
		Callee:             callee,
		File:               tu.File,
		Line:               int(node.StartPoint().Row) + 1,
		ContainingFunction: enclosing,
		Args:               args,
	}, true
}

// calleeName extracts the identifier a call expression's function operand
// names, unwrapping the common non-direct-call shapes: parenthesized
// expressions and field/member access (`ctx->ops->write(...)` resolves to
// "write", the member name, since the sink table matches on short names).
func calleeName(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case "identifier":
		return node.Content(source)
	case "parenthesized_expression":
		for i := 0; i < int(node.ChildCount()); i++ {
			if name := calleeName(node.Child(i), source); name != "" {
				return name
			}
		}
		return ""
	case "field_expression":
		if field := node.ChildByFieldName("field"); field != nil {
			return field.Content(source)
		}
		return ""
	default:
		return ""
	}
}
