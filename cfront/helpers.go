package cfront

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// functionName descends through pointer/parenthesized declarators to find
// the identifier a function_declarator ultimately names. Needed because a
// function returning a pointer (`static TEE_Result *Foo(...)`) wraps the
// function_declarator inside a pointer_declarator.
func functionName(declarator *sitter.Node, source []byte) (name string, params *sitter.Node, ok bool) {
	node := declarator
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			inner := node.ChildByFieldName("declarator")
			params = node.ChildByFieldName("parameters")
			if inner == nil {
				return "", params, false
			}
			if inner.Type() == "identifier" {
				return inner.Content(source), params, true
			}
			// e.g. a function pointer declarator; keep unwrapping.
			node = inner
			continue
		case "pointer_declarator", "parenthesized_declarator":
			next := node.ChildByFieldName("declarator")
			if next == nil && node.Type() == "parenthesized_declarator" && node.NamedChildCount() > 0 {
				// parenthesized_declarator has no named field; fall back to
				// its declarator child.
				next = node.NamedChild(int(node.NamedChildCount()) - 1)
			}
			if next == nil {
				return "", params, false
			}
			node = next
			continue
		case "identifier":
			return node.Content(source), params, true
		default:
			return "", params, false
		}
	}
	return "", params, false
}

// hasStaticStorage reports whether a declaration/function_definition node
// carries a `static` storage-class specifier among its children.
func hasStaticStorage(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil && child.Type() == "storage_class_specifier" && child.ChildCount() > 0 {
			if kw := child.Child(0); kw != nil && kw.Type() == "static" {
				return true
			}
		}
		// tree-sitter-c represents the keyword as a direct leaf token too,
		// depending on grammar version.
		if child != nil && child.Type() == "static" {
			return true
		}
	}
	return false
}

// paramNames extracts parameter identifiers from a parameter_list node, in
// declaration order. Unnamed parameters (`int foo(int, char*)`) are
// represented as empty strings to preserve positional indices.
func paramNames(paramList *sitter.Node, source []byte) []string {
	if paramList == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(paramList.ChildCount()); i++ {
		child := paramList.Child(i)
		if child == nil || child.Type() != "parameter_declaration" {
			continue
		}
		decl := child.ChildByFieldName("declarator")
		if decl == nil {
			names = append(names, "")
			continue
		}
		if name, _, ok := functionName(decl, source); ok {
			names = append(names, name)
			continue
		}
		names = append(names, identifierIn(decl, source))
	}
	return names
}

// identifierIn returns the text of the first identifier leaf found under
// node, depth-first. Used to pull a parameter name out of declarators that
// aren't function pointers (plain, pointer, or array declarators).
func identifierIn(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if node.Type() == "identifier" || node.Type() == "field_identifier" {
		return node.Content(source)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if name := identifierIn(node.Child(i), source); name != "" {
			return name
		}
	}
	return ""
}

// walk calls visit for node and every descendant, depth-first pre-order.
// visit returns false to stop descending into that node's children (but
// sibling traversal continues).
func walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), visit)
	}
}
