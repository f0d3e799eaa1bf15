package cfront

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// FuncDecl is one function declaration or definition found in a
// translation unit.
type FuncDecl struct {
	Name         string
	File         string
	Line         int // 1-indexed
	IsDefinition bool
	IsStatic     bool
	Params       []string
	Body         string // source text of the definition; empty for prototypes
}

// FunctionDeclarations walks a translation unit and returns every function
// definition and prototype it finds. The walk does not descend into function
// bodies, so block-scope prototypes inside a function are not reported.
func (tu *TranslationUnit) FunctionDeclarations() []FuncDecl {
	var out []FuncDecl
	walk(tu.Tree.RootNode(), func(node *sitter.Node) bool {
		switch node.Type() {
		case "function_definition":
			if fd, ok := parseFunctionDefinition(node, tu); ok {
				out = append(out, fd)
			}
			return false // don't descend into the body looking for nested "functions"
		case "declaration":
			if fd, ok := parseFunctionPrototype(node, tu); ok {
				out = append(out, fd)
			}
			return true
		}
		return true
	})
	return out
}

func parseFunctionDefinition(node *sitter.Node, tu *TranslationUnit) (FuncDecl, bool) {
	declarator := node.ChildByFieldName("declarator")
	if declarator == nil {
		return FuncDecl{}, false
	}
	name, params, ok := functionName(declarator, tu.Source)
	if !ok || name == "" {
		return FuncDecl{}, false
	}

	body := node.ChildByFieldName("body")
	bodyText := ""
	if body != nil {
		bodyText = body.Content(tu.Source)
	}

	return FuncDecl{
		Name:         name,
		File:         tu.File,
		Line:         int(node.StartPoint().Row) + 1,
		IsDefinition: true,
		IsStatic:     hasStaticStorage(node),
		Params:       paramNames(params, tu.Source),
		Body:         bodyText,
	}, true
}

// parseFunctionPrototype recognizes `declaration` nodes of the shape
// `[storage] type function_declarator ;` — a bare prototype, not a variable
// declaration. Variable declarations also use node type "declaration" in
// the C grammar, so this rejects anything whose declarator isn't (after
// unwrapping pointers) a function_declarator.
func parseFunctionPrototype(node *sitter.Node, tu *TranslationUnit) (FuncDecl, bool) {
	// A declaration can declare multiple identifiers; C grammar nests each
	// under its own "declarator" field only when there's exactly one, but
	// exposes repeated children otherwise. TEE headers near-universally
	// declare one prototype per statement, so a single ChildByFieldName
	// covers the overwhelming case; anything else is skipped rather than
	// guessed at.
	declarator := node.ChildByFieldName("declarator")
	if declarator == nil {
		return FuncDecl{}, false
	}
	if !declaratorIsFunction(declarator) {
		return FuncDecl{}, false
	}
	name, params, ok := functionName(declarator, tu.Source)
	if !ok || name == "" {
		return FuncDecl{}, false
	}

	return FuncDecl{
		Name:         name,
		File:         tu.File,
		Line:         int(node.StartPoint().Row) + 1,
		IsDefinition: false,
		IsStatic:     hasStaticStorage(node),
		Params:       paramNames(params, tu.Source),
	}, true
}

func declaratorIsFunction(node *sitter.Node) bool {
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			return true
		case "pointer_declarator", "parenthesized_declarator":
			node = node.ChildByFieldName("declarator")
			continue
		default:
			return false
		}
	}
	return false
}
