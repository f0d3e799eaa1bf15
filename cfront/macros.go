package cfront

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// MacroDecl is one preprocessor macro definition.
type MacroDecl struct {
	Name           string
	File           string
	Line           int
	IsFunctionLike bool
	Params         []string
	// Value is the macro's replacement-list source text. Flow generation
	// uses this to recognize diagnostic macros (e.g. `#define DMSG(...)
	// trace_printf(...)`) whose call sites should be restored to the
	// macro's name rather than left as the underlying trace function
	// (§4.4 step 1).
	Value string
}

// MacroDeclarations returns every `#define` in the translation unit,
// object-like and function-like alike. Filtering by "is this worth
// keeping" (under an include/ directory, or function-like) is the
// classifier's job (§4.2), not the parser's — this just reports facts.
func (tu *TranslationUnit) MacroDeclarations() []MacroDecl {
	var out []MacroDecl
	walk(tu.Tree.RootNode(), func(node *sitter.Node) bool {
		switch node.Type() {
		case "preproc_def":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				return true
			}
			out = append(out, MacroDecl{
				Name:  nameNode.Content(tu.Source),
				File:  tu.File,
				Line:  int(node.StartPoint().Row) + 1,
				Value: macroValueText(node, tu.Source),
			})
		case "preproc_function_def":
			nameNode := node.ChildByFieldName("name")
			if nameNode == nil {
				return true
			}
			paramsNode := node.ChildByFieldName("parameters")
			out = append(out, MacroDecl{
				Name:           nameNode.Content(tu.Source),
				File:           tu.File,
				Line:           int(node.StartPoint().Row) + 1,
				IsFunctionLike: true,
				Params:         macroParamNames(paramsNode, tu.Source),
				Value:          macroValueText(node, tu.Source),
			})
		}
		return true
	})
	return out
}

// macroValueText returns the replacement-list source text from the node's
// "value" field (present on both preproc_def and preproc_function_def), or
// "" when the macro has no replacement list.
func macroValueText(node *sitter.Node, source []byte) string {
	if value := node.ChildByFieldName("value"); value != nil {
		return value.Content(source)
	}
	return ""
}

func macroParamNames(paramList *sitter.Node, source []byte) []string {
	if paramList == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(paramList.ChildCount()); i++ {
		child := paramList.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "identifier" {
			names = append(names, child.Content(source))
		}
	}
	return names
}
