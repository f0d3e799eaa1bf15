// Package cfront is the C AST front-end used by the classifier (P1-2) and
// the candidate-flow generator (P4). It walks one translation unit at a
// time with tree-sitter's C grammar and hands back function declarations,
// macro definitions, and call expressions as plain structs — callers never
// touch a *sitter.Node directly.
//
// The file layout (parse.go/declarations.go/calls.go/macros.go/helpers.go)
// follows the same per-language convention the teacher repo uses for its
// other front-ends (graph/golang, graph/python): one file per kind of AST
// fact extracted, plus a shared parse entry point.
package cfront

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// TranslationUnit is a parsed C source file: its AST root plus the raw
// bytes every node's Content() call needs to slice into.
type TranslationUnit struct {
	File   string
	Source []byte
	Tree   *sitter.Tree
}

// Close releases the tree-sitter tree. Safe to call on a nil TranslationUnit.
func (tu *TranslationUnit) Close() {
	if tu != nil && tu.Tree != nil {
		tu.Tree.Close()
	}
}

// Parse parses C source bytes into a TranslationUnit. Parse errors inside
// individual statements are tolerated by tree-sitter's error-recovery
// grammar and surfaced only as ERROR nodes in the resulting tree; Parse
// itself fails only if the parser cannot run at all.
func Parse(file string, source []byte) (*TranslationUnit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("cfront: parse %s: %w", file, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("cfront: parse %s: tree-sitter returned nil tree", file)
	}

	return &TranslationUnit{File: file, Source: source, Tree: tree}, nil
}

// HasErrors reports whether tree-sitter's error-recovery grammar had to
// insert any ERROR nodes while parsing — a signal the caller may want to
// log as a non-fatal warning (§7: "Parse failures (P1-2, P4) — per-TU; log
// and continue").
func (tu *TranslationUnit) HasErrors() bool {
	return tu.Tree.RootNode().HasError()
}
