// Package classify implements the function classifier (P1-2): it drives
// cfront across every entry of a compile database and partitions what it
// finds into user-defined functions, external declarations, and retained
// macros, following the extractor-walk-and-collect pattern the teacher uses
// for its own per-language front-ends.
package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ta-061/tee-flow-inspector/cfront"
	"github.com/ta-061/tee-flow-inspector/model"
	"github.com/ta-061/tee-flow-inspector/output"
)

// Options configures classification.
type Options struct {
	// ProjectRoot bounds "user-defined": a function definition only counts
	// as user-defined if its file lies under this directory.
	ProjectRoot string
	// DevkitIncludeDir, TAIncludeDir, TADir are appended to each TU's
	// include search path, first to win, per §4.2. tree-sitter's grammar
	// doesn't resolve #include directives, so these don't change parsing,
	// but a TU's own source line positions are unaffected either way — the
	// fields are kept for parity with the documented search order and so a
	// future preprocessor-aware front-end can use them without an API
	// change.
	DevkitIncludeDir string
	TAIncludeDir     string
	TADir            string
}

// Classify walks every compile entry and returns the partitioned artifact.
// Parse failures are per-TU and non-fatal: logged and skipped.
func Classify(db *model.CompileDatabase, opts Options, logger *output.Logger) (*model.Phase12Artifact, error) {
	userDefined := map[string]model.Declaration{}
	external := map[string]model.Declaration{}
	macros := map[string]model.Declaration{}

	if logger != nil {
		_ = logger.StartProgress("classifying translation units", len(db.Entries))
		defer func() { _ = logger.FinishProgress() }()
	}

	for _, entry := range db.Entries {
		if logger != nil {
			_ = logger.UpdateProgress(1)
		}
		source, err := os.ReadFile(entry.File)
		if err != nil {
			if logger != nil {
				logger.Warning("classify: read %s: %v", entry.File, err)
			}
			continue
		}

		tu, err := cfront.Parse(entry.File, source)
		if err != nil {
			if logger != nil {
				logger.Warning("classify: parse %s: %v", entry.File, err)
			}
			continue
		}
		if tu.HasErrors() && logger != nil {
			logger.Debug("classify: %s parsed with recoverable syntax errors", entry.File)
		}

		classifyFunctions(tu, opts, userDefined, external)
		classifyMacros(tu, macros)
		tu.Close()
	}

	absorbForwardDeclarations(userDefined, external)

	artifact := &model.Phase12Artifact{
		UserDefinedFunctions: values(userDefined),
		ExternalDeclarations: values(external),
		Macros:               values(macros),
	}
	return artifact, nil
}

func classifyFunctions(tu *cfront.TranslationUnit, opts Options, userDefined, external map[string]model.Declaration) {
	for _, fd := range tu.FunctionDeclarations() {
		decl := model.Declaration{
			Name:         fd.Name,
			Kind:         model.DeclFunction,
			File:         fd.File,
			Line:         fd.Line,
			IsDefinition: fd.IsDefinition,
			IsStatic:     fd.IsStatic,
			Params:       fd.Params,
			Body:         fd.Body,
		}
		key := fmt.Sprintf("%s:%d:%s", decl.File, decl.Line, decl.Name)

		if decl.IsDefinition && isUnderRoot(decl.File, opts.ProjectRoot) {
			if _, dup := userDefined[key]; !dup {
				userDefined[key] = decl
			}
			continue
		}
		if _, dup := external[key]; !dup {
			external[key] = decl
		}
	}
}

func classifyMacros(tu *cfront.TranslationUnit, macros map[string]model.Declaration) {
	for _, md := range tu.MacroDeclarations() {
		if !md.IsFunctionLike && !isUnderIncludeDir(md.File) {
			continue
		}
		decl := model.Declaration{
			Name:   md.Name,
			Kind:   model.DeclMacro,
			File:   md.File,
			Line:   md.Line,
			Params: md.Params,
		}
		key := fmt.Sprintf("%s:%d:%s", decl.File, decl.Line, decl.Name)
		if _, dup := macros[key]; !dup {
			macros[key] = decl
		}
	}
}

// absorbForwardDeclarations drops any external entry whose identity matches
// a user-defined function: a prototype for a function this project also
// defines is not an external API, it's bookkeeping (§4.2 dedup rule).
func absorbForwardDeclarations(userDefined, external map[string]model.Declaration) {
	defined := map[string]bool{}
	for _, d := range userDefined {
		defined[d.Identity()] = true
	}
	for key, d := range external {
		if d.Kind == model.DeclFunction && defined[d.Identity()] {
			delete(external, key)
		}
	}
}

func isUnderRoot(file, root string) bool {
	if root == "" {
		return true
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	absFile, err := filepath.Abs(file)
	if err != nil {
		absFile = file
	}
	return absFile == absRoot || strings.HasPrefix(absFile, absRoot+string(filepath.Separator))
}

func isUnderIncludeDir(file string) bool {
	for _, part := range strings.Split(filepath.ToSlash(file), "/") {
		if part == "include" {
			return true
		}
	}
	return false
}

// values flattens a dedup map into a slice sorted by (file, line, name) so
// the written artifact is stable across runs — map iteration order isn't,
// and idempotence (§2) depends on byte-identical output for identical input.
func values(m map[string]model.Declaration) []model.Declaration {
	out := make([]model.Declaration, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Name < out[j].Name
	})
	return out
}
