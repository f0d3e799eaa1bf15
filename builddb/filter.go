package builddb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ta-061/tee-flow-inspector/model"
)

// filterToTATree keeps only entries whose file lies under taDir, per §4.1
// "Filtering" — a native build database for a multi-component OP-TEE project
// (host app + TA) otherwise pulls in host-side compilation units that have
// no business in a TA taint analysis.
func filterToTATree(entries []model.CompileEntry, taDir string) []model.CompileEntry {
	absTA, err := filepath.Abs(taDir)
	if err != nil {
		absTA = taDir
	}
	var out []model.CompileEntry
	for _, e := range entries {
		path := e.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.Directory, path)
		}
		absFile, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if strings.HasPrefix(absFile, absTA+string(filepath.Separator)) || absFile == absTA {
			out = append(out, e)
		}
	}
	return out
}

// findCSourceFiles walks taDir and returns every .c file found, used both
// to decide whether synthesis is needed and to know what to synthesize.
func findCSourceFiles(taDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(taDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".teeflow-cmake-build" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".c") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", taDir, err)
	}
	return files, nil
}

// missingSourceFiles returns the .c files in sourceFiles that have no
// corresponding entry in entries.
func missingSourceFiles(entries []model.CompileEntry, sourceFiles []string) []string {
	have := make(map[string]bool, len(entries))
	for _, e := range entries {
		path := e.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.Directory, path)
		}
		if abs, err := filepath.Abs(path); err == nil {
			have[abs] = true
		}
	}
	var missing []string
	for _, f := range sourceFiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		if !have[abs] {
			missing = append(missing, f)
		}
	}
	return missing
}

// synthesizeEntry fabricates a compile entry for a .c file the native build
// (or entirely absent build) never accounted for, per §4.1's synthesis
// recipe: -I<ta>/include -I<ta> -I<devkit>/include -c <file> -o <file>.o.
func synthesizeEntry(file string, opts Options) model.CompileEntry {
	taDir := opts.taDir()
	args := []string{
		"-I" + filepath.Join(taDir, "include"),
		"-I" + taDir,
	}
	if opts.DevkitIncludeDir != "" {
		args = append(args, "-I"+opts.DevkitIncludeDir)
	}
	args = append(args, "-c", file, "-o", file+".o")

	return model.CompileEntry{
		Directory: taDir,
		File:      file,
		Arguments: args,
	}
}
