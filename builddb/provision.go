// Package builddb provisions a compile_commands.json for a Trusted
// Application project, falling back through a chain of build systems and,
// failing all of those, synthesizing entries from whatever source files are
// on disk. It never returns a fatal error: a lower-fidelity database is
// always preferable to stopping the pipeline (§4.1).
package builddb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ta-061/tee-flow-inspector/model"
	"github.com/ta-061/tee-flow-inspector/output"
)

// Options configures provisioning.
type Options struct {
	// ProjectDir is the TA project root; taDir() resolves its ta/
	// subdirectory.
	ProjectDir string
	// DevkitIncludeDir is the OP-TEE dev-kit's include directory, appended
	// to synthesized entries' include search path.
	DevkitIncludeDir string
}

func (o Options) taDir() string {
	return filepath.Join(o.ProjectDir, "ta")
}

// Provision runs the fallback cascade and returns a filtered, possibly
// synthesized compile database. The returned error is always nil; it exists
// so callers can treat this like any other fallible step without special
// casing, and so a future invariant violation has somewhere to go.
func Provision(opts Options, logger *output.Logger) (*model.CompileDatabase, error) {
	taDir := opts.taDir()

	removed, err := removeStaleDepFiles(taDir)
	if err != nil && logger != nil {
		logger.Warning("builddb: stale .d cleanup: %v", err)
	}
	if removed > 0 && logger != nil {
		logger.Debug("builddb: removed %d stale dependency file(s)", removed)
	}

	var warnings []string
	entries, source, ok := runCascade(opts, logger, &warnings)
	if !ok {
		warnings = append(warnings, "no build system produced a compile database; synthesizing from disk")
		entries = nil
		source = model.BuildDBSourceSynthesized
	}

	entries = filterToTATree(entries, taDir)

	sourceFiles, err := findCSourceFiles(taDir)
	if err != nil && logger != nil {
		logger.Warning("builddb: scanning %s for .c files: %v", taDir, err)
	}

	if len(entries) < len(sourceFiles) {
		missing := missingSourceFiles(entries, sourceFiles)
		for _, f := range missing {
			entries = append(entries, synthesizeEntry(f, opts))
		}
		if source != model.BuildDBSourceSynthesized {
			warnings = append(warnings, fmt.Sprintf("synthesized %d entr(y/ies) missing from the native build", len(missing)))
		}
	}

	db := &model.CompileDatabase{
		Entries:  entries,
		Source:   source,
		Warnings: warnings,
	}
	return db, nil
}

// runCascade attempts each build system in order, stopping at the first
// that produces a compile_commands.json. Returns the parsed entries, which
// rung of the cascade succeeded, and whether any rung did.
func runCascade(opts Options, logger *output.Logger, warnings *[]string) ([]model.CompileEntry, model.BuildDBSource, bool) {
	taDir := opts.taDir()

	cascade := []struct {
		source model.BuildDBSource
		run    func() (string, error)
	}{
		{model.BuildDBSourceBuildScript, func() (string, error) { return runBuildScript(opts.ProjectDir) }},
		{model.BuildDBSourceNDKBuild, func() (string, error) { return runNDKBuild(opts.ProjectDir) }},
		{model.BuildDBSourceTopMake, func() (string, error) { return runTopMake(opts.ProjectDir) }},
		{model.BuildDBSourceTAMake, func() (string, error) { return runTAMake(taDir) }},
		{model.BuildDBSourceCMake, func() (string, error) { return runCMake(taDir) }},
	}

	for _, rung := range cascade {
		path, err := rung.run()
		if err != nil {
			if logger != nil {
				logger.Debug("builddb: %s: %v", rung.source, err)
			}
			*warnings = append(*warnings, fmt.Sprintf("%s: %v", rung.source, err))
			continue
		}
		entries, err := loadCompileDatabase(path)
		if err != nil {
			if logger != nil {
				logger.Debug("builddb: %s produced an unreadable database: %v", rung.source, err)
			}
			*warnings = append(*warnings, fmt.Sprintf("%s produced an unreadable compile_commands.json: %v", rung.source, err))
			continue
		}
		if logger != nil {
			logger.Progress("builddb: compile database via %s (%d entries)", rung.source, len(entries))
		}
		return entries, rung.source, true
	}
	return nil, "", false
}

func loadCompileDatabase(path string) ([]model.CompileEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var entries []model.CompileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}
