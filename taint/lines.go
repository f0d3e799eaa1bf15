package taint

import (
	"bytes"
	"os"

	"github.com/ta-061/tee-flow-inspector/model"
)

// farOutLineBound is the "implausible" threshold (§4.5.5): a cited line
// number larger than this is treated the same as a non-positive one, since
// no real TA source file approaches this size.
const farOutLineBound = 1_000_000

// validateLine implements §4.5.5: strict acceptance if the cited file
// exists and the line is within its range, relaxed acceptance (any positive
// integer) otherwise, and coercion to the sink's own line when the cited
// value is outright implausible.
func validateLine(file string, line int, vd model.VD) (resolvedFile string, resolvedLine int, coerced bool) {
	if file == "" {
		file = vd.File
	}

	if line <= 0 || line > farOutLineBound {
		return vd.File, vd.Line, true
	}

	if count, ok := lineCount(file); ok {
		if line <= count {
			return file, line, false
		}
		// File exists but the cited line falls outside it: not implausible
		// enough to coerce, but not strictly verifiable either. Relaxed
		// validation accepts it as-is.
		return file, line, false
	}

	// File couldn't be read (outside the project, or a synthesized path).
	// Relaxed validation: any positive, non-absurd integer passes through.
	return file, line, false
}

func lineCount(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	if len(data) == 0 {
		return 0, true
	}
	count := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		count++
	}
	return count, true
}
