package builddb

import (
	"os"
	"path/filepath"
	"strings"
)

// removeStaleDepFiles deletes every *.d dependency file under dir before a
// build attempt. Stale .d files recorded against a toolchain path that no
// longer exists (a container rebuild, a moved SDK) make some build systems
// silently skip recompilation, which in turn produces a compile database
// missing the very entries this package exists to guarantee.
func removeStaleDepFiles(dir string) (int, error) {
	if !dirExists(dir) {
		return 0, nil
	}
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".d") {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
