package archive

import (
	"io/fs"
	"os"
	"path/filepath"

	"camerasync/internal/config"
)

// Resolve locates each name in the archive tree and returns name -> absolute
// path. The expected <root>/<ext>/<name> location is tried first; names not
// found there are searched for in every subdirectory. Names that cannot be
// found are absent from the result.
func Resolve(root string, names []string) (map[string]string, error) {
	found := make(map[string]string, len(names))
	missing := make(map[string]struct{})
	for _, name := range names {
		candidate := filepath.Join(root, config.NormalizeExt(filepath.Ext(name)), name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			found[name] = candidate
			continue
		}
		missing[name] = struct{}{}
	}
	if len(missing) == 0 {
		return found, nil
	}

	err := walkFiles(root, func(path string, d fs.DirEntry) error {
		if _, ok := missing[d.Name()]; !ok {
			return nil
		}
		if _, seen := found[d.Name()]; !seen {
			found[d.Name()] = path
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return found, nil
}
