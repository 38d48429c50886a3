package source

import (
	"os"
	"path/filepath"
	"strings"
)

// ScanDir walks dir and discovers every JSONL event log below it. A missing
// directory yields no files and no error.
func ScanDir(dir string) ([]DiscoveredFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(dir) == ".jsonl" {
			return []DiscoveredFile{discovered(filepath.Dir(dir), dir)}, nil
		}
		return nil, nil
	}

	var files []DiscoveredFile

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		files = append(files, discovered(dir, path))
		return nil
	})

	return files, err
}

func discovered(root, path string) DiscoveredFile {
	rel, _ := filepath.Rel(root, filepath.Dir(path))
	if rel == "." {
		rel = ""
	}
	return DiscoveredFile{
		Path:   path,
		Server: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		Dir:    rel,
	}
}

// CountServers returns the number of unique servers in a set of discovered files.
func CountServers(files []DiscoveredFile) int {
	seen := make(map[string]struct{})
	for _, f := range files {
		seen[f.Server] = struct{}{}
	}
	return len(seen)
}
