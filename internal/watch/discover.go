// Package watch finds session logs on disk and feeds them to the ingest
// pipeline, either once as a batch or on a polling interval.
package watch

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const logExt = ".jsonl"

// Discover walks roots and returns the absolute path of every .jsonl file
// below them, sorted and without duplicates. A root that is itself a file is
// included whatever its extension. Missing roots are skipped.
func Discover(roots []string, logger *slog.Logger) []string {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range roots {
		root = ExpandHome(root)
		info, err := os.Stat(root)
		if err != nil {
			logger.Debug("skipping log root", "root", root, "error", err)
			continue
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") && d.Name() != ".openclaw" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(d.Name(), logExt) {
				add(path)
			}
			return nil
		})
		if err != nil {
			logger.Warn("error walking log root", "root", root, "error", err)
		}
	}

	sort.Strings(files)
	return files
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
