package records

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
)

// IsRecordFile reports whether path has an extension LoadFile can parse.
func IsRecordFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".json":
		return true
	}
	return false
}

// FindRecordFiles walks dir and returns every CSV and JSON file in lexical
// order, skipping hidden files and directories.
func FindRecordFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		hidden := path != dir && strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}

		if !hidden && IsRecordFile(path) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// Load reads records from a single file, or from every record file below
// a directory concatenated in lexical path order.
func Load(path string) ([]model.Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening records: %w", err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	files, err := FindRecordFiles(path)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no record files in %s", path)
	}

	all := make([]model.Record, 0)
	for _, file := range files {
		recs, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		all = append(all, recs...)
	}
	logging.Debug("loaded record directory", "path", path, "files", len(files), "records", len(all))
	return all, nil
}
