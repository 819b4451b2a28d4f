package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanOptions controls which files a Scan collects.
type ScanOptions struct {
	// Extensions limits the scan to files with one of these extensions.
	// Matching is case-insensitive and the leading dot is optional.
	// Empty matches every file.
	Extensions []string
	// Recursive descends into subdirectories. Hidden directories are
	// skipped either way.
	Recursive bool
	// ExcludeDirs names directories to skip during recursive scans,
	// such as "vendor" or "node_modules".
	ExcludeDirs []string
}

// Result holds the files a Scan collected and any non-fatal errors it
// stepped over along the way.
type Result struct {
	Files  []string
	Errors []error
}

// Scan walks dir and collects the files matching opts. Paths come back
// absolute and sorted. Unreadable entries are recorded in the result
// and the walk continues; only an unusable root fails the call.
func Scan(dir string, opts ScanOptions) (*Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("access scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root is not a directory: %s", dir)
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[strings.ToLower(ext)] = true
	}
	skip := make(map[string]bool, len(opts.ExcludeDirs))
	for _, name := range opts.ExcludeDirs {
		skip[name] = true
	}

	res := &Result{}
	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("scan %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive || skip[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("resolve %s: %w", path, err))
			return nil
		}
		res.Files = append(res.Files, abs)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, walkErr)
	}

	sort.Strings(res.Files)
	return res, nil
}
