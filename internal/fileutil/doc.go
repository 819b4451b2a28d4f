// Package fileutil provides directory scanning with extension and
// directory filtering.
//
// The scanner is the one place the codebase walks directories, so plan
// discovery and fixture loading behave the same way everywhere: hidden
// directories are skipped, extension matching is case-insensitive, and
// results come back as sorted absolute paths.
//
// Collect the plan files directly under a directory:
//
//	res, err := fileutil.Scan(dir, fileutil.ScanOptions{
//	    Extensions: []string{".md", ".yaml"},
//	})
//
// Walk a project tree while skipping dependency directories:
//
//	res, err := fileutil.Scan(root, fileutil.ScanOptions{
//	    Extensions:  []string{".go"},
//	    Recursive:   true,
//	    ExcludeDirs: []string{"vendor", "node_modules"},
//	})
//
// Scans tolerate unreadable entries: those land in Result.Errors and
// the walk continues. Only a missing or non-directory root fails the
// call outright.
package fileutil
