// Package security provides input validation used by the file toolset.
//
// PathValidator prevents path traversal (CWE-22): every path a tool touches
// must resolve inside one of the allowed workspace roots, including after
// symlink resolution.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator validates and sanitizes filesystem paths.
type PathValidator struct {
	allowedDirs []string
}

// NewPathValidator creates a path validator confined to allowedDirs.
// An empty list confines paths to the process working directory.
func NewPathValidator(allowedDirs []string) (*PathValidator, error) {
	if len(allowedDirs) == 0 {
		workDir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		allowedDirs = []string{workDir}
	}

	abs := make([]string, 0, len(allowedDirs))
	for _, dir := range allowedDirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving directory %s: %w", dir, err)
		}
		abs = append(abs, filepath.Clean(absDir))
	}

	return &PathValidator{allowedDirs: abs}, nil
}

// Roots returns the allowed root directories.
func (v *PathValidator) Roots() []string {
	out := make([]string, len(v.allowedDirs))
	copy(out, v.allowedDirs)
	return out
}

// Validate cleans path, resolves it to an absolute path, and checks that it
// lies inside an allowed root. Symlinks are resolved so a link cannot escape
// the workspace; a nonexistent path is acceptable (tools create new paths)
// as long as its textual location is allowed.
func (v *PathValidator) Validate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !v.inAllowed(absPath) {
		return "", fmt.Errorf("access denied: path %q is outside the workspace", absPath)
	}

	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Path does not exist yet; textual check above already passed.
			return absPath, nil
		}
		return "", fmt.Errorf("resolving symlinks: %w", err)
	}

	if realPath != absPath && !v.inAllowed(realPath) {
		return "", fmt.Errorf("access denied: symlink target %q is outside the workspace", realPath)
	}
	return realPath, nil
}

func (v *PathValidator) inAllowed(absPath string) bool {
	withSep := filepath.Clean(absPath) + string(filepath.Separator)
	for _, dir := range v.allowedDirs {
		if absPath == dir || strings.HasPrefix(withSep, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
