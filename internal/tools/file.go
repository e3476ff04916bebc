package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/embykit/filem/internal/security"
)

// Tool names exposed to the model.
const (
	MoveFileName      = "move_file"
	DeleteFileName    = "delete_file"
	ReadStructureName = "read_structure"
)

// MoveFileInput defines input for move_file.
type MoveFileInput struct {
	Source      string `json:"source" jsonschema:"the file or directory to move"`
	Destination string `json:"destination" jsonschema:"the target path; must not exist yet"`
}

// DeleteFileInput defines input for delete_file.
type DeleteFileInput struct {
	Path string `json:"path" jsonschema:"the file or directory to delete"`
}

// ReadStructureInput defines input for read_structure.
type ReadStructureInput struct {
	Path  string `json:"path" jsonschema:"the directory to list"`
	Depth int    `json:"depth,omitempty" jsonschema:"recursion depth; omit for unlimited"`
}

// FileInfo is one entry of a read_structure listing.
type FileInfo struct {
	Name         string      `json:"name"`
	Path         string      `json:"path"`
	IsDirectory  bool        `json:"isDirectory"`
	Size         int64       `json:"size"`
	ModifiedTime time.Time   `json:"modifiedTime"`
	Children     []*FileInfo `json:"children,omitempty"`
}

// Files implements the file-organization toolset. All paths are validated
// against the workspace roots before any filesystem access.
type Files struct {
	pathVal *security.PathValidator
	logger  *slog.Logger
}

// NewFiles creates the file toolset.
func NewFiles(pathVal *security.PathValidator, logger *slog.Logger) (*Files, error) {
	if pathVal == nil {
		return nil, fmt.Errorf("path validator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Files{pathVal: pathVal, logger: logger}, nil
}

// Register adds the toolset's tools to kit.
func (f *Files) Register(kit *Kit) error {
	moveTool, err := New(MoveFileName,
		"Move or rename a file or directory. Fails if the source is missing or the destination already exists. Parent directories of the destination are created as needed; an emptied source directory is removed.",
		f.MoveFile)
	if err != nil {
		return err
	}
	deleteTool, err := New(DeleteFileName,
		"Delete a file, or a directory with all its contents.",
		f.DeleteFile)
	if err != nil {
		return err
	}
	structureTool, err := New(ReadStructureName,
		"List the structure of a directory as a nested tree with name, path, size and modification time. Hidden entries are excluded. Optional depth bounds the recursion.",
		f.ReadStructure)
	if err != nil {
		return err
	}

	for _, t := range []*Tool{moveTool, deleteTool, structureTool} {
		if err := kit.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// MoveFile renames source to destination. The destination must not exist;
// its parent directory tree is created as needed. If the move empties the
// source's parent directory, that directory is removed too and the result
// reports it.
func (f *Files) MoveFile(_ context.Context, input MoveFileInput) (Result, error) {
	source, err := f.pathVal.Validate(input.Source)
	if err != nil {
		return Errorf(ErrCodeSecurity, "source: %v", err), nil
	}
	destination, err := f.pathVal.Validate(input.Destination)
	if err != nil {
		return Errorf(ErrCodeSecurity, "destination: %v", err), nil
	}

	srcInfo, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return Errorf(ErrCodeNotFound, "source path does not exist: %s", input.Source), nil
		}
		return Errorf(ErrCodeIO, "stat source: %v", err), nil
	}

	if _, err := os.Stat(destination); err == nil {
		return Errorf(ErrCodeConflict, "destination already exists: %s", input.Destination), nil
	} else if !os.IsNotExist(err) {
		return Errorf(ErrCodeIO, "stat destination: %v", err), nil
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o750); err != nil {
		return Errorf(ErrCodeIO, "creating destination directory: %v", err), nil
	}

	if err := os.Rename(source, destination); err != nil {
		return Errorf(ErrCodeIO, "rename failed: %v", err), nil
	}

	operation := "rename file"
	if srcInfo.IsDir() {
		operation = "rename directory"
	}

	sourceDirRemoved := f.removeIfEmpty(filepath.Dir(source))
	f.logger.Info("moved", "source", source, "destination", destination, "sourceDirRemoved", sourceDirRemoved)

	return Success(fmt.Sprintf("moved %s to %s", input.Source, input.Destination), map[string]any{
		"operation":        operation,
		"source":           source,
		"destination":      destination,
		"sourceDirRemoved": sourceDirRemoved,
	}), nil
}

// removeIfEmpty removes dir when it is empty and not a workspace root.
func (f *Files) removeIfEmpty(dir string) bool {
	if slices.Contains(f.pathVal.Roots(), dir) {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return false
	}
	if err := os.Remove(dir); err != nil {
		f.logger.Warn("removing emptied source directory", "dir", dir, "error", err)
		return false
	}
	return true
}

// DeleteFile removes a file, or a directory recursively.
func (f *Files) DeleteFile(_ context.Context, input DeleteFileInput) (Result, error) {
	path, err := f.pathVal.Validate(input.Path)
	if err != nil {
		return Errorf(ErrCodeSecurity, "%v", err), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Errorf(ErrCodeNotFound, "path does not exist: %s", input.Path), nil
		}
		return Errorf(ErrCodeIO, "stat: %v", err), nil
	}

	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return Errorf(ErrCodeIO, "delete failed: %v", err), nil
	}

	f.logger.Info("deleted", "path", path, "dir", info.IsDir())
	return Success(fmt.Sprintf("deleted: %s", input.Path), map[string]any{
		"path":    path,
		"deleted": true,
	}), nil
}

// ReadStructure lists a directory tree. Depth 1 lists only the top level;
// depth 0 or omitted recurses to the leaves. Hidden entries (dot-prefixed)
// are excluded.
//
// The traversal is iterative with an explicit work list so arbitrarily deep
// trees cannot exhaust the stack.
func (f *Files) ReadStructure(_ context.Context, input ReadStructureInput) (Result, error) {
	root, err := f.pathVal.Validate(input.Path)
	if err != nil {
		return Errorf(ErrCodeSecurity, "%v", err), nil
	}
	if input.Depth < 0 {
		return Errorf(ErrCodeValidation, "depth must not be negative"), nil
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return Errorf(ErrCodeNotFound, "path does not exist: %s", input.Path), nil
		}
		return Errorf(ErrCodeIO, "stat: %v", err), nil
	}
	if !info.IsDir() {
		return Errorf(ErrCodeValidation, "not a directory: %s", input.Path), nil
	}

	structure, err := listTree(root, input.Depth)
	if err != nil {
		return Errorf(ErrCodeIO, "reading structure: %v", err), nil
	}

	return Success(fmt.Sprintf("structure of %s", input.Path), structure), nil
}

// workItem is one pending directory in the traversal. remaining <= 0 means
// unlimited depth.
type workItem struct {
	dir       string
	remaining int
	out       *[]*FileInfo
}

func listTree(root string, depth int) ([]*FileInfo, error) {
	var top []*FileInfo
	work := []workItem{{dir: root, remaining: depth, out: &top}}

	for len(work) > 0 {
		item := work[len(work)-1]
		work = work[:len(work)-1]

		entries, err := os.ReadDir(item.dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			full := filepath.Join(item.dir, entry.Name())
			entryInfo, err := entry.Info()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// Entry vanished between ReadDir and Info.
					continue
				}
				return nil, err
			}

			node := &FileInfo{
				Name:         entry.Name(),
				Path:         full,
				IsDirectory:  entry.IsDir(),
				Size:         entryInfo.Size(),
				ModifiedTime: entryInfo.ModTime(),
			}
			*item.out = append(*item.out, node)

			if entry.IsDir() && (item.remaining <= 0 || item.remaining > 1) {
				next := item.remaining
				if next > 1 {
					next--
				}
				work = append(work, workItem{dir: full, remaining: next, out: &node.Children})
			}
		}
	}
	return top, nil
}
