package mapreduce

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalInput lists every file below a root folder, recursing into
// subfolders to any depth. Files are listed in lexical order.
type LocalInput struct {
	root string // Folder containing the input files
}

// NewLocalInput returns a new instance of LocalInput
//
// * root - Folder containing the input files. A single file is also accepted.
func NewLocalInput(root string) *LocalInput {
	input := new(LocalInput)
	input.root = root
	return input
}

// Root returns the folder this input reads from
func (input *LocalInput) Root() string {
	return input.root
}

// Files lists every non-hidden file below the root folder.
func (input *LocalInput) Files(ctx context.Context) ([]FileDownload, error) {
	info, err := os.Stat(input.root)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: '%v'", ErrNoInput, input.root)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []FileDownload{NewLocalFileDownload(input.root, filepath.ToSlash(input.root), info.Size())}, nil
	}
	files := []FileDownload{}
	err = filepath.WalkDir(input.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path != input.root && hiddenFile(entry.Name()) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		name, err := filepath.Rel(input.root, path)
		if err != nil {
			return err
		}
		files = append(files, NewLocalFileDownload(path, filepath.ToSlash(name), info.Size()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing input files in '%v': %w", input.root, err)
	}
	return files, nil
}
