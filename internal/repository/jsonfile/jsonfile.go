// Package jsonfile persists the account set as a single JSON document.
//
// Every Save rewrites the whole file. The new content is written to a
// temporary file in the same directory and renamed over the old one, so a
// crash mid-write leaves the previous snapshot intact.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/repository"
)

var _ repository.Snapshotter = (*File)(nil)

// File is a repository.Snapshotter backed by one JSON file.
type File struct {
	path string
}

// New returns a snapshotter for path. The file and its directory are
// created on first Save.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the snapshot. A missing or empty file is an empty set.
func (f *File) Load(_ context.Context) ([]model.Account, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Account{}, nil
		}
		return nil, fmt.Errorf("jsonfile: reading %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return []model.Account{}, nil
	}

	var accounts []model.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("jsonfile: decoding %s: %w", f.path, err)
	}
	return accounts, nil
}

// Save replaces the file with the given account set.
func (f *File) Save(_ context.Context, accounts []model.Account) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("jsonfile: creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding accounts: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: replacing %s: %w", f.path, err)
	}
	return nil
}
