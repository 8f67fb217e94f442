package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Dir is a filesystem-backed Store rooted at a base directory.
//
// Keys map directly to file paths under the base directory, so the layout is
// inspectable with ordinary tools. ContentType and Metadata are accepted but
// not persisted; LastModified comes from the file mtime.
type Dir struct {
	base string
}

// NewDir creates (if necessary) and opens a directory-backed store.
func NewDir(base string) (*Dir, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, &Error{Code: CodeConnection, Err: fmt.Errorf("create base dir: %w", err)}
	}
	return &Dir{base: base}, nil
}

// resolve maps a key to an absolute path, rejecting traversal outside base.
func (d *Dir) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", &Error{Code: CodePermission, Key: key, Err: errors.New("key escapes base directory")}
	}
	return filepath.Join(d.base, clean), nil
}

// Get implements Store.
func (d *Dir) Get(ctx context.Context, key string) (Object, error) {
	path, err := d.resolve(key)
	if err != nil {
		return Object{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, NewNotFoundError(key)
		}
		if errors.Is(err, fs.ErrPermission) {
			return Object{}, &Error{Code: CodePermission, Key: key, Err: err}
		}
		return Object{}, &Error{Code: CodeConnection, Key: key, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Object{}, &Error{Code: CodeConnection, Key: key, Err: err}
	}
	return Object{
		Key:          key,
		Content:      string(content),
		ContentType:  "text/plain",
		Size:         info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}

// Put implements Store. Parent directories are created as needed.
func (d *Dir) Put(ctx context.Context, key, content, contentType string, metadata map[string]string) error {
	path, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Error{Code: CodeConnection, Key: key, Err: fmt.Errorf("create parent dir: %w", err)}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return &Error{Code: CodePermission, Key: key, Err: err}
		}
		return &Error{Code: CodeConnection, Key: key, Err: err}
	}
	return nil
}

// List implements Store.
func (d *Dir) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := filepath.WalkDir(d.base, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// A vanished or unreadable entry should not abort the listing.
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.base, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := entry.Info()
		if err != nil {
			return nil
		}
		infos = append(infos, ObjectInfo{
			Key:          key,
			Size:         fi.Size(),
			LastModified: fi.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, &Error{Code: CodeConnection, Err: fmt.Errorf("walk %s: %w", d.base, err)}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete implements Store. Missing keys are ignored.
func (d *Dir) Delete(ctx context.Context, key string) error {
	path, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Code: CodeConnection, Key: key, Err: err}
	}
	return nil
}

// Exists implements Store.
func (d *Dir) Exists(ctx context.Context, key string) (bool, error) {
	path, err := d.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &Error{Code: CodeConnection, Key: key, Err: err}
	}
	return true, nil
}

// Close implements Store. The directory backend holds no resources.
func (d *Dir) Close() error { return nil }
