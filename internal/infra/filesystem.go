package infra

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/isolson/remove-google-macos/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
// Probe methods never return errors: a path that cannot be examined is
// reported as absent or zero-sized so a scan survives partial failures.
type FileSystemManagerImpl struct {
	homeDir string
}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	home, _ := os.UserHomeDir()
	return &FileSystemManagerImpl{homeDir: home}
}

// NewFileSystemManagerWithHome creates a filesystem manager with custom home (for testing).
func NewFileSystemManagerWithHome(home string) domain.FileSystemManager {
	return &FileSystemManagerImpl{homeDir: home}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func (fm *FileSystemManagerImpl) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SizeOf returns the recursive byte size of path. A plain file
// contributes its own size. Unreadable subpaths contribute zero;
// nothing here is fatal.
func (fm *FileSystemManagerImpl) SizeOf(path string) int64 {
	info, err := os.Lstat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}

	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return fs.SkipDir // permission denied counts as zero
		}
		if !d.IsDir() {
			if fi, err := d.Info(); err == nil {
				total += fi.Size()
			}
		}
		return nil
	})
	return total
}

// ListDir returns the entry names in dir, or nil if unreadable.
func (fm *FileSystemManagerImpl) ListDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// Move renames src to dst, falling back to copy+delete when the rename
// crosses filesystems.
func (fm *FileSystemManagerImpl) Move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyTree(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// MkdirAll creates dir and any missing parents.
func (fm *FileSystemManagerImpl) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Remove deletes a single file (not recursive).
func (fm *FileSystemManagerImpl) Remove(path string) error {
	return os.Remove(path)
}

// Chmod changes the permission bits of path.
func (fm *FileSystemManagerImpl) Chmod(path string, mode uint32) error {
	return os.Chmod(path, os.FileMode(mode))
}

// WriteEmptyFile creates an empty regular file at path.
func (fm *FileSystemManagerImpl) WriteEmptyFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// ExpandHome expands ~ to the user's home directory.
func (fm *FileSystemManagerImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fm.homeDir, path[2:])
	}
	if path == "~" {
		return fm.homeDir
	}
	return path
}

// HomeDir returns the user's home directory.
func (fm *FileSystemManagerImpl) HomeDir() string {
	return fm.homeDir
}

// copyTree copies a file or directory tree preserving modes.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	}

	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}

	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
