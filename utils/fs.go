package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PartSuffix is appended to files while they are being downloaded
const PartSuffix = ".part"

// FileOperations provides file system utilities
type FileOperations struct{}

// NewFileOperations creates a new FileOperations instance
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// EnsureDir creates dir and its parents, succeeding if it already exists
func (f *FileOperations) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	return nil
}

// EnsureParentDir creates the directory that will contain path
func (f *FileOperations) EnsureParentDir(path string) error {
	return f.EnsureDir(filepath.Dir(path))
}

// IsDir reports whether path is an existing directory
func (f *FileOperations) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileExists checks if a file exists
func (f *FileOperations) FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file
func (f *FileOperations) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AtomicRename performs an atomic file rename operation
func (f *FileOperations) AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// PartPath returns the in-progress path for outputPath
func (f *FileOperations) PartPath(outputPath string) string {
	return outputPath + PartSuffix
}

// DetectPartialDownload checks if a partial download exists and returns its size
func (f *FileOperations) DetectPartialDownload(outputPath string) (bool, int64, error) {
	info, err := os.Stat(f.PartPath(outputPath))
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	return true, info.Size(), nil
}

// OpenPartialFile opens partPath for writing at offset, discarding anything past it
func (f *FileOperations) OpenPartialFile(partPath string, offset int64) (*os.File, error) {
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open partial file: %w", err)
	}
	if err := file.Truncate(offset); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to truncate partial file: %w", err)
	}
	if _, err := file.Seek(offset, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek partial file: %w", err)
	}
	return file, nil
}

// SafeJoin joins a user supplied relative path under base, refusing to escape it
func (f *FileOperations) SafeJoin(base, rel string) (string, error) {
	if rel == "" {
		return filepath.Clean(base), nil
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%q must be relative", rel)
	}
	joined := filepath.Join(base, rel)
	cleanBase := filepath.Clean(base)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%q escapes %s", rel, base)
	}
	return joined, nil
}
