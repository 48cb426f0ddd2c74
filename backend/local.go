package backend

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"linkfetch/internal"
	"linkfetch/remote"
	"linkfetch/utils"
)

// LocalStore serves file:// links from the local filesystem. Folder handles
// are slash-separated paths relative to the opened directory.
type LocalStore struct {
	fileOps *utils.FileOperations
}

// NewLocalStore creates a local filesystem store
func NewLocalStore() *LocalStore {
	return &LocalStore{fileOps: utils.NewFileOperations()}
}

func notFound(path string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return err
}

// Open walks the directory of a folder link. Partial downloads and anything
// that is not a regular file or directory are skipped.
func (s *LocalStore) Open(ctx context.Context, link *internal.LinkInfo) (*Tree, error) {
	rootDir := link.Location
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, notFound(rootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", rootDir)
	}

	root := NewFolderNode(".", filepath.Base(rootDir), rootDir)
	folders := map[string]*Node{".": root}

	err = filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == rootDir {
			return nil
		}

		rel, err := filepath.Rel(rootDir, p)
		if err != nil {
			return err
		}
		handle := filepath.ToSlash(rel)
		parent := folders[path.Dir(handle)]
		if parent == nil {
			return nil
		}

		switch {
		case d.IsDir():
			folder := NewFolderNode(handle, d.Name(), p)
			parent.Add(folder)
			folders[handle] = folder
		case d.Type().IsRegular():
			if strings.HasSuffix(d.Name(), utils.PartSuffix) {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			parent.Add(NewFileNode(handle, d.Name(), p, fi.Size()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	root.SortChildren()
	return NewTree(root), nil
}

// Resolve stats the file of a file link
func (s *LocalStore) Resolve(ctx context.Context, link *internal.LinkInfo) (*Node, error) {
	info, err := os.Stat(link.Location)
	if err != nil {
		return nil, notFound(link.Location, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", link.Location)
	}
	abs, err := filepath.Abs(link.Location)
	if err != nil {
		return nil, err
	}
	return NewFileNode(filepath.ToSlash(abs), info.Name(), abs, info.Size()), nil
}

// Reader opens the node's file positioned at offset
func (s *LocalStore) Reader(ctx context.Context, node *Node, offset int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(node.Location())
	if err != nil {
		return nil, notFound(node.Location(), err)
	}
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}
	return file, nil
}

// Export returns the file:// URL of the node
func (s *LocalStore) Export(ctx context.Context, node *Node) (string, error) {
	abs, err := filepath.Abs(node.Location())
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	if node.Kind() == remote.KindFolder {
		u.Path += "/"
	}
	return u.String(), nil
}

// Account reports the size of the opened tree
func (s *LocalStore) Account(ctx context.Context, tree *Tree) (*remote.AccountDetails, error) {
	files, folders, used := tree.Totals()
	return &remote.AccountDetails{
		StorageUsed: used,
		Files:       files,
		Folders:     folders,
		CapturedAt:  time.Now(),
	}, nil
}

func (s *LocalStore) Close() error { return nil }
