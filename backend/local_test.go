package backend

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linkfetch/internal"
	"linkfetch/remote"
)

func TestLocalStore_OpenBuildsSortedTree(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"z.txt":          "zz",
		"docs/b.md":      "bbb",
		"docs/a.md":      "a",
		"movie.mkv.part": "partial",
	})
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	store := NewLocalStore()
	tree, err := store.Open(context.Background(), &internal.LinkInfo{Scheme: "file", Kind: internal.LinkFolder, Location: dir})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var order []string
	tree.Walk(func(n *Node) {
		order = append(order, string(n.Handle()))
	})
	want := ".,docs,docs/a.md,docs/b.md,empty,z.txt"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("walk order = %s, want %s", got, want)
	}

	if tree.Root.Name() != filepath.Base(dir) {
		t.Errorf("root name = %q", tree.Root.Name())
	}
	if n := tree.Lookup("docs/b.md"); n == nil || n.Size() != 3 || n.Parent().Name() != "docs" {
		t.Errorf("unexpected docs/b.md node %+v", n)
	}

	files, folders, used := tree.Totals()
	if files != 3 || folders != 2 || used != 6 {
		t.Errorf("Totals() = %d, %d, %d", files, folders, used)
	}
}

func TestLocalStore_OpenMissingDirectory(t *testing.T) {
	store := NewLocalStore()
	_, err := store.Open(context.Background(), &internal.LinkInfo{Location: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_ResolveAndRead(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"clip.bin": "0123456789"})
	store := NewLocalStore()

	node, err := store.Resolve(context.Background(), &internal.LinkInfo{Location: filepath.Join(dir, "clip.bin")})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if node.Kind() != remote.KindFile || node.Size() != 10 || node.Name() != "clip.bin" {
		t.Errorf("unexpected node %+v", node)
	}

	rc, err := store.Reader(context.Background(), node, 4)
	if err != nil {
		t.Fatalf("Reader failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "456789" {
		t.Errorf("read from offset 4 = %q", data)
	}

	if _, err := store.Resolve(context.Background(), &internal.LinkInfo{Location: dir}); err == nil {
		t.Error("resolving a directory should fail")
	}
	if _, err := store.Resolve(context.Background(), &internal.LinkInfo{Location: filepath.Join(dir, "nope")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_Export(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore()

	link, err := store.Export(context.Background(), NewFileNode("a.txt", "a.txt", filepath.Join(dir, "a.txt"), 1))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link, "file://") || !strings.HasSuffix(link, "/a.txt") {
		t.Errorf("file export = %q", link)
	}

	link, err = store.Export(context.Background(), NewFolderNode("sub", "sub", filepath.Join(dir, "sub")))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(link, "/sub/") {
		t.Errorf("folder export should end with a slash: %q", link)
	}
}

func TestNode_FolderSizeIsZero(t *testing.T) {
	folder := NewFolderNode("f", "f", "/f")
	folder.size = 42
	if folder.Size() != 0 {
		t.Errorf("folder Size() = %d", folder.Size())
	}
	if (*Tree)(nil).Lookup("x") != nil {
		t.Error("nil tree lookup should return nil")
	}
}
