package backend

import (
	"sort"

	"linkfetch/remote"
)

// Node is a remote.Node produced by a Store. Location is the store-specific
// address of the content: a local path or an object key.
type Node struct {
	handle   remote.Handle
	name     string
	kind     remote.NodeKind
	size     int64
	location string
	parent   *Node
	children []*Node
}

// NewFileNode creates a file node
func NewFileNode(handle, name, location string, size int64) *Node {
	return &Node{handle: remote.Handle(handle), name: name, kind: remote.KindFile, size: size, location: location}
}

// NewFolderNode creates a folder node
func NewFolderNode(handle, name, location string) *Node {
	return &Node{handle: remote.Handle(handle), name: name, kind: remote.KindFolder, location: location}
}

func (n *Node) Handle() remote.Handle { return n.handle }
func (n *Node) Name() string          { return n.name }
func (n *Node) Kind() remote.NodeKind { return n.kind }

// Size returns the file size. Folders report 0.
func (n *Node) Size() int64 {
	if n.kind == remote.KindFolder {
		return 0
	}
	return n.size
}

// Location returns the store address of the node
func (n *Node) Location() string { return n.location }

// Parent returns the containing folder, or nil for a root
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's children in display order
func (n *Node) Children() []*Node { return n.children }

// Add appends child to a folder
func (n *Node) Add(child *Node) {
	child.parent = n
	n.children = append(n.children, child)
}

// SortChildren orders every folder's children by name, recursively
func (n *Node) SortChildren() {
	sort.Slice(n.children, func(i, j int) bool {
		return n.children[i].name < n.children[j].name
	})
	for _, c := range n.children {
		c.SortChildren()
	}
}

// Tree is the node tree of a folder link, indexed by handle
type Tree struct {
	Root  *Node
	nodes map[remote.Handle]*Node
}

// NewTree indexes every node below root
func NewTree(root *Node) *Tree {
	t := &Tree{Root: root, nodes: make(map[remote.Handle]*Node)}
	t.Walk(func(n *Node) {
		t.nodes[n.handle] = n
	})
	return t
}

// Lookup returns the node with handle h
func (t *Tree) Lookup(h remote.Handle) *Node {
	if t == nil {
		return nil
	}
	return t.nodes[h]
}

// Walk visits every node in pre-order
func (t *Tree) Walk(fn func(*Node)) {
	if t == nil || t.Root == nil {
		return
	}
	var visit func(*Node)
	visit = func(n *Node) {
		fn(n)
		for _, c := range n.children {
			visit(c)
		}
	}
	visit(t.Root)
}

// Totals counts files and folders below the root, excluding the root itself,
// and sums file sizes
func (t *Tree) Totals() (files, folders int, bytes int64) {
	t.Walk(func(n *Node) {
		if n == t.Root {
			return
		}
		if n.kind == remote.KindFolder {
			folders++
			return
		}
		files++
		bytes += n.size
	})
	return files, folders, bytes
}
