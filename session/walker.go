package session

import (
	"fmt"
	"strings"

	"linkfetch/internal"
	"linkfetch/remote"
	"linkfetch/utils"
)

// Lister enumerates the children of a folder in display order
type Lister interface {
	Children(node remote.Node) []remote.Node
}

// Entry is one row of a depth-first listing. Index is the row's position and is
// what selections refer to.
type Entry struct {
	Index  int
	Depth  int
	Handle remote.Handle
	Name   string
	Kind   remote.NodeKind
	Size   int64
	Label  string
}

// IsFolder reports whether the entry is a folder
func (e Entry) IsFolder() bool {
	return e.Kind == remote.KindFolder
}

// List appends node and its descendants to acc in pre-order, depth-first.
// A nil node yields NotLoggedIn.
func List(lister Lister, node remote.Node, acc []Entry, depth int) ([]Entry, error) {
	if node == nil {
		return acc, internal.NewNotLoggedInError("list")
	}

	acc = append(acc, newEntry(len(acc), depth, node))
	if node.Kind() != remote.KindFolder {
		return acc, nil
	}

	for _, child := range lister.Children(node) {
		var err error
		if acc, err = List(lister, child, acc, depth+1); err != nil {
			return acc, err
		}
	}
	return acc, nil
}

func newEntry(index, depth int, node remote.Node) Entry {
	entry := Entry{
		Index:  index,
		Depth:  depth,
		Handle: node.Handle(),
		Name:   node.Name(),
		Kind:   node.Kind(),
		Size:   node.Size(),
	}

	indent := strings.Repeat("\t", depth)
	if entry.Kind == remote.KindFolder {
		entry.Size = 0
		entry.Label = indent + "./" + entry.Name
	} else {
		entry.Label = indent + entry.Name + "\t" + utils.FormatBytes(entry.Size)
	}
	return entry
}

// Render formats entries one per line, each prefixed with its index
func Render(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d\t%s\n", e.Index, e.Label)
	}
	return b.String()
}
