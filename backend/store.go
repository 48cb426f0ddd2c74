// Package backend implements the asynchronous remote API on top of
// synchronous storage backends.
package backend

import (
	"context"
	"errors"
	"io"

	"linkfetch/internal"
	"linkfetch/remote"
)

var (
	// ErrThrottled reports that the backend asked the client to slow down
	ErrThrottled = errors.New("backend throttled the request")
	// ErrNotFound reports a missing object, file or bucket
	ErrNotFound = errors.New("not found")
)

// Store is a synchronous storage backend
type Store interface {
	// Open builds the tree of a folder link
	Open(ctx context.Context, link *internal.LinkInfo) (*Tree, error)
	// Resolve looks up the single node of a file link
	Resolve(ctx context.Context, link *internal.LinkInfo) (*Node, error)
	// Reader streams a file starting at offset
	Reader(ctx context.Context, node *Node, offset int64) (io.ReadCloser, error)
	// Export returns a shareable link for node
	Export(ctx context.Context, node *Node) (string, error)
	// Account summarizes usage of the opened tree
	Account(ctx context.Context, tree *Tree) (*remote.AccountDetails, error)
	Close() error
}
