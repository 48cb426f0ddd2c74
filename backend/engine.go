package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"linkfetch/internal"
	"linkfetch/remote"
	"linkfetch/utils"
)

// Options configures an Engine
type Options struct {
	// MaxTransfers bounds concurrently running downloads
	MaxTransfers int
	// MaxRetries bounds consecutive failures of one request or transfer
	MaxRetries int
	// RateLimit is the shared bandwidth limit in bytes per second, 0 for none
	RateLimit int64
	// UpdateInterval is the minimum spacing of transfer update events
	UpdateInterval time.Duration
	// RetryBase and RetryCeiling shape the exponential retry delay
	RetryBase    time.Duration
	RetryCeiling time.Duration
	Logger       *internal.SecureLogger
}

func (o Options) withDefaults() Options {
	if o.MaxTransfers <= 0 {
		o.MaxTransfers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.UpdateInterval <= 0 {
		o.UpdateInterval = 200 * time.Millisecond
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.RetryCeiling <= 0 {
		o.RetryCeiling = 64 * time.Second
	}
	if o.Logger == nil {
		o.Logger = internal.GetLogger()
	}
	return o
}

// Engine implements remote.API over a Store. Every request and transfer runs on
// its own goroutine and reports through its listener.
type Engine struct {
	store   Store
	opts    Options
	log     *internal.SecureLogger
	parser  *utils.LinkParser
	fileOps *utils.FileOperations
	limiter internal.RateLimiter
	sem     *semaphore.Weighted
	gate    *pauseGate

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	lifeMu sync.RWMutex
	closed bool

	mu     sync.RWMutex
	link   *internal.LinkInfo
	tree   *Tree
	public map[remote.Handle]*Node

	transfersMu sync.Mutex
	transfers   map[int]context.CancelFunc
	nextTag     int
}

var _ remote.API = (*Engine)(nil)

// New creates an engine serving store
func New(store Store, opts Options) *Engine {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:     store,
		opts:      opts,
		log:       opts.Logger,
		parser:    utils.NewLinkParser(),
		fileOps:   utils.NewFileOperations(),
		limiter:   utils.NewBandwidthLimiter(opts.RateLimit),
		sem:       semaphore.NewWeighted(int64(opts.MaxTransfers)),
		gate:      newPauseGate(),
		ctx:       ctx,
		cancel:    cancel,
		public:    make(map[remote.Handle]*Node),
		transfers: make(map[int]context.CancelFunc),
	}
}

// spawn runs fn on the worker group unless the engine is closed
func (e *Engine) spawn(fn func()) bool {
	e.lifeMu.RLock()
	defer e.lifeMu.RUnlock()
	if e.closed {
		return false
	}
	e.group.Go(func() error {
		fn()
		return nil
	})
	return true
}

// retryDelay returns min(RetryBase * 2^(attempt-1), RetryCeiling)
func (e *Engine) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return e.opts.RetryCeiling
	}
	d := e.opts.RetryBase * time.Duration(1<<uint(attempt-1))
	if d > e.opts.RetryCeiling || d <= 0 {
		return e.opts.RetryCeiling
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch runs a request: start, temporary errors while throttled, finish
func (e *Engine) dispatch(req *remote.Request, l remote.RequestListener, run func(ctx context.Context) error) {
	started := e.spawn(func() {
		l.OnRequestStart(e, req)

		attempt := 0
		for {
			err := run(e.ctx)
			if err == nil {
				l.OnRequestFinish(e, req, nil)
				return
			}

			if errors.Is(err, ErrThrottled) && attempt < e.opts.MaxRetries {
				attempt++
				l.OnRequestTemporaryError(e, req, remote.Errorf(remote.ERateLimit, "%v", err))
				if sleepContext(e.ctx, e.retryDelay(attempt)) == nil {
					continue
				}
				err = e.ctx.Err()
			}

			e.log.Debug("%s failed: %v", req.Type, err)
			l.OnRequestFinish(e, req, requestError(err))
			return
		}
	})
	if !started {
		go l.OnRequestFinish(e, req, remote.Errorf(remote.EFailed, "engine is closed"))
	}
}

// requestError maps a store error to a remote error code
func requestError(err error) *remote.Error {
	var rerr *remote.Error
	switch {
	case errors.As(err, &rerr):
		return rerr
	case errors.Is(err, ErrNotFound), errors.Is(err, os.ErrNotExist):
		return remote.Errorf(remote.ENoent, "%v", err)
	case errors.Is(err, os.ErrPermission):
		return remote.Errorf(remote.EAccess, "%v", err)
	case errors.Is(err, ErrThrottled):
		return remote.Errorf(remote.ERateLimit, "%v", err)
	case errors.Is(err, context.Canceled):
		return remote.Errorf(remote.EIncomplete, "request cancelled")
	default:
		return remote.Errorf(remote.EFailed, "%v", err)
	}
}

func (e *Engine) parseLink(link string, want internal.LinkKind) (*internal.LinkInfo, error) {
	info, err := e.parser.Parse(link)
	if err != nil {
		return nil, remote.Errorf(remote.EArgs, "%v", err)
	}
	if info.Kind != want {
		return nil, remote.Errorf(remote.EArgs, "%s is a %s link, not a %s link", info.Scheme, info.Kind, want)
	}
	return info, nil
}

// LoginToFolder validates a folder link. The tree is loaded by FetchNodes.
func (e *Engine) LoginToFolder(link string, l remote.RequestListener) {
	req := &remote.Request{Type: remote.RequestLogin, Link: link}
	e.dispatch(req, l, func(ctx context.Context) error {
		info, err := e.parseLink(link, internal.LinkFolder)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.link = info
		e.tree = nil
		e.mu.Unlock()
		return nil
	})
}

// FetchNodes loads the tree of the logged-in folder
func (e *Engine) FetchNodes(l remote.RequestListener) {
	req := &remote.Request{Type: remote.RequestFetchNodes}
	e.dispatch(req, l, func(ctx context.Context) error {
		e.mu.RLock()
		link := e.link
		e.mu.RUnlock()
		if link == nil {
			return remote.Errorf(remote.EAccess, "no folder login")
		}

		tree, err := e.store.Open(ctx, link)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.tree = tree
		e.mu.Unlock()

		files, folders, _ := tree.Totals()
		e.log.Debug("fetched %d files in %d folders", files, folders)
		return nil
	})
}

// GetPublicNode resolves a file link
func (e *Engine) GetPublicNode(link string, l remote.RequestListener) {
	req := &remote.Request{Type: remote.RequestGetPublicNode, Link: link}
	e.dispatch(req, l, func(ctx context.Context) error {
		info, err := e.parseLink(link, internal.LinkFile)
		if err != nil {
			return err
		}
		node, err := e.store.Resolve(ctx, info)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.public[node.Handle()] = node
		e.mu.Unlock()
		req.PublicNode = node
		return nil
	})
}

// ExportNode produces a shareable link for node
func (e *Engine) ExportNode(node remote.Node, l remote.RequestListener) {
	req := &remote.Request{Type: remote.RequestExport}
	e.dispatch(req, l, func(ctx context.Context) error {
		n := e.lookup(node)
		if n == nil {
			return remote.Errorf(remote.ENoent, "unknown node")
		}
		link, err := e.store.Export(ctx, n)
		if err != nil {
			return err
		}
		req.Link = link
		return nil
	})
}

// GetAccountDetails summarizes the opened tree
func (e *Engine) GetAccountDetails(l remote.RequestListener) {
	req := &remote.Request{Type: remote.RequestAccountDetails}
	e.dispatch(req, l, func(ctx context.Context) error {
		e.mu.RLock()
		tree := e.tree
		e.mu.RUnlock()
		if tree == nil {
			return remote.Errorf(remote.EAccess, "account details need a folder login")
		}
		details, err := e.store.Account(ctx, tree)
		if err != nil {
			return err
		}
		req.Account = details
		return nil
	})
}

// lookup maps a node handed back by a caller to the engine's own node
func (e *Engine) lookup(node remote.Node) *Node {
	if node == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n := e.tree.Lookup(node.Handle()); n != nil {
		return n
	}
	return e.public[node.Handle()]
}

// asNode avoids handing out a typed nil inside the interface
func asNode(n *Node) remote.Node {
	if n == nil {
		return nil
	}
	return n
}

// RootNode returns the root of the opened tree, or nil before FetchNodes
func (e *Engine) RootNode() remote.Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.tree == nil {
		return nil
	}
	return asNode(e.tree.Root)
}

// NodeByHandle resolves h in the opened tree, then among resolved public nodes
func (e *Engine) NodeByHandle(h remote.Handle) remote.Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n := e.tree.Lookup(h); n != nil {
		return n
	}
	return asNode(e.public[h])
}

// Children returns the direct children of node in display order
func (e *Engine) Children(node remote.Node) []remote.Node {
	n := e.lookup(node)
	if n == nil {
		return nil
	}
	children := make([]remote.Node, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, c)
	}
	return children
}

// Parent returns the folder containing node, or nil for the root and public nodes
func (e *Engine) Parent(node remote.Node) remote.Node {
	n := e.lookup(node)
	if n == nil {
		return nil
	}
	return asNode(n.parent)
}

// AuthorizeNode returns the engine's node for node if it is downloadable
func (e *Engine) AuthorizeNode(node remote.Node) remote.Node {
	return asNode(e.lookup(node))
}

// PauseTransfers closes or opens the gate every copy loop passes through
func (e *Engine) PauseTransfers(pause bool) {
	e.gate.Set(pause)
	e.log.Debug("transfers paused: %v", pause)
}

// CancelTransfers cancels every running download
func (e *Engine) CancelTransfers(kind remote.TransferType) {
	if kind != remote.TransferDownload {
		return
	}
	e.transfersMu.Lock()
	defer e.transfersMu.Unlock()
	for tag, cancel := range e.transfers {
		cancel()
		delete(e.transfers, tag)
	}
}

// StartDownload queues a download of node to localPath
func (e *Engine) StartDownload(node remote.Node, localPath string, l remote.TransferListener) {
	e.transfersMu.Lock()
	tag := e.nextTag
	e.nextTag++
	ctx, cancel := context.WithCancel(e.ctx)
	e.transfers[tag] = cancel
	e.transfersMu.Unlock()

	info := &remote.TransferInfo{
		Tag:  tag,
		Type: remote.TransferDownload,
		Path: localPath,
	}
	if node != nil {
		info.FileName = node.Name()
		info.TotalBytes = node.Size()
	}
	n := e.lookup(node)

	started := e.spawn(func() {
		defer e.forget(tag)
		e.runTransfer(ctx, n, info, l)
	})
	if !started {
		e.forget(tag)
		go l.OnTransferFinish(e, snapshot(info), remote.Errorf(remote.EFailed, "engine is closed"))
	}
}

func (e *Engine) forget(tag int) {
	e.transfersMu.Lock()
	defer e.transfersMu.Unlock()
	if cancel, ok := e.transfers[tag]; ok {
		cancel()
		delete(e.transfers, tag)
	}
}

// Close cancels all work, waits for the workers and closes the store
func (e *Engine) Close() error {
	e.lifeMu.Lock()
	if e.closed {
		e.lifeMu.Unlock()
		return nil
	}
	e.closed = true
	e.lifeMu.Unlock()

	e.cancel()
	e.gate.Set(false)
	if err := e.group.Wait(); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	return e.store.Close()
}

// pauseGate blocks callers of Wait while paused
type pauseGate struct {
	mu     sync.Mutex
	paused bool
	open   chan struct{}
}

func newPauseGate() *pauseGate {
	open := make(chan struct{})
	close(open)
	return &pauseGate{open: open}
}

func (g *pauseGate) Set(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if paused == g.paused {
		return
	}
	g.paused = paused
	if paused {
		g.open = make(chan struct{})
	} else {
		close(g.open)
	}
}

func (g *pauseGate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait returns once the gate is open or ctx is done
func (g *pauseGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	open := g.open
	g.mu.Unlock()

	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
