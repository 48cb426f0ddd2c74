// Package session drives an asynchronous storage API through ordered,
// synchronous operations: open a link, list, select, download and watch.
package session

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkfetch/internal"
	"linkfetch/remote"
	"linkfetch/utils"
)

// DefaultRequestTimeout bounds waits for request completion
const DefaultRequestTimeout = 600 * time.Second

// Options configures a Session
type Options struct {
	RequestTimeout time.Duration
	Backoff        Backoff
	BarWidth       int
	Logger         *internal.SecureLogger
}

// Report is one status refresh cycle
type Report struct {
	Statuses  []Status
	Lines     []string
	OverQuota bool
	// RetryIn is the wait before the next report
	RetryIn time.Duration
	Done    bool
}

// Session owns one remote API handle, the bridge and the transfer registry
type Session struct {
	id      string
	api     remote.API
	state   *State
	bridge  *Bridge
	tracker *Tracker
	opts    Options
	parser  *utils.LinkParser
	fileOps *utils.FileOperations
	log     *internal.SecureLogger

	mu      sync.Mutex
	link    *internal.LinkInfo
	listing []Entry
	closed  bool
}

// New creates a session over api
func New(api remote.API, opts Options) *Session {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = DefaultBarWidth
	}
	opts.Backoff = opts.Backoff.withDefaults()

	id := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = internal.GetLogger()
	}
	log = log.With("session", id[:8])

	state := &State{}
	return &Session{
		id:      id,
		api:     api,
		state:   state,
		bridge:  NewBridge(state, log),
		tracker: NewTracker(api, log),
		opts:    opts,
		parser:  utils.NewLinkParser(),
		fileOps: utils.NewFileOperations(),
		log:     log,
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Tracker returns the transfer registry
func (s *Session) Tracker() *Tracker { return s.tracker }

// Link returns the parsed link the session was opened with
func (s *Session) Link() *internal.LinkInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

func (s *Session) checkOpen(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return internal.NewSessionClosedError(op)
	}
	return nil
}

// await issues op and waits for its completion under the request timeout
func (s *Session) await(ctx context.Context, op Operation, start func(remote.RequestListener)) (Result, error) {
	if err := s.checkOpen(op.Name); err != nil {
		return Result{}, err
	}

	pending, err := s.bridge.Issue(op, start)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	result, err := pending.Wait(ctx)
	if internal.IsType(err, internal.ErrTimeout) {
		s.log.Warn("%s did not complete in time; quit and reopen the session", op.Name)
	}
	return result, err
}

// Open logs into a folder link or resolves a file link and returns the new
// current node
func (s *Session) Open(ctx context.Context, link string) (remote.Node, error) {
	info, err := s.parser.Parse(link)
	if err != nil {
		return nil, err
	}

	var result Result
	if info.Kind == internal.LinkFolder {
		result, err = s.await(ctx, OpLogin, func(l remote.RequestListener) {
			s.api.LoginToFolder(link, l)
		})
	} else {
		result, err = s.await(ctx, OpResolvePublic, func(l remote.RequestListener) {
			s.api.GetPublicNode(link, l)
		})
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.link = info
	s.listing = nil
	s.mu.Unlock()

	s.log.Info("Opened %s link: %s", info.Kind, result.Node.Name())
	return result.Node, nil
}

// Current returns the current node
func (s *Session) Current() (remote.Node, error) {
	if err := s.checkOpen("current"); err != nil {
		return nil, err
	}
	node := s.state.Current()
	if node == nil {
		return nil, internal.NewNotLoggedInError("current")
	}
	return node, nil
}

// Path returns the slash-separated path of the current node from its root
func (s *Session) Path() (string, error) {
	node, err := s.Current()
	if err != nil {
		return "", err
	}

	var parts []string
	for n := node; n != nil; n = s.api.Parent(n) {
		parts = append([]string{n.Name()}, parts...)
	}
	return "/" + path.Join(parts...), nil
}

// List walks the current node and keeps the listing for Select
func (s *Session) List() ([]Entry, error) {
	if err := s.checkOpen("list"); err != nil {
		return nil, err
	}

	entries, err := List(s.api, s.state.Current(), nil, 0)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.listing = entries
	s.mu.Unlock()
	return entries, nil
}

// Select resolves a selection expression against the last listing
func (s *Session) Select(expr string) ([]Entry, error) {
	selection, err := utils.ParseSelection(expr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	listing := s.listing
	s.mu.Unlock()

	if listing == nil {
		if listing, err = s.List(); err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, 0, len(selection))
	for _, i := range selection.Sorted() {
		if i >= len(listing) {
			return nil, internal.NewInvalidSelectionError(expr, "index out of range").
				WithContext("index", i).
				WithContext("entries", len(listing))
		}
		entries = append(entries, listing[i])
	}
	return entries, nil
}

// Download starts transfers for the selected entries. Folders expand into
// their files, which keep their relative directories under destination.
// Every file is downloaded at most once. Entries that fail are reported in the
// joined error while the others still start.
func (s *Session) Download(entries []Entry, destination string) ([]*Transfer, error) {
	if err := s.checkOpen("download"); err != nil {
		return nil, err
	}
	if s.state.Current() == nil {
		return nil, internal.NewNotLoggedInError("download")
	}
	if err := s.fileOps.EnsureDir(destination); err != nil {
		return nil, internal.NewValidationErrorWithValue("download_dir", err.Error(), destination).
			WithSuggestion("Choose a writable download directory")
	}

	seen := make(map[remote.Handle]struct{})
	var transfers []*Transfer
	var errs []error

	var start func(node remote.Node, dir string)
	start = func(node remote.Node, dir string) {
		if _, dup := seen[node.Handle()]; dup {
			return
		}
		seen[node.Handle()] = struct{}{}

		if node.Kind() == remote.KindFolder {
			sub, err := s.fileOps.SafeJoin(dir, node.Name())
			if err == nil {
				err = s.fileOps.EnsureDir(sub)
			}
			if err != nil {
				errs = append(errs, internal.NewNodeUnavailableError(filepath.Join(dir, node.Name()), err.Error()))
				return
			}
			for _, child := range s.api.Children(node) {
				start(child, sub)
			}
			return
		}

		t, err := s.tracker.Start(s.api.AuthorizeNode(node), dir)
		if err != nil {
			errs = append(errs, err)
			return
		}
		transfers = append(transfers, t)
	}

	for _, entry := range entries {
		node := s.api.NodeByHandle(entry.Handle)
		if node == nil {
			errs = append(errs, internal.NewNodeNotFoundError(string(entry.Handle)))
			continue
		}
		start(node, destination)
	}

	return transfers, errors.Join(errs...)
}

// Pause pauses every transfer
func (s *Session) Pause() {
	s.tracker.Pause(true)
	s.log.Info("Transfers paused")
}

// Resume resumes every transfer
func (s *Session) Resume() {
	s.tracker.Pause(false)
	s.log.Info("Transfers resumed")
}

// Paused reports the pause switch
func (s *Session) Paused() bool {
	return s.tracker.Paused()
}

// Status returns a snapshot of every transfer
func (s *Session) Status() []Status {
	return s.tracker.Snapshot()
}

// StatusLines renders the snapshot as plain status lines
func (s *Session) StatusLines() []string {
	return renderLines(s.tracker.Snapshot(), s.opts.BarWidth)
}

func renderLines(statuses []Status, width int) []string {
	lines := make([]string, 0, len(statuses))
	for _, st := range statuses {
		lines = append(lines, st.Line(width))
	}
	return lines
}

// Watch reports transfer status until every transfer is terminal. Reports are
// spaced by the refresh interval, or by the growing backoff delay while a
// transfer is over quota. Terminal transfers are acknowledged on return.
func (s *Session) Watch(ctx context.Context, report func(Report)) error {
	monitor := s.opts.Backoff.NewMonitor()

	for {
		if err := s.checkOpen("watch"); err != nil {
			return err
		}

		statuses := s.tracker.Snapshot()
		r := Report{
			Statuses: statuses,
			Lines:    renderLines(statuses, s.opts.BarWidth),
		}

		if s.tracker.AllDone() {
			r.Done = true
			if report != nil {
				report(r)
			}
			s.tracker.Acknowledge()
			return nil
		}

		r.OverQuota = s.tracker.AnyOverQuota()
		r.RetryIn = monitor.Next(r.OverQuota)
		if r.OverQuota {
			s.log.Warn("Over quota, next status in %s", r.RetryIn)
		}
		if report != nil {
			report(r)
		}

		timer := time.NewTimer(r.RetryIn)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Export produces a shareable link for the entry's node
func (s *Session) Export(ctx context.Context, entry Entry) (string, error) {
	if err := s.checkOpen("export"); err != nil {
		return "", err
	}
	node := s.api.NodeByHandle(entry.Handle)
	if node == nil {
		return "", internal.NewNodeNotFoundError(string(entry.Handle))
	}

	result, err := s.await(ctx, OpExport, func(l remote.RequestListener) {
		s.api.ExportNode(node, l)
	})
	if err != nil {
		return "", err
	}
	return result.ExportLink, nil
}

// AccountDetails fetches the usage and quota snapshot
func (s *Session) AccountDetails(ctx context.Context) (*remote.AccountDetails, error) {
	current := s.state.Current()
	if current == nil {
		return nil, internal.NewNotLoggedInError("account details")
	}
	if current.Kind() != remote.KindFolder {
		return nil, internal.NewNotADirectoryError(current.Name()).WithOp("account details")
	}
	result, err := s.await(ctx, OpAccountDetails, func(l remote.RequestListener) {
		s.api.GetAccountDetails(l)
	})
	if err != nil {
		return nil, err
	}
	return result.Account, nil
}

// Cancel stops every transfer, clears the registry and closes the session
func (s *Session) Cancel() error {
	if err := s.checkOpen("cancel"); err != nil {
		return err
	}
	s.tracker.CancelAll()
	s.tracker.Clear()
	s.log.Info("Transfers cancelled")
	return s.Quit()
}

// Quit closes the session and the remote API handle. It is idempotent.
func (s *Session) Quit() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.listing = nil
	s.mu.Unlock()

	s.bridge.Abandon(internal.NewSessionClosedError("quit"))
	if err := s.api.Close(); err != nil {
		return internal.NewSessionError(0, err.Error(), internal.ErrSessionClosed).WithOp("quit")
	}
	s.log.Debug("session closed")
	return nil
}
