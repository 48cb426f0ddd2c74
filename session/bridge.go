package session

import (
	"context"
	"sync"

	"linkfetch/internal"
	"linkfetch/metrics"
	"linkfetch/remote"
)

// Operation is a logical bridge operation and the request types whose events
// belong to it
type Operation struct {
	Name  string
	types []remote.RequestType
}

var (
	OpLogin          = Operation{Name: "login", types: []remote.RequestType{remote.RequestLogin, remote.RequestFetchNodes}}
	OpFetchNodes     = Operation{Name: "fetch nodes", types: []remote.RequestType{remote.RequestFetchNodes}}
	OpResolvePublic  = Operation{Name: "resolve public node", types: []remote.RequestType{remote.RequestGetPublicNode}}
	OpExport         = Operation{Name: "export", types: []remote.RequestType{remote.RequestExport}}
	OpAccountDetails = Operation{Name: "account details", types: []remote.RequestType{remote.RequestAccountDetails}}
)

func (o Operation) accepts(t remote.RequestType) bool {
	for _, accepted := range o.types {
		if accepted == t {
			return true
		}
	}
	return false
}

// Result is what a completed operation produced
type Result struct {
	Op         string
	Node       remote.Node
	ExportLink string
	Account    *remote.AccountDetails
	Err        error
}

// PendingRequest is a one-shot completion. The result is stored before done is
// closed, so a waiter arriving after completion still reads it.
type PendingRequest struct {
	op     Operation
	once   sync.Once
	done   chan struct{}
	result Result
}

func newPendingRequest(op Operation) *PendingRequest {
	return &PendingRequest{op: op, done: make(chan struct{})}
}

// complete stores r and signals waiters. Only the first call has any effect.
func (p *PendingRequest) complete(r Result) bool {
	completed := false
	p.once.Do(func() {
		p.result = r
		close(p.done)
		completed = true
	})
	return completed
}

// Op returns the operation name
func (p *PendingRequest) Op() string { return p.op.Name }

// Done is closed when the result is available
func (p *PendingRequest) Done() <-chan struct{} { return p.done }

// Wait blocks until the operation completes or ctx is done. A completed result
// always wins over an expired context.
func (p *PendingRequest) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, p.result.Err
	default:
	}

	select {
	case <-p.done:
		return p.result, p.result.Err
	case <-ctx.Done():
		return Result{Op: p.op.Name}, internal.NewTimeoutError(p.op.Name).
			WithContext("cause", ctx.Err().Error())
	}
}

// State is the session state written by the bridge's event path
type State struct {
	mu         sync.RWMutex
	current    remote.Node
	loggedIn   bool
	exportLink string
	account    *remote.AccountDetails
}

// Current returns the current node, or nil before a successful open
func (s *State) Current() remote.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LoggedIn reports whether a login succeeded
func (s *State) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

// ExportLink returns the last captured export link
func (s *State) ExportLink() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportLink
}

// Account returns the last captured account snapshot
func (s *State) Account() *remote.AccountDetails {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *State) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Bridge turns request events into PendingRequest completions. It allows one
// pending operation at a time because request events carry no correlation tag.
type Bridge struct {
	state *State
	log   *internal.SecureLogger

	mu      sync.Mutex
	pending *PendingRequest
}

// NewBridge creates a bridge writing into state
func NewBridge(state *State, log *internal.SecureLogger) *Bridge {
	if log == nil {
		log = internal.GetLogger()
	}
	return &Bridge{state: state, log: log}
}

// Issue registers op as the pending operation and calls start with the bridge
// as listener. It fails with SessionBusy while another operation is pending.
func (b *Bridge) Issue(op Operation, start func(remote.RequestListener)) (*PendingRequest, error) {
	b.mu.Lock()
	if b.pending != nil {
		pending := b.pending.op.Name
		b.mu.Unlock()
		return nil, internal.NewSessionBusyError(op.Name, pending)
	}
	p := newPendingRequest(op)
	b.pending = p
	b.mu.Unlock()

	b.log.Debug("issuing %s", op.Name)
	start(b)
	return p, nil
}

// Busy reports whether an operation is pending
func (b *Bridge) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}

// Abandon fails the pending operation, if any, so the bridge accepts new ones
func (b *Bridge) Abandon(err error) {
	b.mu.Lock()
	p := b.pending
	b.pending = nil
	b.mu.Unlock()

	if p != nil {
		p.complete(Result{Op: p.op.Name, Err: err})
	}
}

func (b *Bridge) match(req *remote.Request) *PendingRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil || req == nil || !b.pending.op.accepts(req.Type) {
		return nil
	}
	return b.pending
}

func (b *Bridge) finish(p *PendingRequest, r Result) {
	b.mu.Lock()
	if b.pending == p {
		b.pending = nil
	}
	b.mu.Unlock()
	p.complete(r)
}

// OnRequestStart logs the start of a request
func (b *Bridge) OnRequestStart(_ remote.API, req *remote.Request) {
	if req != nil {
		b.log.Debug("request started: %s", req.Type)
	}
}

// OnRequestTemporaryError logs a retryable request error. The API retries it.
func (b *Bridge) OnRequestTemporaryError(_ remote.API, req *remote.Request, err *remote.Error) {
	if req == nil {
		return
	}
	b.log.Warn("%s: temporary error: %v", req.Type, err)
}

// OnRequestFinish applies the success effect of the request and completes the
// pending operation. Login chains a node fetch instead of completing.
func (b *Bridge) OnRequestFinish(api remote.API, req *remote.Request, err *remote.Error) {
	p := b.match(req)
	if p == nil {
		if req != nil {
			b.log.Warn("dropping %s finish event: no matching pending operation", req.Type)
		}
		return
	}

	op := req.Type.String()
	if !err.IsOK() {
		metrics.RecordRequest(op, "error")
		b.log.Debug("%s failed: %v", op, err)
		b.finish(p, Result{
			Op:  p.op.Name,
			Err: internal.NewRemoteRequestError(op, int(err.Code), err.Error()),
		})
		return
	}
	metrics.RecordRequest(op, "ok")

	result := Result{Op: p.op.Name}
	switch req.Type {
	case remote.RequestLogin:
		b.state.update(func(s *State) { s.loggedIn = true })
		b.log.Debug("login succeeded, fetching nodes")
		api.FetchNodes(b)
		return

	case remote.RequestFetchNodes:
		root := api.RootNode()
		if root == nil {
			result.Err = internal.NewNodeNotFoundError("root")
			break
		}
		b.state.update(func(s *State) { s.current = root })
		result.Node = root

	case remote.RequestGetPublicNode:
		if req.PublicNode == nil {
			result.Err = internal.NewNodeNotFoundError(req.Link)
			break
		}
		b.state.update(func(s *State) { s.current = req.PublicNode })
		result.Node = req.PublicNode

	case remote.RequestExport:
		b.state.update(func(s *State) { s.exportLink = req.Link })
		result.ExportLink = req.Link

	case remote.RequestAccountDetails:
		b.state.update(func(s *State) { s.account = req.Account })
		result.Account = req.Account
	}

	b.finish(p, result)
}
