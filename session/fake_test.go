package session

import (
	"bytes"
	"path"
	"sync"

	"linkfetch/internal"
	"linkfetch/remote"
)

type fakeNode struct {
	handle   remote.Handle
	name     string
	kind     remote.NodeKind
	size     int64
	children []*fakeNode
	parent   *fakeNode
}

func (n *fakeNode) Handle() remote.Handle { return n.handle }
func (n *fakeNode) Name() string          { return n.name }
func (n *fakeNode) Kind() remote.NodeKind { return n.kind }
func (n *fakeNode) Size() int64           { return n.size }

func file(name string, size int64) *fakeNode {
	return &fakeNode{name: name, kind: remote.KindFile, size: size}
}

func folder(name string, children ...*fakeNode) *fakeNode {
	n := &fakeNode{name: name, kind: remote.KindFolder, children: children}
	for _, c := range children {
		c.parent = n
	}
	return n
}

type download struct {
	node     remote.Node
	path     string
	listener remote.TransferListener
}

// fakeAPI delivers request events from goroutines unless hold is set, in which
// case the events are queued until release is called
type fakeAPI struct {
	mu        sync.Mutex
	root      *fakeNode
	public    *fakeNode
	nodes     map[remote.Handle]*fakeNode
	finishErr map[remote.RequestType]*remote.Error
	export    string
	account   *remote.AccountDetails
	hold      bool
	held      []func()
	downloads []download
	pauses    []bool
	cancels   int
	closed    bool
	issued    []remote.RequestType
	wg        sync.WaitGroup
}

func newFakeAPI(root *fakeNode) *fakeAPI {
	f := &fakeAPI{
		root:      root,
		nodes:     make(map[remote.Handle]*fakeNode),
		finishErr: make(map[remote.RequestType]*remote.Error),
		export:    "https://example.com/export",
		account:   &remote.AccountDetails{StorageUsed: 42, Files: 1},
	}
	if root != nil {
		f.index(root, "")
	}
	return f
}

func (f *fakeAPI) index(n *fakeNode, prefix string) {
	n.handle = remote.Handle(path.Join(prefix, n.name))
	f.nodes[n.handle] = n
	for _, c := range n.children {
		f.index(c, string(n.handle))
	}
}

func (f *fakeAPI) setPublic(n *fakeNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.handle = remote.Handle("public/" + n.name)
	f.public = n
	f.nodes[n.handle] = n
}

func (f *fakeAPI) fail(t remote.RequestType, code remote.ErrorCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishErr[t] = remote.Errorf(code, "%s failed", t)
}

func (f *fakeAPI) deliver(req *remote.Request, listener remote.RequestListener, prepare func(*remote.Request)) {
	f.mu.Lock()
	f.issued = append(f.issued, req.Type)
	err := f.finishErr[req.Type]
	hold := f.hold
	f.mu.Unlock()

	fire := func() {
		listener.OnRequestStart(f, req)
		if err == nil && prepare != nil {
			prepare(req)
		}
		listener.OnRequestFinish(f, req, err)
	}

	if hold {
		f.mu.Lock()
		f.held = append(f.held, fire)
		f.mu.Unlock()
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fire()
	}()
}

// release fires queued events synchronously
func (f *fakeAPI) release() {
	f.mu.Lock()
	held := f.held
	f.held = nil
	f.hold = false
	f.mu.Unlock()

	for _, fire := range held {
		fire()
	}
}

func (f *fakeAPI) LoginToFolder(link string, l remote.RequestListener) {
	f.deliver(&remote.Request{Type: remote.RequestLogin, Link: link}, l, nil)
}

func (f *fakeAPI) GetPublicNode(link string, l remote.RequestListener) {
	f.deliver(&remote.Request{Type: remote.RequestGetPublicNode, Link: link}, l, func(r *remote.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.public != nil {
			r.PublicNode = f.public
		}
	})
}

func (f *fakeAPI) FetchNodes(l remote.RequestListener) {
	f.deliver(&remote.Request{Type: remote.RequestFetchNodes}, l, nil)
}

func (f *fakeAPI) ExportNode(node remote.Node, l remote.RequestListener) {
	f.deliver(&remote.Request{Type: remote.RequestExport}, l, func(r *remote.Request) {
		r.Link = f.export + "/" + string(node.Handle())
	})
}

func (f *fakeAPI) GetAccountDetails(l remote.RequestListener) {
	f.deliver(&remote.Request{Type: remote.RequestAccountDetails}, l, func(r *remote.Request) {
		r.Account = f.account
	})
}

func (f *fakeAPI) StartDownload(node remote.Node, localPath string, l remote.TransferListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, download{node: node, path: localPath, listener: l})
}

func (f *fakeAPI) PauseTransfers(pause bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, pause)
}

func (f *fakeAPI) CancelTransfers(remote.TransferType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeAPI) RootNode() remote.Node {
	if f.root == nil {
		return nil
	}
	return f.root
}

func (f *fakeAPI) NodeByHandle(h remote.Handle) remote.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[h]; ok {
		return n
	}
	return nil
}

func (f *fakeAPI) Children(node remote.Node) []remote.Node {
	n, ok := node.(*fakeNode)
	if !ok {
		return nil
	}
	out := make([]remote.Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out
}

func (f *fakeAPI) Parent(node remote.Node) remote.Node {
	n, ok := node.(*fakeNode)
	if !ok || n.parent == nil {
		return nil
	}
	return n.parent
}

func (f *fakeAPI) AuthorizeNode(node remote.Node) remote.Node { return node }

func (f *fakeAPI) Close() error {
	f.wg.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAPI) downloadList() []download {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]download(nil), f.downloads...)
}

func (f *fakeAPI) issuedTypes() []remote.RequestType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.RequestType(nil), f.issued...)
}

func testLogger() (*internal.SecureLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return internal.NewSecureLogger(&syncWriter{w: &buf}, internal.LogLevelDebug, false, false), &buf
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
