package session

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"linkfetch/internal"
	"linkfetch/remote"
	"linkfetch/utils"
)

// Tracker is the registry of a session's transfers. The pause flag is the only
// state shared between transfers.
type Tracker struct {
	api     remote.API
	fileOps *utils.FileOperations
	log     *internal.SecureLogger
	paused  atomic.Bool

	mu        sync.Mutex
	transfers []*Transfer
	nextID    int
}

// NewTracker creates an empty registry issuing downloads through api
func NewTracker(api remote.API, log *internal.SecureLogger) *Tracker {
	if log == nil {
		log = internal.GetLogger()
	}
	return &Tracker{
		api:     api,
		fileOps: utils.NewFileOperations(),
		log:     log,
	}
}

// Start registers a transfer for node and issues the download into the
// destination directory
func (tr *Tracker) Start(node remote.Node, destination string) (*Transfer, error) {
	if node == nil {
		return nil, internal.NewNodeUnavailableError(destination, "node is not available")
	}
	if node.Kind() == remote.KindFolder {
		return nil, internal.NewNodeUnavailableError(node.Name(), "folders cannot be downloaded as a single transfer")
	}
	if !tr.fileOps.IsDir(destination) {
		return nil, internal.NewNodeUnavailableError(destination, "destination directory does not exist")
	}

	name := filepath.Base(filepath.FromSlash(node.Name()))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return nil, internal.NewNodeUnavailableError(node.Name(), "node name cannot be used as a file name")
	}
	localPath := filepath.Join(destination, name)

	tr.mu.Lock()
	t := newTransfer(tr.nextID, node, localPath, &tr.paused, tr.log)
	tr.nextID++
	tr.transfers = append(tr.transfers, t)
	tr.mu.Unlock()

	tr.log.Info("Queued %s -> %s", node.Name(), localPath)
	tr.api.StartDownload(node, localPath, t)
	return t, nil
}

// Pause sets the global pause switch for every transfer
func (tr *Tracker) Pause(pause bool) {
	tr.paused.Store(pause)
	tr.api.PauseTransfers(pause)
}

// Paused reports the global pause switch
func (tr *Tracker) Paused() bool {
	return tr.paused.Load()
}

// CancelAll marks every non-terminal transfer Cancelled and cancels the downloads
func (tr *Tracker) CancelAll() {
	for _, t := range tr.Transfers() {
		t.cancel()
	}
	tr.api.CancelTransfers(remote.TransferDownload)
	tr.paused.Store(false)
}

// Clear empties the registry
func (tr *Tracker) Clear() {
	tr.mu.Lock()
	tr.transfers = nil
	tr.mu.Unlock()
}

// Acknowledge drops terminal transfers and returns how many were removed
func (tr *Tracker) Acknowledge() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	kept := tr.transfers[:0]
	removed := 0
	for _, t := range tr.transfers {
		if t.Status().Terminal() {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(tr.transfers); i++ {
		tr.transfers[i] = nil
	}
	tr.transfers = kept
	return removed
}

// Transfers returns the registered transfers in start order
func (tr *Tracker) Transfers() []*Transfer {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]*Transfer(nil), tr.transfers...)
}

// Snapshot returns the status of every registered transfer
func (tr *Tracker) Snapshot() []Status {
	transfers := tr.Transfers()
	statuses := make([]Status, 0, len(transfers))
	for _, t := range transfers {
		statuses = append(statuses, t.Status())
	}
	return statuses
}

// AllDone reports whether every registered transfer is terminal
func (tr *Tracker) AllDone() bool {
	for _, t := range tr.Transfers() {
		if !t.Status().Terminal() {
			return false
		}
	}
	return true
}

// AnyOverQuota reports whether a running transfer is over quota
func (tr *Tracker) AnyOverQuota() bool {
	for _, t := range tr.Transfers() {
		if s := t.Status(); s.OverQuota && !s.Terminal() {
			return true
		}
	}
	return false
}
