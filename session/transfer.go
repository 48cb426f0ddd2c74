package session

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"linkfetch/internal"
	"linkfetch/metrics"
	"linkfetch/remote"
	"linkfetch/utils"
)

const (
	// smoothingWeight is the weight of each new speed sample
	smoothingWeight = 0.02

	nameLimit = 24
	nameWidth = 21

	// DefaultBarWidth is the bar width used by plain status lines
	DefaultBarWidth = 15

	// maxETA is the longest estimate reported; longer ones show as unknown
	maxETA = 365 * 24 * time.Hour
)

// TransferState is the lifecycle position of a transfer
type TransferState int

const (
	StatePending TransferState = iota
	StateActive
	StateFinished
	StateFailed
	StateCancelled
)

func (s TransferState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events change the state
func (s TransferState) Terminal() bool {
	return s == StateFinished || s == StateFailed || s == StateCancelled
}

// ElideName fits name into the status column: long names are cut to 21
// characters plus "...", short ones are right-padded to 21.
func ElideName(name string) string {
	runes := []rune(name)
	if len(runes) > nameLimit {
		return string(runes[:nameWidth]) + "..."
	}
	if len(runes) < nameWidth {
		return name + strings.Repeat(" ", nameWidth-len(runes))
	}
	return name
}

// Transfer is one download. It implements remote.TransferListener and is
// only mutated by the events the API delivers for it.
type Transfer struct {
	id          int
	handle      remote.Handle
	destination string
	paused      *atomic.Bool
	log         *internal.SecureLogger

	mu          sync.Mutex
	state       TransferState
	name        string
	total       int64
	transferred int64
	speed       float64
	smoothed    float64
	meanSpeed   float64
	overQuota   bool
	notice      string
	err         error
	counted     bool
	startedAt   time.Time
	finishedAt  time.Time

	done     chan struct{}
	doneOnce sync.Once
}

func newTransfer(id int, node remote.Node, destination string, paused *atomic.Bool, log *internal.SecureLogger) *Transfer {
	return &Transfer{
		id:          id,
		handle:      node.Handle(),
		destination: destination,
		paused:      paused,
		log:         log,
		state:       StatePending,
		name:        ElideName(node.Name()),
		total:       node.Size(),
		done:        make(chan struct{}),
	}
}

// ID returns the registry id of the transfer
func (t *Transfer) ID() int { return t.id }

// Done is closed once the transfer reaches a terminal state
func (t *Transfer) Done() <-chan struct{} { return t.done }

// Destination returns the local path the transfer writes to
func (t *Transfer) Destination() string { return t.destination }

func (t *Transfer) markDone() {
	t.doneOnce.Do(func() { close(t.done) })
}

// OnTransferStart records the total size and start time
func (t *Transfer) OnTransferStart(_ remote.API, info *remote.TransferInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() {
		return
	}
	t.state = StateActive
	if info != nil {
		if info.FileName != "" {
			t.name = ElideName(info.FileName)
		}
		if info.TotalBytes > 0 {
			t.total = info.TotalBytes
		}
	}
	t.startedAt = time.Now()
	if !t.counted {
		t.counted = true
		metrics.TransferStarted()
	}
	t.log.Debug("transfer %d started: %s (%d bytes)", t.id, strings.TrimSpace(t.name), t.total)
}

// OnTransferUpdate applies a progress sample
func (t *Transfer) OnTransferUpdate(_ remote.API, info *remote.TransferInfo) {
	if info == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() {
		return
	}
	if t.state == StatePending {
		t.state = StateActive
		t.startedAt = time.Now()
	}
	if info.TotalBytes > 0 {
		t.total = info.TotalBytes
	}
	if info.TransferredBytes > t.transferred {
		metrics.AddTransferBytes(info.TransferredBytes - t.transferred)
		t.transferred = info.TransferredBytes
		t.overQuota = false
		t.notice = ""
	}
	t.speed = float64(info.Speed)
	t.smoothed = smoothingWeight*t.speed + (1-smoothingWeight)*t.smoothed
}

// OnTransferFinish records the terminal outcome
func (t *Transfer) OnTransferFinish(_ remote.API, info *remote.TransferInfo, err *remote.Error) {
	t.mu.Lock()
	defer func() {
		t.mu.Unlock()
		t.markDone()
	}()

	if t.state.Terminal() {
		return
	}

	t.finishedAt = time.Now()
	if info != nil && info.TransferredBytes > t.transferred {
		metrics.AddTransferBytes(info.TransferredBytes - t.transferred)
		t.transferred = info.TransferredBytes
	}

	if !err.IsOK() {
		t.state = StateFailed
		t.err = internal.NewTransferFailedError(strings.TrimSpace(t.name), int(err.Code), err.Error())
		t.log.Warn("transfer %d failed: %v", t.id, err)
		metrics.TransferFinished("failed", t.counted)
		return
	}

	t.state = StateFinished
	t.overQuota = false
	if info != nil && info.MeanSpeed > 0 {
		t.meanSpeed = float64(info.MeanSpeed)
	} else if elapsed := t.finishedAt.Sub(t.startedAt).Seconds(); elapsed > 0 && !t.startedAt.IsZero() {
		t.meanSpeed = float64(t.transferred) / elapsed
	}
	t.log.Debug("transfer %d finished: %s", t.id, strings.TrimSpace(t.name))
	metrics.TransferFinished("finished", t.counted)
}

// OnTransferTemporaryError records a non-terminal problem
func (t *Transfer) OnTransferTemporaryError(_ remote.API, _ *remote.TransferInfo, err *remote.Error) {
	if err.IsOK() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() {
		return
	}
	t.notice = err.Error()
	metrics.RecordTemporaryError(err.Code.String())

	switch err.Code {
	case remote.EIncomplete:
		t.log.Warn("transfer %d incomplete, the backend will resume it: %v", t.id, err)
	case remote.EOverQuota:
		t.overQuota = true
		metrics.RecordOverQuota()
		t.log.Warn("transfer %d over quota", t.id)
	default:
		t.log.Warn("transfer %d: unhandled temporary error %v", t.id, err)
	}
}

// cancel marks a non-terminal transfer Cancelled
func (t *Transfer) cancel() {
	t.mu.Lock()
	if !t.state.Terminal() {
		t.state = StateCancelled
		t.finishedAt = time.Now()
		metrics.TransferFinished("cancelled", t.counted)
	}
	t.mu.Unlock()
	t.markDone()
}

// Status returns a consistent snapshot of the transfer
func (t *Transfer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{
		ID:          t.id,
		Handle:      t.handle,
		Name:        t.name,
		Destination: t.destination,
		State:       t.state,
		Paused:      !t.state.Terminal() && t.paused.Load(),
		Total:       t.total,
		Transferred: t.transferred,
		Speed:       t.speed,
		Smoothed:    t.smoothed,
		MeanSpeed:   t.meanSpeed,
		OverQuota:   t.overQuota,
		Notice:      t.notice,
		Err:         t.err,
	}

	if t.total > 0 {
		s.Started = true
		s.Progress = float64(t.transferred) / float64(t.total)
		if s.Progress > 1 {
			s.Progress = 1
		}
		s.Percent = s.Progress * 100
		if t.smoothed > 0 {
			remaining := t.total - t.transferred
			if remaining < 0 {
				remaining = 0
			}
			secs := float64(remaining) / t.smoothed
			if secs <= maxETA.Seconds() {
				s.ETAKnown = true
				s.ETA = time.Duration(secs * float64(time.Second))
			}
		}
	}
	return s
}

// Status is a point-in-time view of a transfer
type Status struct {
	ID          int
	Handle      remote.Handle
	Name        string
	Destination string
	State       TransferState
	Paused      bool
	Total       int64
	Transferred int64
	Speed       float64
	Smoothed    float64
	MeanSpeed   float64
	Started     bool
	Progress    float64 // 0..1
	Percent     float64
	ETA         time.Duration
	ETAKnown    bool
	OverQuota   bool
	Notice      string
	Err         error
}

// Terminal reports whether the transfer has ended
func (s Status) Terminal() bool {
	return s.State.Terminal()
}

// Line renders the status as "<name> <speed> [<bar>] <pct>% Est. <mm:ss>"
func (s Status) Line(width int) string {
	switch s.State {
	case StateFinished:
		return fmt.Sprintf("%s Done. Avg: %s", s.Name, utils.FormatSpeed(s.MeanSpeed))
	case StateFailed:
		return fmt.Sprintf("%s ERROR: %v", s.Name, s.Err)
	case StateCancelled:
		return fmt.Sprintf("%s Cancelled", s.Name)
	}

	var line string
	if !s.Started {
		line = s.Name + " not started"
	} else {
		if width < 0 {
			width = 0
		}
		fill := int(float64(width) * s.Progress)
		if fill > width {
			fill = width
		}
		bar := strings.Repeat("#", fill) + strings.Repeat(" ", width-fill)

		eta := "inf"
		if s.ETAKnown {
			eta = utils.FormatClock(s.ETA)
		}
		line = fmt.Sprintf("%s %s [%s] %d%% Est. %s",
			s.Name, utils.FormatSpeed(s.Speed), bar, int(s.Percent), eta)
	}

	if note := s.Note(); note != "" {
		line += " (" + note + ")"
	}
	return line
}

// Note is the short annotation shown next to a running transfer
func (s Status) Note() string {
	switch {
	case s.Terminal():
		return ""
	case s.Paused:
		return "paused"
	case s.OverQuota:
		return "over quota"
	default:
		return s.Notice
	}
}
