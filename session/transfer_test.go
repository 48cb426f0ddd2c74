package session

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkfetch/internal"
	"linkfetch/remote"
)

func newTestTransfer(name string, size int64) (*Transfer, *atomic.Bool) {
	log, _ := testLogger()
	paused := &atomic.Bool{}
	n := file(name, size)
	n.handle = remote.Handle(name)
	return newTransfer(0, n, "/tmp/"+name, paused, log), paused
}

func TestElideName(t *testing.T) {
	assert.Equal(t, "short.txt            ", ElideName("short.txt"))
	assert.Len(t, ElideName("short.txt"), 21)

	long := "a-very-long-file-name-that-goes-on.bin"
	assert.Equal(t, long[:21]+"...", ElideName(long))

	// 22 to 24 characters are left as they are
	exact := strings.Repeat("x", 24)
	assert.Equal(t, exact, ElideName(exact))
	assert.Equal(t, strings.Repeat("y", 21)+"...", ElideName(strings.Repeat("y", 25)))
}

func TestTransfer_StateMachine(t *testing.T) {
	tr, _ := newTestTransfer("file.bin", 1000)
	assert.Equal(t, StatePending, tr.Status().State)

	tr.OnTransferStart(nil, &remote.TransferInfo{FileName: "file.bin", TotalBytes: 1000})
	assert.Equal(t, StateActive, tr.Status().State)

	tr.OnTransferFinish(nil, &remote.TransferInfo{TransferredBytes: 1000, MeanSpeed: 500}, nil)
	s := tr.Status()
	assert.Equal(t, StateFinished, s.State)
	assert.Equal(t, float64(500), s.MeanSpeed)
	assert.Equal(t, int64(1000), s.Transferred)

	select {
	case <-tr.Done():
	default:
		t.Fatal("Done should be closed after finish")
	}
}

func TestTransfer_TransferredIsMonotonic(t *testing.T) {
	tr, _ := newTestTransfer("file.bin", 1000)
	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: 1000})

	for _, b := range []int64{100, 300, 200, 300, 50, 600} {
		tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: b})
	}
	assert.Equal(t, int64(600), tr.Status().Transferred)
}

func TestTransfer_SmoothedSpeed(t *testing.T) {
	tr, _ := newTestTransfer("file.bin", 1<<30)
	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: 1 << 30})

	const v = 1000
	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 1, Speed: v})
	assert.InDelta(t, 0.02*v, tr.Status().Smoothed, 1e-9)

	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 2, Speed: v})
	assert.InDelta(t, 0.02*v+0.98*0.02*v, tr.Status().Smoothed, 1e-9)
	assert.Equal(t, float64(v), tr.Status().Speed)
}

func TestTransfer_FailureIsTerminal(t *testing.T) {
	tr, _ := newTestTransfer("file.bin", 1000)
	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: 1000})
	tr.OnTransferFinish(nil, nil, remote.Errorf(remote.ERead, "disk gone"))

	s := tr.Status()
	assert.Equal(t, StateFailed, s.State)
	require.Error(t, s.Err)
	assert.True(t, internal.IsType(s.Err, internal.ErrTransferFailed))

	// Later events do not revive it
	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 900})
	assert.Equal(t, StateFailed, tr.Status().State)
	assert.Zero(t, tr.Status().Transferred)
}

func TestTransfer_CancelIsSticky(t *testing.T) {
	tr, _ := newTestTransfer("file.bin", 1000)
	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: 1000})
	tr.cancel()
	tr.OnTransferFinish(nil, nil, remote.Errorf(remote.EIncomplete, "cancelled"))

	assert.Equal(t, StateCancelled, tr.Status().State)
	assert.NoError(t, tr.Status().Err)
}

func TestTransfer_TemporaryErrors(t *testing.T) {
	tr, _ := newTestTransfer("file.bin", 1000)
	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: 1000})
	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 100})

	tr.OnTransferTemporaryError(nil, nil, remote.Errorf(remote.EOverQuota, "quota"))
	s := tr.Status()
	assert.True(t, s.OverQuota)
	assert.Equal(t, StateActive, s.State)
	assert.Contains(t, s.Notice, "quota")

	// Progress that does not advance keeps the flag
	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 100})
	assert.True(t, tr.Status().OverQuota)

	// Advancing clears it
	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 200})
	assert.False(t, tr.Status().OverQuota)

	tr.OnTransferTemporaryError(nil, nil, remote.Errorf(remote.EIncomplete, "connection reset"))
	s = tr.Status()
	assert.Equal(t, StateActive, s.State)
	assert.False(t, s.OverQuota)
	assert.Contains(t, s.Notice, "connection reset")

	tr.OnTransferTemporaryError(nil, nil, remote.Errorf(remote.EWrite, "odd"))
	assert.Equal(t, StateActive, tr.Status().State)
}

func TestStatus_ETA(t *testing.T) {
	tr, _ := newTestTransfer("file.bin", 1000)
	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: 1000})

	s := tr.Status()
	assert.True(t, s.Started)
	assert.False(t, s.ETAKnown)
	assert.Contains(t, s.Line(10), "Est. inf")

	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 500, Speed: 50})
	s = tr.Status()
	require.True(t, s.ETAKnown)
	// smoothed is 1 B/s and 500 bytes remain
	assert.InDelta(t, 500, s.ETA.Seconds(), 0.001)
}

func TestStatus_ETABeyondLimitIsUnknown(t *testing.T) {
	const total = int64(50) << 30
	tr, _ := newTestTransfer("big.bin", total)
	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: total})
	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 1, Speed: 1})

	s := tr.Status()
	assert.False(t, s.ETAKnown)
	assert.GreaterOrEqual(t, s.ETA, time.Duration(0))
	assert.Contains(t, s.Line(10), "Est. inf")
	assert.NotContains(t, s.Line(10), "Est. 00:00")
}

func TestStatus_Line(t *testing.T) {
	tr, paused := newTestTransfer("file.bin", 1000)

	unknown, _ := newTestTransfer("file.bin", 0)
	assert.Equal(t, ElideName("file.bin")+" not started", unknown.Status().Line(10))

	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: 1000})
	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 250, Speed: 2 * 1024 * 1024})

	line := tr.Status().Line(10)
	assert.True(t, strings.HasPrefix(line, ElideName("file.bin")+" 2.00 MB/s [##        ] 25% Est. "), line)

	paused.Store(true)
	assert.True(t, strings.HasSuffix(tr.Status().Line(10), "(paused)"))
	paused.Store(false)

	tr.OnTransferFinish(nil, &remote.TransferInfo{TransferredBytes: 1000, MeanSpeed: 1024 * 1024}, nil)
	assert.Equal(t, ElideName("file.bin")+" Done. Avg: 1.00 MB/s", tr.Status().Line(10))
}

func TestStatus_LineTerminalStates(t *testing.T) {
	failed, _ := newTestTransfer("bad.bin", 10)
	failed.OnTransferFinish(nil, nil, remote.Errorf(remote.EAccess, "denied"))
	assert.Contains(t, failed.Status().Line(10), "ERROR: ")

	cancelled, _ := newTestTransfer("gone.bin", 10)
	cancelled.cancel()
	assert.Equal(t, ElideName("gone.bin")+" Cancelled", cancelled.Status().Line(10))
}

func TestStatus_LineFullBar(t *testing.T) {
	tr, _ := newTestTransfer("f", 100)
	tr.OnTransferStart(nil, &remote.TransferInfo{TotalBytes: 100})
	tr.OnTransferUpdate(nil, &remote.TransferInfo{TransferredBytes: 100, Speed: 1})
	assert.Contains(t, tr.Status().Line(4), "[####] 100%")
}
