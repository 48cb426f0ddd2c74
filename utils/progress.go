package utils

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

const boardTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}{{string . "suffix"}}`

// BoardItem is one transfer row fed to a ProgressBoard
type BoardItem struct {
	ID          int
	Name        string
	Total       int64
	Transferred int64
	Line        string // plain status line, used when the output is not a terminal
	Note        string // shown after the bar, e.g. "paused"
	Terminal    bool
}

// ProgressBoard renders transfer progress. On a terminal it keeps one pb bar per
// transfer in a pool; otherwise it writes the plain status lines.
type ProgressBoard struct {
	mutex       sync.Mutex
	out         io.Writer
	interactive bool
	quiet       bool
	pool        *pb.Pool
	bars        map[int]*pb.ProgressBar
	started     bool
	refresh     time.Duration
}

// NewProgressBoard creates a board writing to out
func NewProgressBoard(out io.Writer, interactive, quiet bool) *ProgressBoard {
	return &ProgressBoard{
		out:         out,
		interactive: interactive,
		quiet:       quiet,
		bars:        make(map[int]*pb.ProgressBar),
		refresh:     200 * time.Millisecond,
	}
}

// Update applies a snapshot of the transfers
func (b *ProgressBoard) Update(items []BoardItem) error {
	if b.quiet {
		return nil
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.interactive {
		for _, item := range items {
			if _, err := fmt.Fprintln(b.out, item.Line); err != nil {
				return err
			}
		}
		return nil
	}

	for _, item := range items {
		bar, ok := b.bars[item.ID]
		if !ok {
			bar = newBoardBar(item)
			b.bars[item.ID] = bar
			if b.pool == nil {
				b.pool = pb.NewPool()
				b.pool.Output = b.out
				b.pool.RefreshRate = b.refresh
			}
			b.pool.Add(bar)
		}
		applyItem(bar, item)
	}

	if !b.started && b.pool != nil {
		if err := b.pool.Start(); err != nil {
			return fmt.Errorf("failed to start progress display: %w", err)
		}
		b.started = true
	}
	return nil
}

// Stop finishes all bars and releases the terminal
func (b *ProgressBoard) Stop() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, bar := range b.bars {
		if !bar.IsFinished() {
			bar.Finish()
		}
	}
	if b.started {
		b.started = false
		return b.pool.Stop()
	}
	return nil
}

// Len returns the number of bars created so far
func (b *ProgressBoard) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.bars)
}

func newBoardBar(item BoardItem) *pb.ProgressBar {
	bar := pb.ProgressBarTemplate(boardTemplate).New(0)
	bar.SetTotal(item.Total)
	bar.Set(pb.Bytes, true)
	bar.Set(pb.SIBytesPrefix, true)
	bar.Set("prefix", item.Name+" ")
	return bar
}

func applyItem(bar *pb.ProgressBar, item BoardItem) {
	if bar.IsFinished() {
		return
	}
	if item.Total > 0 && bar.Total() != item.Total {
		bar.SetTotal(item.Total)
	}
	bar.SetCurrent(item.Transferred)

	suffix := ""
	if item.Note != "" {
		suffix = " (" + item.Note + ")"
	}
	bar.Set("suffix", suffix)

	if item.Terminal {
		bar.Finish()
	}
}
