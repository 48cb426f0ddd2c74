package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"linkfetch/remote"
)

const copyBufferSize = 32 * 1024

// readError marks a failure while streaming from the store; the transfer can
// resume from the bytes already written
type readError struct{ err error }

func (e *readError) Error() string { return "read failed: " + e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

// writeError marks a local write failure, which retrying will not fix
type writeError struct{ err error }

func (e *writeError) Error() string { return "write failed: " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// transferJob is the mutable state of one running download
type transferJob struct {
	node     *Node
	info     *remote.TransferInfo
	listener remote.TransferListener
	partPath string

	started   time.Time
	lastEmit  time.Time
	lastBytes int64
}

func snapshot(info *remote.TransferInfo) *remote.TransferInfo {
	s := *info
	return &s
}

// runTransfer drives one download from queueing to the finish event
func (e *Engine) runTransfer(ctx context.Context, node *Node, info *remote.TransferInfo, l remote.TransferListener) {
	if node == nil || node.Kind() != remote.KindFile {
		l.OnTransferFinish(e, snapshot(info), remote.Errorf(remote.ENoent, "node is not a downloadable file"))
		return
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.OnTransferFinish(e, snapshot(info), remote.Errorf(remote.EIncomplete, "cancelled before start"))
		return
	}
	defer e.sem.Release(1)

	info.FileName = node.Name()
	info.TotalBytes = node.Size()
	job := &transferJob{
		node:     node,
		info:     info,
		listener: l,
		partPath: e.fileOps.PartPath(info.Path),
		started:  time.Now(),
	}
	job.lastEmit = job.started

	l.OnTransferStart(e, snapshot(info))

	rerr := e.downloadWithRetry(ctx, job)

	if elapsed := time.Since(job.started).Seconds(); elapsed > 0 {
		info.MeanSpeed = int64(float64(info.TransferredBytes) / elapsed)
	}
	info.Speed = 0
	if rerr != nil {
		e.log.Debug("transfer %d (%s) failed: %v", info.Tag, info.FileName, rerr)
	}
	l.OnTransferFinish(e, snapshot(info), rerr)
}

// downloadWithRetry copies the node into the part file, resuming after
// recoverable failures, then renames the part file into place
func (e *Engine) downloadWithRetry(ctx context.Context, job *transferJob) *remote.Error {
	if err := e.fileOps.EnsureParentDir(job.info.Path); err != nil {
		return remote.Errorf(remote.EWrite, "failed to create destination directory: %v", err)
	}

	failures := 0
	for {
		offset := e.resumeOffset(job)
		job.info.TransferredBytes = offset

		err := e.copyOnce(ctx, job, offset)
		if err == nil {
			break
		}

		if ctx.Err() != nil {
			return remote.Errorf(remote.EIncomplete, "transfer cancelled")
		}
		if !isRecoverableError(err) {
			return transferError(err)
		}

		// MaxRetries bounds consecutive failures; an attempt that moved the
		// transfer forward starts the count again
		if job.info.TransferredBytes > offset {
			failures = 0
		}
		failures++
		if failures > e.opts.MaxRetries {
			return remote.Errorf(remote.EIncomplete, "giving up after %d consecutive failures: %v", failures, err)
		}

		code := remote.EIncomplete
		if errors.Is(err, ErrThrottled) {
			code = remote.EOverQuota
		}
		job.listener.OnTransferTemporaryError(e, snapshot(job.info), remote.Errorf(code, "%v", err))

		if sleepContext(ctx, e.retryDelay(failures)) != nil {
			return remote.Errorf(remote.EIncomplete, "transfer cancelled")
		}
	}

	if err := e.verifyFileSize(job.partPath, job.node.Size()); err != nil {
		return remote.Errorf(remote.ERead, "%v", err)
	}
	if err := e.fileOps.AtomicRename(job.partPath, job.info.Path); err != nil {
		return remote.Errorf(remote.EWrite, "failed to rename part file: %v", err)
	}
	return nil
}

// resumeOffset returns how much of the part file can be kept
func (e *Engine) resumeOffset(job *transferJob) int64 {
	exists, size, err := e.fileOps.DetectPartialDownload(job.info.Path)
	if err != nil || !exists {
		return 0
	}
	if total := job.node.Size(); size > total {
		return 0
	}
	return size
}

// copyOnce streams from offset to the end of the object
func (e *Engine) copyOnce(ctx context.Context, job *transferJob, offset int64) error {
	if err := e.gate.Wait(ctx); err != nil {
		return err
	}

	reader, err := e.store.Reader(ctx, job.node, offset)
	if err != nil {
		return err
	}
	defer reader.Close()

	file, err := e.fileOps.OpenPartialFile(job.partPath, offset)
	if err != nil {
		return &writeError{err: err}
	}
	defer file.Close()

	return e.copyWithRateLimit(ctx, job, file, reader)
}

// copyWithRateLimit copies src to dst through the pause gate and the shared
// bandwidth limiter, emitting throttled update events
func (e *Engine) copyWithRateLimit(ctx context.Context, job *transferJob, dst io.Writer, src io.Reader) error {
	buffer := make([]byte, copyBufferSize)
	job.lastBytes = job.info.TransferredBytes

	for {
		if err := e.gate.Wait(ctx); err != nil {
			return err
		}

		n, err := src.Read(buffer)
		if n > 0 {
			if err := e.limiter.Wait(ctx, n); err != nil {
				return err
			}

			written, writeErr := dst.Write(buffer[:n])
			job.info.TransferredBytes += int64(written)
			if writeErr != nil {
				return &writeError{err: writeErr}
			}
			if written != n {
				return &writeError{err: fmt.Errorf("short write: wrote %d, expected %d", written, n)}
			}
			e.maybeEmitUpdate(job, false)
		}

		if err != nil {
			if err == io.EOF {
				e.maybeEmitUpdate(job, true)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &readError{err: err}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// maybeEmitUpdate sends an update event when UpdateInterval has passed
func (e *Engine) maybeEmitUpdate(job *transferJob, force bool) {
	now := time.Now()
	elapsed := now.Sub(job.lastEmit)
	if !force && elapsed < e.opts.UpdateInterval {
		return
	}
	if elapsed > 0 {
		job.info.Speed = int64(float64(job.info.TransferredBytes-job.lastBytes) / elapsed.Seconds())
	}
	job.lastEmit = now
	job.lastBytes = job.info.TransferredBytes
	job.listener.OnTransferUpdate(e, snapshot(job.info))
}

// verifyFileSize checks that the downloaded file matches the expected size
func (e *Engine) verifyFileSize(path string, expected int64) error {
	actual, err := e.fileOps.GetFileSize(path)
	if err != nil {
		return fmt.Errorf("failed to get file size: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("file size mismatch: expected %d bytes, got %d bytes", expected, actual)
	}
	return nil
}

// isRecoverableError reports whether resuming the transfer can succeed
func isRecoverableError(err error) bool {
	if err == nil {
		return false
	}

	var we *writeError
	if errors.As(err, &we) {
		return false
	}
	if errors.Is(err, ErrThrottled) {
		return true
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return false
	}
	var re *readError
	if errors.As(err, &re) {
		return true
	}

	errStr := err.Error()
	networkErrors := []string{
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no route to host",
		"broken pipe",
		"unexpected EOF",
	}
	for _, pattern := range networkErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// transferError maps an unrecoverable failure to a remote error code
func transferError(err error) *remote.Error {
	var we *writeError
	switch {
	case errors.As(err, &we):
		return remote.Errorf(remote.EWrite, "%v", err)
	case errors.Is(err, ErrNotFound), errors.Is(err, os.ErrNotExist):
		return remote.Errorf(remote.ENoent, "%v", err)
	case errors.Is(err, os.ErrPermission):
		return remote.Errorf(remote.EAccess, "%v", err)
	default:
		return remote.Errorf(remote.ERead, "%v", err)
	}
}
