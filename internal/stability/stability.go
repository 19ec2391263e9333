package stability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var (
	// ErrGone means the path disappeared or was empty after the grace period.
	ErrGone = errors.New("file missing or empty")
	// ErrShrunk means the observed size decreased, which signals a truncated
	// or corrupt write. Not retried; the file needs re-upload.
	ErrShrunk = errors.New("file size decreased")
	// ErrUnstable means the size never settled within the retry budget.
	ErrUnstable = errors.New("file did not stabilize in time")
)

// Detector decides when a file another process is still writing has finished.
// It polls the size rather than relying on OS-level locks so that writers on
// network mounts are tolerated.
type Detector struct {
	Grace      time.Duration
	Interval   time.Duration
	MaxRetries int
}

func NewDetector(grace, interval time.Duration, maxRetries int) *Detector {
	return &Detector{Grace: grace, Interval: interval, MaxRetries: maxRetries}
}

// Wait blocks until the file at path is stable or a terminal decision is
// reached. A nil return means the file is safe to read in full.
func (d *Detector) Wait(ctx context.Context, path string) error {
	if err := sleepCtx(ctx, d.Grace); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrGone, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrGone, path)
	}
	size := info.Size()

	for i := 0; i < d.MaxRetries; i++ {
		if err := sleepCtx(ctx, d.Interval); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrGone, path)
		}
		cur := info.Size()
		switch {
		case cur == size:
			if err := verifyReadable(path); err != nil {
				// Writer may still hold the file; spend a retry and re-check.
				continue
			}
			return nil
		case cur > size:
			size = cur
		default:
			return fmt.Errorf("%w: %s (%d -> %d bytes)", ErrShrunk, path, size, cur)
		}
	}
	return fmt.Errorf("%w: %s (last size %d bytes)", ErrUnstable, path, size)
}

// verifyReadable confirms the file can be opened and seeked to its end, so a
// stable size is not mistaken for a writer holding exclusive access.
func verifyReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Seek(0, io.SeekEnd)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
