package history

import (
	"context"
	"time"
)

func (l *Log) notify() {
	l.notifyMu.Lock()
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	l.notifyMu.Unlock()
}

// Updated returns a channel closed by the next append. Take it before
// reading to not miss an append that races with the read.
func (l *Log) Updated() <-chan struct{} {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	return l.notifyCh
}

// WaitForUpdate blocks until a revision is appended, the timeout elapses or
// ctx is done. It returns true if woken by an append.
func (l *Log) WaitForUpdate(ctx context.Context, timeout time.Duration) bool {
	return waitOn(ctx, l.Updated(), timeout)
}

// WaitOn is WaitForUpdate for a channel taken earlier with Updated.
func WaitOn(ctx context.Context, updated <-chan struct{}, timeout time.Duration) bool {
	return waitOn(ctx, updated, timeout)
}

func waitOn(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-ch:
		return true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}
