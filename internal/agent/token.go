// ABOUTME: Capacity-1 admission token guarding the bottleneck cell.
// ABOUTME: In-memory channel token for the goroutine runtime; file lock for processes.

package agent

import (
	"fmt"
	"os"
	"time"
)

// tokenPollInterval is how often a blocked acquirer retries the
// underlying lock within one TryAcquire window.
const tokenPollInterval = 20 * time.Millisecond

// Token is the capacity-1 mutual-exclusion resource for the bottleneck.
// TryAcquire blocks at most wait and reports whether the token was
// obtained; Release must be called exactly once per successful acquire.
// No fairness among waiters is promised.
type Token interface {
	TryAcquire(wait time.Duration) bool
	Release()
}

// ChanToken is an in-process Token backed by a capacity-1 channel.
type ChanToken struct {
	slot chan struct{}
}

// NewChanToken returns an unheld in-process token.
func NewChanToken() *ChanToken {
	return &ChanToken{slot: make(chan struct{}, 1)}
}

// TryAcquire obtains the token, waiting at most wait.
func (t *ChanToken) TryAcquire(wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case t.slot <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// Release frees the token. Releasing an unheld token panics, which would
// indicate a double release in the agent loop.
func (t *ChanToken) Release() {
	select {
	case <-t.slot:
	default:
		panic("agent: release of unheld token")
	}
}

// FileToken is a Token backed by an exclusive advisory lock on a shared
// file, giving mutual exclusion across worker processes. The OS drops the
// lock if the holder dies, so a force-killed holder cannot wedge the
// bottleneck.
type FileToken struct {
	f *os.File
}

// NewFileToken opens (creating if needed) the shared lock file at path.
func NewFileToken(path string) (*FileToken, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening token file: %w", err)
	}
	return &FileToken{f: f}, nil
}

// TryAcquire polls the non-blocking exclusive lock until it is obtained
// or wait elapses.
func (t *FileToken) TryAcquire(wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if err := lockFile(t.f); err == nil {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(tokenPollInterval)
	}
}

// Release drops the file lock.
func (t *FileToken) Release() {
	_ = unlockFile(t.f)
}

// Close releases the underlying file handle.
func (t *FileToken) Close() error {
	return t.f.Close()
}
