// ABOUTME: Tests for the channel and file-lock admission tokens.
// ABOUTME: Covers timeout acquire, mutual exclusion, release discipline.

package agent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanToken_AcquireRelease(t *testing.T) {
	tok := NewChanToken()

	require.True(t, tok.TryAcquire(10*time.Millisecond))
	assert.False(t, tok.TryAcquire(20*time.Millisecond), "second acquire must time out while held")

	tok.Release()
	assert.True(t, tok.TryAcquire(10*time.Millisecond), "token must be reacquirable after release")
	tok.Release()
}

func TestChanToken_ReleaseUnheldPanics(t *testing.T) {
	tok := NewChanToken()
	assert.Panics(t, func() { tok.Release() })
}

func TestChanToken_WaiterGetsTokenOnRelease(t *testing.T) {
	tok := NewChanToken()
	require.True(t, tok.TryAcquire(10*time.Millisecond))

	got := make(chan bool, 1)
	go func() {
		got <- tok.TryAcquire(2 * time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	tok.Release()

	select {
	case ok := <-got:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
	tok.Release()
}

func TestFileToken_MutualExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bottleneck.lock")

	a, err := NewFileToken(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewFileToken(path)
	require.NoError(t, err)
	defer b.Close()

	require.True(t, a.TryAcquire(50*time.Millisecond))
	assert.False(t, b.TryAcquire(80*time.Millisecond), "second descriptor must not lock while held")

	a.Release()
	assert.True(t, b.TryAcquire(time.Second), "lock must pass to the waiter after release")
	b.Release()
}
