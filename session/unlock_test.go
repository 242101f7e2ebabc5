package session

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

// lockRecorder records which addresses were force-locked.
type lockRecorder struct {
	locked []string
}

func (l *lockRecorder) lock(address string) {
	l.locked = append(l.locked, address)
}

// TestUnlockCacheRefresh tests the remaining-window arithmetic and that
// expiry forces the pair to lock exactly once.
func TestUnlockCacheRefresh(t *testing.T) {
	clk := clock.NewTestClock(time.Unix(1700000000, 0))
	rec := &lockRecorder{}
	cache := newUnlockCache(clk, rec.lock)

	const addr = "0xabcdef"

	// Unknown addresses report no trust window and have no side effects.
	require.Equal(t, time.Duration(0), cache.refresh(addr))
	require.Empty(t, rec.locked)

	cache.markUnlocked(addr, DefaultPasswordTimeout)
	require.Equal(t, DefaultPasswordTimeout, cache.refresh(addr))

	// The window shrinks monotonically with the clock.
	clk.SetTime(clk.Now().Add(5 * time.Minute))
	require.Equal(t, 10*time.Minute, cache.refresh(addr))
	require.Empty(t, rec.locked)

	// Once elapsed, the entry is dropped and the pair locked.
	clk.SetTime(clk.Now().Add(10 * time.Minute))
	require.Equal(t, time.Duration(0), cache.refresh(addr))
	require.Equal(t, []string{addr}, rec.locked)

	// Subsequent refreshes see no entry and do not lock again.
	require.Equal(t, time.Duration(0), cache.refresh(addr))
	require.Len(t, rec.locked, 1)
}

// TestUnlockCacheClear tests the explicit logout path.
func TestUnlockCacheClear(t *testing.T) {
	clk := clock.NewTestClock(time.Unix(1700000000, 0))
	rec := &lockRecorder{}
	cache := newUnlockCache(clk, rec.lock)

	const addr = "0xabcdef"

	cache.markUnlocked(addr, DefaultPasswordTimeout)
	cache.clear(addr)

	require.Equal(t, []string{addr}, rec.locked)
	require.Equal(t, time.Duration(0), cache.refresh(addr))
}

// TestUnlockCacheSweep tests that the sweeper locks only elapsed entries.
func TestUnlockCacheSweep(t *testing.T) {
	clk := clock.NewTestClock(time.Unix(1700000000, 0))
	rec := &lockRecorder{}
	cache := newUnlockCache(clk, rec.lock)

	cache.markUnlocked("0xaa", time.Minute)
	cache.markUnlocked("0xbb", time.Hour)

	clk.SetTime(clk.Now().Add(2 * time.Minute))
	cache.sweep()

	require.Equal(t, []string{"0xaa"}, rec.locked)
	require.Greater(t, cache.refresh("0xbb"), time.Duration(0))
}
