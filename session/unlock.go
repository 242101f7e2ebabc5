package session

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// DefaultPasswordTimeout is how long a "remember my password" approval keeps
// an account unlocked.
const DefaultPasswordTimeout = 15 * time.Minute

// DefaultSweepInterval is how often the proactive sweeper reconciles unlock
// expiry. Expiry is also reconciled lazily on every access, so the sweeper
// only shortens the window in which an expired pair is still unlocked while
// nobody is asking about it.
const DefaultSweepInterval = time.Minute

// unlockCache tracks, per address, until when the key pair may be used
// without re-prompting for a password. Entries past their expiry are treated
// as absent and force the underlying pair to lock.
//
// Expiry uses wall-clock time; clock adjustments skew the trust window. This
// is a known limitation.
type unlockCache struct {
	mtx sync.Mutex

	clk clock.Clock

	expiry map[string]time.Time

	// lockPair forces the key handle of the given address to lock.
	lockPair func(address string)
}

func newUnlockCache(clk clock.Clock, lockPair func(string)) *unlockCache {
	return &unlockCache{
		clk:      clk,
		expiry:   make(map[string]time.Time),
		lockPair: lockPair,
	}
}

// markUnlocked records that the address may be used without re-prompting
// until now+ttl. Written only as a side effect of a successful sign approval
// with "remember" set.
func (u *unlockCache) markUnlocked(address string, ttl time.Duration) {
	u.mtx.Lock()
	defer u.mtx.Unlock()

	u.expiry[address] = u.clk.Now().Add(ttl)

	log.Debugf("Unlock cache: %s unlocked for %v", address, ttl)
}

// refresh recomputes the remaining trust window for the address. If the
// window has elapsed, the underlying key pair is locked, the entry cleared,
// and zero returned. All lock-state reads must go through refresh so the
// "is it actually still unlocked" check stays centralized.
func (u *unlockCache) refresh(address string) time.Duration {
	u.mtx.Lock()
	defer u.mtx.Unlock()

	return u.refreshLocked(address)
}

func (u *unlockCache) refreshLocked(address string) time.Duration {
	expiry, ok := u.expiry[address]
	if !ok {
		return 0
	}

	remaining := expiry.Sub(u.clk.Now())
	if remaining > 0 {
		return remaining
	}

	log.Debugf("Unlock cache: %s expired, locking", address)

	delete(u.expiry, address)
	u.lockPair(address)

	return 0
}

// clear forgets the entry for the address and locks the pair. Used on
// explicit logout and non-remembered signs.
func (u *unlockCache) clear(address string) {
	u.mtx.Lock()
	defer u.mtx.Unlock()

	delete(u.expiry, address)
	u.lockPair(address)
}

// sweep reconciles expiry for every cached address, proactively locking
// those whose window elapsed.
func (u *unlockCache) sweep() {
	u.mtx.Lock()
	defer u.mtx.Unlock()

	for address := range u.expiry {
		u.refreshLocked(address)
	}
}
