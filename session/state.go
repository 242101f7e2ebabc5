// Package session implements the background request/session state machine
// of the extension: the pending request queues, the per-origin authorization
// registry, the unlock cache and the known-metadata registry, tied together
// by the State coordinator.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/keystore"
	"github.com/reef-chain/signerd/netparams"
	"github.com/reef-chain/signerd/signerdb"
	"github.com/reef-chain/signerd/subscribe"
)

// OriginExtension is the sentinel origin of requests issued by the
// extension's own surfaces rather than a web page.
const OriginExtension = "extension"

// Config houses the dependencies and tunables of the session State.
type Config struct {
	// DB is the persistent store for the authorization registry, known
	// metadata, network selection and account backups.
	DB *signerdb.DB

	// KeyStore holds the managed key pairs.
	KeyStore *keystore.Store

	// Clock is the time source for request ids, selection stamps and
	// unlock expiry.
	Clock clock.Clock

	// SweepTicker, if set, drives proactive unlock-cache expiry. Expiry
	// is always reconciled lazily as well.
	SweepTicker ticker.Ticker

	// MaxPendingRequests bounds each pending request queue. Zero means
	// DefaultMaxPendingRequests.
	MaxPendingRequests int

	// PasswordTimeout is the unlock-cache TTL applied on "remember my
	// password" approvals. Zero means DefaultPasswordTimeout.
	PasswordTimeout time.Duration
}

// State is the session coordinator: the single owner of all live request
// queues, the authorization registry, the unlock cache and the metadata
// registry for the lifetime of the daemon. UI and tab layers hold no
// authoritative state; they are handed read-only subscriptions and mutate
// only through State operations.
type State struct {
	started sync.Once
	stopped sync.Once

	cfg *Config
	clk clock.Clock

	idCounter uint64 // To be used atomically.

	// selectionStamp is the source of monotonically increasing selection
	// timestamps. To be used atomically.
	selectionStamp int64

	signQueue *requestQueue[*SigningPayload, *extwire.SignatureResult]
	authQueue *requestQueue[*extwire.RequestAuthorizeTab, bool]
	metaQueue *requestQueue[*extwire.MetadataDef, bool]

	// mtx guards authURLs, metadata and network below. No operation
	// holding it ever suspends.
	mtx      sync.Mutex
	authURLs map[string]*signerdb.AuthURLInfo
	metadata map[string]*extwire.MetadataDef
	network  netparams.Network

	unlock *unlockCache

	acctNtfns *subscribe.Server[[]*extwire.InjectedAccount]
	netNtfns  *subscribe.Server[netparams.Network]

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewState creates the session state, eagerly loading all persisted
// collections from the store.
func NewState(cfg *Config) (*State, error) {
	if cfg.MaxPendingRequests == 0 {
		cfg.MaxPendingRequests = DefaultMaxPendingRequests
	}
	if cfg.PasswordTimeout == 0 {
		cfg.PasswordTimeout = DefaultPasswordTimeout
	}

	authURLs, err := cfg.DB.FetchAuthURLs()
	if err != nil {
		return nil, fmt.Errorf("unable to load auth urls: %w", err)
	}

	metadata, err := cfg.DB.FetchMetadata()
	if err != nil {
		return nil, fmt.Errorf("unable to load metadata: %w", err)
	}

	network := netparams.DefaultNetwork
	networkID, err := cfg.DB.FetchNetworkID()
	if err != nil {
		return nil, fmt.Errorf("unable to load network: %w", err)
	}
	if networkID != "" {
		network, err = netparams.Get(netparams.NetworkID(networkID))
		if err != nil {
			return nil, err
		}
	}

	accounts, err := cfg.DB.FetchAccounts()
	if err != nil {
		return nil, fmt.Errorf("unable to load accounts: %w", err)
	}
	for _, data := range accounts {
		if err := cfg.KeyStore.AddEncoded(data); err != nil {
			return nil, err
		}
	}

	s := &State{
		cfg: cfg,
		clk: cfg.Clock,
		signQueue: newRequestQueue[
			*SigningPayload, *extwire.SignatureResult,
		](cfg.MaxPendingRequests),
		authQueue: newRequestQueue[
			*extwire.RequestAuthorizeTab, bool,
		](cfg.MaxPendingRequests),
		metaQueue: newRequestQueue[
			*extwire.MetadataDef, bool,
		](cfg.MaxPendingRequests),
		authURLs:  authURLs,
		metadata:  metadata,
		network:   network,
		acctNtfns: subscribe.NewServer[[]*extwire.InjectedAccount](),
		netNtfns:  subscribe.NewServer[netparams.Network](),
		quit:      make(chan struct{}),
	}

	s.unlock = newUnlockCache(cfg.Clock, func(address string) {
		pair, err := cfg.KeyStore.Pair(address)
		if err != nil {
			// The pair may have been forgotten while cached.
			return
		}

		pair.Lock()
	})

	// Replay every account mutation to subscribers.
	cfg.KeyStore.SetNotifier(s.publishAccounts)

	log.Infof("Session state loaded: %d origins, %d metadata "+
		"definitions, %d accounts, network=%s", len(authURLs),
		len(metadata), len(accounts), network.ID)

	return s, nil
}

// Start starts the state's notification servers and, if configured, the
// unlock-cache sweeper.
func (s *State) Start() error {
	var err error
	s.started.Do(func() {
		log.Info("Session state starting")

		for _, start := range []func() error{
			s.signQueue.start, s.authQueue.start,
			s.metaQueue.start, s.acctNtfns.Start, s.netNtfns.Start,
		} {
			if err = start(); err != nil {
				return
			}
		}

		if s.cfg.SweepTicker != nil {
			s.wg.Add(1)
			go s.sweeper()
		}
	})

	return err
}

// Stop shuts the state down, cancelling the sweeper and all subscriptions.
func (s *State) Stop() error {
	var err error
	s.stopped.Do(func() {
		log.Info("Session state shutting down...")
		defer log.Debug("Session state shutdown complete")

		close(s.quit)
		s.wg.Wait()

		for _, stop := range []func() error{
			s.signQueue.stop, s.authQueue.stop, s.metaQueue.stop,
			s.acctNtfns.Stop, s.netNtfns.Stop,
		} {
			if stopErr := stop(); stopErr != nil && err == nil {
				err = stopErr
			}
		}
	})

	return err
}

// sweeper proactively reconciles unlock-cache expiry on every tick.
//
// NOTE: MUST be run as a goroutine.
func (s *State) sweeper() {
	defer s.wg.Done()

	sweepTicker := s.cfg.SweepTicker
	sweepTicker.Resume()
	defer sweepTicker.Stop()

	for {
		select {
		case <-sweepTicker.Ticks():
			s.unlock.sweep()

		case <-s.quit:
			return
		}
	}
}

// nextID produces a session-unique request id from the current timestamp
// and an incrementing counter.
func (s *State) nextID() string {
	return fmt.Sprintf("%d.%d", s.clk.Now().UnixMilli(),
		atomic.AddUint64(&s.idCounter, 1))
}

// nextSelectionStamp returns a strictly increasing unix-millisecond stamp.
// Using the maximum of wall clock and previous stamp+1 keeps the "most
// recently selected" derivation stable even for rapid selections within one
// millisecond.
func (s *State) nextSelectionStamp() int64 {
	now := s.clk.Now().UnixMilli()
	for {
		prev := atomic.LoadInt64(&s.selectionStamp)
		next := now
		if next <= prev {
			next = prev + 1
		}

		if atomic.CompareAndSwapInt64(&s.selectionStamp, prev, next) {
			return next
		}
	}
}

// PendingStats reports the number of live requests per kind, in the order
// authorize, signing, metadata.
func (s *State) PendingStats() (int, int, int) {
	return s.authQueue.count(), s.signQueue.count(), s.metaQueue.count()
}

// DropConnRequests rejects every pending request that was originated by the
// given transport connection. Called when a requesting (tab) connection
// disconnects, so its never-observable promises don't linger. Subscriber
// disconnects must NOT come through here.
func (s *State) DropConnRequests(connID string) {
	dropped := s.authQueue.rejectConn(connID, ErrCancelled)
	dropped += s.signQueue.rejectConn(connID, ErrCancelled)
	dropped += s.metaQueue.rejectConn(connID, ErrCancelled)

	if dropped > 0 {
		log.Infof("Dropped %d pending request(s) of disconnected "+
			"connection %s", dropped, connID)
	}
}

// await blocks until the pending request completes or the state shuts down.
func await[T any](s *State, done <-chan completion[T]) (T, error) {
	select {
	case result := <-done:
		return result.value, result.err

	case <-s.quit:
		var zero T
		return zero, ErrStateShuttingDown
	}
}
