package session

import (
	"sync"

	"github.com/reef-chain/signerd/subscribe"
)

// DefaultMaxPendingRequests is the default bound on outstanding requests of
// a single kind.
const DefaultMaxPendingRequests = 32

// PendingRequest is a single queued unit of work awaiting a human decision.
// It is generic over the kind-specific payload.
type PendingRequest[R any] struct {
	// ID uniquely identifies the request within the session.
	ID string `json:"id"`

	// Origin is the transport-derived origin of the requesting context,
	// or the "extension" sentinel for internal callers.
	Origin string `json:"origin"`

	// URL is the full URL of the requesting page, when known.
	URL string `json:"url,omitempty"`

	// Request is the kind-specific payload.
	Request R `json:"request"`

	// connID ties the request to the transport connection that
	// originated it, so a disconnect can drop it. Not serialized.
	connID string
}

// completion carries the terminal outcome of a pending request back to the
// goroutine awaiting it.
type completion[T any] struct {
	value T
	err   error
}

// pendingEntry pairs a queued request with its completion channel. The
// channel is buffered so that resolution never blocks on the original
// caller.
type pendingEntry[R, T any] struct {
	req  *PendingRequest[R]
	done chan completion[T]
}

// requestQueue is a typed, origin-aware pending-request table with
// exactly-once resolve/reject semantics and snapshot publication to
// subscribers on every mutation.
//
// All mutations are synchronous critical sections: a snapshot is built and
// published while the queue mutex is held, so subscribers observe snapshots
// consistent with the true mutation order.
type requestQueue[R, T any] struct {
	mtx sync.Mutex

	maxPending int

	requests map[string]*pendingEntry[R, T]

	// order preserves enqueue order for snapshots.
	order []string

	ntfns *subscribe.Server[[]*PendingRequest[R]]
}

func newRequestQueue[R, T any](maxPending int) *requestQueue[R, T] {
	return &requestQueue[R, T]{
		maxPending: maxPending,
		requests:   make(map[string]*pendingEntry[R, T]),
		ntfns:      subscribe.NewServer[[]*PendingRequest[R]](),
	}
}

func (q *requestQueue[R, T]) start() error {
	return q.ntfns.Start()
}

func (q *requestQueue[R, T]) stop() error {
	return q.ntfns.Stop()
}

// enqueue adds a new pending request and returns the channel its terminal
// outcome will be delivered on. It fails with ErrTooManyPendingRequests when
// the queue bound is reached.
func (q *requestQueue[R, T]) enqueue(id, origin, url, connID string,
	payload R) (<-chan completion[T], error) {

	q.mtx.Lock()
	defer q.mtx.Unlock()

	if len(q.requests) >= q.maxPending {
		return nil, ErrTooManyPendingRequests
	}

	entry := &pendingEntry[R, T]{
		req: &PendingRequest[R]{
			ID:      id,
			Origin:  origin,
			URL:     url,
			Request: payload,
			connID:  connID,
		},
		done: make(chan completion[T], 1),
	}

	q.requests[id] = entry
	q.order = append(q.order, id)

	q.publish()

	return entry.done, nil
}

// get returns the live request with the given id.
func (q *requestQueue[R, T]) get(id string) (*PendingRequest[R], error) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	entry, ok := q.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}

	return entry.req, nil
}

// resolve terminates the request with a success value. Resolving an id that
// is unknown or already terminated reports ErrRequestNotFound and leaves the
// first outcome untouched.
func (q *requestQueue[R, T]) resolve(id string, value T) error {
	return q.complete(id, completion[T]{value: value})
}

// reject terminates the request with an error.
func (q *requestQueue[R, T]) reject(id string, err error) error {
	var zero T
	return q.complete(id, completion[T]{value: zero, err: err})
}

func (q *requestQueue[R, T]) complete(id string, result completion[T]) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	entry, ok := q.requests[id]
	if !ok {
		return ErrRequestNotFound
	}

	// The buffered channel guarantees this send never blocks, and the
	// entry removal below guarantees it happens at most once per id.
	entry.done <- result

	delete(q.requests, id)
	for i, reqID := range q.order {
		if reqID == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}

	q.publish()

	return nil
}

// rejectConn terminates every live request originated by the given transport
// connection, returning the number of requests dropped.
func (q *requestQueue[R, T]) rejectConn(connID string, err error) int {
	q.mtx.Lock()
	ids := make([]string, 0)
	for id, entry := range q.requests {
		if entry.req.connID == connID {
			ids = append(ids, id)
		}
	}
	q.mtx.Unlock()

	for _, id := range ids {
		// A concurrent user decision may have terminated the request
		// in the meantime; that is fine.
		_ = q.reject(id, err)
	}

	return len(ids)
}

// snapshot returns the live requests in enqueue order.
func (q *requestQueue[R, T]) snapshot() []*PendingRequest[R] {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	return q.snapshotLocked()
}

func (q *requestQueue[R, T]) snapshotLocked() []*PendingRequest[R] {
	snapshot := make([]*PendingRequest[R], 0, len(q.order))
	for _, id := range q.order {
		snapshot = append(snapshot, q.requests[id].req)
	}

	return snapshot
}

// publish pushes the current snapshot to all subscribers.
//
// NOTE: must be called with the queue mutex held so snapshots are delivered
// in mutation order.
func (q *requestQueue[R, T]) publish() {
	if err := q.ntfns.SendUpdate(q.snapshotLocked()); err != nil {
		log.Warnf("Unable to publish pending request update: %v", err)
	}
}

// count returns the number of live requests.
func (q *requestQueue[R, T]) count() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	return len(q.requests)
}

// subscribe registers a new subscriber for snapshot updates.
func (q *requestQueue[R, T]) subscribe() (
	*subscribe.Client[[]*PendingRequest[R]], error) {

	return q.ntfns.Subscribe()
}
