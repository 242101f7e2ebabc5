package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T,
	maxPending int) *requestQueue[string, string] {

	t.Helper()

	q := newRequestQueue[string, string](maxPending)
	require.NoError(t, q.start())
	t.Cleanup(func() {
		require.NoError(t, q.stop())
	})

	return q
}

// TestQueueExactlyOnce tests that a request settles exactly once and that a
// second completion attempt reports ErrRequestNotFound without altering the
// first outcome.
func TestQueueExactlyOnce(t *testing.T) {
	q := newTestQueue(t, DefaultMaxPendingRequests)

	done, err := q.enqueue("1", "https://dapp.example", "", "conn", "req")
	require.NoError(t, err)

	require.NoError(t, q.resolve("1", "outcome"))

	// The second resolution attempt must not disturb the first.
	require.ErrorIs(t, q.resolve("1", "other"), ErrRequestNotFound)
	require.ErrorIs(t, q.reject("1", errors.New("nope")),
		ErrRequestNotFound)

	select {
	case result := <-done:
		require.NoError(t, result.err)
		require.Equal(t, "outcome", result.value)

	case <-time.After(time.Second):
		t.Fatalf("expected completion to be delivered")
	}

	// No second completion may arrive.
	select {
	case <-done:
		t.Fatalf("request settled twice")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = q.get("1")
	require.ErrorIs(t, err, ErrRequestNotFound)
}

// TestQueueRejectDeliversError tests the rejection path.
func TestQueueRejectDeliversError(t *testing.T) {
	q := newTestQueue(t, DefaultMaxPendingRequests)

	done, err := q.enqueue("1", "https://dapp.example", "", "conn", "req")
	require.NoError(t, err)

	require.NoError(t, q.reject("1", ErrCancelled))

	select {
	case result := <-done:
		require.ErrorIs(t, result.err, ErrCancelled)

	case <-time.After(time.Second):
		t.Fatalf("expected rejection to be delivered")
	}
}

// TestQueueBound tests that the pending bound is enforced.
func TestQueueBound(t *testing.T) {
	q := newTestQueue(t, 2)

	_, err := q.enqueue("1", "https://a.example", "", "conn", "a")
	require.NoError(t, err)
	_, err = q.enqueue("2", "https://b.example", "", "conn", "b")
	require.NoError(t, err)

	_, err = q.enqueue("3", "https://c.example", "", "conn", "c")
	require.ErrorIs(t, err, ErrTooManyPendingRequests)

	// Draining one slot re-admits new requests.
	require.NoError(t, q.reject("1", ErrCancelled))
	_, err = q.enqueue("3", "https://c.example", "", "conn", "c")
	require.NoError(t, err)
}

// TestQueueSnapshots tests that subscribers observe snapshots consistent
// with the mutation order.
func TestQueueSnapshots(t *testing.T) {
	q := newTestQueue(t, DefaultMaxPendingRequests)

	client, err := q.subscribe()
	require.NoError(t, err)
	defer client.Cancel()

	_, err = q.enqueue("1", "https://a.example", "", "conn", "a")
	require.NoError(t, err)
	_, err = q.enqueue("2", "https://b.example", "", "conn", "b")
	require.NoError(t, err)
	require.NoError(t, q.resolve("1", "done"))

	expected := [][]string{{"1"}, {"1", "2"}, {"2"}}
	for _, want := range expected {
		select {
		case snapshot := <-client.Updates():
			ids := make([]string, len(snapshot))
			for i, req := range snapshot {
				ids[i] = req.ID
			}
			require.Equal(t, want, ids)

		case <-time.After(time.Second):
			t.Fatalf("expected snapshot %v", want)
		}
	}
}

// TestQueueRejectConn tests that disconnect cleanup only drops the
// disconnected connection's requests.
func TestQueueRejectConn(t *testing.T) {
	q := newTestQueue(t, DefaultMaxPendingRequests)

	doneA, err := q.enqueue("1", "https://a.example", "", "tab-1", "a")
	require.NoError(t, err)
	_, err = q.enqueue("2", "https://b.example", "", "tab-2", "b")
	require.NoError(t, err)

	require.Equal(t, 1, q.rejectConn("tab-1", ErrCancelled))

	select {
	case result := <-doneA:
		require.ErrorIs(t, result.err, ErrCancelled)

	case <-time.After(time.Second):
		t.Fatalf("expected dropped request to be rejected")
	}

	// The other connection's request is untouched.
	_, err = q.get("2")
	require.NoError(t, err)
	require.Equal(t, 1, q.count())
}
