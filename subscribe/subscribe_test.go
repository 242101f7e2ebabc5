package subscribe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSubscribeDelivery tests that updates sent to the server are delivered,
// in order, to an active client.
func TestSubscribeDelivery(t *testing.T) {
	server := NewServer[int]()
	require.NoError(t, server.Start())

	defer func() {
		require.NoError(t, server.Stop())
	}()

	client, err := server.Subscribe()
	require.NoError(t, err)
	defer client.Cancel()

	for i := 0; i < 5; i++ {
		require.NoError(t, server.SendUpdate(i))
	}

	for i := 0; i < 5; i++ {
		select {
		case upd := <-client.Updates():
			require.Equal(t, i, upd)

		case <-time.After(time.Second):
			t.Fatalf("expected to receive update %d", i)
		}
	}
}

// TestSubscribeCancel tests that a cancelled client stops receiving updates
// and has its quit channel closed.
func TestSubscribeCancel(t *testing.T) {
	server := NewServer[string]()
	require.NoError(t, server.Start())

	defer func() {
		require.NoError(t, server.Stop())
	}()

	client, err := server.Subscribe()
	require.NoError(t, err)

	client.Cancel()

	select {
	case <-client.Quit():
	case <-time.After(time.Second):
		t.Fatalf("expected quit channel to close after cancel")
	}

	// Updates sent after cancellation should not reach the client, but
	// must not block the server either.
	require.NoError(t, server.SendUpdate("dropped"))

	select {
	case <-client.Updates():
		t.Fatalf("unexpected update after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestSubscribeMultipleClients tests fan-out to several concurrent clients.
func TestSubscribeMultipleClients(t *testing.T) {
	server := NewServer[int]()
	require.NoError(t, server.Start())

	defer func() {
		require.NoError(t, server.Stop())
	}()

	const numClients = 3
	clients := make([]*Client[int], numClients)
	for i := range clients {
		client, err := server.Subscribe()
		require.NoError(t, err)
		defer client.Cancel()

		clients[i] = client
	}

	require.NoError(t, server.SendUpdate(42))

	for _, client := range clients {
		select {
		case upd := <-client.Updates():
			require.Equal(t, 42, upd)

		case <-time.After(time.Second):
			t.Fatalf("expected all clients to receive the update")
		}
	}
}
