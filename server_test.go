package signerd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/keystore"
	"github.com/reef-chain/signerd/session"
	"github.com/reef-chain/signerd/signerdb"
)

const (
	testOrigin   = "https://app.reef.io"
	testPassword = "correct horse"
)

var testSeedHex = hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))

type serverHarness struct {
	t     *testing.T
	state *session.State
	srv   *server
	ts    *httptest.Server
}

func newServerHarness(t *testing.T) *serverHarness {
	t.Helper()

	db, err := signerdb.Open(filepath.Join(t.TempDir(), "signer.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	clk := clock.NewTestClock(time.Unix(1700000000, 0))
	state, err := session.NewState(&session.Config{
		DB:       db,
		KeyStore: keystore.NewStore(clk),
		Clock:    clk,
	})
	require.NoError(t, err)
	require.NoError(t, state.Start())

	srv := newServer(&Config{Listen: "localhost:0"}, state)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, srv.Stop())
		require.NoError(t, state.Stop())
	})

	return &serverHarness{t: t, state: state, srv: srv, ts: ts}
}

// dial opens a websocket connection to the given endpoint with the given
// Origin header. An empty origin omits the header.
func (h *serverHarness) dial(path, origin string) (*websocket.Conn, error) {
	h.t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/" + path

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	h.t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn, nil
}

func (h *serverHarness) dialExtension() *websocket.Conn {
	h.t.Helper()

	conn, err := h.dial(extwire.PortExtension, "")
	require.NoError(h.t, err)
	return conn
}

func (h *serverHarness) dialTab(origin string) *websocket.Conn {
	h.t.Helper()

	conn, err := h.dial(extwire.PortContent, origin)
	require.NoError(h.t, err)
	return conn
}

// sendRequest writes a request envelope on the connection.
func sendRequest(t *testing.T, conn *websocket.Conn, id string,
	message extwire.MessageKind, payload interface{}) {

	t.Helper()

	req := extwire.Request{ID: id, Message: message}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		req.Request = raw
	}

	require.NoError(t, conn.WriteJSON(&req))
}

// readEnvelope reads the next envelope matching the given id, skipping
// unrelated traffic.
func readEnvelope(t *testing.T, conn *websocket.Conn,
	id string) *extwire.Response {

	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var resp extwire.Response
		require.NoError(t, conn.ReadJSON(&resp))

		if resp.ID == id {
			return &resp
		}
	}
}

// TestTrustedChannelRefusesWebOrigins tests that a web page cannot attach to
// the pri(...) endpoint by connecting to it directly.
func TestTrustedChannelRefusesWebOrigins(t *testing.T) {
	h := newServerHarness(t)

	_, err := h.dial(extwire.PortExtension, "https://evil.example")
	require.Error(t, err)

	// Extension origins and non-browser clients are accepted.
	_, err = h.dial(
		extwire.PortExtension, "chrome-extension://abcdefgh",
	)
	require.NoError(t, err)
	_, err = h.dial(extwire.PortExtension, "")
	require.NoError(t, err)
}

// TestNamespaceEnforcement tests that each channel only serves its own
// message namespace.
func TestNamespaceEnforcement(t *testing.T) {
	h := newServerHarness(t)

	// A tab must not reach trusted operations.
	tab := h.dialTab(testOrigin)
	sendRequest(t, tab, "1", extwire.MsgSigningApprove,
		&extwire.RequestSigningApprove{ID: "x"})
	resp := readEnvelope(t, tab, "1")
	require.NotEmpty(t, resp.Error)

	// And the trusted channel rejects tab messages.
	ext := h.dialExtension()
	sendRequest(t, ext, "1", extwire.MsgAccountsList, nil)
	resp = readEnvelope(t, ext, "1")
	require.NotEmpty(t, resp.Error)
}

// TestAuthorizeRoundTrip tests the full dApp authorization flow across the
// two channels: the tab blocks on the prompt, the trusted side approves it,
// and subsequent gated requests pass without a new prompt.
func TestAuthorizeRoundTrip(t *testing.T) {
	h := newServerHarness(t)

	tab := h.dialTab(testOrigin)
	sendRequest(t, tab, "1", extwire.MsgAuthorizeTab,
		&extwire.RequestAuthorizeTab{Origin: "spoofed name"})

	// The prompt surfaces with the transport-derived origin, never the
	// dApp supplied one.
	var reqID string
	require.Eventually(t, func() bool {
		pending := h.state.PendingAuthorizeRequests()
		if len(pending) != 1 {
			return false
		}
		reqID = pending[0].ID
		return pending[0].Origin == testOrigin
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, h.state.AuthorizeApprove(reqID, nil))

	resp := readEnvelope(t, tab, "1")
	require.Empty(t, resp.Error)
	require.JSONEq(t, "true", string(resp.Response))

	// Account access is now granted synchronously.
	sendRequest(t, tab, "2", extwire.MsgAccountsList, nil)
	resp = readEnvelope(t, tab, "2")
	require.Empty(t, resp.Error)
	require.Empty(t, h.state.PendingAuthorizeRequests())
}

// TestTabDisconnectDropsRequests tests that closing a tab connection rejects
// the signing requests it originated.
func TestTabDisconnectDropsRequests(t *testing.T) {
	h := newServerHarness(t)

	address, err := h.state.CreateAccount(
		"main", testSeedHex, testPassword,
	)
	require.NoError(t, err)

	tab := h.dialTab(testOrigin)

	// Authorize the origin first so the sign request passes the gate.
	sendRequest(t, tab, "1", extwire.MsgAuthorizeTab,
		&extwire.RequestAuthorizeTab{Origin: testOrigin})

	var reqID string
	require.Eventually(t, func() bool {
		pending := h.state.PendingAuthorizeRequests()
		if len(pending) != 1 {
			return false
		}
		reqID = pending[0].ID
		return true
	}, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, h.state.AuthorizeApprove(reqID, nil))

	sendRequest(t, tab, "2", extwire.MsgBytesSign,
		&extwire.SignerPayloadRaw{
			Address: address,
			Data:    "0xdeadbeef",
			Type:    "bytes",
		})

	require.Eventually(t, func() bool {
		return len(h.state.PendingSigningRequests()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, tab.Close())

	require.Eventually(t, func() bool {
		return len(h.state.PendingSigningRequests()) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

// TestAccountsSubscriptionStream tests the subscription envelope protocol:
// an acknowledging response, the current value, then updates as they happen.
func TestAccountsSubscriptionStream(t *testing.T) {
	h := newServerHarness(t)

	ext := h.dialExtension()
	sendRequest(t, ext, "1", extwire.MsgAccountsSubscribe, nil)

	resp := readEnvelope(t, ext, "1")
	require.Empty(t, resp.Error)
	require.JSONEq(t, "true", string(resp.Response))

	first := readEnvelope(t, ext, "1")
	require.NotNil(t, first.Subscription)
	require.JSONEq(t, "[]", string(first.Subscription))

	address, err := h.state.CreateAccount(
		"main", testSeedHex, testPassword,
	)
	require.NoError(t, err)

	update := readEnvelope(t, ext, "1")
	require.NotNil(t, update.Subscription)

	var accounts []*extwire.InjectedAccount
	require.NoError(t, json.Unmarshal(update.Subscription, &accounts))
	require.Len(t, accounts, 1)
	require.Equal(t, address, accounts[0].Address)
}

// TestSigningRoundTrip tests an end to end bytes signature over the wire.
func TestSigningRoundTrip(t *testing.T) {
	h := newServerHarness(t)

	address, err := h.state.CreateAccount(
		"main", testSeedHex, testPassword,
	)
	require.NoError(t, err)

	// Pre-authorize the origin so the request goes straight to the
	// signing queue.
	tab := h.dialTab(testOrigin)
	sendRequest(t, tab, "1", extwire.MsgAuthorizeTab,
		&extwire.RequestAuthorizeTab{Origin: testOrigin})

	var reqID string
	require.Eventually(t, func() bool {
		pending := h.state.PendingAuthorizeRequests()
		if len(pending) != 1 {
			return false
		}
		reqID = pending[0].ID
		return true
	}, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, h.state.AuthorizeApprove(reqID, nil))
	readEnvelope(t, tab, "1")

	sendRequest(t, tab, "2", extwire.MsgBytesSign,
		&extwire.SignerPayloadRaw{
			Address: address,
			Data:    "0xdeadbeef",
			Type:    "bytes",
		})

	require.Eventually(t, func() bool {
		pending := h.state.PendingSigningRequests()
		if len(pending) != 1 {
			return false
		}
		reqID = pending[0].ID
		return true
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, h.state.SignApprove(reqID, testPassword, false))

	resp := readEnvelope(t, tab, "2")
	require.Empty(t, resp.Error)

	var result extwire.SignatureResult
	require.NoError(t, json.Unmarshal(resp.Response, &result))
	require.True(t, strings.HasPrefix(result.Signature, "0x"))
}
