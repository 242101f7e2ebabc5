package signerd

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/subscribe"
)

// outgoingQueueLen bounds the per-connection send backlog. A connection that
// cannot keep up has its updates dropped rather than stalling the daemon.
const outgoingQueueLen = 64

// wsConn is a single active websocket connection. Requests are dispatched
// concurrently since most tab operations block on a user decision; the write
// side is serialized through the out channel because the underlying socket
// permits only one writer.
type wsConn struct {
	id     string
	origin string

	// trusted is true for connections on the extension endpoint, which
	// may issue pri(...) requests.
	trusted bool

	server *server
	socket *websocket.Conn

	out chan *extwire.Response

	stopOnce sync.Once
	quit     chan struct{}
	wg       sync.WaitGroup
}

func newWSConn(s *server, id, origin string, socket *websocket.Conn,
	trusted bool) *wsConn {

	return &wsConn{
		id:      id,
		origin:  origin,
		trusted: trusted,
		server:  s,
		socket:  socket,
		out:     make(chan *extwire.Response, outgoingQueueLen),
		quit:    make(chan struct{}),
	}
}

func (c *wsConn) start() {
	c.wg.Add(1)
	go c.writeLoop()

	c.server.wg.Add(1)
	go func() {
		defer c.server.wg.Done()
		c.readLoop()
	}()
}

// stop tears the connection down: the socket is closed, all request and
// subscription goroutines are cancelled, and for tab connections every
// pending request the connection originated is rejected.
func (c *wsConn) stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		c.socket.Close()

		c.server.removeConn(c)

		// Requests of a disconnected tab can never deliver their
		// outcome, reject them so they don't linger in the queues.
		// Trusted surfaces only observe state, their disconnect must
		// not touch pending requests.
		if !c.trusted {
			c.server.state.DropConnRequests(c.id)
		}

		srvrLog.Infof("Connection %s closed", c.id)
	})
}

// readLoop decodes inbound request envelopes and dispatches each to a
// handler goroutine.
func (c *wsConn) readLoop() {
	defer func() {
		c.stop()
		c.wg.Wait()
	}()

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			select {
			case <-c.quit:
			default:
				srvrLog.Debugf("Connection %s read failed: %v",
					c.id, err)
			}
			return
		}

		var req extwire.Request
		if err := json.Unmarshal(data, &req); err != nil {
			srvrLog.Warnf("Connection %s sent a malformed "+
				"envelope: %v", c.id, err)
			continue
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleRequest(&req)
		}()
	}
}

// writeLoop is the sole writer of the socket.
func (c *wsConn) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case resp := <-c.out:
			data, err := json.Marshal(resp)
			if err != nil {
				srvrLog.Errorf("Unable to marshal response "+
					"%s: %v", resp.ID, err)
				continue
			}

			err = c.socket.WriteMessage(
				websocket.TextMessage, data,
			)
			if err != nil {
				srvrLog.Debugf("Connection %s write "+
					"failed: %v", c.id, err)
				return
			}

		case <-c.quit:
			return
		}
	}
}

// send enqueues an outbound envelope. Envelopes are dropped when the
// connection's backlog is full or the connection is going down.
func (c *wsConn) send(resp *extwire.Response) {
	select {
	case c.out <- resp:

	case <-c.quit:

	default:
		srvrLog.Warnf("Connection %s send backlog full, dropping "+
			"message %s", c.id, resp.ID)
	}
}

// handleRequest dispatches a single request envelope to the namespace
// handler matching the connection's trust level. Namespace violations are
// answered with an error rather than silently dropped.
func (c *wsConn) handleRequest(req *extwire.Request) {
	srvrLog.Tracef("Connection %s request %s: %s", c.id, req.ID,
		req.Message)

	var (
		resp *extwire.Response
		err  error
	)
	if c.trusted {
		resp, err = c.handleExtensionRequest(req)
	} else {
		resp, err = c.handleTabRequest(req)
	}

	switch {
	case err != nil:
		srvrLog.Debugf("Request %s (%s) failed: %v", req.ID,
			req.Message, err)
		c.send(extwire.NewErrorResponse(req.ID, err))

	case resp != nil:
		c.send(resp)
	}
}

// decodeRequest unmarshals the kind-specific payload of the envelope.
func decodeRequest[T any](req *extwire.Request) (*T, error) {
	payload := new(T)
	if len(req.Request) > 0 {
		if err := json.Unmarshal(req.Request, payload); err != nil {
			return nil, err
		}
	}

	return payload, nil
}

// streamSubscription answers the request with true, replays the current
// value as the first subscription update and then forwards every further
// update until the subscriber or the connection goes away. The subscription
// shares the originating request's id.
func streamSubscription[T any](c *wsConn, id string,
	client *subscribe.Client[T], current T) (*extwire.Response, error) {

	resp, err := extwire.NewResponse(id, true)
	if err != nil {
		client.Cancel()
		return nil, err
	}
	c.send(resp)

	first, err := extwire.NewSubscriptionUpdate(id, current)
	if err != nil {
		client.Cancel()
		return nil, err
	}
	c.send(first)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer client.Cancel()

		for {
			select {
			case update := <-client.Updates():
				msg, err := extwire.NewSubscriptionUpdate(
					id, update,
				)
				if err != nil {
					srvrLog.Errorf("Unable to marshal "+
						"subscription update %s: %v",
						id, err)
					continue
				}

				c.send(msg)

			case <-client.Quit():
				return

			case <-c.quit:
				return
			}
		}
	}()

	return nil, nil
}
