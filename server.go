package signerd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/session"
)

// server is the websocket front end of the daemon. It accepts connections on
// two endpoints: the trusted extension channel serving the pri(...)
// namespace and the low-trust content channel serving the pub(...) namespace
// on behalf of web pages.
type server struct {
	started  int32 // To be used atomically.
	shutdown int32 // To be used atomically.

	cfg   *Config
	state *session.State

	httpServer *http.Server
	upgrader   websocket.Upgrader

	connMtx     sync.Mutex
	conns       map[string]*wsConn
	connCounter uint64 // To be used atomically.

	quit chan struct{}
	wg   sync.WaitGroup
}

// newServer creates a new instance of the server given the session state to
// front.
func newServer(cfg *Config, state *session.State) *server {
	s := &server{
		cfg:   cfg,
		state: state,
		conns: make(map[string]*wsConn),
		quit:  make(chan struct{}),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,

		// Cross origin policy is enforced per endpoint in the handlers
		// below, the transport-level default would reject the
		// extension's own origin as foreign.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/"+extwire.PortExtension, s.handleExtensionConn)
	mux.HandleFunc("/"+extwire.PortContent, s.handleContentConn)

	s.httpServer = &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	return s
}

// Start launches the websocket listener.
func (s *server) Start() error {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}

	srvrLog.Infof("Listening for extension connections on %v",
		s.cfg.Listen)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			srvrLog.Errorf("Websocket listener failed: %v", err)
		}
	}()

	return nil
}

// Stop closes the listener and every active connection, then waits for all
// connection goroutines to exit.
func (s *server) Stop() error {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		return nil
	}

	srvrLog.Info("Server shutting down...")

	close(s.quit)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		srvrLog.Warnf("Unable to shut down listener cleanly: %v", err)
	}

	s.connMtx.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connMtx.Unlock()

	for _, conn := range conns {
		conn.stop()
	}

	s.wg.Wait()

	srvrLog.Debug("Server shutdown complete")

	return nil
}

// handleExtensionConn upgrades a connection on the trusted extension
// endpoint. Only the extension's own surfaces and local tooling may attach
// here, so browser web origins are refused outright.
func (s *server) handleExtensionConn(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !isExtensionOrigin(origin) {
		srvrLog.Warnf("Refusing web origin %q on the trusted channel",
			origin)
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	s.acceptConn(w, r, session.OriginExtension, true)
}

// handleContentConn upgrades a connection on the content endpoint. The
// requesting page's origin is taken from the transport and becomes the
// trusted identity of every request on the connection.
func (s *server) handleContentConn(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		http.Error(w, "missing origin", http.StatusForbidden)
		return
	}

	s.acceptConn(w, r, origin, false)
}

func (s *server) acceptConn(w http.ResponseWriter, r *http.Request,
	origin string, trusted bool) {

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srvrLog.Errorf("Unable to upgrade connection from %v: %v",
			r.RemoteAddr, err)
		return
	}

	kind := "tab"
	if trusted {
		kind = "ext"
	}
	id := fmt.Sprintf("%s-%d", kind,
		atomic.AddUint64(&s.connCounter, 1))

	conn := newWSConn(s, id, origin, socket, trusted)

	s.connMtx.Lock()
	s.conns[id] = conn
	s.connMtx.Unlock()

	srvrLog.Infof("New %s connection %s from origin %s", kind, id, origin)

	conn.start()
}

// removeConn deregisters a finished connection.
func (s *server) removeConn(c *wsConn) {
	s.connMtx.Lock()
	delete(s.conns, c.id)
	s.connMtx.Unlock()
}

// isExtensionOrigin reports whether the given Origin header value identifies
// a browser extension surface or a non-browser client. Plain web origins
// must never reach the trusted channel.
func isExtensionOrigin(origin string) bool {
	if origin == "" {
		return true
	}

	return strings.HasPrefix(origin, "chrome-extension://") ||
		strings.HasPrefix(origin, "moz-extension://") ||
		strings.HasPrefix(origin, "safari-web-extension://")
}
