package wsloop

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/connectivity"
)

// ServerEndpoint is an ipccom.Endpoint that accepts a single websocket
// connection at a time on a TCP listener. A fresh ServerEndpoint is what a
// connection broker hands out per client (see package ipcconnect); the
// long-lived listener endpoint is just one more ServerEndpoint that happens
// to have allowReconnect set on the ChannelConnector wrapping it.
type ServerEndpoint struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	status      connectivity.State
	connectedCh chan struct{}
	conn        *websocket.Conn
	shutdown    bool

	dataCB     ipccom.DataReceiveCallback
	statusCBs  map[ipccom.StatusCookie]ipccom.StatusEventCallback
	nextCookie uint64
}

// NewServerEndpoint binds bindAddr (host:port, port 0 for an ephemeral port)
// and returns an endpoint plus the ws:// connection string a client should
// use to reach it. The listener starts accepting once AsyncConnect is
// called.
func NewServerEndpoint(bindAddr string, opts ...ServerOption) (*ServerEndpoint, string, error) {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}

	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, "", errors.Wrap(err, "wsloop: listen")
	}

	e := &ServerEndpoint{
		ln: ln,
		upgrader: websocket.Upgrader{
			WriteBufferSize: o.writeBufferSize,
			ReadBufferSize:  o.readBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		status:      connectivity.Uninitialized,
		connectedCh: make(chan struct{}),
		statusCBs:   make(map[ipccom.StatusCookie]ipccom.StatusEventCallback),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", e.handleUpgrade)
	e.srv = &http.Server{Handler: mux}

	connectionString := "ws://" + ln.Addr().String() + "/"
	return e, connectionString, nil
}

func (e *ServerEndpoint) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("wsloop: upgrade failed: %v", err)
		return
	}

	e.mu.Lock()
	if old := e.conn; old != nil {
		old.Close()
	}
	e.conn = conn
	e.mu.Unlock()

	e.updateStatus(connectivity.Connected)
	e.readLoop(conn)

	e.mu.Lock()
	wasCurrent := e.conn == conn
	if wasCurrent {
		e.conn = nil
	}
	e.mu.Unlock()
	if wasCurrent {
		e.updateStatus(connectivity.DisconnectedForced)
	}
}

func (e *ServerEndpoint) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		buffers, err := decodeFrame(raw)
		if err != nil {
			log.Warningf("wsloop: dropping malformed frame: %v", err)
			continue
		}
		e.mu.Lock()
		cb := e.dataCB
		e.mu.Unlock()
		if cb != nil {
			cb(buffers)
		}
	}
}

func (e *ServerEndpoint) RegisterStatusEventCallback(cb ipccom.StatusEventCallback) ipccom.StatusCookie {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextCookie++
	cookie := ipccom.StatusCookie(e.nextCookie)
	e.statusCBs[cookie] = cb
	return cookie
}

func (e *ServerEndpoint) UnregisterStatusEventCallback(cookie ipccom.StatusCookie) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.statusCBs, cookie)
}

func (e *ServerEndpoint) SetDataReceiveCallback(cb ipccom.DataReceiveCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataCB = cb
}

func (e *ServerEndpoint) SendCapability() ipccom.SendCapability { return e }

func (e *ServerEndpoint) Send(buffers ipccom.Buffers) bool {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return false
	}
	return writeFrame(conn, buffers) == nil
}

// AsyncConnect starts accepting connections in the background.
func (e *ServerEndpoint) AsyncConnect() {
	go func() {
		if err := e.srv.Serve(e.ln); err != nil && err != http.ErrServerClosed {
			log.Warningf("wsloop: serve exited: %v", err)
		}
	}()
}

func (e *ServerEndpoint) WaitForConnection(timeoutMs int) bool {
	e.mu.Lock()
	if e.status == connectivity.Connected {
		e.mu.Unlock()
		return true
	}
	ch := e.connectedCh
	e.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return false
	}
}

func (e *ServerEndpoint) Disconnect() {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return
	}
	e.shutdown = true
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = e.srv.Shutdown(ctx)
	_ = e.ln.Close()
	if conn != nil {
		conn.Close()
	}
	e.updateStatus(connectivity.Disconnected)
}

func (e *ServerEndpoint) GetStatus() connectivity.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *ServerEndpoint) updateStatus(s connectivity.State) {
	e.mu.Lock()
	if e.status == s {
		e.mu.Unlock()
		return
	}
	wasConnected := e.status == connectivity.Connected
	e.status = s
	if s == connectivity.Connected {
		close(e.connectedCh)
	} else if wasConnected {
		e.connectedCh = make(chan struct{})
	}
	cbs := make([]ipccom.StatusEventCallback, 0, len(e.statusCBs))
	for _, cb := range e.statusCBs {
		cbs = append(cbs, cb)
	}
	e.mu.Unlock()

	for _, cb := range cbs {
		cb(s)
	}
}
