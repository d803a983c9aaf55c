package wsloop

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/connectivity"
)

// ClientEndpoint is an ipccom.Endpoint that dials out to a websocket server
// and keeps trying, with an exponential backoff, until it is explicitly
// disconnected or its backoff strategy returns backoff.Stop.
type ClientEndpoint struct {
	ctx    context.Context
	cancel context.CancelFunc

	rawURL string
	opts   clientOptions

	mu          sync.Mutex
	status      connectivity.State
	connectedCh chan struct{}
	conn        *websocket.Conn
	shutdown    bool

	dataCB     ipccom.DataReceiveCallback
	statusCBs  map[ipccom.StatusCookie]ipccom.StatusEventCallback
	nextCookie uint64
}

// NewClientEndpoint creates a ClientEndpoint that will dial rawURL once
// AsyncConnect is called.
func NewClientEndpoint(rawURL string, opts ...ClientOption) *ClientEndpoint {
	o := defaultClientOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ClientEndpoint{
		ctx:         ctx,
		cancel:      cancel,
		rawURL:      rawURL,
		opts:        o,
		status:      connectivity.Uninitialized,
		connectedCh: make(chan struct{}),
		statusCBs:   make(map[ipccom.StatusCookie]ipccom.StatusEventCallback),
	}
}

func (e *ClientEndpoint) RegisterStatusEventCallback(cb ipccom.StatusEventCallback) ipccom.StatusCookie {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextCookie++
	cookie := ipccom.StatusCookie(e.nextCookie)
	e.statusCBs[cookie] = cb
	return cookie
}

func (e *ClientEndpoint) UnregisterStatusEventCallback(cookie ipccom.StatusCookie) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.statusCBs, cookie)
}

func (e *ClientEndpoint) SetDataReceiveCallback(cb ipccom.DataReceiveCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataCB = cb
}

// SendCapability returns this endpoint itself: Send is only meaningful once
// connected, and sending on a nil or stale connection simply fails rather
// than being unavailable as a method.
func (e *ClientEndpoint) SendCapability() ipccom.SendCapability { return e }

// Send writes buffers as a single framed websocket message over the current
// connection, if any.
func (e *ClientEndpoint) Send(buffers ipccom.Buffers) bool {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return false
	}
	return writeFrame(conn, buffers) == nil
}

// AsyncConnect starts the dial-and-retry loop in the background.
func (e *ClientEndpoint) AsyncConnect() {
	go e.resetLoop()
}

// WaitForConnection blocks up to timeoutMs for the endpoint to reach
// connectivity.Connected.
func (e *ClientEndpoint) WaitForConnection(timeoutMs int) bool {
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

// Disconnect stops the retry loop and closes any live connection.
func (e *ClientEndpoint) Disconnect() {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return
	}
	e.shutdown = true
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()

	e.cancel()
	if conn != nil {
		conn.Close()
	}
	e.updateStatus(connectivity.Disconnected)
}

func (e *ClientEndpoint) GetStatus() connectivity.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *ClientEndpoint) updateStatus(s connectivity.State) {
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

// resetLoop dials rawURL, backs off and retries after a failed dial, and
// redials at once after losing an established connection, until Disconnect
// is called. It also stops, without reporting a status change, when the
// backoff returns backoff.Stop; the default exponential backoff does so once
// its maximum elapsed time, counted from the loop's start or the last
// successful connect, has passed.
// Tearing down the owning ChannelConnector is left to ipccom.Control, driven
// by a connector's allowReconnect flag.
func (e *ClientEndpoint) resetLoop() {
	bo := e.opts.newBackOff()
	for {
		e.mu.Lock()
		if e.shutdown {
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		// No status transition before the dial: reporting a disconnect for a
		// connection that never existed would make the owning connector tear
		// the channel down before the first connect attempt even runs. Loss
		// of an established connection is reported below, after readLoop.
		dialer := websocket.Dialer{
			WriteBufferSize: e.opts.writeBufferSize,
			ReadBufferSize:  e.opts.readBufferSize,
		}
		conn, _, err := dialer.DialContext(e.ctx, e.rawURL, nil)
		if err != nil {
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				return
			}
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
				continue
			case <-e.ctx.Done():
				timer.Stop()
				return
			}
		}

		bo.Reset()
		e.mu.Lock()
		if e.shutdown {
			e.mu.Unlock()
			conn.Close()
			return
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
		if !wasCurrent {
			return
		}
		e.updateStatus(connectivity.DisconnectedForced)
	}
}

func (e *ClientEndpoint) readLoop(conn *websocket.Conn) {
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
