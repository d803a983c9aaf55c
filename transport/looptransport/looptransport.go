// Package looptransport is an in-memory ipccom.Endpoint pair for tests: two
// endpoints wired directly to each other, with no real I/O. It exercises the
// connector and control logic without a socket, a process boundary, or a
// goroutine leak risk across test runs.
package looptransport

import (
	"sync"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/connectivity"
)

// Endpoint is one side of a looptransport pair.
type Endpoint struct {
	mu     sync.Mutex
	peer   *Endpoint
	status connectivity.State

	dataCB     ipccom.DataReceiveCallback
	statusCBs  map[ipccom.StatusCookie]ipccom.StatusEventCallback
	nextCookie uint64
	closed     bool
}

// NewPair returns two endpoints, each other's peer: sending on one
// synchronously invokes the other's DataReceiveCallback.
func NewPair() (*Endpoint, *Endpoint) {
	a := New()
	b := New()
	Link(a, b)
	return a, b
}

// New returns a single, unpaired endpoint. It has no peer until Link is
// called on it, so Send fails until then. This is for transports that
// register a server-side endpoint before a client shows up to pair with it
// (see a connection-broker-style rendezvous, where the listener's endpoint
// is created well before any client dials in).
func New() *Endpoint {
	return newEndpoint()
}

// Link pairs two endpoints so each becomes the other's peer. Neither may
// currently have a peer; an endpoint whose peer disconnected has already
// dropped it and may be linked again, which is how a reconnect-tolerant
// server endpoint hosts a second session.
func Link(a, b *Endpoint) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

func newEndpoint() *Endpoint {
	return &Endpoint{
		status:    connectivity.Uninitialized,
		statusCBs: make(map[ipccom.StatusCookie]ipccom.StatusEventCallback),
	}
}

func (e *Endpoint) RegisterStatusEventCallback(cb ipccom.StatusEventCallback) ipccom.StatusCookie {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextCookie++
	cookie := ipccom.StatusCookie(e.nextCookie)
	e.statusCBs[cookie] = cb
	return cookie
}

func (e *Endpoint) UnregisterStatusEventCallback(cookie ipccom.StatusCookie) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.statusCBs, cookie)
}

func (e *Endpoint) SetDataReceiveCallback(cb ipccom.DataReceiveCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataCB = cb
}

func (e *Endpoint) SendCapability() ipccom.SendCapability { return e }

// Send hands buffers directly to the peer's DataReceiveCallback. It copies
// the outer Buffers slice (but not the underlying byte slices) before
// delivering, since the sender and receiver run on whatever goroutine called
// Send and must not alias a slice either side might still be about to
// append to.
func (e *Endpoint) Send(buffers ipccom.Buffers) bool {
	e.mu.Lock()
	peer := e.peer
	closed := e.closed
	e.mu.Unlock()
	if closed || peer == nil {
		return false
	}
	cp := append(ipccom.Buffers{}, buffers...)
	peer.deliver(cp)
	return true
}

func (e *Endpoint) deliver(buffers ipccom.Buffers) {
	e.mu.Lock()
	cb := e.dataCB
	closed := e.closed
	e.mu.Unlock()
	if closed || cb == nil {
		return
	}
	cb(buffers)
}

// AsyncConnect marks the endpoint connected immediately: its peer already
// exists in memory, so there is no handshake to perform. The peer observes
// the same transition, the way an accepting transport reports an incoming
// connection.
func (e *Endpoint) AsyncConnect() {
	e.mu.Lock()
	closed := e.closed
	peer := e.peer
	e.mu.Unlock()
	if closed {
		return
	}
	e.updateStatus(connectivity.Connected)
	if peer != nil {
		peer.peerConnected()
	}
}

func (e *Endpoint) peerConnected() {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	e.updateStatus(connectivity.Connected)
}

func (e *Endpoint) WaitForConnection(timeoutMs int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == connectivity.Connected
}

// Disconnect terminally closes this endpoint and tells the peer, which
// observes the loss as disconnected_forced the way it would from a real
// transport whose remote side went away. The peer itself is not closed: a
// reconnect-tolerant server endpoint stays usable for a later Link.
func (e *Endpoint) Disconnect() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	peer := e.peer
	e.peer = nil
	e.mu.Unlock()
	e.updateStatus(connectivity.Disconnected)
	if peer != nil {
		peer.peerClosed()
	}
}

func (e *Endpoint) peerClosed() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.peer = nil
	e.mu.Unlock()
	e.updateStatus(connectivity.DisconnectedForced)
}

func (e *Endpoint) GetStatus() connectivity.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Endpoint) updateStatus(s connectivity.State) {
	e.mu.Lock()
	if e.status == s {
		e.mu.Unlock()
		return
	}
	e.status = s
	cbs := make([]ipccom.StatusEventCallback, 0, len(e.statusCBs))
	for _, cb := range e.statusCBs {
		cbs = append(cbs, cb)
	}
	e.mu.Unlock()

	for _, cb := range cbs {
		cb(s)
	}
}
