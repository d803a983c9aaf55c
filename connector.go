package ipccom

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/connectivity"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/internal/gls"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/internal/scheduler"
)

// Worker pool sizing for a single connector. A connector rarely needs more
// than a couple of concurrent inbound dispatches in flight; the scheduler
// grows past this if traffic demands it.
const (
	connectorMinIdleWorkers = 1
	connectorMaxBusyWorkers = 8
)

type connectorRole int

const (
	roleServer connectorRole = iota
	roleClient
)

type pendingCall struct {
	result chan callOutcome
}

type callOutcome struct {
	buffers Buffers
	err     error
}

// ChannelConnector owns everything specific to one transport connection: the
// proxies minted for stubs seen across it, the calls currently awaiting a
// response, and a private worker pool that runs every inbound dispatch so the
// transport's own I/O goroutine is never blocked on user code.
type ChannelConnector struct {
	control        *Control
	cid            CID
	endpoint       Endpoint
	role           connectorRole
	allowReconnect bool

	sched *scheduler.Scheduler

	// proxyMu is recursive because decoding an inbound call's arguments can
	// itself trigger GetOrCreateProxy for a nested interface-valued
	// argument, re-entering this same connector from the same goroutine.
	proxyMu    gls.RecursiveMutex
	proxyCache map[MID]*MarshallObject

	// initialStubMID is the MID of the stub ServerConnect bound as this
	// channel's initial object. A peer that has never learned this MID
	// (every client, on its very first call) addresses it with the empty
	// sentinel MID instead; DecoupledReceiveData substitutes this value for
	// an empty StubMID on every inbound input_data frame. Zero (unset) on a
	// client-role connector, which never receives invocations for itself.
	initialStubMID MID

	callMu sync.Mutex
	calls  map[uint64]*pendingCall

	// initialConnectTimeoutMs is the window within which an initial-connect
	// monitor would call Control.RemoveConnection if ServerConnect's target
	// status never reaches connected. It is stored but not armed.
	// TODO: arm a timer in ServerConnect once a connected-or-timeout signal
	// is available from Endpoint without polling GetStatus.
	initialConnectTimeoutMs int

	// byteOrder is the wire byte order this connector stamps into the
	// address header's leading endianness byte on every frame it originates.
	// It defaults to little-endian; tests that exercise the endianness-echo
	// law override it with SetByteOrder to simulate a big-endian caller.
	byteOrder binary.ByteOrder

	statusCookie StatusCookie
	closed       int32
}

func newChannelConnector(control *Control, cid CID, endpoint Endpoint, role connectorRole, allowReconnect bool, initialConnectTimeoutMs int) *ChannelConnector {
	c := &ChannelConnector{
		control:                 control,
		cid:                     cid,
		endpoint:                endpoint,
		role:                    role,
		allowReconnect:          allowReconnect,
		initialConnectTimeoutMs: initialConnectTimeoutMs,
		sched:                   scheduler.New(connectorMinIdleWorkers, connectorMaxBusyWorkers),
		proxyCache:              make(map[MID]*MarshallObject),
		calls:                   make(map[uint64]*pendingCall),
		byteOrder:               binary.LittleEndian,
	}
	endpoint.SetDataReceiveCallback(c.ReceiveData)
	c.statusCookie = endpoint.RegisterStatusEventCallback(c.onStatusEvent)
	return c
}

// CID returns this connector's stable connection identifier.
func (c *ChannelConnector) CID() CID { return c.cid }

// SetByteOrder overrides the wire byte order this connector uses to encode
// frames it originates (outbound calls, via MakeCall). The zero value after
// construction is little-endian; a big-endian peer round-trips correctly
// regardless, since DecodeAddressHeader reads the leading endianness byte to
// pick its own decode order and DecoupledReceiveData echoes that same byte
// order back on the response.
func (c *ChannelConnector) SetByteOrder(order binary.ByteOrder) {
	c.byteOrder = order
}

func (c *ChannelConnector) onStatusEvent(status connectivity.State) {
	log.Debugf("connector %s: status -> %s", c.cid, status)
	if !status.IsDisconnect() {
		return
	}
	c.handleDisconnect()
	if !c.allowReconnect {
		c.control.removeConnection(c.cid)
	}
}

// handleDisconnect cancels every in-flight call with a timeout error and
// drops the proxy cache. A proxy's remote identity is only meaningful for
// the connection it was learned over; the design does not attempt to
// reconcile stub identity across a reconnect, so a fresh connection starts
// with an empty cache.
func (c *ChannelConnector) handleDisconnect() {
	c.callMu.Lock()
	calls := c.calls
	c.calls = make(map[uint64]*pendingCall)
	c.callMu.Unlock()
	for _, pc := range calls {
		pc.result <- callOutcome{err: errTimeout("connection lost")}
	}

	c.proxyMu.Lock()
	c.proxyCache = make(map[MID]*MarshallObject)
	c.proxyMu.Unlock()
}

// ServerConnect binds object under objectID as the channel's initial stub
// and starts accepting inbound traffic. It returns the MID the remote peer
// should address as its channel-initial stub (the zero-MID StubMID on its
// first outgoing frame resolves to this).
func (c *ChannelConnector) ServerConnect(objectID InterfaceID, object interface{}) (MID, error) {
	mid, err := c.control.getOrCreateStub(objectID, object)
	if err != nil {
		return MID{}, err
	}
	c.initialStubMID = mid
	c.endpoint.AsyncConnect()
	return mid, nil
}

// ClientConnect connects out, waits up to timeoutMs for the connection to
// come up, and resolves the channel's initial proxy against the remote's
// channel-initial stub (the empty MID).
func (c *ChannelConnector) ClientConnect(targetID InterfaceID, timeoutMs int) (interface{}, error) {
	c.endpoint.AsyncConnect()
	if !c.endpoint.WaitForConnection(timeoutMs) {
		return nil, errTimeout("connect timed out")
	}
	mo, err := c.GetOrCreateProxy(targetID, MID{})
	if err != nil {
		return nil, err
	}
	return mo.Interface(), nil
}

// GetOrCreateProxy returns the cached proxy addressing stubMID over this
// connector, creating and caching one for interface identity id if this is
// the first time stubMID has been seen.
func (c *ChannelConnector) GetOrCreateProxy(id InterfaceID, stubMID MID) (*MarshallObject, error) {
	c.proxyMu.Lock()
	defer c.proxyMu.Unlock()

	if mo, ok := c.proxyCache[stubMID]; ok {
		return mo, nil
	}
	mo, err := c.control.createProxy(id, stubMID, c)
	if err != nil {
		return nil, err
	}
	c.proxyCache[stubMID] = mo
	return mo, nil
}

// MakeCall sends an invocation addressed to stubMID, on behalf of proxyMID,
// and blocks until a matching response arrives, the connection drops, or
// shutdown cancels every waiter. It never polls: the response path delivers
// directly into a per-call channel, so there is no lost-wakeup window for a
// response that arrives between a check and a wait the way a condition
// variable based wait loop would need to guard against.
func (c *ChannelConnector) MakeCall(proxyMID, stubMID MID, buffers Buffers) (Buffers, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, errTimeout("connector closed")
	}

	callIndex := c.control.newCallIndex()
	pc := &pendingCall{result: make(chan callOutcome, 1)}
	c.callMu.Lock()
	c.calls[callIndex] = pc
	c.callMu.Unlock()

	restore := c.control.pushConnectorContext(c)
	defer restore()

	header := AddressHeader{
		ProxyMID:  proxyMID,
		StubMID:   stubMID,
		CallIndex: callIndex,
		Interpret: InputData,
	}
	frame := append(Buffers{header.Encode(c.byteOrder)}, buffers...)

	sender := c.endpoint.SendCapability()
	if sender == nil || !sender.Send(frame) {
		c.callMu.Lock()
		delete(c.calls, callIndex)
		c.callMu.Unlock()
		return nil, errMarshalling("send failed", nil)
	}

	outcome := <-pc.result
	return outcome.buffers, outcome.err
}

// ReceiveData is registered as the endpoint's DataReceiveCallback. It must
// never block: it only decodes the address header and either resolves a
// waiting call directly (the common, cheap case) or hands the frame to
// DecoupledReceiveData on a scheduler worker.
func (c *ChannelConnector) ReceiveData(frame Buffers) {
	if len(frame) == 0 {
		log.Warningf("connector %s: empty frame", c.cid)
		return
	}
	header, order, err := DecodeAddressHeader(frame[0])
	if err != nil {
		log.Warningf("connector %s: malformed address header: %v", c.cid, err)
		return
	}
	payload := frame[1:]

	if header.Interpret == OutputData {
		c.deliverResponse(header, payload)
		return
	}
	c.sched.Schedule(func() { c.DecoupledReceiveData(header, order, payload) }, scheduler.Normal)
}

func (c *ChannelConnector) deliverResponse(header AddressHeader, payload Buffers) {
	c.callMu.Lock()
	pc, ok := c.calls[header.CallIndex]
	if ok {
		delete(c.calls, header.CallIndex)
	}
	c.callMu.Unlock()
	if !ok {
		log.Warningf("connector %s: response for unknown call index %d", c.cid, header.CallIndex)
		return
	}
	pc.result <- callOutcome{buffers: payload}
}

// DecoupledReceiveData runs on a scheduler worker, off the transport's own
// goroutine: it resolves the target stub, invokes it, and sends the
// response frame. Running here rather than inline in ReceiveData is what
// lets a slow or re-entrant stub call (one that itself calls back out over
// this or another connector) proceed without starving the transport's
// ability to keep reading further frames.
//
// The response is re-encoded in order, the byte order the request itself
// arrived in, not this connector's own outbound byteOrder: the caller that
// sent the request picked its encoding and expects its response back in the
// same one, regardless of which endianness this side defaults to.
func (c *ChannelConnector) DecoupledReceiveData(header AddressHeader, order binary.ByteOrder, payload Buffers) {
	restore := c.control.pushConnectorContext(c)
	defer restore()

	if header.ProxyMID.IsEmpty() {
		log.Warningf("connector %s: dropping input_data frame with empty proxyMID", c.cid)
		return
	}
	if header.StubMID.IsEmpty() {
		header.StubMID = c.initialStubMID
	}
	result, err := c.control.callStub(header.StubMID, payload)
	if err != nil {
		log.Warningf("connector %s: call to stub %s failed: %v", c.cid, header.StubMID, err)
		return
	}

	respHeader := AddressHeader{
		ProxyMID:  header.ProxyMID,
		StubMID:   header.StubMID,
		CallIndex: header.CallIndex,
		Interpret: OutputData,
	}
	frame := append(Buffers{respHeader.Encode(order)}, result...)

	sender := c.endpoint.SendCapability()
	if sender == nil || !sender.Send(frame) {
		log.Warningf("connector %s: failed to send response for call %d", c.cid, header.CallIndex)
	}
}

// teardown unregisters from the endpoint, disconnects it, cancels every
// waiter, and drains the scheduler. It is idempotent.
func (c *ChannelConnector) teardown() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	c.endpoint.UnregisterStatusEventCallback(c.statusCookie)
	c.endpoint.Disconnect()
	c.handleDisconnect()
	c.sched.WaitForExecution()
}
