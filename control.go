package ipccom

import (
	"sync"
	"sync/atomic"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/internal/gls"
)

// Status is Control's own lifecycle state, separate from any single
// connection's connectivity.State.
type Status int

const (
	StatusInitializationPending Status = iota
	StatusInitialized
	StatusConfiguring
	StatusRunning
	StatusShutdownInProgress
	StatusDestructionPending
)

func (s Status) String() string {
	switch s {
	case StatusInitializationPending:
		return "initialization_pending"
	case StatusInitialized:
		return "initialized"
	case StatusConfiguring:
		return "configuring"
	case StatusRunning:
		return "running"
	case StatusShutdownInProgress:
		return "shutdown_in_progress"
	case StatusDestructionPending:
		return "destruction_pending"
	default:
		return "unknown"
	}
}

// Control is the process-wide hub every connector and marshall object is
// created through. Exactly one is expected per process (NewControl does not
// enforce this; a test harness legitimately wants several, one per simulated
// process), but nothing here reaches for package-level mutable state, so
// more than one can coexist safely.
type Control struct {
	repository Repository

	statusMu sync.Mutex
	status   Status

	factoriesMu sync.RWMutex
	factories   map[string]TransportFactory

	channelsMu sync.Mutex
	channels   []*ChannelConnector // dense; nulled, never compacted

	// objMu guards both the marshall-object vector and the stub-by-interface
	// index. It is recursive because resolving a stub or proxy for a nested
	// interface-valued argument can re-enter this path from the same
	// goroutine while the outer lookup is still in progress.
	objMu           gls.RecursiveMutex
	marshallObjects []*MarshallObject // dense; nulled, never compacted
	stubByInterface map[interface{}]*MarshallObject

	callCounter uint64
}

// NewControl creates a Control bound to the given component repository,
// which is consulted for every CreateRawProxy/CreateRawStub call this
// Control makes.
func NewControl(repository Repository) *Control {
	return &Control{
		repository:      repository,
		status:          StatusInitializationPending,
		factories:       make(map[string]TransportFactory),
		stubByInterface: make(map[interface{}]*MarshallObject),
	}
}

// Initialize moves Control from initialization_pending to initialized. It is
// a no-op (and returns an error) if called twice.
func (c *Control) Initialize() error {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if c.status != StatusInitializationPending {
		return errNotInitialised("control already initialized")
	}
	c.status = StatusInitialized
	return nil
}

// Configure moves Control into the configuring state, from initialized or
// running. Transport registration and connection setup normally happen here;
// the transition back out is Run.
func (c *Control) Configure() error {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	switch c.status {
	case StatusInitialized, StatusRunning:
		c.status = StatusConfiguring
		return nil
	default:
		return errNotInitialised("cannot configure from " + c.status.String())
	}
}

// Run moves Control from initialized or configuring into running.
func (c *Control) Run() error {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	switch c.status {
	case StatusInitialized, StatusConfiguring:
		c.status = StatusRunning
		return nil
	default:
		return errNotInitialised("cannot run from " + c.status.String())
	}
}

// Status returns Control's current lifecycle state.
func (c *Control) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

func (c *Control) setStatus(s Status) {
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

// RegisterTransport makes a named TransportFactory available to
// CreateServerConnection and CreateClientConnection. kind is matched against
// the Provider.Name field of a connection string and against the channel
// type passed to CreateServerConnection.
func (c *Control) RegisterTransport(kind string, factory TransportFactory) {
	c.factoriesMu.Lock()
	defer c.factoriesMu.Unlock()
	c.factories[kind] = factory
}

func (c *Control) transportFactory(kind string) (TransportFactory, error) {
	c.factoriesMu.RLock()
	defer c.factoriesMu.RUnlock()
	f, ok := c.factories[kind]
	if !ok {
		return nil, errNotInitialised("no transport factory registered for " + kind)
	}
	return f, nil
}

// newCallIndex hands out a process-wide unique, monotonically increasing
// call index, shared across every connector so a stray response naming a
// call index never collides across two different connections.
func (c *Control) newCallIndex() uint64 {
	return atomic.AddUint64(&c.callCounter, 1)
}

// pushConnectorContext records connector as the calling goroutine's current
// connector, for the duration of a call or a stub dispatch. GetProxy reads
// this back when resolving an interface-valued argument nested in a payload.
// The returned function restores the goroutine's previous context (nil at
// the top level, since connectors do not nest in practice, but a nested
// dispatch restores its caller's connector rather than clearing it
// unconditionally).
func (c *Control) pushConnectorContext(connector *ChannelConnector) func() {
	previous := gls.Get()
	gls.Set(connector)
	return func() {
		if previous == nil {
			gls.Clear()
			return
		}
		gls.Set(previous)
	}
}

// currentConnector returns the connector bound to the calling goroutine by
// pushConnectorContext, or nil outside of any call/dispatch.
func currentConnector() *ChannelConnector {
	v := gls.Get()
	connector, _ := v.(*ChannelConnector)
	return connector
}

// allocMarshallSlotLocked appends a nil placeholder and returns its index.
// Callers must hold objMu.
func (c *Control) allocMarshallSlotLocked() uint32 {
	idx := len(c.marshallObjects)
	c.marshallObjects = append(c.marshallObjects, nil)
	return uint32(idx)
}

// GetOrCreateStub returns the MID for the stub wrapping local, creating one
// bound to interface identity id the first time this exact local value is
// seen. Stubs are memoised by the local interface value so that handing the
// same object to two different proxies yields one stub, not two.
func (c *Control) GetOrCreateStub(id InterfaceID, local interface{}) (MID, error) {
	return c.getOrCreateStub(id, local)
}

func (c *Control) getOrCreateStub(id InterfaceID, local interface{}) (MID, error) {
	c.objMu.Lock()
	defer c.objMu.Unlock()

	if mo, ok := c.stubByInterface[local]; ok {
		return mo.MID(), nil
	}

	idx := c.allocMarshallSlotLocked()
	mo, err := newStubMarshallObject(c, idx, id, local)
	if err != nil {
		return MID{}, err
	}
	c.marshallObjects[idx] = mo
	c.stubByInterface[local] = mo
	return mo.MID(), nil
}

// createProxy mints a new proxy marshall object addressing stubMID over
// connector. Unlike stubs, proxies are not memoised here: GetOrCreateProxy on
// ChannelConnector is what deduplicates, scoped to one connector's cache,
// because the same stubMID seen over two different connectors will not
// actually happen (a MID is only ever valid on the connector that produced
// it) but the cache still belongs to the connector rather than Control.
func (c *Control) createProxy(id InterfaceID, stubMID MID, connector *ChannelConnector) (*MarshallObject, error) {
	c.objMu.Lock()
	defer c.objMu.Unlock()

	idx := c.allocMarshallSlotLocked()
	mo, err := newProxyMarshallObject(c, idx, id, stubMID, connector)
	if err != nil {
		return nil, err
	}
	c.marshallObjects[idx] = mo
	return mo, nil
}

// GetProxy resolves a proxy for interface identity id addressing stubMID,
// against the calling goroutine's current connector (set by MakeCall or
// DecoupledReceiveData for the duration of a call). It returns
// KindNotInitialised if called from a goroutine with no current connector,
// which means it was called outside of any call/dispatch this package
// drove.
func (c *Control) GetProxy(id InterfaceID, stubMID MID) (interface{}, error) {
	connector := currentConnector()
	if connector == nil {
		return nil, errNotInitialised("no current connector for this goroutine")
	}
	mo, err := connector.GetOrCreateProxy(id, stubMID)
	if err != nil {
		return nil, err
	}
	return mo.Interface(), nil
}

// callStub dispatches an inbound invocation to the stub at stubMID. It
// checks both the index range and the stored MID's control value, so a
// forged or stale index is rejected as an integrity failure rather than
// dispatched to whatever now occupies that slot (slots are nulled, never
// reused, but a buggy or malicious peer could still send an index that was
// always invalid).
func (c *Control) callStub(stubMID MID, buffers Buffers) (Buffers, error) {
	c.objMu.Lock()
	if int(stubMID.Index) >= len(c.marshallObjects) {
		c.objMu.Unlock()
		return nil, errIntegrity("stub index out of range")
	}
	mo := c.marshallObjects[stubMID.Index]
	c.objMu.Unlock()

	if mo == nil {
		return nil, errIntegrity("stub index not bound")
	}
	if mid := mo.MID(); mid != stubMID {
		return nil, errIntegrity("stub control value mismatch")
	}
	return mo.Call(buffers)
}

// AssignServerEndpoint creates a ChannelConnector over endpoint, binds
// object as its initial stub, and starts it accepting traffic. allowReconnect
// controls whether a disconnect removes the connection outright (the normal
// case for an ephemeral per-client endpoint handed out by a connection
// broker) or leaves it in place to be reconnected (the long-lived listener
// endpoint case).
func (c *Control) AssignServerEndpoint(endpoint Endpoint, objectID InterfaceID, object interface{}, allowReconnect bool, initialConnectTimeoutMs int) (CID, error) {
	connector, cid := c.newConnectorSlot(endpoint, roleServer, allowReconnect, initialConnectTimeoutMs)
	if _, err := connector.ServerConnect(objectID, object); err != nil {
		c.removeConnection(cid)
		return CID{}, err
	}
	return cid, nil
}

// AssignClientEndpoint creates a ChannelConnector over endpoint, connects
// out, and resolves the channel-initial proxy for targetID. On failure the
// connector's slot is released before returning.
func (c *Control) AssignClientEndpoint(endpoint Endpoint, targetID InterfaceID, timeoutMs int) (CID, interface{}, error) {
	connector, cid := c.newConnectorSlot(endpoint, roleClient, false, 0)
	target, err := connector.ClientConnect(targetID, timeoutMs)
	if err != nil {
		c.removeConnection(cid)
		return CID{}, nil, err
	}
	return cid, target, nil
}

func (c *Control) newConnectorSlot(endpoint Endpoint, role connectorRole, allowReconnect bool, initialConnectTimeoutMs int) (*ChannelConnector, CID) {
	c.channelsMu.Lock()
	idx := uint32(len(c.channels))
	c.channels = append(c.channels, nil)
	c.channelsMu.Unlock()

	cid := CID{Index: idx, Control: newControlValue()}
	connector := newChannelConnector(c, cid, endpoint, role, allowReconnect, initialConnectTimeoutMs)

	c.channelsMu.Lock()
	c.channels[idx] = connector
	c.channelsMu.Unlock()
	return connector, cid
}

// CreateServerConnection resolves kind to a registered TransportFactory,
// asks it for a listening or accepting endpoint, and assigns it via
// AssignServerEndpoint. It returns the connection string a client should be
// given to reach this endpoint.
func (c *Control) CreateServerConnection(kind string, config string, objectID InterfaceID, object interface{}, allowReconnect bool, initialConnectTimeoutMs int) (CID, string, error) {
	factory, err := c.transportFactory(kind)
	if err != nil {
		return CID{}, "", err
	}
	endpoint, connectionString, err := factory.NewServerEndpoint(config)
	if err != nil {
		return CID{}, "", errMarshalling("create server endpoint", err)
	}
	cid, err := c.AssignServerEndpoint(endpoint, objectID, object, allowReconnect, initialConnectTimeoutMs)
	if err != nil {
		return CID{}, "", err
	}
	return cid, connectionString, nil
}

// CreateClientConnection resolves kind to a registered TransportFactory,
// asks it to connect to connectionString, and assigns it via
// AssignClientEndpoint.
func (c *Control) CreateClientConnection(kind, connectionString string, targetID InterfaceID, timeoutMs int) (CID, interface{}, error) {
	factory, err := c.transportFactory(kind)
	if err != nil {
		return CID{}, nil, err
	}
	endpoint, err := factory.NewClientEndpoint(connectionString)
	if err != nil {
		return CID{}, nil, errMarshalling("create client endpoint", err)
	}
	return c.AssignClientEndpoint(endpoint, targetID, timeoutMs)
}

// Connector returns the live connector at cid's index, or nil if cid is
// stale (already removed, or never valid). It exists so callers that need to
// reach past the stub/proxy surface — e.g. overriding a connector's outbound
// SetByteOrder in a test — can do so without this package growing a
// pass-through option on every Assign*/CreateServerConnection signature.
func (c *Control) Connector(cid CID) *ChannelConnector {
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()
	if int(cid.Index) >= len(c.channels) {
		return nil
	}
	connector := c.channels[cid.Index]
	if connector == nil || connector.CID().Control != cid.Control {
		return nil
	}
	return connector
}

// RemoveConnection tears down and nulls the connector at cid's index. It is
// idempotent: a stale CID (a forged one, or one for a connection already
// removed) is silently ignored rather than erroring, since the caller in the
// disconnect-event path cannot distinguish "I should remove this" from "this
// was already removed by a concurrent event" without this being a no-op.
func (c *Control) RemoveConnection(cid CID) {
	c.removeConnection(cid)
}

func (c *Control) removeConnection(cid CID) {
	c.channelsMu.Lock()
	if int(cid.Index) >= len(c.channels) {
		c.channelsMu.Unlock()
		return
	}
	connector := c.channels[cid.Index]
	if connector == nil || connector.CID().Control != cid.Control {
		c.channelsMu.Unlock()
		return
	}
	c.channels[cid.Index] = nil
	c.channelsMu.Unlock()

	connector.teardown()
}

// Shutdown moves every live connection and stub aside and tears them down,
// then transitions Control through shutdown_in_progress to
// destruction_pending. It is safe to call more than once; subsequent calls
// find nothing left to tear down.
func (c *Control) Shutdown() {
	c.setStatus(StatusShutdownInProgress)

	c.channelsMu.Lock()
	channels := c.channels
	c.channels = nil
	c.channelsMu.Unlock()

	for _, connector := range channels {
		if connector != nil {
			connector.teardown()
		}
	}

	c.objMu.Lock()
	c.marshallObjects = nil
	c.stubByInterface = make(map[interface{}]*MarshallObject)
	c.objMu.Unlock()

	c.setStatus(StatusDestructionPending)
}
