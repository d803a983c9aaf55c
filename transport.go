package ipccom

import "github.com/eclipse-openvehicle-api/openvehicle-api-sub000/connectivity"

// StatusCookie is returned by RegisterStatusEventCallback and passed back to
// UnregisterStatusEventCallback to stop receiving status events.
type StatusCookie uint64

// StatusEventCallback is invoked by a transport endpoint on every
// connectivity transition.
type StatusEventCallback func(status connectivity.State)

// DataReceiveCallback is invoked by a transport endpoint when a frame
// arrives. The transport conveys buffers by move: once it has called this
// function, it must not read or write the slice's backing arrays again.
type DataReceiveCallback func(buffers Buffers)

// SendCapability is the outbound capability a ChannelConnector obtains from
// its Endpoint once connected.
type SendCapability interface {
	// Send transmits buffers as a single frame. It returns false on any
	// failure to hand the frame to the transport (the transport is not
	// required to guarantee delivery beyond that point).
	Send(buffers Buffers) bool
}

// Endpoint is the transport capability set a ChannelConnector drives. A
// transport implementation (shared memory, TCP, websocket, ...) is an
// external collaborator; this package only ever calls through this
// interface and never assumes anything about how a concrete Endpoint
// establishes connectivity.
type Endpoint interface {
	// RegisterStatusEventCallback registers cb to be invoked on every
	// connectivity transition and returns a cookie for later
	// unregistration.
	RegisterStatusEventCallback(cb StatusEventCallback) StatusCookie
	// UnregisterStatusEventCallback stops delivering events registered
	// under cookie.
	UnregisterStatusEventCallback(cookie StatusCookie)
	// SetDataReceiveCallback registers the function invoked whenever a
	// frame arrives. A connector must call this before AsyncConnect.
	SetDataReceiveCallback(cb DataReceiveCallback)
	// SendCapability returns the outbound capability for this endpoint.
	// It may be called at any time; sends attempted before the endpoint
	// is connected are expected to fail.
	SendCapability() SendCapability
	// AsyncConnect initiates a connection attempt without blocking. Status
	// transitions are reported through the registered status callback.
	AsyncConnect()
	// WaitForConnection blocks up to timeoutMs for the endpoint to reach
	// connectivity.Connected, returning whether it did.
	WaitForConnection(timeoutMs int) bool
	// Disconnect tears down the connection. It is safe to call more than
	// once.
	Disconnect()
	// GetStatus returns the current connectivity state.
	GetStatus() connectivity.State
}

// TransportFactory creates a new, unconnected Endpoint for a given
// connection-string-style configuration blob. Registered factories let
// Control resolve a transport "kind" (e.g. "Local", "Remote") to a concrete
// Endpoint constructor without importing any particular transport package.
type TransportFactory interface {
	// NewServerEndpoint creates an endpoint that will listen for or accept
	// a connection, returning the endpoint and a printable connection
	// string describing how a client can reach it.
	NewServerEndpoint(config string) (Endpoint, string, error)
	// NewClientEndpoint creates an endpoint that will connect out to the
	// peer described by the connection string.
	NewClientEndpoint(connectionString string) (Endpoint, error)
}
