package ipccom

// Buffers is a sequence of byte buffers: the first element of an
// invocation's or response's Buffers is always the encoded AddressHeader;
// the rest is the IDL-generated payload, opaque to this package. Go slices
// are reference types, so passing a Buffers value between goroutines already
// approximates the "move, don't copy" discipline the design calls for;
// callers that need a true hand-off (no further mutation by the sender)
// should stop touching the slice after passing it on, the same convention
// the transport callback in this package follows.
type Buffers = [][]byte

// InterfaceID identifies an interface type across process boundaries. Its
// concrete shape (a numeric hash, a string, a UUID, ...) is a decision for
// the component repository and the IDL compiler that generates proxy/stub
// pairs for it; this package only ever stores and compares it.
type InterfaceID = interface{}

// Caller is implemented by a MarshallObject and invoked by the RawProxy the
// Repository creates: calling Call marshals the invocation across the
// connector this proxy is bound to.
type Caller interface {
	Call(buffers Buffers) (Buffers, error)
}

// RawProxy is the repository-created, interface-specific object a user calls
// methods through. Its generated methods encode arguments into Buffers and
// invoke Caller.Call; Interface returns the concrete, user-facing interface
// value (what AssignClientEndpoint and Request-style calls hand back).
type RawProxy interface {
	// SetCaller binds the object that performs call dispatch — always a
	// *MarshallObject in this package, but kept as the Caller interface so
	// a RawProxy implementation in a test or a generated-stub package does
	// not need to import this package's concrete type.
	SetCaller(caller Caller)
	// SetMID stamps the marshall identifier onto the raw proxy, for
	// diagnostics; the raw proxy is not required to do anything with it
	// beyond making it available for logging.
	SetMID(mid MID)
	// Interface returns the interface value the user calls through.
	Interface() interface{}
}

// RawStub is the repository-created object that decodes an incoming call's
// Buffers, invokes the bound local interface, and encodes the result.
type RawStub interface {
	SetMID(mid MID)
	Call(buffers Buffers) (Buffers, error)
}

// Repository is the external component-repository collaborator: it resolves
// named objects and creates the raw proxy/stub pair for a given interface
// identity. Its implementation (interface-identity scheme, method dispatch,
// payload codec) is entirely out of this package's scope; only this
// consumed surface is described here.
type Repository interface {
	// CreateRawProxy creates a RawProxy for the given interface identity.
	CreateRawProxy(id InterfaceID) (RawProxy, error)
	// CreateRawStub creates a RawStub wrapping the given local interface
	// value (whatever concrete type implements the interface named by id
	// is a matter between the caller and the repository).
	CreateRawStub(id InterfaceID, local interface{}) (RawStub, error)
}
