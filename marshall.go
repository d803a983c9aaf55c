package ipccom

import "sync"

// marshallKind tags a MarshallObject as a proxy or a stub. It is a tagged
// variant rather than a type hierarchy: both cases share a single Call
// entry point and most of the surrounding bookkeeping (MID, lookup by
// index), so an interface-per-kind split would just push a type switch up a
// level without buying anything.
type marshallKind int

const (
	kindUnknown marshallKind = iota
	kindProxy
	kindStub
)

// MarshallObject is either a proxy (a local stand-in for a remote object,
// whose calls are forwarded across a connector) or a stub (a local object
// that decodes incoming calls and invokes the real local object). Every
// MarshallObject lives in Control's dense marshall-object vector at the
// index named by its own MID.
type MarshallObject struct {
	mu   sync.RWMutex
	kind marshallKind
	mid  MID

	// proxy fields
	stubMID   MID
	connector *ChannelConnector
	rawProxy  RawProxy

	// stub fields
	rawStub RawStub
}

// newProxyMarshallObject builds the proxy variant: it asks the connector's
// control for a raw proxy object bound to targetInterfaceID, stamps this
// object's MID onto it, links the raw proxy back to this MarshallObject (so
// user calls funnel through Call below), and records the remote stub MID
// and owning connector.
func newProxyMarshallObject(control *Control, proxyIndex uint32, targetInterfaceID InterfaceID, stubMID MID, connector *ChannelConnector) (*MarshallObject, error) {
	mid := MID{ProcessID: ProcessID, Index: proxyIndex, Control: newControlValue()}

	raw, err := control.repository.CreateRawProxy(targetInterfaceID)
	if err != nil {
		return nil, errMarshalling("create raw proxy", err)
	}

	mo := &MarshallObject{
		kind:      kindProxy,
		mid:       mid,
		stubMID:   stubMID,
		connector: connector,
		rawProxy:  raw,
	}
	raw.SetMID(mid)
	raw.SetCaller(mo)
	return mo, nil
}

// newStubMarshallObject builds the stub variant: it asks the repository for
// a raw stub bound to local, stamps this object's MID onto it, and records
// the raw stub so incoming calls decode directly into it.
func newStubMarshallObject(control *Control, stubIndex uint32, id InterfaceID, local interface{}) (*MarshallObject, error) {
	mid := MID{ProcessID: ProcessID, Index: stubIndex, Control: newControlValue()}

	raw, err := control.repository.CreateRawStub(id, local)
	if err != nil {
		return nil, errMarshalling("create raw stub", err)
	}

	mo := &MarshallObject{
		kind:    kindStub,
		mid:     mid,
		rawStub: raw,
	}
	raw.SetMID(mid)
	return mo, nil
}

// MID returns this marshall object's stable identifier.
func (mo *MarshallObject) MID() MID {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	return mo.mid
}

// Interface returns the user-facing interface value for a proxy variant, or
// nil for a stub (stubs have no interface of their own to call through —
// the local object they wrap is already in the caller's hands).
func (mo *MarshallObject) Interface() interface{} {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	if mo.kind != kindProxy {
		return nil
	}
	return mo.rawProxy.Interface()
}

// StubMID returns the remote stub this proxy addresses. It is the zero MID
// for a stub variant.
func (mo *MarshallObject) StubMID() MID {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	return mo.stubMID
}

// ProxyResolver lets a RawProxy resolve an interface-valued return value
// embedded in a response payload, against the same connector the call went
// out on. Unlike Control.GetProxy (which reads the calling goroutine's
// per-thread current-connector context, the mechanism an inbound call uses
// to decode an interface-valued argument it received), a proxy already
// knows its own connector directly — it was created on it — so resolving a
// nested proxy out of its own response payload needs no thread-local lookup
// at all; it only needs to happen after Call returns, which is exactly when
// the per-thread context set up for the outbound call has already been
// restored.
type ProxyResolver interface {
	ResolveProxy(id InterfaceID, stubMID MID) (interface{}, error)
}

// ResolveProxy implements ProxyResolver for the proxy variant of
// MarshallObject. It is nil-safe in the sense that it returns
// KindNotInitialised rather than panicking when called against a stub
// variant or an unbound object.
func (mo *MarshallObject) ResolveProxy(id InterfaceID, stubMID MID) (interface{}, error) {
	mo.mu.RLock()
	connector := mo.connector
	mo.mu.RUnlock()
	if connector == nil {
		return nil, errNotInitialised("proxy has no connector to resolve against")
	}
	target, err := connector.GetOrCreateProxy(id, stubMID)
	if err != nil {
		return nil, err
	}
	return target.Interface(), nil
}

// Call dispatches an encoded invocation. For a proxy, it forwards to the
// owning connector's MakeCall; for a stub, it forwards to the raw stub's
// decode-and-invoke. Either case returns KindNotInitialised if the variant
// was never bound (a zero-value MarshallObject was reached through the
// vector, e.g. after a weak reference outlived its strong owner — which
// should not happen, but is checked rather than trusted).
func (mo *MarshallObject) Call(buffers Buffers) (Buffers, error) {
	mo.mu.RLock()
	kind := mo.kind
	connector := mo.connector
	stubMID := mo.stubMID
	mid := mo.mid
	rawStub := mo.rawStub
	mo.mu.RUnlock()

	switch kind {
	case kindProxy:
		if connector == nil {
			return nil, errNotInitialised("proxy has no connector")
		}
		return connector.MakeCall(mid, stubMID, buffers)
	case kindStub:
		if rawStub == nil {
			return nil, errNotInitialised("stub has no raw stub")
		}
		return rawStub.Call(buffers)
	default:
		return nil, errNotInitialised("marshall object not bound")
	}
}
