package ipccom_test

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
)

// This file builds a tiny, hand-written repository/proxy/stub pair good
// enough to exercise every end-to-end scenario in this package's tests,
// without a real IDL compiler: a Root interface (Hello/Request/Register) and a
// ISayHello interface (Hello alone), wired the same way cmd/ipcdemo wires
// its single Echo interface.

var rootInterfaceID ipccom.InterfaceID = "test.Root/v1"
var sayHelloInterfaceID ipccom.InterfaceID = "test.ISayHello/v1"

// ISayHello is the interface a server can hand back to a client (scenario 2)
// or a client can hand to a server (scenario 3).
type ISayHello interface {
	Hello() (string, error)
}

// Root is the object a connector's channel-initial stub binds to in these
// tests. Hello alone covers the "simple call" scenario; Request and
// Register cover the two interface-marshalling scenarios.
type Root interface {
	ISayHello
	Request() (ISayHello, error)
	Register(s ISayHello) error
}

// sayHelloImpl is both a plain ISayHello (used directly, and returned by
// Root.Request) and satisfies Root when embedded.
type sayHelloImpl struct {
	greeting string
}

func (s *sayHelloImpl) Hello() (string, error) {
	if s.greeting == "" {
		return "Hello", nil
	}
	return s.greeting, nil
}

// rootImpl is the local object a test server binds as its channel-initial
// object. registered records the ISayHello a client has Register()ed, so a
// test can assert on what the server observed.
type rootImpl struct {
	sayHelloImpl

	mu         sync.Mutex
	registered ISayHello
}

func (r *rootImpl) Request() (ISayHello, error) {
	return &r.sayHelloImpl, nil
}

func (r *rootImpl) Register(s ISayHello) error {
	r.mu.Lock()
	r.registered = s
	r.mu.Unlock()
	return nil
}

func (r *rootImpl) Registered() ISayHello {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered
}

const (
	statusOK  byte = 0
	statusErr byte = 1
)

func encodeStringResult(s string) ipccom.Buffers {
	return ipccom.Buffers{append([]byte{statusOK}, []byte(s)...)}
}

func encodeErrResult(err error) ipccom.Buffers {
	return ipccom.Buffers{append([]byte{statusErr}, []byte(err.Error())...)}
}

func decodeStringResult(resp ipccom.Buffers) (string, error) {
	if len(resp) < 1 || len(resp[0]) < 1 {
		return "", errors.New("test: empty response")
	}
	status, payload := resp[0][0], resp[0][1:]
	if status == statusErr {
		return "", errors.New(string(payload))
	}
	return string(payload), nil
}

// sayHelloRawProxy/sayHelloRawStub are the generated-code stand-ins for
// ISayHello alone (no interface-valued arguments of its own).
type sayHelloRawProxy struct {
	caller ipccom.Caller
	mid    ipccom.MID
}

func (p *sayHelloRawProxy) SetCaller(c ipccom.Caller) { p.caller = c }
func (p *sayHelloRawProxy) SetMID(m ipccom.MID)       { p.mid = m }
func (p *sayHelloRawProxy) Interface() interface{}    { return p }

func (p *sayHelloRawProxy) Hello() (string, error) {
	resp, err := p.caller.Call(nil)
	if err != nil {
		return "", err
	}
	return decodeStringResult(resp)
}

type sayHelloRawStub struct {
	impl ISayHello
	mid  ipccom.MID
}

func (s *sayHelloRawStub) SetMID(m ipccom.MID) { s.mid = m }

func (s *sayHelloRawStub) Call(buffers ipccom.Buffers) (ipccom.Buffers, error) {
	result, err := s.impl.Hello()
	if err != nil {
		return encodeErrResult(err), nil
	}
	return encodeStringResult(result), nil
}

// Root's three operations are dispatched by a leading method-selector byte,
// since this hand-written codec has no IDL-generated per-method transport.
const (
	mHello byte = iota
	mRequest
	mRegister
)

type rootRawProxy struct {
	caller  ipccom.Caller
	mid     ipccom.MID
	control *ipccom.Control
}

func (p *rootRawProxy) SetCaller(c ipccom.Caller) { p.caller = c }
func (p *rootRawProxy) SetMID(m ipccom.MID)       { p.mid = m }
func (p *rootRawProxy) Interface() interface{}    { return p }

func (p *rootRawProxy) Hello() (string, error) {
	resp, err := p.caller.Call(ipccom.Buffers{{mHello}})
	if err != nil {
		return "", err
	}
	return decodeStringResult(resp)
}

func (p *rootRawProxy) Request() (ISayHello, error) {
	resp, err := p.caller.Call(ipccom.Buffers{{mRequest}})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 || len(resp[0]) < 1 {
		return nil, errors.New("test: malformed Request response")
	}
	if resp[0][0] == statusErr {
		return nil, errors.New(string(resp[1]))
	}
	mid := ipccom.DecodeMID(resp[1], binary.LittleEndian)

	resolver, ok := p.caller.(ipccom.ProxyResolver)
	if !ok {
		return nil, errors.New("test: caller does not support ProxyResolver")
	}
	iface, err := resolver.ResolveProxy(sayHelloInterfaceID, mid)
	if err != nil {
		return nil, err
	}
	return iface.(ISayHello), nil
}

func (p *rootRawProxy) Register(s ISayHello) error {
	stubMID, err := p.control.GetOrCreateStub(sayHelloInterfaceID, s)
	if err != nil {
		return err
	}
	midBuf := make([]byte, ipccom.MIDWireSize)
	stubMID.EncodeTo(midBuf, binary.LittleEndian)

	resp, err := p.caller.Call(ipccom.Buffers{{mRegister}, midBuf})
	if err != nil {
		return err
	}
	_, err = decodeStringResult(resp)
	return err
}

type rootRawStub struct {
	impl    Root
	mid     ipccom.MID
	control *ipccom.Control
}

func (s *rootRawStub) SetMID(m ipccom.MID) { s.mid = m }

func (s *rootRawStub) Call(buffers ipccom.Buffers) (ipccom.Buffers, error) {
	if len(buffers) < 1 || len(buffers[0]) < 1 {
		return nil, errors.New("test: missing method selector")
	}
	switch buffers[0][0] {
	case mHello:
		result, err := s.impl.Hello()
		if err != nil {
			return encodeErrResult(err), nil
		}
		return encodeStringResult(result), nil

	case mRequest:
		target, err := s.impl.Request()
		if err != nil {
			return ipccom.Buffers{{statusErr}, []byte(err.Error())}, nil
		}
		mid, err := s.control.GetOrCreateStub(sayHelloInterfaceID, target)
		if err != nil {
			return nil, err
		}
		midBuf := make([]byte, ipccom.MIDWireSize)
		mid.EncodeTo(midBuf, binary.LittleEndian)
		return ipccom.Buffers{{statusOK}, midBuf}, nil

	case mRegister:
		if len(buffers) < 2 {
			return nil, errors.New("test: Register missing MID buffer")
		}
		mid := ipccom.DecodeMID(buffers[1], binary.LittleEndian)
		iface, err := s.control.GetProxy(sayHelloInterfaceID, mid)
		if err != nil {
			return encodeErrResult(err), nil
		}
		remote, ok := iface.(ISayHello)
		if !ok {
			return nil, errors.New("test: resolved proxy does not implement ISayHello")
		}
		if err := s.impl.Register(remote); err != nil {
			return encodeErrResult(err), nil
		}
		return encodeStringResult("registered"), nil

	default:
		return nil, errors.New("test: unknown method selector")
	}
}

// testRepository is the Repository these tests bind to a Control: it knows
// rootInterfaceID and sayHelloInterfaceID alone.
type testRepository struct {
	control *ipccom.Control
}

func newTestRepository() *testRepository {
	return &testRepository{}
}

func (r *testRepository) CreateRawProxy(id ipccom.InterfaceID) (ipccom.RawProxy, error) {
	switch id {
	case rootInterfaceID:
		return &rootRawProxy{control: r.control}, nil
	case sayHelloInterfaceID:
		return &sayHelloRawProxy{}, nil
	default:
		return nil, errors.New("test: no repository entry for interface")
	}
}

func (r *testRepository) CreateRawStub(id ipccom.InterfaceID, local interface{}) (ipccom.RawStub, error) {
	switch id {
	case rootInterfaceID:
		impl, ok := local.(Root)
		if !ok {
			return nil, errors.New("test: object does not implement Root")
		}
		return &rootRawStub{impl: impl, control: r.control}, nil
	case sayHelloInterfaceID:
		impl, ok := local.(ISayHello)
		if !ok {
			return nil, errors.New("test: object does not implement ISayHello")
		}
		return &sayHelloRawStub{impl: impl}, nil
	default:
		return nil, errors.New("test: no repository entry for interface")
	}
}
