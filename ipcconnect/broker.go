package ipcconnect

import (
	"errors"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
)

// BrokerInterfaceID identifies the ChannelBroker interface. It is the
// InterfaceID a Listener binds its initial object under, and the one a
// Client resolves its first proxy against.
var BrokerInterfaceID ipccom.InterfaceID = "ipcconnect.ChannelBroker/v1"

// ChannelBroker is the single operation a Listener's initial object
// exposes: given a client's connection-request configuration, it spins up a
// fresh per-client server endpoint bound to the application repository and
// returns that endpoint's connection string.
type ChannelBroker interface {
	RequestChannel(config string) (string, error)
}

// brokerService adapts a *Listener to the ChannelBroker interface bound as
// the listener endpoint's initial stub object.
type brokerService struct {
	listener *Listener
}

func (b *brokerService) RequestChannel(config string) (string, error) {
	return b.listener.requestChannel(config)
}

const (
	brokerStatusOK  byte = 0
	brokerStatusErr byte = 1
)

// brokerRawProxy is both an ipccom.RawProxy and a ChannelBroker: calling
// RequestChannel marshals the config string into a single buffer, invokes
// the bound Caller, and unmarshals the one-byte-status-prefixed response.
// This is a hand-written, single-interface codec rather than a generic IDL
// system — building the latter is out of scope, but the broker operation
// needs to actually work end to end, so it gets the minimum marshalling
// this one operation requires.
type brokerRawProxy struct {
	caller ipccom.Caller
	mid    ipccom.MID
}

func (p *brokerRawProxy) SetCaller(caller ipccom.Caller) { p.caller = caller }
func (p *brokerRawProxy) SetMID(mid ipccom.MID)          { p.mid = mid }
func (p *brokerRawProxy) Interface() interface{}         { return p }

func (p *brokerRawProxy) RequestChannel(config string) (string, error) {
	resp, err := p.caller.Call(ipccom.Buffers{[]byte(config)})
	if err != nil {
		return "", err
	}
	if len(resp) < 1 || len(resp[0]) < 1 {
		return "", errors.New("ipcconnect: empty RequestChannel response")
	}
	status, payload := resp[0][0], resp[0][1:]
	if status == brokerStatusErr {
		return "", errors.New(string(payload))
	}
	return string(payload), nil
}

// brokerRawStub is the corresponding ipccom.RawStub: it decodes the config
// buffer, invokes the bound ChannelBroker, and encodes the result with the
// same one-byte status prefix brokerRawProxy expects.
type brokerRawStub struct {
	broker ChannelBroker
	mid    ipccom.MID
}

func (s *brokerRawStub) SetMID(mid ipccom.MID) { s.mid = mid }

func (s *brokerRawStub) Call(buffers ipccom.Buffers) (ipccom.Buffers, error) {
	if len(buffers) < 1 {
		return nil, errors.New("ipcconnect: RequestChannel call missing config buffer")
	}
	connStr, err := s.broker.RequestChannel(string(buffers[0]))
	if err != nil {
		return ipccom.Buffers{append([]byte{brokerStatusErr}, []byte(err.Error())...)}, nil
	}
	return ipccom.Buffers{append([]byte{brokerStatusOK}, []byte(connStr)...)}, nil
}

// brokerRepository decorates an application Repository so it also knows how
// to create proxies and stubs for BrokerInterfaceID; every other interface
// identity is delegated to inner unchanged.
type brokerRepository struct {
	inner ipccom.Repository
}

// WithBrokerSupport wraps inner so a Control using the returned Repository
// can serve or consume BrokerInterfaceID alongside whatever interfaces inner
// already knows about.
func WithBrokerSupport(inner ipccom.Repository) ipccom.Repository {
	return &brokerRepository{inner: inner}
}

func (r *brokerRepository) CreateRawProxy(id ipccom.InterfaceID) (ipccom.RawProxy, error) {
	if id == BrokerInterfaceID {
		return &brokerRawProxy{}, nil
	}
	return r.inner.CreateRawProxy(id)
}

func (r *brokerRepository) CreateRawStub(id ipccom.InterfaceID, local interface{}) (ipccom.RawStub, error) {
	if id == BrokerInterfaceID {
		broker, ok := local.(ChannelBroker)
		if !ok {
			return nil, errors.New("ipcconnect: object bound to BrokerInterfaceID does not implement ChannelBroker")
		}
		return &brokerRawStub{broker: broker}, nil
	}
	return r.inner.CreateRawStub(id, local)
}
