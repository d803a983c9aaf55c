package main

import (
	"errors"
	"fmt"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/ipcconnect"
)

// echoInterfaceID identifies the demo application repository: a single
// Echo operation, just enough to exercise a private channel end to end
// once the connection broker rendezvous has handed one out.
var echoInterfaceID ipccom.InterfaceID = "ipcdemo.Echo/v1"

// Echo is the demo application's repository-bound interface.
type Echo interface {
	Echo(msg string) (string, error)
}

type echoImpl struct{}

func (echoImpl) Echo(msg string) (string, error) {
	return fmt.Sprintf("echo: %s", msg), nil
}

const (
	echoStatusOK  byte = 0
	echoStatusErr byte = 1
)

type echoRawProxy struct {
	caller ipccom.Caller
	mid    ipccom.MID
}

func (p *echoRawProxy) SetCaller(caller ipccom.Caller) { p.caller = caller }
func (p *echoRawProxy) SetMID(mid ipccom.MID)          { p.mid = mid }
func (p *echoRawProxy) Interface() interface{}         { return p }

func (p *echoRawProxy) Echo(msg string) (string, error) {
	resp, err := p.caller.Call(ipccom.Buffers{[]byte(msg)})
	if err != nil {
		return "", err
	}
	if len(resp) < 1 || len(resp[0]) < 1 {
		return "", errors.New("ipcdemo: empty Echo response")
	}
	status, payload := resp[0][0], resp[0][1:]
	if status == echoStatusErr {
		return "", errors.New(string(payload))
	}
	return string(payload), nil
}

type echoRawStub struct {
	impl Echo
	mid  ipccom.MID
}

func (s *echoRawStub) SetMID(mid ipccom.MID) { s.mid = mid }

func (s *echoRawStub) Call(buffers ipccom.Buffers) (ipccom.Buffers, error) {
	if len(buffers) < 1 {
		return nil, errors.New("ipcdemo: Echo call missing message buffer")
	}
	result, err := s.impl.Echo(string(buffers[0]))
	if err != nil {
		return ipccom.Buffers{append([]byte{echoStatusErr}, []byte(err.Error())...)}, nil
	}
	return ipccom.Buffers{append([]byte{echoStatusOK}, []byte(result)...)}, nil
}

// echoRepository implements ipccom.Repository for echoInterfaceID alone.
type echoRepository struct{}

func (echoRepository) CreateRawProxy(id ipccom.InterfaceID) (ipccom.RawProxy, error) {
	if id != echoInterfaceID {
		return nil, fmt.Errorf("ipcdemo: no repository entry for interface %v", id)
	}
	return &echoRawProxy{}, nil
}

func (echoRepository) CreateRawStub(id ipccom.InterfaceID, local interface{}) (ipccom.RawStub, error) {
	if id != echoInterfaceID {
		return nil, fmt.Errorf("ipcdemo: no repository entry for interface %v", id)
	}
	impl, ok := local.(Echo)
	if !ok {
		return nil, errors.New("ipcdemo: object bound to echoInterfaceID does not implement Echo")
	}
	return &echoRawStub{impl: impl}, nil
}

// demoRepository is the full Repository this process uses: the broker
// handshake plus the one demo interface.
func demoRepository() ipccom.Repository {
	return ipcconnect.WithBrokerSupport(echoRepository{})
}
