package ipcconnect_test

import (
	"errors"
	"fmt"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
)

// echoInterfaceID and the Echo interface below are a second, independent
// hand-written interface/proxy/stub triple (see cmd/ipcdemo/echo.go for the
// one this is modelled on), just enough to confirm a Client's private
// channel actually carries an application repository call end to end, on
// top of the broker handshake ipcconnect itself owns.
var echoInterfaceID ipccom.InterfaceID = "ipcconnect_test.Echo/v1"

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
		return "", errors.New("echofixture: empty Echo response")
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
		return nil, errors.New("echofixture: Echo call missing message buffer")
	}
	result, err := s.impl.Echo(string(buffers[0]))
	if err != nil {
		return ipccom.Buffers{append([]byte{echoStatusErr}, []byte(err.Error())...)}, nil
	}
	return ipccom.Buffers{append([]byte{echoStatusOK}, []byte(result)...)}, nil
}

type echoRepository struct{}

func (echoRepository) CreateRawProxy(id ipccom.InterfaceID) (ipccom.RawProxy, error) {
	if id != echoInterfaceID {
		return nil, fmt.Errorf("echofixture: no repository entry for interface %v", id)
	}
	return &echoRawProxy{}, nil
}

func (echoRepository) CreateRawStub(id ipccom.InterfaceID, local interface{}) (ipccom.RawStub, error) {
	if id != echoInterfaceID {
		return nil, fmt.Errorf("echofixture: no repository entry for interface %v", id)
	}
	impl, ok := local.(Echo)
	if !ok {
		return nil, errors.New("echofixture: object bound to echoInterfaceID does not implement Echo")
	}
	return &echoRawStub{impl: impl}, nil
}
