package ipcconnect

import (
	"fmt"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
)

// emptyRepository is an ipccom.Repository that knows no interfaces of its
// own. It is an inner repository to pass to WithBrokerSupport when the
// application only cares about the broker handshake itself (e.g. a test
// harness), so WithBrokerSupport always has something to delegate to.
type emptyRepository struct{}

func (emptyRepository) CreateRawProxy(id ipccom.InterfaceID) (ipccom.RawProxy, error) {
	return nil, fmt.Errorf("ipcconnect: no repository entry for interface %v", id)
}

func (emptyRepository) CreateRawStub(id ipccom.InterfaceID, local interface{}) (ipccom.RawStub, error) {
	return nil, fmt.Errorf("ipcconnect: no repository entry for interface %v", id)
}

// EmptyRepository returns a Repository with no bound interfaces, for use as
// WithBrokerSupport's inner argument when the application repository is not
// yet part of the picture.
func EmptyRepository() ipccom.Repository { return emptyRepository{} }
