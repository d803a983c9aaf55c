package ipcconnect

import (
	"errors"

	"github.com/google/uuid"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
)

// Client performs the two-phase connection broker rendezvous: connect to
// the well-known listener, request a private channel, disconnect from the
// listener, then connect to the private channel and retain its repository
// proxy.
type Client struct {
	control *ipccom.Control
	cid     ipccom.CID
	repo    interface{}
}

// Connect parses cfgBlob (a "[Client]" TOML block), rendezvouses with the
// listener it describes, and returns a Client holding the repository proxy
// resolved against repoID on the private channel the listener handed out.
func Connect(control *ipccom.Control, cfgBlob string, repoID ipccom.InterfaceID, timeoutMs int) (*Client, error) {
	cfg, err := ParseClientConfig(cfgBlob)
	if err != nil {
		return nil, err
	}

	listenerAddr := transportAddr(cfg.Client.Type, cfg.Client.Interface, cfg.Client.Port)
	listenerCID, brokerIface, err := control.CreateClientConnection(cfg.Client.Type, listenerAddr, BrokerInterfaceID, timeoutMs)
	if err != nil {
		return nil, err
	}

	broker, ok := brokerIface.(ChannelBroker)
	if !ok {
		control.RemoveConnection(listenerCID)
		return nil, errors.New("ipcconnect: listener's initial object does not implement ChannelBroker")
	}

	// A fresh request ID per rendezvous gives the listener something to
	// correlate its RequestChannel log line with this particular client,
	// without this package needing any richer request payload.
	requestID := uuid.NewString()
	connStr, reqErr := broker.RequestChannel(requestID)
	// Disconnect from the listener immediately after the rendezvous call,
	// win or lose: the listener channel was only ever a means to look up
	// the private one, never something this client keeps using.
	control.RemoveConnection(listenerCID)
	if reqErr != nil {
		return nil, reqErr
	}

	providerName, addr, err := decodeConnectionString(connStr)
	if err != nil {
		return nil, err
	}

	privateCID, repoIface, err := control.CreateClientConnection(providerName, addr, repoID, timeoutMs)
	if err != nil {
		return nil, err
	}

	log.Infof("client: rendezvoused with private channel at %s", addr)
	return &Client{control: control, cid: privateCID, repo: repoIface}, nil
}

// Repository returns the application repository proxy resolved over the
// private channel.
func (c *Client) Repository() interface{} { return c.repo }

// Close tears down the client's private channel.
func (c *Client) Close() {
	c.control.RemoveConnection(c.cid)
}
