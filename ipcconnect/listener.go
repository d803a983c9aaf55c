package ipcconnect

import (
	"github.com/op/go-logging"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
)

var log = logging.MustGetLogger("ipcconnect")

// perClientTimeoutMs bounds how long a freshly allocated per-client endpoint
// is expected to take to come up. It is stored on the resulting connector
// (see ChannelConnector.initialConnectTimeoutMs) but not currently enforced
// by a live timer.
const perClientTimeoutMs = 5000

// Listener is the long-lived half of the connection broker rendezvous. It
// binds a ChannelBroker as its initial interface over a server endpoint
// that accepts reconnects, and on each RequestChannel call spins up a
// fresh, single-client server endpoint bound to the application repository.
type Listener struct {
	control *ipccom.Control
	kind    string
	repoID  ipccom.InterfaceID
	repo    interface{}

	cid  ipccom.CID
	addr string
}

// NewListener parses cfgBlob (a "[Listener]" TOML block), creates the
// long-lived server endpoint, and binds a ChannelBroker as its initial
// interface. repoID/repository are the application's own repository
// interface identity and object, handed out fresh to each rendezvoused
// client.
func NewListener(control *ipccom.Control, cfgBlob string, repoID ipccom.InterfaceID, repository interface{}) (*Listener, error) {
	cfg, err := ParseListenerConfig(cfgBlob)
	if err != nil {
		return nil, err
	}

	l := &Listener{control: control, kind: cfg.Listener.Type, repoID: repoID, repo: repository}

	addr := transportAddr(cfg.Listener.Type, cfg.Listener.Interface, cfg.Listener.Port)
	cid, connStr, err := control.CreateServerConnection(cfg.Listener.Type, addr, BrokerInterfaceID, &brokerService{listener: l}, true, 0)
	if err != nil {
		return nil, err
	}
	l.cid = cid
	l.addr = connStr
	log.Infof("listener up on %s (%s)", connStr, cfg.Listener.Type)
	return l, nil
}

// Addr returns the transport-native address (not a connection-string blob)
// this listener actually bound, which is useful when the configuration
// passed an ephemeral port (Port = 0) and a test or a sibling process needs
// to learn the real one.
func (l *Listener) Addr() string { return l.addr }

// requestChannel implements ChannelBroker.RequestChannel: it allocates a
// fresh, non-reconnecting server endpoint bound to the application
// repository and returns its connection string as a Provider-tagged TOML
// blob.
func (l *Listener) requestChannel(requestID string) (string, error) {
	_, rawConnStr, err := l.control.CreateServerConnection(l.kind, "127.0.0.1:0", l.repoID, l.repo, false, perClientTimeoutMs)
	if err != nil {
		return "", err
	}
	blob, err := encodeConnectionString(l.kind, rawConnStr)
	if err != nil {
		return "", err
	}
	log.Debugf("listener: handed out private channel %s to request %s", rawConnStr, requestID)
	return blob, nil
}

// Close tears down the listener's long-lived connection. Channels already
// handed out to clients are unaffected: each is an independent connection
// the connection-broker design deliberately does not tie to the listener's
// own lifetime.
func (l *Listener) Close() {
	l.control.RemoveConnection(l.cid)
}
