package wsloop

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
)

// Factory implements ipccom.TransportFactory for websocket transport. config
// passed to NewServerEndpoint is a bind address ("host:port", or ":0" for an
// ephemeral port); NewClientEndpoint accepts either the ws:// URL a
// ServerEndpoint handed out or a bare "host:port" from a client config
// block.
type Factory struct {
	ClientOptions []ClientOption
	ServerOptions []ServerOption
}

func (f Factory) NewServerEndpoint(config string) (ipccom.Endpoint, string, error) {
	if config == "" {
		config = ":0"
	}
	ep, connStr, err := NewServerEndpoint(config, f.ServerOptions...)
	if err != nil {
		return nil, "", err
	}
	return ep, connStr, nil
}

func (f Factory) NewClientEndpoint(connectionString string) (ipccom.Endpoint, error) {
	rawURL, err := normalizeURL(connectionString)
	if err != nil {
		return nil, err
	}
	return NewClientEndpoint(rawURL, f.ClientOptions...), nil
}

// normalizeURL turns a bare "host:port" into a dialable ws:// URL and
// validates the result either way.
func normalizeURL(s string) (string, error) {
	if !strings.HasPrefix(s, "ws://") && !strings.HasPrefix(s, "wss://") {
		s = "ws://" + s + "/"
	}
	if _, err := url.Parse(s); err != nil {
		return "", errors.Wrap(err, "wsloop: bad connection string")
	}
	return s, nil
}
