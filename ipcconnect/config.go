// Package ipcconnect implements the two-phase connection broker rendezvous
// built on top of package ipccom: a long-lived Listener that hands out
// fresh, private per-client channels on request, and a Client that performs
// the rendezvous and hands back the application's repository proxy.
package ipcconnect

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ListenerConfig is the "[Listener]" TOML block NewListener consumes.
type ListenerConfig struct {
	Listener struct {
		Type      string
		Instance  uint32
		Interface string
		Port      uint16
	}
}

// ClientConfig is the "[Client]" TOML block Client.Connect consumes.
type ClientConfig struct {
	Client struct {
		Type      string
		Instance  uint32
		Interface string
		Port      uint16
	}
}

// ParseListenerConfig decodes blob, defaulting Type to "Local" when absent.
func ParseListenerConfig(blob string) (ListenerConfig, error) {
	var cfg ListenerConfig
	if _, err := toml.Decode(blob, &cfg); err != nil {
		return ListenerConfig{}, fmt.Errorf("ipcconnect: parse listener config: %w", err)
	}
	if cfg.Listener.Type == "" {
		cfg.Listener.Type = "Local"
	}
	return cfg, nil
}

// ParseClientConfig decodes blob, defaulting Type to "Local" when absent.
func ParseClientConfig(blob string) (ClientConfig, error) {
	var cfg ClientConfig
	if _, err := toml.Decode(blob, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("ipcconnect: parse client config: %w", err)
	}
	if cfg.Client.Type == "" {
		cfg.Client.Type = "Local"
	}
	return cfg, nil
}

// connectionStringBlob is the printable TOML blob a server endpoint hands
// back: a Provider table naming the transport component, plus whatever
// transport-specific fields that same transport's client-access operation
// reads back out. This package only ever knows about a single transport
// field (Addr); a transport with a richer configuration shape would extend
// this struct rather than replace it.
type connectionStringBlob struct {
	Provider struct {
		Name string
	}
	Addr string
}

func encodeConnectionString(providerName, addr string) (string, error) {
	var cs connectionStringBlob
	cs.Provider.Name = providerName
	cs.Addr = addr
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cs); err != nil {
		return "", fmt.Errorf("ipcconnect: encode connection string: %w", err)
	}
	return buf.String(), nil
}

func decodeConnectionString(blob string) (string, string, error) {
	var cs connectionStringBlob
	if _, err := toml.Decode(blob, &cs); err != nil {
		return "", "", fmt.Errorf("ipcconnect: decode connection string: %w", err)
	}
	return cs.Provider.Name, cs.Addr, nil
}

// transportAddr derives the address a transport factory's NewServerEndpoint
// config argument (for a Listener) should bind, from the Type/Interface/Port
// fields shared by ListenerConfig and ClientConfig. "Local" binds an
// ephemeral loopback port; "Remote" binds the configured interface and
// port.
func transportAddr(kind, iface string, port uint16) string {
	if kind == "Remote" {
		return fmt.Sprintf("%s:%d", iface, port)
	}
	return "127.0.0.1:0"
}
