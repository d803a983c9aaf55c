package ipcconnect_test

import (
	"fmt"
	"strings"
	"sync"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/transport/looptransport"
)

// memTransport is an ipccom.TransportFactory backed entirely by
// looptransport endpoints, keyed by a registry of address strings. It plays
// the role a real Local (shared-memory) or Remote (socket) transport plays
// in production, letting a test drive the full Listener/Client rendezvous
// without a single real file descriptor.
//
// NewServerEndpoint's config is whatever transportAddr derives from a
// "[Listener]"/"[Client]" TOML block; this package always produces an
// ephemeral-looking "host:0" address for the "Local" kind. Since the
// listener's own long-lived endpoint and every per-client endpoint
// requestChannel allocates afterward all share that same literal config
// string, memTransport must mint a fresh, unique address each time a ":0"
// config is requested rather than treating the config itself as a key.
type memTransport struct {
	mu       sync.Mutex
	registry map[string]*looptransport.Endpoint
	counter  int
}

func newMemTransport() *memTransport {
	return &memTransport{registry: make(map[string]*looptransport.Endpoint)}
}

func (m *memTransport) NewServerEndpoint(config string) (ipccom.Endpoint, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := config
	if strings.HasSuffix(config, ":0") {
		m.counter++
		addr = fmt.Sprintf("mem://%d", m.counter)
	}
	ep := looptransport.New()
	m.registry[addr] = ep
	return ep, addr, nil
}

func (m *memTransport) NewClientEndpoint(connectionString string) (ipccom.Endpoint, error) {
	m.mu.Lock()
	server, ok := m.registry[connectionString]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memtransport: no server endpoint registered at %s", connectionString)
	}
	client := looptransport.New()
	looptransport.Link(server, client)
	return client, nil
}
