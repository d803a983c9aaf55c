// Package ipccom implements the inter-process communication core of a
// component-oriented runtime: a proxy/stub marshalling layer that forwards
// interface calls across process boundaries, and the connection lifecycle
// (Control, ChannelConnector) that establishes and tears down the underlying
// byte-stream channels those proxies and stubs are addressed over. The
// two-phase rendezvous a client uses to reach a fresh private channel lives
// one level up, in package ipcconnect, built entirely on the surface
// declared here.
//
// Vocabulary mirrors the classic CORBA-style split: a Proxy is
// the local stand-in for a remote object, a Stub decodes incoming calls and
// invokes the real local object, a Connector is the per-connection state
// (proxy cache, call map, scheduler), and a Marshall Identifier (MID) is the
// stable, process-wide address of a proxy or a stub.
//
// Three pieces cooperate:
//
//   - Control (control.go) is the process-wide singleton: it owns the
//     connection vector, the stub directory, the marshall-object vector, and
//     the call-index allocator.
//   - Connector (connector.go) is per-connection: it serializes the address
//     header, arbitrates invocation vs. response frames, and blocks outbound
//     callers until their response (or cancellation) arrives.
//   - MarshallObject (marshall.go) is the tagged proxy/stub variant that user
//     code and incoming frames actually call through.
//
// The byte-transport (shared memory, TCP, websocket, ...), the object
// repository that creates raw proxy/stub pairs for a given interface
// identity, and the IDL-generated payload codecs are all external
// collaborators; only the interfaces this package consumes from them are
// declared here (transport.go, repository.go).
package ipccom
