package wsloop

import "github.com/cenkalti/backoff"

const (
	defaultWriteBufSize = 4096
	defaultReadBufSize  = 4096
)

// clientOptions configure a ClientEndpoint. Channel security is the
// deployment's concern, not this package's, so the knobs stop at buffer
// sizes and backoff.
type clientOptions struct {
	writeBufferSize int
	readBufferSize  int
	newBackOff      func() backoff.BackOff
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		writeBufferSize: defaultWriteBufSize,
		readBufferSize:  defaultReadBufSize,
		newBackOff:      func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// ClientOption configures a ClientEndpoint constructed by NewClientEndpoint
// or by Factory.NewClientEndpoint.
type ClientOption interface {
	apply(*clientOptions)
}

type funcClientOption struct {
	f func(*clientOptions)
}

func (fco *funcClientOption) apply(o *clientOptions) { fco.f(o) }

func newFuncClientOption(f func(*clientOptions)) *funcClientOption {
	return &funcClientOption{f: f}
}

// WithClientBufferSizes sets the websocket I/O buffer sizes. A zero value
// keeps the package default.
func WithClientBufferSizes(write, read int) ClientOption {
	return newFuncClientOption(func(o *clientOptions) {
		if write > 0 {
			o.writeBufferSize = write
		}
		if read > 0 {
			o.readBufferSize = read
		}
	})
}

// WithBackOff overrides the reconnect backoff strategy. The default is an
// exponential backoff with cenkalti/backoff's stock parameters.
func WithBackOff(newBackOff func() backoff.BackOff) ClientOption {
	return newFuncClientOption(func(o *clientOptions) {
		o.newBackOff = newBackOff
	})
}

// serverOptions configure a ServerEndpoint.
type serverOptions struct {
	writeBufferSize int
	readBufferSize  int
}

func defaultServerOptions() serverOptions {
	return serverOptions{
		writeBufferSize: defaultWriteBufSize,
		readBufferSize:  defaultReadBufSize,
	}
}

// ServerOption configures a ServerEndpoint constructed by NewServerEndpoint
// or by Factory.NewServerEndpoint.
type ServerOption interface {
	apply(*serverOptions)
}

type funcServerOption struct {
	f func(*serverOptions)
}

func (fso *funcServerOption) apply(o *serverOptions) { fso.f(o) }

func newFuncServerOption(f func(*serverOptions)) *funcServerOption {
	return &funcServerOption{f: f}
}

// WithServerBufferSizes sets the websocket I/O buffer sizes for accepted
// connections. A zero value keeps the package default.
func WithServerBufferSizes(write, read int) ServerOption {
	return newFuncServerOption(func(o *serverOptions) {
		if write > 0 {
			o.writeBufferSize = write
		}
		if read > 0 {
			o.readBufferSize = read
		}
	})
}
