// Package transport abstracts the duplex audio+control connection to the
// realtime endpoint. Two implementations exist: WebRTC (transport/pion),
// which carries audio on media tracks and control messages on a data
// channel, and WebSocket (transport/gorilla), which multiplexes both over
// one socket.
package transport

import (
	"context"

	"github.com/lukavetter/aria-core/core/credentials"
)

// Callbacks are invoked by the transport as the connection progresses.
// OnMessage is called serially, one control frame at a time, in receive
// order.
type Callbacks struct {
	// OnOpen fires when the control channel is ready. This is the
	// authoritative connected signal; no remote event is required.
	OnOpen func()
	// OnMessage delivers one inbound control frame.
	OnMessage func(data []byte)
	// OnRemoteAudio delivers remote media destined for the playback sink.
	OnRemoteAudio func(frame []byte)
	// OnClose fires once when the connection ends; err is nil on a
	// locally-initiated close.
	OnClose func(err error)
}

func (c *Callbacks) defaults() *Callbacks {
	if c.OnOpen == nil {
		c.OnOpen = func() {}
	}
	if c.OnMessage == nil {
		c.OnMessage = func([]byte) {}
	}
	if c.OnRemoteAudio == nil {
		c.OnRemoteAudio = func([]byte) {}
	}
	if c.OnClose == nil {
		c.OnClose = func(error) {}
	}
	return c
}

// Normalize fills in no-op callbacks so implementations can invoke every
// hook unconditionally.
func (c Callbacks) Normalize() Callbacks {
	return *c.defaults()
}

// Transport is one connection attempt's worth of state. Connect performs
// the full handshake against the remote endpoint; Close is idempotent and
// releases both the control channel and the underlying connection.
type Transport interface {
	Connect(ctx context.Context, credential credentials.Credential, callbacks Callbacks) error
	// Send transmits one control frame. Safe for concurrent use.
	Send(data []byte) error
	// WriteAudio forwards one locally-captured audio frame.
	WriteAudio(frame []byte) error
	Close() error
}
