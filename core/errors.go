package session

import "errors"

var (
	// ErrSessionActive is returned by Start while a session is already
	// starting or active. The check happens before any asynchronous step,
	// so two concurrent Start calls can never both proceed.
	ErrSessionActive = errors.New("session already starting or active")

	// ErrNotActive is returned by SendText outside an active session.
	ErrNotActive = errors.New("session not active")

	// ErrCredential marks a failure to obtain the short-lived connection
	// credential.
	ErrCredential = errors.New("credential fetch failed")

	// ErrCaptureDenied marks a failure to acquire the microphone capture
	// stream.
	ErrCaptureDenied = errors.New("microphone capture unavailable")

	// ErrHandshake marks a failure while negotiating the transport or the
	// control channel.
	ErrHandshake = errors.New("transport handshake failed")

	// ErrProtocol marks a non-benign error reported by the remote side.
	ErrProtocol = errors.New("protocol error")
)
