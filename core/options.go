package session

import (
	"github.com/lukavetter/aria-core/core/audio"
	"github.com/lukavetter/aria-core/core/tools"
	"github.com/lukavetter/aria-core/core/transport"
)

type Option func(*Manager)

// WithCredentialSource overrides where the short-lived connection
// credential comes from.
func WithCredentialSource(source CredentialSource) Option {
	return func(m *Manager) { m.credentials = source }
}

// WithTransport sets the factory used to build one transport per session
// attempt. Defaults to the WebRTC transport.
func WithTransport(newTransport func() transport.Transport) Option {
	return func(m *Manager) { m.newTransport = newTransport }
}

// WithCaptureClient overrides the microphone capture backend. Defaults
// to the miniaudio backend, acquired lazily on Start.
func WithCaptureClient(client audio.CaptureClient) Option {
	return func(m *Manager) { m.capture = client }
}

// WithPlaybackSink overrides where remote speech is played out.
func WithPlaybackSink(sink audio.PlaybackSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithToolExecutor sets the function that runs tool calls requested by
// the remote agent.
func WithToolExecutor(execute ExecuteFunc) Option {
	return func(m *Manager) { m.execute = execute }
}

// WithToolRegistry is WithToolExecutor for a tools.Registry.
func WithToolRegistry(registry *tools.Registry) Option {
	return func(m *Manager) { m.execute = registry.Execute }
}

// WithGreeting overrides the greeting sent once the remote session is
// ready.
func WithGreeting(greeting string) Option {
	return func(m *Manager) { m.greeting = greeting }
}

// StartOptions carry the caller-side feedback hooks for one session.
type StartOptions struct {
	onTranscriptEntry func(entry TranscriptEntry)
	onPartialResponse func(text string)
	onSpeakingState   func(speaking SpeakingState)
	onActivity        func(level float64)
	onToolCall        func(name, arguments string)
	onError           func(err error)
}

type StartOption func(*StartOptions)

// WithTranscriptCallback fires for every finalized transcript entry, in
// arrival order.
func WithTranscriptCallback(callback func(entry TranscriptEntry)) StartOption {
	return func(o *StartOptions) { o.onTranscriptEntry = callback }
}

// WithPartialResponseCallback fires for each streamed piece of assistant
// transcript.
func WithPartialResponseCallback(callback func(text string)) StartOption {
	return func(o *StartOptions) { o.onPartialResponse = callback }
}

// WithSpeakingStateCallback fires when the speaking state changes.
func WithSpeakingStateCallback(callback func(speaking SpeakingState)) StartOption {
	return func(o *StartOptions) { o.onSpeakingState = callback }
}

// WithActivityCallback fires roughly every 100ms with the normalized
// input level while capture is running.
func WithActivityCallback(callback func(level float64)) StartOption {
	return func(o *StartOptions) { o.onActivity = callback }
}

// WithToolCallCallback fires when the remote agent requests a tool call,
// before the executor runs.
func WithToolCallCallback(callback func(name, arguments string)) StartOption {
	return func(o *StartOptions) { o.onToolCall = callback }
}

// WithErrorCallback fires once if the session dies on an unrecoverable
// error after Start returned.
func WithErrorCallback(callback func(err error)) StartOption {
	return func(o *StartOptions) { o.onError = callback }
}
