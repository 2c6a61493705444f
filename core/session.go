// Package session manages one realtime voice-agent session end to end:
// it establishes the duplex audio+control connection, interprets the
// inbound event stream, executes tool calls on the remote agent's behalf
// and reconciles their results against mid-flight interruptions.
package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lukavetter/aria-core/core/audio"
	"github.com/lukavetter/aria-core/core/credentials"
	"github.com/lukavetter/aria-core/core/protocol"
	"github.com/lukavetter/aria-core/core/transport"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateErrored    State = "error"
)

type SpeakingState string

const (
	SpeakingStateIdle      SpeakingState = "idle"
	SpeakingStateListening SpeakingState = "listening"
	SpeakingStateSpeaking  SpeakingState = "speaking"
)

// CredentialSource provides the short-lived connection credential.
type CredentialSource interface {
	Fetch(ctx context.Context) (*credentials.Credential, error)
}

// Manager owns at most one session at a time. Its configuration is set
// once via New options; per-session state is created on Start and torn
// down on Stop or fatal error, leaving it ready for the next Start.
type Manager struct {
	credentials  CredentialSource
	newTransport func() transport.Transport
	capture      audio.CaptureClient
	sink         audio.PlaybackSink
	execute      ExecuteFunc
	greeting     string

	mu       sync.Mutex
	state    State
	speaking SpeakingState

	startOptions StartOptions
	resources    *resourceSet
	coordinator  *toolCoordinator
	transcript   *transcriptLog
	activity     *activityMonitor
	baseContext  context.Context
}

func New(opts ...Option) *Manager {
	m := &Manager{
		credentials: credentials.NewClient(),
		state:       StateIdle,
		speaking:    SpeakingStateIdle,
		greeting:    "Hello! How can I help you today?",
		resources:   newResourceSet(),
		coordinator: newToolCoordinator(func([]byte) error { return nil }, nil),
		transcript:  newTranscriptLog(),
		baseContext: context.Background(),
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start establishes a new session. It fails fast with ErrSessionActive
// while a session is starting or active; the guard is taken before any
// asynchronous step so concurrent Start calls cannot both proceed. Any
// failure along the way tears every acquired resource back down and
// leaves the session in the error state.
func (m *Manager) Start(ctx context.Context, opts ...StartOption) error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateActive {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.state = StateConnecting
	m.speaking = SpeakingStateIdle

	m.startOptions = StartOptions{}
	for _, opt := range opts {
		opt(&m.startOptions)
	}

	m.resources = newResourceSet()
	m.transcript = newTranscriptLog()
	m.activity = newActivityMonitor(activitySampleInterval, m.startOptions.onActivity)
	m.coordinator = newToolCoordinator(m.sendControl, m.execute)
	m.baseContext = ctx
	m.mu.Unlock()

	ctx, span := tracer.Start(ctx, "start session")
	defer span.End()

	if err := m.connect(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		m.teardown()
		m.mu.Lock()
		m.state = StateErrored
		m.mu.Unlock()
		return err
	}

	return nil
}

// Stop tears the session down idempotently from any state and returns
// the ordered transcript accumulated since Start. Safe to call
// concurrently with in-flight tool executions; their late results are
// discarded by the coordinator.
func (m *Manager) Stop() []TranscriptEntry {
	_, span := tracer.Start(m.currentContext(), "stop session")
	defer span.End()

	m.teardown()

	m.mu.Lock()
	m.state = StateIdle
	m.speaking = SpeakingStateIdle
	transcript := m.transcript
	m.mu.Unlock()

	entries := transcript.Drain()
	span.SetAttributes(attribute.Int("transcript.entries", len(entries)))
	return entries
}

// SendText submits a user text message. Valid only while active.
func (m *Manager) SendText(text string) error {
	m.mu.Lock()
	state := m.state
	coordinator := m.coordinator
	m.mu.Unlock()

	if state != StateActive {
		return ErrNotActive
	}

	data, err := protocol.NewUserMessageItem(text)
	if err != nil {
		return err
	}
	if err := m.sendControl(data); err != nil {
		return err
	}

	// Same policy as tool outputs: only ask for a response when none is
	// open right now.
	if coordinator.openResponses() == 0 {
		if data, err := protocol.NewResponseCreate(); err == nil {
			return m.sendControl(data)
		}
	}
	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Speaking() SpeakingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// Transcript returns a point-in-time copy of the transcript so far.
func (m *Manager) Transcript() []TranscriptEntry {
	m.mu.Lock()
	transcript := m.transcript
	m.mu.Unlock()
	return transcript.Snapshot()
}

func (m *Manager) sendControl(data []byte) error {
	tr := m.resources.Transport()
	if tr == nil {
		return ErrNotActive
	}
	return tr.Send(data)
}

// teardown releases every resource class exactly once and invalidates
// coordinator state. Shared by Stop and the fatal-error path.
func (m *Manager) teardown() {
	m.mu.Lock()
	resources := m.resources
	coordinator := m.coordinator
	m.mu.Unlock()

	coordinator.reset()
	resources.Release()
}

// fatal transitions the session to the error state, tears everything
// down and surfaces the error to the caller's error callback.
func (m *Manager) fatal(err error) {
	m.mu.Lock()
	if m.state == StateErrored {
		m.mu.Unlock()
		return
	}
	m.state = StateErrored
	m.speaking = SpeakingStateIdle
	onError := m.startOptions.onError
	m.mu.Unlock()

	logger.Error("session failed", "error", err)
	m.teardown()

	if onError != nil {
		onError(err)
	}
}

func (m *Manager) setSpeaking(speaking SpeakingState) {
	m.mu.Lock()
	changed := m.speaking != speaking
	m.speaking = speaking
	onSpeakingState := m.startOptions.onSpeakingState
	m.mu.Unlock()

	if changed && onSpeakingState != nil {
		onSpeakingState(speaking)
	}
}

func (m *Manager) currentContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.baseContext != nil {
		return m.baseContext
	}
	return context.Background()
}
