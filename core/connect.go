package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lukavetter/aria-core/core/audio/miniaudio"
	"github.com/lukavetter/aria-core/core/transport"
	"github.com/lukavetter/aria-core/core/transport/pion"
)

// connect walks the establisher steps in order: credential, capture,
// activity sampling, then the transport handshake (peer connection,
// track attach, control channel, offer/answer). Each step registers what
// it acquires with the resource set so a failure at any later step
// releases everything already taken.
func (m *Manager) connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "establish connection")
	defer span.End()

	credential, err := m.credentials.Fetch(ctx)
	if err != nil {
		return m.recordConnectError(span, fmt.Errorf("%w: %w", ErrCredential, err))
	}
	span.SetAttributes(attribute.String("session.model", credential.Model))

	err = m.acquireCapture(ctx)
	if err != nil {
		return m.recordConnectError(span, fmt.Errorf("%w: %w", ErrCaptureDenied, err))
	}
	m.activity.Start()
	m.resources.SetActivity(m.activity)

	newTransport := m.newTransport
	if newTransport == nil {
		newTransport = func() transport.Transport { return pion.New() }
	}
	tr := newTransport()

	if err := tr.Connect(ctx, *credential, transport.Callbacks{
		OnOpen:        m.handleChannelOpen,
		OnMessage:     m.handleMessage,
		OnRemoteAudio: m.handleRemoteAudio,
		OnClose:       m.handleTransportClose,
	}); err != nil {
		_ = tr.Close()
		return m.recordConnectError(span, fmt.Errorf("%w: %w", ErrHandshake, err))
	}
	m.resources.SetTransport(tr)

	return nil
}

// acquireCapture starts the microphone stream and fans its frames out to
// the activity monitor and the transport. Frames captured before the
// transport exists feed the activity monitor alone.
func (m *Manager) acquireCapture(ctx context.Context) error {
	capture := m.capture
	ownsCapture := false
	if capture == nil {
		client, err := miniaudio.NewClient()
		if err != nil {
			return err
		}
		capture = client
		ownsCapture = true
		m.resources.SetCaptureCloser(client.Close)

		if m.sink == nil {
			sink, err := client.Sink()
			if err != nil {
				client.Close()
				return err
			}
			m.resources.SetSink(sink)
		}
	}
	if m.sink != nil {
		m.resources.SetSink(m.sink)
	}

	if err := capture.StartCapture(ctx, func(frame []byte) {
		m.activity.Push(frame)
		if tr := m.resources.Transport(); tr != nil {
			if err := tr.WriteAudio(frame); err != nil {
				logger.Debug("failed to forward capture frame", "error", err)
			}
		}
	}); err != nil {
		if ownsCapture {
			if client, ok := capture.(*miniaudio.Client); ok {
				client.Close()
			}
		}
		return err
	}

	m.resources.SetCapture(capture)
	return nil
}

func (m *Manager) recordConnectError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// handleChannelOpen is the authoritative connected signal; no explicit
// event from the remote side is awaited.
func (m *Manager) handleChannelOpen() {
	m.mu.Lock()
	m.state = StateActive
	m.mu.Unlock()

	m.setSpeaking(SpeakingStateListening)
	logger.Info("control channel open, session active")
}

func (m *Manager) handleRemoteAudio(frame []byte) {
	sink := m.resources.Sink()
	if sink == nil {
		return
	}
	if err := sink.Write(frame); err != nil {
		logger.Debug("failed to write remote audio to sink", "error", err)
	}
}

func (m *Manager) handleTransportClose(err error) {
	if err == nil {
		return
	}

	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	if state != StateActive && state != StateConnecting {
		return
	}

	m.fatal(fmt.Errorf("%w: %w", ErrHandshake, err))
}
