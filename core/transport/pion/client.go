// Package pion implements the realtime transport over WebRTC: captured
// audio rides on a local media track, remote speech arrives on a remote
// track, and control messages flow over a single data channel. The SDP
// offer/answer exchange is a one-shot HTTP request authenticated with the
// short-lived credential; the HTTP channel is not used again afterwards.
package pion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lukavetter/aria-core/core/credentials"
	"github.com/lukavetter/aria-core/core/transport"
)

const (
	defaultBaseURL       = "https://api.openai.com/v1/realtime"
	controlChannelLabel  = "oai-events"
	captureFrameDuration = 20 * time.Millisecond
)

type Transport struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	peer   *webrtc.PeerConnection
	ch     *webrtc.DataChannel
	track  *webrtc.TrackLocalStaticSample
	closed bool
}

type Option func(*Transport)

// WithBaseURL overrides the realtime endpoint used for the SDP exchange.
func WithBaseURL(baseURL string) Option {
	return func(t *Transport) { t.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client used for the SDP exchange.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(t *Transport) { t.httpClient = httpClient }
}

func New(opts ...Option) *Transport {
	t := &Transport{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	if baseURL, ok := os.LookupEnv("ARIA_REALTIME_URL"); ok {
		t.baseURL = baseURL
	}

	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Connect(ctx context.Context, credential credentials.Credential, callbacks transport.Callbacks) error {
	ctx, span := tracer.Start(ctx, "connect realtime transport")
	defer span.End()

	callbacks = callbacks.Normalize()

	peer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return t.fail(span, fmt.Errorf("failed to create peer connection: %w", err))
	}
	t.mu.Lock()
	t.peer = peer
	t.mu.Unlock()

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "microphone",
	)
	if err != nil {
		return t.fail(span, fmt.Errorf("failed to create capture track: %w", err))
	}
	if _, err := peer.AddTrack(track); err != nil {
		return t.fail(span, fmt.Errorf("failed to attach capture track: %w", err))
	}
	t.mu.Lock()
	t.track = track
	t.mu.Unlock()

	peer.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		for {
			packet, _, err := remote.ReadRTP()
			if err != nil {
				return
			}
			callbacks.OnRemoteAudio(packet.Payload)
		}
	})

	var closeOnce sync.Once
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed:
			closeOnce.Do(func() { callbacks.OnClose(fmt.Errorf("peer connection failed")) })
		case webrtc.PeerConnectionStateClosed:
			closeOnce.Do(func() { callbacks.OnClose(nil) })
		}
	})

	ch, err := peer.CreateDataChannel(controlChannelLabel, nil)
	if err != nil {
		return t.fail(span, fmt.Errorf("failed to create control channel: %w", err))
	}
	ch.OnOpen(callbacks.OnOpen)
	ch.OnMessage(func(msg webrtc.DataChannelMessage) { callbacks.OnMessage(msg.Data) })
	t.mu.Lock()
	t.ch = ch
	t.mu.Unlock()

	offer, err := peer.CreateOffer(nil)
	if err != nil {
		return t.fail(span, fmt.Errorf("failed to create offer: %w", err))
	}
	gatheringDone := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(offer); err != nil {
		return t.fail(span, fmt.Errorf("failed to apply local offer: %w", err))
	}
	select {
	case <-gatheringDone:
	case <-ctx.Done():
		return t.fail(span, fmt.Errorf("candidate gathering interrupted: %w", ctx.Err()))
	}

	answer, err := t.exchangeOffer(ctx, credential, peer.LocalDescription().SDP)
	if err != nil {
		return t.fail(span, err)
	}

	if err := peer.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return t.fail(span, fmt.Errorf("failed to apply remote answer: %w", err))
	}

	return nil
}

// exchangeOffer posts the local SDP to the realtime endpoint and returns
// the remote answer SDP.
func (t *Transport) exchangeOffer(ctx context.Context, credential credentials.Credential, offerSDP string) (string, error) {
	ctx, span := tracer.Start(ctx, "exchange session description")
	defer span.End()

	url := t.baseURL
	if credential.Model != "" {
		url += "?model=" + credential.Model
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(offerSDP))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("error creating handshake request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	req.Header.Set("Authorization", "Bearer "+credential.Token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("error sending handshake request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return "", err
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("error reading remote answer: %w", err)
	}
	return string(answer), nil
}

func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	ch := t.ch
	t.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("control channel not established")
	}
	return ch.SendText(string(data))
}

func (t *Transport) WriteAudio(frame []byte) error {
	t.mu.Lock()
	track := t.track
	t.mu.Unlock()

	if track == nil {
		return fmt.Errorf("capture track not established")
	}
	return track.WriteSample(media.Sample{Data: frame, Duration: captureFrameDuration})
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.ch != nil {
		if err := t.ch.Close(); err != nil {
			logger.Warn("failed to close control channel", "error", err)
		}
		t.ch = nil
	}
	if t.peer != nil {
		if err := t.peer.Close(); err != nil {
			t.peer = nil
			return fmt.Errorf("failed to close peer connection: %w", err)
		}
		t.peer = nil
	}
	t.track = nil
	return nil
}

func (t *Transport) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	_ = t.Close()
	return err
}
