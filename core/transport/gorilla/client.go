// Package gorilla implements the realtime transport over a single
// WebSocket: control messages and audio are multiplexed on one socket,
// with captured audio sent as base64 input_audio_buffer.append frames and
// remote speech arriving as response.audio.delta frames.
package gorilla

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lukavetter/aria-core/core/credentials"
	"github.com/lukavetter/aria-core/core/transport"
)

const defaultBaseURL = "wss://api.openai.com/v1/realtime"

// audioDeltaType is intercepted by the transport and routed to the
// playback path instead of the control path.
const audioDeltaType = "response.audio.delta"

type Transport struct {
	baseURL string

	connMu sync.Mutex
	conn   *websocket.Conn
	closed bool
}

type Option func(*Transport)

// WithBaseURL overrides the realtime websocket endpoint.
func WithBaseURL(baseURL string) Option {
	return func(t *Transport) { t.baseURL = baseURL }
}

func New(opts ...Option) *Transport {
	t := &Transport{baseURL: defaultBaseURL}
	if baseURL, ok := os.LookupEnv("ARIA_REALTIME_WS_URL"); ok {
		t.baseURL = baseURL
	}

	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Connect(ctx context.Context, credential credentials.Credential, callbacks transport.Callbacks) error {
	callbacks = callbacks.Normalize()

	endpoint, err := url.Parse(t.baseURL)
	if err != nil {
		return fmt.Errorf("invalid realtime endpoint: %w", err)
	}
	if credential.Model != "" {
		queryParams := endpoint.Query()
		queryParams.Set("model", credential.Model)
		endpoint.RawQuery = queryParams.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(),
		http.Header{"Authorization": {"Bearer " + credential.Token}})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to realtime endpoint: %w", err)
	}

	t.connMu.Lock()
	t.conn = conn
	t.closed = false
	t.connMu.Unlock()

	// Dial success doubles as channel-open: there is no separate control
	// channel to wait for on a websocket.
	callbacks.OnOpen()
	go t.readAndProcessMessages(conn, callbacks)

	return nil
}

func (t *Transport) readAndProcessMessages(conn *websocket.Conn, callbacks transport.Callbacks) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.connMu.Lock()
			closed := t.closed
			t.connMu.Unlock()
			if closed {
				callbacks.OnClose(nil)
			} else {
				callbacks.OnClose(fmt.Errorf("socket read failed: %w", err))
			}
			return
		}

		var header struct {
			Type  string `json:"type"`
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(data, &header); err == nil && header.Type == audioDeltaType {
			if frame, err := base64.StdEncoding.DecodeString(header.Delta); err == nil {
				callbacks.OnRemoteAudio(frame)
			}
			continue
		}

		callbacks.OnMessage(data)
	}
}

func (t *Transport) Send(data []byte) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return fmt.Errorf("socket not connected")
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *Transport) WriteAudio(frame []byte) error {
	data, err := json.Marshal(struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(frame),
	})
	if err != nil {
		return fmt.Errorf("failed to encode audio frame: %w", err)
	}
	return t.Send(data)
}

func (t *Transport) Close() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil || t.closed {
		return nil
	}
	t.closed = true

	conn := t.conn
	t.conn = nil
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close socket: %w", err)
	}
	return nil
}
