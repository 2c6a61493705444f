// Package credentials fetches the short-lived connection credential used
// to authenticate the realtime handshake. The token endpoint is a trusted
// caller-side service; this client never holds a long-lived API key.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// Credential is an opaque short-lived token together with the identifier
// of the model/service the session should be established against.
type Credential struct {
	Token     string    `json:"token"`
	Model     string    `json:"model"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

type Client struct {
	endpoint   string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithEndpoint overrides the token endpoint URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	if endpoint, ok := os.LookupEnv("ARIA_TOKEN_URL"); ok {
		client.endpoint = endpoint
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Fetch requests a fresh credential. Each session start fetches its own;
// tokens are too short-lived to be worth caching.
func (c *Client) Fetch(ctx context.Context) (*Credential, error) {
	ctx, span := tracer.Start(ctx, "fetch connection credential")
	defer span.End()

	if c.endpoint == "" {
		return nil, fmt.Errorf("token endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error creating token request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error requesting credential: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	var credential Credential
	if err := json.NewDecoder(resp.Body).Decode(&credential); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error decoding credential: %w", err)
	}
	if credential.Token == "" {
		return nil, fmt.Errorf("credential response missing token")
	}

	return &credential, nil
}

// Static wraps a pre-issued credential in the Fetch interface, for tests
// and for callers that mint tokens out of band.
func Static(credential Credential) *StaticSource {
	return &StaticSource{credential: credential}
}

type StaticSource struct {
	credential Credential
}

func (s *StaticSource) Fetch(context.Context) (*Credential, error) {
	credential := s.credential
	return &credential, nil
}
