// Copyright 2024 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scb

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"golang.org/x/time/rate"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// Transport executes HTTP requests and decodes their JSON responses into v.
// Failures below the application level are reported as *TransportError.
type Transport interface {
	GetJSON(ctx context.Context, uri string, v any) error
	PostJSON(ctx context.Context, uri string, body, v any) error
}

// HTTPTransport is the Transport talking to the real API. It is safe for
// concurrent use.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
}

var _ Transport = &HTTPTransport{}

// NewLimiter allows at most callsPer10s events in any 10 seconds window, spaced
// evenly. Zero means no limit.
func NewLimiter(callsPer10s int) *rate.Limiter {
	if callsPer10s <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(10*time.Second/time.Duration(callsPer10s)), 1)
}

// limitedRoundTripper waits for the limiter before every request, including
// the retries of the fetch library.
type limitedRoundTripper struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (l *limitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := l.limiter.Wait(req.Context()); err != nil {
		return nil, errors.Annotate(err, "rate limit")
	}
	return l.base.RoundTrip(req)
}

// NewHTTPTransport creates a transport making at most callsPer10s requests in
// any 10 seconds window, as required by the API. Zero means no limit. A nil
// client means http.DefaultClient.
func NewHTTPTransport(client *http.Client, callsPer10s int) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	limiter := NewLimiter(callsPer10s)
	c := *client
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.Transport = &limitedRoundTripper{base: base, limiter: limiter}
	return &HTTPTransport{client: &c, limiter: limiter}
}

// GetJSON fetches uri, retrying transient failures.
func (t *HTTPTransport) GetJSON(ctx context.Context, uri string, v any) error {
	logging.Debugf(ctx, "GET %s", uri)
	resp, err := fetch.GetRetry(fetch.UseClient(ctx, t.client), uri, nil, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		te := &TransportError{Method: http.MethodGet, URL: uri, Err: err}
		if resp != nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
			te.StatusCode = resp.StatusCode
		}
		return te
	}
	defer resp.Body.Close()
	return decodeResponse(resp, http.MethodGet, uri, v)
}

// PostJSON sends body encoded as JSON to uri. It is not retried.
func (t *HTTPTransport) PostJSON(ctx context.Context, uri string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Annotate(err, "failed to encode request body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(data))
	if err != nil {
		return errors.Annotate(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	logging.Debugf(ctx, "POST %s: %s", uri, string(data))
	resp, err := t.client.Do(req)
	if err != nil {
		return &TransportError{Method: http.MethodPost, URL: uri, Err: err}
	}
	defer resp.Body.Close()
	return decodeResponse(resp, http.MethodPost, uri, v)
}

// utf8BOM prefixes some of the API responses.
const utf8BOM = "\ufeff"

func decodeResponse(resp *http.Response, method, uri string, v any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{
			Method:     method,
			URL:        uri,
			StatusCode: resp.StatusCode,
			Err:        errors.Reason("%s", resp.Status),
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: method, URL: uri, Err: err}
	}
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Annotate(err, "failed to decode JSON response of %s %s", method, uri)
	}
	return nil
}

// Client for the API: the configuration and the transport shared by all the
// topics and queries created with it.
type Client struct {
	config    Config
	transport Transport
}

// NewClient creates a new client. A nil config means the default Config, and
// a nil transport means an HTTPTransport configured from the config.
func NewClient(config *Config, transport Transport) *Client {
	if config == nil {
		config = NewConfig()
	}
	if transport == nil {
		transport = NewHTTPTransport(nil, config.CallsPer10s)
	}
	return &Client{config: *config, transport: transport}
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config { return c.config }

// TopicURL is the URL for both the metadata and the queries of a topic.
func (c *Client) TopicURL(topicID string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + "/" + c.config.Lang +
		"/ssd/" + strings.TrimPrefix(topicID, "/")
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient injects the client into the context.
func UseClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

// clientOrDefault returns the client from the context, or a new default one.
func clientOrDefault(ctx context.Context) *Client {
	if c := GetClient(ctx); c != nil {
		return c
	}
	return NewClient(nil, nil)
}
