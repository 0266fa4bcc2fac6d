// Package apiclient is the HTTP client for the practice API. Every call goes
// through Client.Request, which builds the URL, merges headers, maps failed
// responses to *APIError and decodes JSON results.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const headerContentType = "Content-Type"

// APIError is a well-formed response with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Body)
}

// BearerAuth returns the Authorization header value for token.
func BearerAuth(token string) string {
	return "Bearer " + token
}

// Options describes a single call.
type Options struct {
	Method  string // defaults to GET
	Headers map[string]string
	Query   url.Values
	// Body is sent as-is when it is []byte or io.Reader, otherwise it is
	// encoded as JSON.
	Body interface{}
}

// WithBearer returns a copy of o with the Authorization header set.
func (o Options) WithBearer(token string) Options {
	headers := make(map[string]string, len(o.Headers)+1)
	for k, v := range o.Headers {
		headers[k] = v
	}
	headers["Authorization"] = BearerAuth(token)
	o.Headers = headers
	return o
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends token as a bearer credential on every call that does not
// set its own Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Request performs one call to endpoint and decodes a successful JSON body
// into out, which may be nil. Failed responses come back as *APIError.
// Transport and decode errors are logged once and returned unchanged. There
// is no retry.
func (c *Client) Request(ctx context.Context, endpoint string, opts Options, out interface{}) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + endpoint
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	body, err := encodeBody(opts.Body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set(headerContentType, "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", BearerAuth(c.token))
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logFailure(err, method, endpoint, "request failed")
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logFailure(err, method, endpoint, "reading response failed")
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	// 204 has no body by definition; any other success must carry JSON.
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logFailure(err, method, endpoint, "decoding response failed")
		return err
	}
	return nil
}

func (c *Client) logFailure(err error, method, endpoint, msg string) {
	c.logger.Error().Err(err).
		Str("method", method).
		Str("endpoint", endpoint).
		Msg(msg)
}

func encodeBody(body interface{}) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case io.Reader:
		return b, nil
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(buf), nil
	}
}
