// Package transport builds and sends the outbound requests of every provider
// client. It attaches credentials per request, bounds how much of a response
// is read, and turns each failure into one of the provider error kinds.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"

	defaultMaxBodyBytes = 1 << 20
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives one notification per completed provider call.
type Observer interface {
	ObserveCall(provider, operation string, statusCode int, kind string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(string, string, int, string, time.Duration) {}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used to reach the provider.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBodyLimit adjusts how many bytes of a response body are accepted.
func WithBodyLimit(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// WithObserver registers a call observer, typically the metrics recorder.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock overrides the clock used to time calls.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client sends authenticated requests to one provider base URL. It holds no
// per-call state and is safe for concurrent use.
type Client struct {
	provider     string
	baseURL      string
	auth         Authenticator
	httpClient   HTTPClient
	maxBodyBytes int64
	observer     Observer
	logger       zerolog.Logger
	now          func() time.Time
}

// New constructs a Client for provider rooted at baseURL.
func New(provider, baseURL string, auth Authenticator, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(provider) == "" {
		return nil, errors.New("transport: provider name is required")
	}
	if _, err := url.Parse(baseURL); err != nil || strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("transport: %s: invalid base url %q", provider, baseURL)
	}
	if auth == nil {
		return nil, fmt.Errorf("transport: %s: %w", provider, providers.ErrMissingCredentials)
	}
	if err := auth.Validate(); err != nil {
		return nil, fmt.Errorf("transport: %s: %w", provider, err)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	c := &Client{
		provider:     provider,
		baseURL:      strings.TrimRight(baseURL, "/"),
		auth:         auth,
		httpClient:   http.DefaultClient,
		maxBodyBytes: defaultMaxBodyBytes,
		observer:     nopObserver{},
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Provider returns the provider name used in errors and metrics.
func (c *Client) Provider() string { return c.provider }

// URL joins the base URL with the path-escaped segments.
func (c *Client) URL(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// Request describes one outbound call.
type Request struct {
	Operation   string
	Method      string
	URL         string
	ContentType string
	Body        io.Reader
}

// Response is the raw provider reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Success reports a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Send performs req and reads the bounded response body. Only transport-level
// problems are reported as errors here; status handling is left to Decode.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, providers.Invalid(fmt.Errorf("%s %s: new request: %w", c.provider, req.Operation, err))
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	c.auth.Apply(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &providers.ProviderError{
			Kind:      providers.ErrProviderUnreachable,
			Provider:  c.provider,
			Operation: req.Operation,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if err != nil {
		kind := providers.ErrProviderUnreachable
		if errors.Is(err, errBodyTooLarge) {
			kind = providers.ErrResponseMalformed
		}
		return nil, &providers.ProviderError{
			Kind:       kind,
			Provider:   c.provider,
			Operation:  req.Operation,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Call sends req and decodes the reply into a Value.
func (c *Client) Call(ctx context.Context, req Request) (models.Value, int, error) {
	start := c.now()
	resp, err := c.Send(ctx, req)
	if err != nil {
		c.finish(req, 0, start, err)
		return nil, 0, err
	}
	value, err := c.Decode(req.Operation, resp)
	c.finish(req, resp.StatusCode, start, err)
	return value, resp.StatusCode, err
}

// Decode interprets a provider reply. Non-2xx replies become ErrProviderRejected
// carrying whatever body could be parsed; a 2xx body that is not JSON is
// ErrResponseMalformed; an empty 2xx body is an empty success.
func (c *Client) Decode(operation string, resp *Response) (models.Value, error) {
	value, parseErr := models.ParseValue(resp.Body)

	if !resp.Success() {
		pe := &providers.ProviderError{
			Kind:       providers.ErrProviderRejected,
			Provider:   c.provider,
			Operation:  operation,
			StatusCode: resp.StatusCode,
		}
		if parseErr == nil {
			pe.Body = value
			pe.Code, pe.Message = errorDetails(value)
		} else {
			pe.Message = strings.TrimSpace(string(resp.Body))
		}
		if pe.Message == "" {
			pe.Message = http.StatusText(resp.StatusCode)
		}
		return nil, pe
	}

	if parseErr != nil {
		return nil, &providers.ProviderError{
			Kind:       providers.ErrResponseMalformed,
			Provider:   c.provider,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Err:        parseErr,
		}
	}
	return value, nil
}

// PostForm sends fields form-encoded in their given order.
func (c *Client) PostForm(ctx context.Context, operation, endpoint string, fields models.Fields) (models.Value, int, error) {
	return c.Call(ctx, Request{
		Operation:   operation,
		Method:      http.MethodPost,
		URL:         endpoint,
		ContentType: contentTypeForm,
		Body:        strings.NewReader(fields.Encode()),
	})
}

// PostJSON sends payload JSON-encoded.
func (c *Client) PostJSON(ctx context.Context, operation, endpoint string, payload any) (models.Value, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, providers.Invalid(fmt.Errorf("%s %s: encode body: %w", c.provider, operation, err))
	}
	return c.Call(ctx, Request{
		Operation:   operation,
		Method:      http.MethodPost,
		URL:         endpoint,
		ContentType: contentTypeJSON,
		Body:        bytes.NewReader(body),
	})
}

// Get fetches endpoint.
func (c *Client) Get(ctx context.Context, operation, endpoint string) (models.Value, int, error) {
	return c.Call(ctx, Request{
		Operation: operation,
		Method:    http.MethodGet,
		URL:       endpoint,
	})
}

// Delete removes the resource at endpoint. The body is ignored. A 404 is
// treated as success so deleting an already deleted resource is idempotent.
func (c *Client) Delete(ctx context.Context, operation, endpoint string) error {
	req := Request{Operation: operation, Method: http.MethodDelete, URL: endpoint}
	start := c.now()
	resp, err := c.Send(ctx, req)
	if err != nil {
		c.finish(req, 0, start, err)
		return err
	}
	if resp.Success() || resp.StatusCode == http.StatusNotFound {
		if resp.StatusCode == http.StatusNotFound {
			c.logger.Debug().
				Str("provider", c.provider).
				Str("operation", operation).
				Msg("delete target already absent")
		}
		c.finish(req, resp.StatusCode, start, nil)
		return nil
	}
	_, err = c.Decode(operation, resp)
	c.finish(req, resp.StatusCode, start, err)
	return err
}

func (c *Client) finish(req Request, status int, start time.Time, err error) {
	elapsed := c.now().Sub(start)
	kind := providers.KindOf(err)
	c.observer.ObserveCall(c.provider, req.Operation, status, kind, elapsed)

	if err != nil {
		c.logger.Warn().
			Str("provider", c.provider).
			Str("operation", req.Operation).
			Str("method", req.Method).
			Int("status", status).
			Str("error_kind", kind).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("provider call failed")
		return
	}
	c.logger.Debug().
		Str("provider", c.provider).
		Str("operation", req.Operation).
		Str("method", req.Method).
		Int("status", status).
		Dur("elapsed", elapsed).
		Msg("provider call succeeded")
}

var errBodyTooLarge = errors.New("response body exceeds limit")

func (c *Client) readBody(rc io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(rc, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w of %d bytes", errBodyTooLarge, c.maxBodyBytes)
	}
	return data, nil
}

// errorDetails pulls the provider's own code and message out of an error body.
// Twilio replies {"code":20404,"message":"..."}; SendGrid replies
// {"errors":[{"message":"...","field":"..."}]}.
func errorDetails(v models.Value) (int, string) {
	if v.IsEmpty() {
		return 0, ""
	}
	code := int(v.Get("code").Int())
	message := v.Get("message").String()
	if message == "" {
		var parts []string
		for _, m := range v.Get("errors.#.message").Array() {
			if s := strings.TrimSpace(m.String()); s != "" {
				parts = append(parts, s)
			}
		}
		message = strings.Join(parts, "; ")
	}
	return code, message
}
