package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudigrade/integrade/pkg/env"
	"github.com/cloudigrade/integrade/pkg/log"
)

const defaultTimeout = 30 * time.Second

// QueryStringer renders request parameters as a URL query string.
type QueryStringer interface {
	QueryString() string
}

// Auth decorates an outgoing request with credentials.
type Auth interface {
	Apply(req *http.Request)
}

// TokenAuth authenticates with a service issued token.
type TokenAuth string

func (t TokenAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Token "+string(t))
}

// BasicAuth authenticates with a username and password.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(b.Username, b.Password)
}

// Response is the raw outcome of a request. Non-2xx statuses are not errors:
// negative-path tests assert on them.
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("error decoding %s %s: %w", r.Method, r.URL, err)
	}
	return nil
}

// Errors decodes a 4xx validation body, e.g. {"account_arn": ["..."]}.
func (r *Response) Errors() (ValidationErrors, error) {
	errs := ValidationErrors{}
	if err := r.JSON(&errs); err != nil {
		return nil, err
	}
	return errs, nil
}

// StatusError is returned by the JSON helpers when the service answers with
// an unexpected status.
type StatusError struct {
	Response *Response
}

func (e *StatusError) Error() string {
	body := string(e.Response.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Response.Method, e.Response.URL, e.Response.StatusCode, body)
}

// API is a client for the Cloud Meter REST API.
type API struct {
	url    string
	urls   URLs
	client *http.Client
	// auth is used when a call passes a nil Auth; nil means anonymous.
	auth   Auth
	logger zerolog.Logger
}

// Option customizes an API.
type Option func(*API)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(api *API) {
		api.client = c
	}
}

// WithDefaultAuth sets the credentials used when a call passes none.
func WithDefaultAuth(auth Auth) Option {
	return func(api *API) {
		api.auth = auth
	}
}

// NewAPI builds an anonymous client for the configured service.
func NewAPI(cfg env.Config, opts ...Option) *API {
	api := &API{
		url:  strings.TrimRight(cfg.URL(), "/"),
		urls: NewURLs(cfg.APIVersion),
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.SSLVerify}, //nolint:gosec // test deployments use self-signed certs
			},
		},
		logger: log.With("api"),
	}
	for _, opt := range opts {
		opt(api)
	}
	return api
}

// NewSuperuserAPI builds a client that authenticates with the superuser token
// unless a call supplies other credentials.
func NewSuperuserAPI(cfg env.Config, opts ...Option) *API {
	return NewAPI(cfg, append([]Option{WithDefaultAuth(TokenAuth(cfg.SuperuserToken))}, opts...)...)
}

// URLs exposes the endpoint table of this client.
func (api *API) URLs() URLs {
	return api.urls
}

// HTTPClient is the client requests go through, shared with the UI pages.
func (api *API) HTTPClient() *http.Client {
	return api.client
}

// URL constructs a full URL from the API's base URL, the given relative URL,
// and optionally the included query string.
func (api *API) URL(relativeURL string, queryString string) string {
	url := fmt.Sprintf("%s/%s", api.url, strings.TrimLeft(relativeURL, "/"))

	if queryString != "" {
		url = fmt.Sprintf("%s?%s", url, strings.TrimLeft(queryString, "?"))
	}

	return url
}

// Do sends a request with an optional JSON payload and returns the raw
// response whatever its status.
func (api *API) Do(ctx context.Context, method, relativeURL string, queryStringer QueryStringer, payload interface{}, auth Auth) (*Response, error) {
	qs := ""
	if queryStringer != nil {
		qs = queryStringer.QueryString()
	}
	url := api.URL(relativeURL, qs)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error encoding %s %s payload: %w", method, url, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth == nil {
		auth = api.auth
	}
	if auth != nil {
		auth.Apply(req)
	}

	start := time.Now()
	httpResp, err := api.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting %s %s: %w", method, url, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading %s %s: %w", method, url, err)
	}

	api.logger.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request")

	return &Response{
		Method:     method,
		URL:        url,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

// GET submits a GET request to the given URL, with the query string from the
// given QueryStringer.
func (api *API) GET(ctx context.Context, relativeURL string, queryStringer QueryStringer, auth Auth) (*Response, error) {
	return api.Do(ctx, http.MethodGet, relativeURL, queryStringer, nil, auth)
}

// POST submits payload as JSON.
func (api *API) POST(ctx context.Context, relativeURL string, payload interface{}, auth Auth) (*Response, error) {
	return api.Do(ctx, http.MethodPost, relativeURL, nil, payload, auth)
}

// PUT submits payload as JSON.
func (api *API) PUT(ctx context.Context, relativeURL string, payload interface{}, auth Auth) (*Response, error) {
	return api.Do(ctx, http.MethodPut, relativeURL, nil, payload, auth)
}

// PATCH submits payload as JSON.
func (api *API) PATCH(ctx context.Context, relativeURL string, payload interface{}, auth Auth) (*Response, error) {
	return api.Do(ctx, http.MethodPatch, relativeURL, nil, payload, auth)
}

// DELETE submits a DELETE request to the given URL.
func (api *API) DELETE(ctx context.Context, relativeURL string, auth Auth) (*Response, error) {
	return api.Do(ctx, http.MethodDelete, relativeURL, nil, nil, auth)
}

// call is Do followed by a status check and, when out is non-nil, decoding.
func (api *API) call(ctx context.Context, method, relativeURL string, queryStringer QueryStringer, payload interface{}, auth Auth, out interface{}) (*Response, error) {
	resp, err := api.Do(ctx, method, relativeURL, queryStringer, payload, auth)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, &StatusError{Response: resp}
	}
	if out != nil && len(resp.Body) > 0 {
		if err := resp.JSON(out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}
