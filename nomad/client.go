package nomad

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultAddress    = "http://127.0.0.1:4646"
	DefaultAPIVersion = "v1"
	DefaultTimeout    = 30 * time.Second

	tokenHeader = "X-Nomad-Token"
)

// Config holds everything needed to reach a Nomad agent.
type Config struct {
	Address    string
	APIVersion string
	Token      string
	Region     string
	Namespace  string

	Insecure bool   // skip TLS verification
	CACert   string // PEM encoded CA bundle

	Timeout time.Duration
	// Retries is the number of times a request is re-sent after a
	// connection-level failure. HTTP responses are never retried.
	Retries int

	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client sends requests to the Nomad HTTP API. It holds no per-call state
// and may be shared between goroutines.
type Client struct {
	baseURL    *url.URL
	version    string
	token      string
	region     string
	namespace  string
	httpClient *http.Client
	log        zerolog.Logger
}

// Response is the raw outcome of a single request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewClient creates a Client from cfg, filling in defaults.
func NewClient(cfg Config) (*Client, error) {
	addr := cfg.Address
	if addr == "" {
		addr = DefaultAddress
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(strings.TrimRight(addr, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing address %q: %w", cfg.Address, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("address %q has no host", cfg.Address)
	}

	version := strings.Trim(cfg.APIVersion, "/")
	if version == "" {
		version = DefaultAPIVersion
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "nomad-client").Logger()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient, err = newHTTPClient(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		baseURL:    u,
		version:    version,
		token:      cfg.Token,
		region:     cfg.Region,
		namespace:  cfg.Namespace,
		httpClient: httpClient,
		log:        logger,
	}, nil
}

func newHTTPClient(cfg Config, logger zerolog.Logger) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	} else if cfg.CACert != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(cfg.CACert)) {
			return nil, fmt.Errorf("no certificates found in CA bundle")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	traced := otelhttp.NewTransport(transport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "nomad " + r.Method + " " + r.URL.Path
		}),
	)

	if cfg.Retries <= 0 {
		return &http.Client{Transport: traced, Timeout: timeout}, nil
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: traced}
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = retryOnConnectionError
	rc.Logger = leveledLogger{log: logger}

	standard := rc.StandardClient()
	standard.Timeout = timeout
	return standard, nil
}

// retryOnConnectionError retries only when no response was received.
func retryOnConnectionError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Address returns the base address requests are sent to.
func (c *Client) Address() string { return c.baseURL.String() }

// Region returns the default region, if any.
func (c *Client) Region() string { return c.region }

// Namespace returns the default namespace, if any.
func (c *Client) Namespace() string { return c.namespace }

// URL builds the request URL for endpoint and segments without sending
// anything.
func (c *Client) URL(endpoint string, segments []string, params Params) (string, error) {
	u, _, err := c.buildURL(endpoint, segments, params)
	return u, err
}

func (c *Client) buildURL(endpoint string, segments []string, params Params) (string, string, error) {
	parts := []string{c.version}
	if endpoint != "" {
		parts = append(parts, endpoint)
	}
	for _, s := range segments {
		if s == "" {
			return "", "", invalidParams("empty path segment for %s", endpoint)
		}
		parts = append(parts, s)
	}

	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	path := "/" + strings.Join(parts, "/")

	query, err := c.query(params)
	if err != nil {
		return "", "", err
	}

	full := c.baseURL.String() + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full, path, nil
}

func (c *Client) query(params Params) (url.Values, error) {
	query, err := params.Encode()
	if err != nil {
		return nil, err
	}
	if c.region != "" && !params.has("region") {
		query.Set("region", c.region)
	}
	if c.namespace != "" && !params.has("namespace") {
		query.Set("namespace", c.namespace)
	}
	return query, nil
}

// Send issues exactly one request and returns the raw response. Only
// transport and validation failures are returned as errors; status codes
// are left for the caller to interpret.
func (c *Client) Send(ctx context.Context, method, endpoint string, segments []string, params Params, body any) (*Response, error) {
	target, path, err := c.buildURL(endpoint, segments, params)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Requester returns a handle on an arbitrary endpoint, for API surface that
// has no dedicated wrapper.
func (c *Client) Requester(endpoint string) Requester {
	return Requester{client: c, endpoint: endpoint}
}

// leveledLogger routes retryablehttp's messages to zerolog.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Error().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Info().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warn().Fields(kv).Msg(msg) }
