package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	redirectorTokenHeader = "redirector_token"

	defaultTimeout = 30 * time.Second

	// maxScriptSize bounds the size of the bootstrap script read in memory.
	maxScriptSize = 10 << 20
)

// transportWrapper is a wrapper for transport. It can be used as a middleware.
type transportWrapper func(http.RoundTripper) http.RoundTripper

// Assignment is the answer of the redirector.
type Assignment struct {
	// Host is the cluster the redirector assigned the device to.
	Host string

	// Location is set instead of Host when the server answered with an http redirect.
	Location string
}

type Client struct {
	timeout time.Duration

	proxy *url.URL

	tlsConfig *tls.Config

	transportWrappers []transportWrapper

	// transport is the transport which make the actual request
	transport http.RoundTripper
}

type Option func(c *Client) error

// WithTimeout bounds every request made by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive: %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithProxy sends every request through proxy. An empty proxy means the proxy is read
// from the environment.
func WithProxy(proxy string) Option {
	return func(c *Client) error {
		if proxy == "" {
			return nil
		}

		u, err := url.Parse(proxy)
		if err != nil {
			return fmt.Errorf("proxy address error: %s", err)
		}

		c.proxy = u
		return nil
	}
}

// WithTLSConfig sets the tls configuration, usually holding the client certificates.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(c *Client) error {
		c.tlsConfig = tlsConfig
		return nil
	}
}

// WithTransport replaces the transport making the actual request.
func WithTransport(t http.RoundTripper) Option {
	return func(c *Client) error {
		c.transport = t
		return nil
	}
}

func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	logWrapper := &logTransportWrapper{}
	c.transportWrappers = append(c.transportWrappers, logWrapper.Wrap)

	if c.transport == nil {
		c.transport = c.createTransport()
	}

	// call the wrappers backwards
	for i := len(c.transportWrappers) - 1; i >= 0; i-- {
		c.transport = c.transportWrappers[i](c.transport)
	}

	return c, nil
}

// GetAssignment asks the redirector reachable at redirectorURL which cluster the device belongs to.
func (c *Client) GetAssignment(ctx context.Context, redirectorURL, token, systemID string) (Assignment, error) {
	request, err := newRequestBuilder().
		Type(postRequestType).
		Action(assignmentActionType).
		Header("Content-Type", "application/json").
		Header(redirectorTokenHeader, token).
		Url(redirectorURL).
		Body(systemID).
		Build(ctx)

	if err != nil {
		return Assignment{}, fmt.Errorf("cannot create assignment request '%w'", err)
	}

	response, err := c.do(request)
	if err != nil {
		return Assignment{}, fmt.Errorf("cannot reach redirector '%w'", err)
	}
	defer response.Body.Close()

	switch {
	case isRedirect(response.StatusCode):
		location, err := response.Location()
		if err != nil {
			return Assignment{}, fmt.Errorf("%w: redirect without location '%s'", ErrInvalidResponse, err)
		}

		zap.S().Debugw("redirector answered with http redirect", "status", response.StatusCode, "location", location.String())

		return Assignment{Location: location.String()}, nil
	case response.StatusCode < 200 || response.StatusCode > 299:
		return Assignment{}, newStatusError(response)
	}

	host, err := extractData(response, firstAssignedHost)
	if err != nil {
		return Assignment{}, err
	}

	return Assignment{Host: host}, nil
}

// GetBootstrapScript downloads the bootstrap script. headers describe the device to the service.
func (c *Client) GetBootstrapScript(ctx context.Context, scriptURL string, headers map[string]string) ([]byte, error) {
	builder := newRequestBuilder().
		Type(getRequestType).
		Action(bootstrapScriptActionType).
		Url(scriptURL)

	for k, v := range headers {
		builder.Header(k, v)
	}

	request, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create bootstrap script request '%w'", err)
	}

	response, err := c.do(request)
	if err != nil {
		return nil, fmt.Errorf("cannot get bootstrap script '%w'", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, newStatusError(response)
	}

	script, err := io.ReadAll(io.LimitReader(response.Body, maxScriptSize))
	if err != nil {
		return nil, fmt.Errorf("cannot read bootstrap script '%w'", err)
	}

	if len(script) == 0 {
		return nil, fmt.Errorf("%w: bootstrap script is empty", ErrInvalidResponse)
	}

	return script, nil
}

func (c *Client) do(request *http.Request) (*http.Response, error) {
	client := &http.Client{
		Transport: c.transport,
		Timeout:   c.timeout,
		// redirects are hops counted by the caller
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return client.Do(request)
}

func (c *Client) createTransport() http.RoundTripper {
	proxy := http.ProxyFromEnvironment
	if c.proxy != nil {
		proxy = http.ProxyURL(c.proxy)
	}

	return &http.Transport{
		Proxy:                 proxy,
		TLSClientConfig:       c.tlsConfig,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: c.timeout,
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// IsUnauthorized returns true if err is a status error telling the credentials were refused.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Unauthorized()
	}
	return false
}
