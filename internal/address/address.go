// Package address parses the cluster address given by the user or returned by the
// redirector and derives the URLs the bootstrap needs from it.
package address

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-openapi/strfmt"
)

const (
	// CloudDomain is the domain of the cloud service. Any other address is on-prem.
	CloudDomain = "arista.io"

	// RedirectorPath is the path of the assignment service on every cloud cluster.
	RedirectorPath = "/api/v3/services/arista.redirector.v1.AssignmentService/GetOne"

	BootstrapPath = "/ztp/bootstrap"

	SecureHTTPSPort = "443"

	cloudPrefix     = "www."
	apiServerPrefix = "apiserver."
)

var (
	ErrMalformedAddress = errors.New("malformed address")
)

// Address is a validated cluster address.
type Address struct {
	host   string
	port   string
	path   string
	scheme string
	cloud  bool
}

// Parse validates raw and returns its Address.
// raw may carry a scheme, a port and a path. A cloud address must start with "www."; an
// "apiserver." prefix is accepted and replaced by "www.".
func Parse(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{}, fmt.Errorf("%w: address is empty", ErrMalformedAddress)
	}

	// url.Parse finds the host only if the address is introduced by //
	if !strings.HasPrefix(raw, "//") && !strings.Contains(raw, "://") {
		raw = "//" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %s", ErrMalformedAddress, err)
	}

	switch u.Scheme {
	case "", "http", "https":
	default:
		return Address{}, fmt.Errorf("%w: unsupported scheme '%s'", ErrMalformedAddress, u.Scheme)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return Address{}, fmt.Errorf("%w: '%s' has no host", ErrMalformedAddress, raw)
	}

	if net.ParseIP(host) == nil && !strfmt.IsHostname(host) {
		return Address{}, fmt.Errorf("%w: '%s' is not a valid hostname", ErrMalformedAddress, host)
	}

	a := Address{
		host:   host,
		port:   u.Port(),
		path:   u.Path,
		scheme: u.Scheme,
		cloud:  IsCloud(host),
	}

	if a.cloud {
		switch {
		case strings.HasPrefix(host, cloudPrefix):
		case strings.HasPrefix(host, apiServerPrefix):
			a.host = cloudPrefix + strings.TrimPrefix(host, apiServerPrefix)
		default:
			return Address{}, fmt.Errorf("%w: cloud address '%s' must start with '%s'", ErrMalformedAddress, host, cloudPrefix)
		}
	}

	if a.path == "/" {
		a.path = ""
	}

	if a.scheme == "" {
		a.scheme = "http"
		if a.cloud {
			a.scheme = "https"
		}
	}

	return a, nil
}

// IsCloud returns true if host belongs to the cloud service domain.
func IsCloud(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host == CloudDomain || strings.HasSuffix(host, "."+CloudDomain)
}

// Host returns the hostname without port.
func (a Address) Host() string {
	return a.host
}

func (a Address) IsCloud() bool {
	return a.cloud
}

func (a Address) String() string {
	return a.hostPort()
}

// Root returns the address without its path. Addresses named by a redirector point at
// an endpoint of the cluster, not at the cluster itself.
func (a Address) Root() Address {
	a.path = ""
	return a
}

// BootstrapURL returns the url of the bootstrap script. An explicit path given by the user is kept.
func (a Address) BootstrapURL() string {
	path := a.path
	if path == "" {
		path = BootstrapPath
	}

	u := url.URL{Scheme: a.scheme, Host: a.hostPort(), Path: path}
	return u.String()
}

// RedirectorURL returns the url of the assignment service. Only cloud clusters have one.
func (a Address) RedirectorURL() string {
	u := url.URL{Scheme: "https", Host: a.hostPort(), Path: RedirectorPath}
	return u.String()
}

// EnrollAddress returns the host:port the telemetry agent enrolls against.
// For cloud clusters the api server is reached on the secure https port.
func (a Address) EnrollAddress() string {
	if !a.cloud {
		return a.hostPort()
	}

	port := a.port
	if port == "" {
		port = SecureHTTPSPort
	}

	return net.JoinHostPort(apiServerPrefix+strings.TrimPrefix(a.host, cloudPrefix), port)
}

func (a Address) hostPort() string {
	if a.port == "" {
		if strings.Contains(a.host, ":") {
			return "[" + a.host + "]"
		}
		return a.host
	}

	return net.JoinHostPort(a.host, a.port)
}
