package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"

	httpClient "github.com/tupyy/ztp-bootstrap/internal/client/http"
)

type ErrorKind int

const (
	UnknownKind ErrorKind = iota
	MalformedAddress
	MissingToken
	NetworkUnreachable
	RedirectLoop
	TokenRejected
	Timeout
	UnknownCluster
	BadResponse
)

var (
	ErrMalformedAddress   = errors.New("malformed address")
	ErrMissingToken       = errors.New("missing enrollment token")
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrRedirectLoop       = errors.New("redirect loop")
	ErrTokenRejected      = errors.New("token rejected")
	ErrTimeout            = errors.New("timeout")
	ErrUnknownCluster     = errors.New("unknown cluster")
	ErrBadResponse        = errors.New("bad response")
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedAddress:
		return "MalformedAddress"
	case MissingToken:
		return "MissingToken"
	case NetworkUnreachable:
		return "NetworkUnreachable"
	case RedirectLoop:
		return "RedirectLoop"
	case TokenRejected:
		return "TokenRejected"
	case Timeout:
		return "Timeout"
	case UnknownCluster:
		return "UnknownCluster"
	case BadResponse:
		return "BadResponse"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case MalformedAddress:
		return ErrMalformedAddress
	case MissingToken:
		return ErrMissingToken
	case NetworkUnreachable:
		return ErrNetworkUnreachable
	case RedirectLoop:
		return ErrRedirectLoop
	case TokenRejected:
		return ErrTokenRejected
	case Timeout:
		return ErrTimeout
	case UnknownCluster:
		return ErrUnknownCluster
	case BadResponse:
		return ErrBadResponse
	default:
		return nil
	}
}

// Error is returned by Resolve. errors.Is matches it against the sentinel error of its kind.
type Error struct {
	Kind ErrorKind
	// Host is the host being queried when the error occurred.
	Host string
	Err  error
}

func (e *Error) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: host '%s': %s", e.Kind, e.Host, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// KindOf returns the kind of a resolution error.
func KindOf(err error) ErrorKind {
	var rErr *Error
	if errors.As(err, &rErr) {
		return rErr.Kind
	}
	return UnknownKind
}

// classify maps an error returned by the http client to its kind.
func classify(err error) ErrorKind {
	if httpClient.IsUnauthorized(err) {
		return TokenRejected
	}

	var statusErr *httpClient.StatusError
	if errors.As(err, &statusErr) || errors.Is(err, httpClient.ErrInvalidResponse) {
		return BadResponse
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	return NetworkUnreachable
}
