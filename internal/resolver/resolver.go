// Package resolver finds the regional cluster a device must enroll against.
//
// The device starts from an entry address, usually the generic one. The redirector of
// that cluster tells which cluster holds the device's tenant; when it names another
// cluster the request is repeated there, until a cluster assigns the device to itself.
// The number of redirects followed is bounded.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tupyy/ztp-bootstrap/internal/address"
	httpClient "github.com/tupyy/ztp-bootstrap/internal/client/http"
	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"github.com/tupyy/ztp-bootstrap/internal/region"
	"github.com/tupyy/ztp-bootstrap/internal/token"
	"go.uber.org/zap"
)

const (
	DefaultMaxHops = 3
	DefaultTimeout = 30 * time.Second

	onPremName = "on-prem"
)

//go:generate mockgen -package=resolver -destination=mock_client.go --build_flags=--mod=mod . Client
type Client interface {
	// GetAssignment asks the redirector which cluster the device is assigned to.
	GetAssignment(ctx context.Context, redirectorURL, token, systemID string) (httpClient.Assignment, error)
}

type Resolver struct {
	client  Client
	maxHops int
	timeout time.Duration
}

type Option func(r *Resolver)

// WithMaxHops sets how many redirects are followed before giving up.
func WithMaxHops(hops int) Option {
	return func(r *Resolver) {
		if hops >= 0 {
			r.maxHops = hops
		}
	}
}

// WithTimeout bounds each request to the redirector.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func New(client Client, opts ...Option) *Resolver {
	r := &Resolver{
		client:  client,
		maxHops: DefaultMaxHops,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve returns the cluster the device must enroll against.
// The address and the token are checked before any network call. On error, the result
// is returned too, holding the hosts visited so far and the error kind.
func (r *Resolver) Resolve(ctx context.Context, req entity.EnrollmentRequest) (entity.EnrollmentResult, error) {
	result := entity.EnrollmentResult{}

	entry, vErr := validate(req)
	if vErr != nil {
		return fail(result, vErr)
	}

	result.Path = []string{entry.Host()}

	if !entry.IsCloud() {
		zap.S().Infow("on-prem cluster, no redirection", "address", entry.String())

		result.Success = true
		result.Endpoint = entity.RegionEndpoint{Name: onPremName, Host: entry.Host()}
		result.EnrollAddress = entry.EnrollAddress()
		result.BootstrapURL = entry.BootstrapURL()

		return result, nil
	}

	current := entry
	visited := map[string]struct{}{}

	for {
		visited[current.Host()] = struct{}{}

		next, err := r.assignment(ctx, current, req)
		if err != nil {
			return fail(result, err)
		}

		if next.Host() == current.Host() {
			break
		}

		result.Hops++
		result.Path = append(result.Path, next.Host())

		if _, ok := visited[next.Host()]; ok {
			return fail(result, &Error{
				Kind: RedirectLoop,
				Host: current.Host(),
				Err:  fmt.Errorf("redirected back to '%s'", next.Host()),
			})
		}

		if result.Hops > r.maxHops {
			return fail(result, &Error{
				Kind: RedirectLoop,
				Host: current.Host(),
				Err:  fmt.Errorf("more than %d redirects", r.maxHops),
			})
		}

		// the token is only sent to known clusters
		if _, ok := region.Lookup(next.Host()); !ok {
			return fail(result, &Error{
				Kind: UnknownCluster,
				Host: current.Host(),
				Err:  fmt.Errorf("redirected to '%s' which is not a known regional cluster", next.Host()),
			})
		}

		zap.S().Infow("redirected to regional cluster", "from", current.Host(), "to", next.Host(), "hop", result.Hops)

		current = next
	}

	endpoint, ok := region.Lookup(current.Host())
	if !ok {
		return fail(result, &Error{
			Kind: UnknownCluster,
			Host: current.Host(),
			Err:  errors.New("not a known regional cluster"),
		})
	}

	result.Success = true
	result.Endpoint = endpoint
	result.EnrollAddress = current.EnrollAddress()
	result.BootstrapURL = current.BootstrapURL()

	zap.S().Infow("cluster resolved", "region", endpoint.Name, "host", endpoint.Host, "enroll_address", result.EnrollAddress, "hops", result.Hops)

	return result, nil
}

// Validate checks the entry address and the token of req without any network call.
func Validate(req entity.EnrollmentRequest) error {
	if _, err := validate(req); err != nil {
		return err
	}
	return nil
}

func validate(req entity.EnrollmentRequest) (address.Address, *Error) {
	entry, err := address.Parse(req.EntryAddress)
	if err != nil {
		return address.Address{}, &Error{Kind: MalformedAddress, Err: err}
	}

	if err := token.Validate(req.Token); err != nil {
		return address.Address{}, &Error{Kind: MissingToken, Err: err}
	}

	return entry, nil
}

// assignment queries the redirector of current and returns the address it points to.
func (r *Resolver) assignment(ctx context.Context, current address.Address, req entity.EnrollmentRequest) (address.Address, *Error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	a, err := r.client.GetAssignment(ctx, current.RedirectorURL(), req.Token, req.SystemID)
	if err != nil {
		return address.Address{}, &Error{Kind: classify(err), Host: current.Host(), Err: err}
	}

	raw := a.Host
	if raw == "" {
		raw = a.Location
	}

	next, err := address.Parse(raw)
	if err != nil {
		return address.Address{}, &Error{
			Kind: BadResponse,
			Host: current.Host(),
			Err:  fmt.Errorf("cannot use assigned address '%s': %w", raw, err),
		}
	}

	return next.Root(), nil
}

func fail(result entity.EnrollmentResult, err *Error) (entity.EnrollmentResult, error) {
	result.Success = false
	result.Kind = err.Kind.String()
	result.Error = err.Error()

	zap.S().Errorw("cannot resolve cluster", "kind", err.Kind.String(), "error", err.Err, "path", result.Path)

	return result, err
}
