// Package bootstrap runs the whole zero touch provisioning sequence: clock, cluster
// resolution, certificates and bootstrap script.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/tupyy/ztp-bootstrap/internal/address"
	"github.com/tupyy/ztp-bootstrap/internal/certificate"
	"github.com/tupyy/ztp-bootstrap/internal/device"
	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"github.com/tupyy/ztp-bootstrap/internal/resolver"
	"github.com/tupyy/ztp-bootstrap/internal/timeset"
	"github.com/tupyy/ztp-bootstrap/internal/token"
	"go.uber.org/zap"
)

// Version is sent to the bootstrap endpoint as the custom boot script version.
const Version = "2.0.1"

const (
	proxyEnv = "CVPROXY"

	// kinds reported for failures outside cluster resolution
	clockKind   = "Clock"
	failureKind = "Bootstrap"
)

var (
	ErrClock       = errors.New("cannot set device clock")
	ErrNoClockCli  = errors.New("device cli needed to set the clock")
	ErrCertificate = errors.New("cannot load client certificates")
	ErrScript      = errors.New("cannot get bootstrap script")
)

type Resolver interface {
	Resolve(ctx context.Context, req entity.EnrollmentRequest) (entity.EnrollmentResult, error)
}

//go:generate mockgen -package=bootstrap -destination=mock_bootstrap.go --build_flags=--mod=mod . ScriptClient,Enroller
type ScriptClient interface {
	GetBootstrapScript(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// ScriptClientFactory returns a client presenting the device certificate.
type ScriptClientFactory func(tlsConfig *tls.Config) (ScriptClient, error)

type Enroller interface {
	Enroll(ctx context.Context, req EnrollRequest) (CertificatePaths, error)
}

type EnrollRequest struct {
	TokenType     string
	TokenPath     string
	EnrollAddress string
	Proxy         string
}

type ClockSetter interface {
	Apply(ctx context.Context, setting entity.ClockSetting) error
}

type DeviceCollector interface {
	Collect(ctx context.Context) (entity.DeviceInfo, error)
}

type Executor interface {
	Execute(ctx context.Context, path string, env map[string]string) error
}

type Manager struct {
	config          entity.BootstrapConfig
	resolver        Resolver
	collector       DeviceCollector
	newScriptClient ScriptClientFactory
	clock           ClockSetter
	enroller        Enroller
	executor        Executor
	now             func() time.Time
}

type Option func(m *Manager)

func WithClockSetter(c ClockSetter) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithEnroller(e Enroller) Option {
	return func(m *Manager) {
		m.enroller = e
	}
}

func WithExecutor(e Executor) Option {
	return func(m *Manager) {
		m.executor = e
	}
}

func WithScriptClientFactory(f ScriptClientFactory) Option {
	return func(m *Manager) {
		m.newScriptClient = f
	}
}

func New(config entity.BootstrapConfig, r Resolver, collector DeviceCollector, opts ...Option) *Manager {
	m := &Manager{
		config:    config,
		resolver:  r,
		collector: collector,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run provisions the device. The result is returned even on error and tells how far the run went.
func (m *Manager) Run(ctx context.Context) (entity.EnrollmentResult, error) {
	req := entity.EnrollmentRequest{
		EntryAddress:    m.config.EntryAddress,
		Token:           m.config.Token,
		CurrentTimeDate: m.config.CurrentTimeDate,
		Timezone:        m.config.Timezone,
		Proxy:           m.config.Proxy,
	}

	// nothing on the device is changed for a request which cannot be resolved
	if err := resolver.Validate(req); err != nil {
		zap.S().Errorw("invalid enrollment request", "error", err)
		return entity.EnrollmentResult{Kind: resolver.KindOf(err).String(), Error: err.Error()}, err
	}

	if err := m.setClock(ctx); err != nil {
		return entity.EnrollmentResult{Kind: clockKind, Error: err.Error()}, err
	}

	info, err := m.collector.Collect(ctx)
	if err != nil {
		return entity.EnrollmentResult{Error: err.Error()}, fmt.Errorf("cannot collect device identity: %w", err)
	}

	req.SystemID = info.SerialNumber

	result, err := m.resolver.Resolve(ctx, req)
	if err != nil {
		return result, err
	}

	zap.S().Info("Step 0 done, redirected to the correct cluster")

	if expiry, ok := token.Expiry(m.config.Token); ok {
		dt := strfmt.DateTime(expiry)
		result.TokenExpiry = &dt

		if expiry.Before(m.now()) {
			zap.S().Warnw("enrollment token expired", "expiry", expiry)
		}
	}

	if m.config.TokenPath != "" {
		if err := token.WriteFile(m.config.TokenPath, m.config.Token); err != nil {
			return m.fail(result, err)
		}
	}

	certFile, keyFile, err := m.certificates(ctx, result)
	if err != nil {
		return m.fail(result, err)
	}

	if certFile == "" || m.newScriptClient == nil {
		zap.S().Infow("no client certificate. bootstrap script not fetched", "enroll_address", result.EnrollAddress)
		return result, nil
	}

	if err := m.fetchScript(ctx, result, info, certFile, keyFile); err != nil {
		return m.fail(result, err)
	}

	zap.S().Infow("Step 3.1 done, bootstrap script fetched", "path", m.config.ScriptPath)

	if !m.config.Execute || m.executor == nil {
		return result, nil
	}

	if err := m.executor.Execute(ctx, m.config.ScriptPath, map[string]string{proxyEnv: m.config.Proxy}); err != nil {
		return m.fail(result, err)
	}

	zap.S().Info("Step 3.2 done, executed the fetched bootstrap script")

	return result, nil
}

func (m *Manager) setClock(ctx context.Context) error {
	setting, err := timeset.Parse(m.config.CurrentTimeDate, m.config.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrClock, err)
	}

	if setting.Mode == entity.ClockUnset {
		return nil
	}

	if m.clock == nil {
		return fmt.Errorf("%w: %s", ErrClock, ErrNoClockCli)
	}

	if err := m.clock.Apply(ctx, setting); err != nil {
		return fmt.Errorf("%w: %s", ErrClock, err)
	}

	zap.S().Infow("device clock set", "mode", setting.Mode.String())

	return nil
}

// certificates returns the client certificate to present to the bootstrap endpoint.
// Configured files win over the ones obtained from the telemetry agent.
func (m *Manager) certificates(ctx context.Context, result entity.EnrollmentResult) (string, string, error) {
	if m.config.CertificateFile != "" && m.config.PrivateKeyFile != "" {
		return m.config.CertificateFile, m.config.PrivateKeyFile, nil
	}

	if m.enroller != nil {
		paths, err := m.enroller.Enroll(ctx, EnrollRequest{
			TokenType:     token.Type(address.IsCloud(result.Endpoint.Host)),
			TokenPath:     m.config.TokenPath,
			EnrollAddress: result.EnrollAddress,
			Proxy:         m.config.Proxy,
		})
		if err != nil {
			return "", "", err
		}

		zap.S().Infow("Step 1 done, exchanged enrollment token for client certificates", "cert", paths.CertFile, "key", paths.KeyFile)

		return paths.CertFile, paths.KeyFile, nil
	}

	if certificate.Exists(certificate.TerminAttrCertificateFile, certificate.TerminAttrKeyFile) {
		return certificate.TerminAttrCertificateFile, certificate.TerminAttrKeyFile, nil
	}

	return "", "", nil
}

func (m *Manager) fetchScript(ctx context.Context, result entity.EnrollmentResult, info entity.DeviceInfo, certFile, keyFile string) error {
	certManager, err := certificate.Load(m.config.CARootFile, certFile, keyFile)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCertificate, err)
	}

	tlsConfig, err := certManager.TLSConfig()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCertificate, err)
	}

	client, err := m.newScriptClient(tlsConfig)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrScript, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	script, err := client.GetBootstrapScript(ctx, result.BootstrapURL, device.Headers(info, Version))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrScript, err)
	}

	if err := os.WriteFile(m.config.ScriptPath, script, 0700); err != nil {
		return fmt.Errorf("%w: cannot write script '%s'", ErrScript, err)
	}

	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(m.config.ScriptPath, 0700); err != nil {
		return fmt.Errorf("%w: %s", ErrScript, err)
	}

	return nil
}

func (m *Manager) timeout() time.Duration {
	if m.config.Timeout <= 0 {
		return 30 * time.Second
	}
	return m.config.Timeout
}

func (m *Manager) fail(result entity.EnrollmentResult, err error) (entity.EnrollmentResult, error) {
	result.Success = false
	result.Kind = failureKind
	result.Error = err.Error()

	zap.S().Errorw("bootstrap failed", "error", err, "enroll_address", result.EnrollAddress)

	return result, err
}
