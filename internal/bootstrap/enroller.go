package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tupyy/ztp-bootstrap/internal/certificate"
	"github.com/tupyy/ztp-bootstrap/internal/cli"
	"go.uber.org/zap"
)

const (
	TerminAttrBinary = "/usr/bin/TerminAttr"

	// TerminAttr does not return on some unknown flags, so every call is bounded.
	terminAttrTimeout = "60s"
	timeoutExitCode   = 124
)

var (
	ErrEnrollmentFailed  = errors.New("cannot exchange enrollment token for client certificates")
	ErrEnrollmentTimeout = errors.New("telemetry agent enrollment timed out")
)

// CertificatePaths is where the telemetry agent stored the client certificate.
type CertificatePaths struct {
	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
}

// TerminAttrEnroller exchanges the enrollment token for client certificates with the telemetry agent.
type TerminAttrEnroller struct {
	runner cli.Runner
	binary string
}

func NewTerminAttrEnroller(runner cli.Runner) *TerminAttrEnroller {
	return &TerminAttrEnroller{runner: runner, binary: TerminAttrBinary}
}

func (t *TerminAttrEnroller) Enroll(ctx context.Context, req EnrollRequest) (CertificatePaths, error) {
	args := []string{
		"-cvauth", fmt.Sprintf("%s,%s", req.TokenType, req.TokenPath),
		"-cvaddr", req.EnrollAddress,
		"-enrollonly",
	}

	// older agents do not know the flag
	if req.Proxy != "" {
		args = append(args, fmt.Sprintf("-cvproxy=%s", req.Proxy))
	}

	code, out, err := t.exec(ctx, args...)
	if err != nil {
		return CertificatePaths{}, fmt.Errorf("%w: %s", ErrEnrollmentFailed, err)
	}

	switch code {
	case 0:
	case timeoutExitCode:
		zap.S().Errorw("telemetry agent enrollment timed out", "output", out)
		return CertificatePaths{}, ErrEnrollmentTimeout
	default:
		zap.S().Errorw("failed to retrieve certificates", "code", code, "output", out)
		return CertificatePaths{}, fmt.Errorf("%w: exit code %d '%s'", ErrEnrollmentFailed, code, strings.TrimSpace(out))
	}

	zap.S().Infow("enrollment token exchanged for client certificates", "enroll_address", req.EnrollAddress)

	return t.certificatePaths(ctx, req.EnrollAddress), nil
}

// certificatePaths asks the agent where it stored the certificates and falls back to the default location.
func (t *TerminAttrEnroller) certificatePaths(ctx context.Context, enrollAddress string) CertificatePaths {
	fallback := CertificatePaths{
		CertFile: certificate.TerminAttrCertificateFile,
		KeyFile:  certificate.TerminAttrKeyFile,
	}

	code, out, err := t.exec(ctx, "-cvaddr", enrollAddress, "-certsconfig")
	if err != nil || code != 0 {
		zap.S().Warnw("cannot get the path of the stored client certificates. using fallback paths", "code", code, "error", err, "output", out)
		return fallback
	}

	paths, err := parseCertsConfig(out, enrollAddress)
	if err != nil {
		zap.S().Warnw("cannot parse certificates config. using fallback paths", "error", err)
		return fallback
	}

	return paths
}

func (t *TerminAttrEnroller) exec(ctx context.Context, args ...string) (int, string, error) {
	return t.runner.Exec(ctx, "timeout", append([]string{terminAttrTimeout, t.binary}, args...)...)
}

func parseCertsConfig(output, enrollAddress string) (CertificatePaths, error) {
	config := map[string]CertificatePaths{}
	if err := json.Unmarshal([]byte(output), &config); err != nil {
		return CertificatePaths{}, err
	}

	paths, ok := config[enrollAddress]
	if !ok || paths.CertFile == "" || paths.KeyFile == "" {
		return CertificatePaths{}, fmt.Errorf("no certificates for '%s'", enrollAddress)
	}

	return paths, nil
}
