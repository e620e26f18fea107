package timeset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tupyy/ztp-bootstrap/internal/cli"
	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"go.uber.org/zap"
)

const (
	ntpStatBinary = "ntpstat"

	syncPolls           = 5
	syncInitialInterval = 10 * time.Second
	syncMultiplier      = 2
)

// DefaultNTPServers are configured when NTP is asked for without a server.
var DefaultNTPServers = []string{"time.google.com", "pool.ntp.org", "45.15.168.198", "216.239.35.4"}

var (
	ErrNotSynchronized = errors.New("ntp not synchronized")
)

type Setter struct {
	runner    cli.Runner
	ntpServer string
	// newBackOff returns the policy used to poll the NTP status.
	newBackOff func() backoff.BackOff
}

type Option func(s *Setter)

// WithNTPServer configures a single preferred server instead of the default ones.
func WithNTPServer(server string) Option {
	return func(s *Setter) {
		s.ntpServer = server
	}
}

func WithBackOff(f func() backoff.BackOff) Option {
	return func(s *Setter) {
		s.newBackOff = f
	}
}

func NewSetter(runner cli.Runner, opts ...Option) *Setter {
	s := &Setter{
		runner:     runner,
		newBackOff: defaultBackOff,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Apply sets the device clock as described by setting.
func (s *Setter) Apply(ctx context.Context, setting entity.ClockSetting) error {
	switch setting.Mode {
	case entity.ClockManual:
		return s.setClock(ctx, setting)
	case entity.ClockNTP:
		if err := s.configureNTP(ctx, setting.Timezone); err != nil {
			return err
		}
		return s.MonitorSync(ctx)
	default:
		return nil
	}
}

func (s *Setter) setClock(ctx context.Context, setting entity.ClockSetting) error {
	cmds := []string{
		"enable",
		"configure",
		fmt.Sprintf("clock timezone %s", setting.Timezone),
		"exit",
		fmt.Sprintf("clock set %s", setting.Raw),
	}

	if _, err := s.runner.Run(ctx, cmds); err != nil {
		return fmt.Errorf("switch clock was not set '%w'", err)
	}

	zap.S().Infow("clock set", "time", setting.Raw, "timezone", setting.Timezone)

	return nil
}

func (s *Setter) configureNTP(ctx context.Context, timezone string) error {
	if s.ntpServer != "" {
		// stop ntp before pointing it to the new server
		if _, err := s.runner.Run(ctx, []string{"enable", "configure", "no ntp", "exit"}); err != nil {
			return fmt.Errorf("NTP server could not be stopped '%w'", err)
		}

		cmds := []string{
			"enable",
			"configure",
			fmt.Sprintf("clock timezone %s", timezone),
			fmt.Sprintf("ntp server %s prefer iburst", s.ntpServer),
			"exit",
		}
		if _, err := s.runner.Run(ctx, cmds); err != nil {
			return fmt.Errorf("could not restart NTP server '%w'", err)
		}

		zap.S().Infow("ntp server configured", "server", s.ntpServer)

		return nil
	}

	cmds := []string{"enable", "configure", fmt.Sprintf("clock timezone %s", timezone)}
	for _, server := range DefaultNTPServers {
		cmds = append(cmds, fmt.Sprintf("ntp server %s", server))
	}
	cmds = append(cmds, "exit")

	if _, err := s.runner.Run(ctx, cmds); err != nil {
		return fmt.Errorf("NTP servers were not configured '%w'", err)
	}

	zap.S().Infow("ntp servers configured", "servers", DefaultNTPServers)

	return nil
}

// MonitorSync polls ntpstat until the clock is synchronized.
func (s *Setter) MonitorSync(ctx context.Context) error {
	operation := func() error {
		zap.S().Info("Polling NTP status.")

		code, out, err := s.runner.Exec(ctx, ntpStatBinary)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("ntpstat command failed '%w'", err))
		}

		zap.S().Debugw("ntp sync status", "code", code, "output", out)

		if code != 0 {
			return fmt.Errorf("%w: ntpstat exit code %d", ErrNotSynchronized, code)
		}

		return nil
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(s.newBackOff(), ctx), func(err error, next time.Duration) {
		zap.S().Infow("ntp not synchronized yet", "error", err, "retry_in", next)
	})
	if err != nil {
		return fmt.Errorf("NTP sync failed '%w'", err)
	}

	zap.S().Info("NTP sync complete.")

	return nil
}

// defaultBackOff polls 5 times, waiting 10s then doubling.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = syncInitialInterval
	b.Multiplier = syncMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = syncInitialInterval << (syncPolls - 1)
	b.MaxElapsedTime = 0

	return backoff.WithMaxRetries(b, syncPolls-1)
}
