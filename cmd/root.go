/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	config "github.com/tupyy/ztp-bootstrap/configuration"
	"github.com/tupyy/ztp-bootstrap/internal/bootstrap"
	"github.com/tupyy/ztp-bootstrap/internal/cli"
	httpClient "github.com/tupyy/ztp-bootstrap/internal/client/http"
	"github.com/tupyy/ztp-bootstrap/internal/device"
	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"github.com/tupyy/ztp-bootstrap/internal/report"
	"github.com/tupyy/ztp-bootstrap/internal/resolver"
	"github.com/tupyy/ztp-bootstrap/internal/timeset"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile      string
	entryAddress    string
	enrollmentToken string
	currentTimeDate string
	timezone        string
	proxy           string
	ntpServer       string
	serialNumber    string
	caRoot          string
	certFile        string
	privateKey      string
	scriptPath      string
	tokenPath       string
	output          string
	logLevel        string
	timeout         = config.DefaultTimeout
	maxHops         = config.DefaultMaxHops
	execute         = true
)

var rootCmd = &cobra.Command{
	Use:   "ztp-bootstrap",
	Short: "Zero touch provisioning bootstrap",
	Long: `Resolve the regional cluster a device must enroll with, exchange the enrollment
token for client certificates, then fetch and run the bootstrap script of that cluster.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitConfiguration(cmd, configFile)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger(config.GetLogLevel())
		defer logger.Sync()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		conf := config.GetBootstrapConfig()

		manager, err := newManager(conf)
		if err != nil {
			zap.S().Errorw("cannot start bootstrap", "error", err)
			return err
		}

		result, runErr := manager.Run(ctx)

		if err := report.Write(os.Stdout, result, conf.OutputFormat); err != nil {
			zap.S().Errorw("cannot write report", "error", err)
		}

		return runErr
	},
}

func Execute() {
	if code := execute(rootCmd, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

// execute runs cmd and returns the process exit code. Errors are silenced by cobra and
// written to stderr here, so flag and configuration errors are reported too.
func execute(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintf(stderr, "Error: %s\n", err)

	return exitCode(err)
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file")
	rootCmd.Flags().StringVar(&entryAddress, "cv-addr", "", "address of the management service. www.arista.io or a regional cluster for cloud deployments")
	rootCmd.Flags().StringVar(&enrollmentToken, "enrollment-token", "", "enrollment token copied from the device registration page")
	rootCmd.Flags().StringVar(&currentTimeDate, "current-time-date", "", "current time and date ('hh:mm:ss mm/dd/yyyy', 'hh:mm:ss yyyy-mm-dd') or 'ntp'")
	rootCmd.Flags().StringVar(&timezone, "timezone", config.DefaultTimezone, "timezone of the device clock")
	rootCmd.Flags().StringVar(&proxy, "cv-proxy", "", "proxy used to reach the management service")
	rootCmd.Flags().StringVar(&ntpServer, "ntp-server", "", "preferred ntp server")
	rootCmd.Flags().StringVar(&serialNumber, "serial-number", "", "serial number override")
	rootCmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "timeout of every network request")
	rootCmd.Flags().IntVar(&maxHops, "max-hops", config.DefaultMaxHops, "maximum number of redirects followed")
	rootCmd.Flags().StringVar(&caRoot, "ca-root", "", "ca certificate")
	rootCmd.Flags().StringVar(&certFile, "cert", "", "client certificate")
	rootCmd.Flags().StringVar(&privateKey, "key", "", "private key")
	rootCmd.Flags().StringVar(&scriptPath, "script-path", config.DefaultScriptPath, "where the bootstrap script is written")
	rootCmd.Flags().StringVar(&tokenPath, "token-path", config.DefaultTokenPath, "where the enrollment token is written")
	rootCmd.Flags().BoolVar(&execute, "execute", true, "execute the bootstrap script")
	rootCmd.Flags().StringVar(&output, "output", config.DefaultOutput, "report format (yaml|json)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level")
}

func setupLogger(level string) *zap.Logger {
	loggerCfg := &zap.Config{
		Level:    zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "severity",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		// stdout carries the report
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	atomicLogLevel, err := zap.ParseAtomicLevel(level)
	if err == nil {
		loggerCfg.Level = atomicLogLevel
	}

	plain, err := loggerCfg.Build(zap.AddStacktrace(zap.DPanicLevel))
	if err != nil {
		panic(err)
	}

	return plain
}

func newManager(conf entity.BootstrapConfig) (*bootstrap.Manager, error) {
	// the report is written after the script ran, too late to find out the format is unknown
	if err := report.ValidateFormat(conf.OutputFormat); err != nil {
		return nil, err
	}

	// the redirector is reached without client certificates
	redirectorClient, err := httpClient.New(httpClient.WithTimeout(conf.Timeout), httpClient.WithProxy(conf.Proxy))
	if err != nil {
		return nil, err
	}

	r := resolver.New(redirectorClient, resolver.WithMaxHops(conf.MaxHops), resolver.WithTimeout(conf.Timeout))
	collector := device.NewCollector("/", device.WithOverrides(conf.Device))

	opts := []bootstrap.Option{
		bootstrap.WithScriptClientFactory(func(tlsConfig *tls.Config) (bootstrap.ScriptClient, error) {
			return httpClient.New(
				httpClient.WithTimeout(conf.Timeout),
				httpClient.WithProxy(conf.Proxy),
				httpClient.WithTLSConfig(tlsConfig),
			)
		}),
		bootstrap.WithExecutor(bootstrap.NewScriptExecutor(os.Stderr, os.Stderr)),
	}

	fastCli, err := cli.New(cli.FastCliBinary)
	if err != nil {
		zap.S().Warnw("device cli not available. clock and telemetry agent enrollment disabled", "error", err)
	} else {
		opts = append(opts, bootstrap.WithClockSetter(timeset.NewSetter(fastCli, timeset.WithNTPServer(conf.NTPServer))))

		if _, err := os.Stat(bootstrap.TerminAttrBinary); err == nil {
			opts = append(opts, bootstrap.WithEnroller(bootstrap.NewTerminAttrEnroller(fastCli)))
		}
	}

	return bootstrap.New(conf, r, collector, opts...), nil
}

// exitCode maps the error of a run to the process exit code.
func exitCode(err error) int {
	var exitErr *bootstrap.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch resolver.KindOf(err) {
	case resolver.MalformedAddress, resolver.MissingToken:
		return 2
	case resolver.NetworkUnreachable:
		return 3
	case resolver.RedirectLoop:
		return 4
	case resolver.TokenRejected:
		return 5
	case resolver.Timeout:
		return 6
	default:
		return 1
	}
}
