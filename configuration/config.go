package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"go.uber.org/zap"
)

const (
	prefix = "ZTP"

	entryAddress    = "cv_addr"
	enrollmentToken = "enrollment_token"
	currentTimeDate = "current_time_date"
	timezone        = "timezone"
	proxy           = "cv_proxy"
	ntpServer       = "ntp_server"
	serialNumber    = "serial_number"
	timeout         = "timeout"
	maxHops         = "max_hops"
	caRoot          = "ca_root"
	certFile        = "cert"
	privateKey      = "key"
	scriptPath      = "script_path"
	tokenPath       = "token_path"
	execute         = "execute"
	output          = "output"
	logLevel        = "log_level"

	DefaultTimezone   = "PST8PDT"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxHops    = 3
	DefaultScriptPath = "/tmp/bootstrap-script"
	DefaultTokenPath  = "/tmp/token.tok"
	DefaultOutput     = "yaml"
	DefaultLogLevel   = "info"
)

var v *viper.Viper

func InitConfiguration(cmd *cobra.Command, configFile string) error {
	v = viper.New()

	v.SetEnvPrefix(prefix)
	v.AutomaticEnv() // read in environment variables that match

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)

		err := v.ReadInConfig()
		if err != nil {
			zap.S().Errorw("cannot read config file", "error", err, "config file", configFile)
			return fmt.Errorf("fail to read config file: %w", err)
		}

		zap.S().Infof("using config file: %v", v.ConfigFileUsed())
	}

	// Bind the current command's flags to viper
	bindFlags(cmd, v)

	return nil
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// replace - with _ to match yaml format
		flagName := f.Name
		if strings.Contains(f.Name, "-") {
			// Environment variables can't have dashes in them, so bind them to their equivalent
			// keys with underscores.
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			v.BindEnv(f.Name, fmt.Sprintf("%s_%s", prefix, envVarSuffix))
			flagName = strings.ReplaceAll(f.Name, "-", "_")
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		// and the other way around.
		if !f.Changed && v.IsSet(flagName) {
			val := v.Get(flagName)
			cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val))
		} else if f.Changed {
			v.Set(flagName, f.Value.String())
		}
	})
}

func GetEntryAddress() string {
	return strings.TrimSpace(v.GetString(entryAddress))
}

func GetEnrollmentToken() string {
	return strings.TrimSpace(v.GetString(enrollmentToken))
}

func GetCurrentTimeDate() string {
	return v.GetString(currentTimeDate)
}

func GetTimezone() string {
	if !v.IsSet(timezone) || v.GetString(timezone) == "" {
		return DefaultTimezone
	}

	return v.GetString(timezone)
}

func GetProxy() string {
	return v.GetString(proxy)
}

func GetNTPServer() string {
	return v.GetString(ntpServer)
}

func GetSerialNumber() string {
	return v.GetString(serialNumber)
}

func GetTimeout() time.Duration {
	if !v.IsSet(timeout) {
		return DefaultTimeout
	}

	d := v.GetDuration(timeout)
	if d <= 0 {
		return DefaultTimeout
	}

	return d
}

func GetMaxHops() int {
	if !v.IsSet(maxHops) {
		return DefaultMaxHops
	}

	return v.GetInt(maxHops)
}

func GetCARootFile() string {
	return v.GetString(caRoot)
}

func GetCertificateFile() string {
	return v.GetString(certFile)
}

func GetPrivateKey() string {
	return v.GetString(privateKey)
}

func GetScriptPath() string {
	if v.GetString(scriptPath) == "" {
		return DefaultScriptPath
	}

	return v.GetString(scriptPath)
}

func GetTokenPath() string {
	if v.GetString(tokenPath) == "" {
		return DefaultTokenPath
	}

	return v.GetString(tokenPath)
}

func GetExecute() bool {
	if !v.IsSet(execute) {
		return true
	}

	return v.GetBool(execute)
}

func GetOutputFormat() string {
	if v.GetString(output) == "" {
		return DefaultOutput
	}

	return v.GetString(output)
}

func GetLogLevel() string {
	if v.GetString(logLevel) == "" {
		return DefaultLogLevel
	}

	return v.GetString(logLevel)
}

// GetBootstrapConfig gathers the whole configuration of a run.
func GetBootstrapConfig() entity.BootstrapConfig {
	return entity.BootstrapConfig{
		EntryAddress:    GetEntryAddress(),
		Token:           GetEnrollmentToken(),
		CurrentTimeDate: GetCurrentTimeDate(),
		Timezone:        GetTimezone(),
		Proxy:           GetProxy(),
		NTPServer:       GetNTPServer(),
		Device: entity.DeviceInfo{
			SerialNumber: GetSerialNumber(),
		},
		Timeout:         GetTimeout(),
		MaxHops:         GetMaxHops(),
		CARootFile:      GetCARootFile(),
		CertificateFile: GetCertificateFile(),
		PrivateKeyFile:  GetPrivateKey(),
		TokenPath:       GetTokenPath(),
		ScriptPath:      GetScriptPath(),
		Execute:         GetExecute(),
		OutputFormat:    GetOutputFormat(),
	}
}
