package entity

import "time"

// BootstrapConfig holds everything a bootstrap run needs. It replaces the user input
// section of the bootstrap script: it is built once from flags, environment and config
// file and passed down explicitly.
type BootstrapConfig struct {
	EntryAddress    string
	Token           string
	CurrentTimeDate string
	Timezone        string
	Proxy           string
	NTPServer       string

	// Device overrides the values collected from the hardware inventory.
	Device DeviceInfo

	Timeout time.Duration
	MaxHops int

	CARootFile      string
	CertificateFile string
	PrivateKeyFile  string

	TokenPath  string
	ScriptPath string
	Execute    bool

	OutputFormat string
}
