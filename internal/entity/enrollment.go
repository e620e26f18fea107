package entity

import (
	"github.com/go-openapi/strfmt"
)

type EnrollmentRequest struct {
	// EntryAddress is the address the device starts from. It may be the generic entry
	// address or the address of a regional cluster.
	EntryAddress string

	// Token is the enrollment token copied from the Device Registration page.
	Token string

	// SystemID identifies the device with the redirector. It is the serial number.
	SystemID string

	// CurrentTimeDate and Timezone are consumed by the clock setter, not by the resolver.
	CurrentTimeDate string
	Timezone        string

	Proxy string
}

// RegionEndpoint is a regional cluster of the management service.
type RegionEndpoint struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

type EnrollmentResult struct {
	Success bool `json:"success"`

	// Endpoint is the cluster the device was resolved to.
	Endpoint RegionEndpoint `json:"endpoint"`

	// EnrollAddress is the address the telemetry agent must enroll against (host:port).
	EnrollAddress string `json:"enrollAddress,omitempty"`

	// BootstrapURL is where the bootstrap script is served from on the resolved cluster.
	BootstrapURL string `json:"bootstrapURL,omitempty"`

	// Hops is the number of redirects followed.
	Hops int `json:"hops"`

	// Path holds every host visited, entry address first.
	Path []string `json:"path,omitempty"`

	TokenExpiry *strfmt.DateTime `json:"tokenExpiry,omitempty"`

	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}
