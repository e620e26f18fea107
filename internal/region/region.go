// Package region holds the catalog of regional clusters of the cloud service.
package region

import (
	"strings"

	"github.com/tupyy/ztp-bootstrap/internal/entity"
)

// GenericEntry is the address every device may start from. The redirector behind it
// assigns the device to its tenant's regional cluster.
const GenericEntry = "www.arista.io"

var clusters = []entity.RegionEndpoint{
	{Name: "United States 1a", Host: GenericEntry},
	{Name: "United States 1b", Host: "www.cv-prod-us-central1-b.arista.io"},
	{Name: "United States 1c", Host: "www.cv-prod-us-central1-c.arista.io"},
	{Name: "Canada", Host: "www.cv-prod-na-northeast1-b.arista.io"},
	{Name: "Europe West 2", Host: "www.cv-prod-euwest-2.arista.io"},
	{Name: "Japan", Host: "www.cv-prod-apnortheast-1.arista.io"},
	{Name: "Australia", Host: "www.cv-prod-ausoutheast-1.arista.io"},
	{Name: "United Kingdom", Host: "www.cv-prod-uk-1.arista.io"},
}

// All returns a copy of the catalog.
func All() []entity.RegionEndpoint {
	all := make([]entity.RegionEndpoint, len(clusters))
	copy(all, clusters)
	return all
}

// Lookup finds the cluster served at host. host must not carry a scheme or a port.
func Lookup(host string) (entity.RegionEndpoint, bool) {
	host = normalize(host)
	for _, c := range clusters {
		if c.Host == host {
			return c, true
		}
	}

	return entity.RegionEndpoint{}, false
}

func normalize(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}
