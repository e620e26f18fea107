// Package device collects the identity the device presents to the management service.
package device

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/openshift/assisted-installer-agent/src/inventory"
	"github.com/openshift/assisted-installer-agent/src/util"
	"github.com/tupyy/ztp-bootstrap/internal/entity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	swiVersionFile  = "etc/swi-version"
	archFile        = "etc/arch"
	productVersion  = "sys/class/dmi/id/product_version"
	swiVersionKey   = "SWI_VERSION"
	loopbackAddress = "00:00:00:00:00:00"
)

// Probe reads a part of the device identity.
type Probe func(ctx context.Context) (entity.DeviceInfo, error)

type Collector struct {
	probes    []Probe
	overrides entity.DeviceInfo
	machineID func() (string, error)
}

type Option func(c *Collector)

// WithOverrides sets values which win over the collected ones.
func WithOverrides(info entity.DeviceInfo) Option {
	return func(c *Collector) {
		c.overrides = info
	}
}

func WithProbes(probes ...Probe) Option {
	return func(c *Collector) {
		c.probes = probes
	}
}

func WithMachineID(f func() (string, error)) Option {
	return func(c *Collector) {
		c.machineID = f
	}
}

// NewCollector returns a collector reading the host mounted at root.
func NewCollector(root string, opts ...Option) *Collector {
	if root == "" {
		root = "/"
	}

	c := &Collector{
		probes: []Probe{
			InventoryProbe(util.NewDependencies(root)),
			SoftwareProbe(root),
		},
		machineID: machineid.ID,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Collect runs every probe concurrently and merges the results in probe order.
// A failing probe is logged and skipped: the device can still enroll with a partial identity.
func (c *Collector) Collect(ctx context.Context) (entity.DeviceInfo, error) {
	results := make([]entity.DeviceInfo, len(c.probes))

	g, gctx := errgroup.WithContext(ctx)
	for i, probe := range c.probes {
		i, probe := i, probe
		g.Go(func() error {
			info, err := probe(gctx)
			if err != nil {
				zap.S().Warnw("device probe failed", "error", err)
				return nil
			}
			results[i] = info
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return entity.DeviceInfo{}, err
	}

	if err := ctx.Err(); err != nil {
		return entity.DeviceInfo{}, err
	}

	var info entity.DeviceInfo
	for _, r := range results {
		info = info.Merge(r)
	}

	info = info.Merge(c.overrides)

	if info.SerialNumber == "" {
		info.SerialNumber = c.fallbackSerial()
	}

	zap.S().Infow("device identity collected", "serial", info.SerialNumber, "mac", info.SystemMAC, "model", info.ModelName)

	return info, nil
}

func (c *Collector) fallbackSerial() string {
	if c.machineID != nil {
		id, err := c.machineID()
		if err == nil && id != "" {
			return id
		}
		zap.S().Warnw("cannot read machine id", "error", err)
	}

	return uuid.New().String()
}

// InventoryProbe reads vendor, cpu and interfaces from the hardware inventory.
func InventoryProbe(dependencies util.IDependencies) Probe {
	return func(ctx context.Context) (entity.DeviceInfo, error) {
		info := entity.DeviceInfo{}

		vendor := inventory.GetVendor(dependencies)
		info.SerialNumber = vendor.SerialNumber
		info.ModelName = vendor.ProductName

		cpu := inventory.GetCPU(dependencies)
		info.Architecture = cpu.Architecture

		for _, iface := range inventory.GetInterfaces(dependencies) {
			if iface.MacAddress == "" || iface.MacAddress == loopbackAddress {
				continue
			}
			info.SystemMAC = iface.MacAddress
			break
		}

		return info, nil
	}
}

// SoftwareProbe reads the software version, architecture and hardware revision files.
func SoftwareProbe(root string) Probe {
	return func(ctx context.Context) (entity.DeviceInfo, error) {
		info := entity.DeviceInfo{}

		values, err := keyValueFromFile(filepath.Join(root, swiVersionFile))
		if err == nil {
			info.SoftwareVersion = values[swiVersionKey]
		} else if !os.IsNotExist(err) {
			return entity.DeviceInfo{}, err
		}

		info.Architecture = readTrimmed(filepath.Join(root, archFile))
		info.HardwareVersion = readTrimmed(filepath.Join(root, productVersion))

		return info, nil
	}
}

func keyValueFromFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}

	return values, scanner.Err()
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
