package device

import "github.com/tupyy/ztp-bootstrap/internal/entity"

// Headers returns the headers the bootstrap endpoint expects from a device.
func Headers(info entity.DeviceInfo, scriptVersion string) map[string]string {
	return map[string]string{
		"X-Arista-SystemMAC":               info.SystemMAC,
		"X-Arista-ModelName":               info.ModelName,
		"X-Arista-HardwareVersion":         info.HardwareVersion,
		"X-Arista-Serial":                  info.SerialNumber,
		"X-Arista-SoftwareVersion":         info.SoftwareVersion,
		"X-Arista-Architecture":            info.Architecture,
		"X-Arista-CustomBootScriptVersion": scriptVersion,
	}
}
