package entity

type DeviceInfo struct {
	SerialNumber    string `json:"serialNumber,omitempty"`
	SystemMAC       string `json:"systemMAC,omitempty"`
	ModelName       string `json:"modelName,omitempty"`
	HardwareVersion string `json:"hardwareVersion,omitempty"`
	Architecture    string `json:"architecture,omitempty"`
	SoftwareVersion string `json:"softwareVersion,omitempty"`
}

// Merge returns a copy of d where every non empty field of other wins.
func (d DeviceInfo) Merge(other DeviceInfo) DeviceInfo {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}

	return DeviceInfo{
		SerialNumber:    pick(d.SerialNumber, other.SerialNumber),
		SystemMAC:       pick(d.SystemMAC, other.SystemMAC),
		ModelName:       pick(d.ModelName, other.ModelName),
		HardwareVersion: pick(d.HardwareVersion, other.HardwareVersion),
		Architecture:    pick(d.Architecture, other.Architecture),
		SoftwareVersion: pick(d.SoftwareVersion, other.SoftwareVersion),
	}
}
