package serial

import (
	"fmt"

	"go.bug.st/serial/enumerator"
)

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	Description  string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// lister is swapped in tests.
var lister = enumerator.GetDetailedPortsList

// ListPorts returns available serial ports. Enumeration failures yield an
// empty list.
func ListPorts() []PortInfo {
	ports, err := lister()
	if err != nil {
		return []PortInfo{}
	}

	result := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			Description:  describe(p),
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
		})
	}
	return result
}

func describe(p *enumerator.PortDetails) string {
	switch {
	case p.Product != "":
		return p.Product
	case p.IsUSB:
		return fmt.Sprintf("USB %s:%s", p.VID, p.PID)
	}
	return ""
}
