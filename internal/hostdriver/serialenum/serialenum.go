// Package serialenum provides the host's device-enumeration external
// collaborator (spec §4.5/§6): either the operator supplies a port path
// directly, or this package scans /sys/class/tty for a USB serial device
// whose reported serial string matches protocol.USBSerial ("VeriTAS"), and
// opens the chosen path with github.com/daedaluz/goserial at the fixed
//500000-baud transport setting spec §6 requires.
package serialenum

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	serial "github.com/daedaluz/goserial"

	"github.com/bigbass1997/veritas/internal/curated"
	"github.com/bigbass1997/veritas/internal/protocol"
)

// PortInfo describes one candidate serial port.
type PortInfo struct {
	Path         string
	SerialNumber string
}

// sysClassTTY is overridable in tests so they don't depend on the host's
// real /sys layout.
var sysClassTTY = "/sys/class/tty"

// Enumerator lists candidate serial ports by walking sysClassTTY looking
// for each tty's USB "serial" attribute. No third-party library in the
// retrieval pack exposes USB descriptor enumeration (see DESIGN.md), so
// this one external-facing piece is stdlib os/filepath, same as the
// teacher's own sysfs-probing style elsewhere in the pack.
type Enumerator struct{}

// Ports lists the /dev/tty* devices under sysClassTTY whose USB
// serial-number attribute the kernel exposes, along with that attribute.
// ttys without one are not listed.
func (Enumerator) Ports() ([]PortInfo, error) {
	entries, err := os.ReadDir(sysClassTTY)
	if err != nil {
		return nil, curated.CategoryErrorf(curated.Transport, "serialenum: read %s: %v", sysClassTTY, err)
	}

	var ports []PortInfo
	for _, e := range entries {
		name := e.Name()
		serialNumber, ok := readSerialAttribute(filepath.Join(sysClassTTY, name))
		if !ok {
			continue
		}
		ports = append(ports, PortInfo{
			Path:         filepath.Join("/dev", name),
			SerialNumber: serialNumber,
		})
	}
	return ports, nil
}

// maxWalkUp bounds how far readSerialAttribute climbs from a tty's resolved
// "device" symlink target looking for the USB device's serial attribute:
// the kernel exposes it a few directories above the specific interface a
// tty belongs to, with the exact depth varying by how many interfaces the
// composite device advertises.
const maxWalkUp = 5

// readSerialAttribute resolves ttyDir/device (a symlink into
// /sys/devices/...) and walks upward from there looking for a "serial"
// file, since plain lexical ".." joining can't follow a symlink component.
func readSerialAttribute(ttyDir string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(ttyDir, "device"))
	if err != nil {
		return "", false
	}
	dir := resolved
	for i := 0; i < maxWalkUp; i++ {
		data, err := os.ReadFile(filepath.Join(dir, "serial"))
		if err == nil {
			return strings.TrimSpace(string(data)), true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// Find returns the first enumerated port whose serial number matches
// protocol.USBSerial, the device-identification contract from spec §6.
func Find(e Enumerator) (PortInfo, bool, error) {
	ports, err := e.Ports()
	if err != nil {
		return PortInfo{}, false, err
	}
	for _, p := range ports {
		if p.SerialNumber == protocol.USBSerial {
			return p, true, nil
		}
	}
	return PortInfo{}, false, nil
}

// Open opens path at the fixed host-side transport settings from spec §6:
// 500000 baud, 6-second read timeout, 8N1, raw mode, via the termios-based
// transport in github.com/daedaluz/goserial.
func Open(path string) (*serial.Port, error) {
	opts := serial.NewOptions().SetReadTimeout(protocol.DefaultTimeout * time.Second)
	port, err := serial.Open(path, opts)
	if err != nil {
		return nil, curated.CategoryErrorf(curated.Transport, "serialenum: open %s: %v", path, err)
	}

	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, curated.CategoryErrorf(curated.Transport, "serialenum: get attrs for %s: %v", path, err)
	}
	attrs.MakeRaw()
	attrs.SetSpeed(serial.B500000)
	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, curated.CategoryErrorf(curated.Transport, "serialenum: set attrs for %s: %v", path, err)
	}

	return port, nil
}
