package serialenum

import (
	"os"
	"path/filepath"
	"testing"
)

// makeFixtureTTY builds a sysClassTTY-rooted fixture mirroring the real
// layout: class/tty/<name>/device is a symlink to a USB interface a few
// directories below the USB device node that actually carries the "serial"
// attribute.
func makeFixtureTTY(t *testing.T, root, name, serial string) {
	t.Helper()

	devicePath := filepath.Join(root, "..", "devices", name+"-device", name+"-iface")
	if err := os.MkdirAll(devicePath, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	usbDevicePath := filepath.Dir(devicePath)
	if serial != "" {
		if err := os.WriteFile(filepath.Join(usbDevicePath, "serial"), []byte(serial), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	ttyDir := filepath.Join(root, name)
	if err := os.MkdirAll(ttyDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.Symlink(devicePath, filepath.Join(ttyDir, "device")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
}

func TestPortsReadsSerialAttribute(t *testing.T) {
	root := filepath.Join(t.TempDir(), "class", "tty")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	old := sysClassTTY
	sysClassTTY = root
	defer func() { sysClassTTY = old }()

	makeFixtureTTY(t, root, "ttyACM0", "VeriTAS")

	ports, err := Enumerator{}.Ports()
	if err != nil {
		t.Fatalf("Ports: %v", err)
	}
	if len(ports) != 1 {
		t.Fatalf("got %d ports, want 1", len(ports))
	}
	if ports[0].SerialNumber != "VeriTAS" {
		t.Fatalf("got serial %q, want VeriTAS", ports[0].SerialNumber)
	}
}

func TestFindMatchesKnownSerial(t *testing.T) {
	root := filepath.Join(t.TempDir(), "class", "tty")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	old := sysClassTTY
	sysClassTTY = root
	defer func() { sysClassTTY = old }()

	makeFixtureTTY(t, root, "ttyUSB0", "some-other-device")
	makeFixtureTTY(t, root, "ttyACM0", "VeriTAS")

	port, ok, err := Find(Enumerator{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !ok {
		t.Fatal("expected a matching port")
	}
	if port.Path != filepath.Join("/dev", "ttyACM0") {
		t.Fatalf("got path %q, want /dev/ttyACM0", port.Path)
	}
}

func TestFindNoMatch(t *testing.T) {
	root := filepath.Join(t.TempDir(), "class", "tty")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	old := sysClassTTY
	sysClassTTY = root
	defer func() { sysClassTTY = old }()

	makeFixtureTTY(t, root, "ttyUSB0", "other")

	_, ok, err := Find(Enumerator{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if ok {
		t.Fatal("expected no matching port")
	}
}
