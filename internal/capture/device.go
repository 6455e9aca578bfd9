package capture

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

// DeviceSource reads raw audio from an input device node or FIFO (e.g. an
// ALSA loopback or a pipe fed by an encoder process).
type DeviceSource struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func NewDeviceSource(path string) *DeviceSource {
	return &DeviceSource{path: path}
}

// Open acquires the device. Permission failures map to ErrPermissionDenied
// and a missing device to ErrDeviceUnavailable.
func (d *DeviceSource) Open() error {
	f, err := os.OpenFile(d.path, os.O_RDONLY, 0)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return ErrPermissionDenied
		case errors.Is(err, fs.ErrNotExist):
			return ErrDeviceUnavailable
		default:
			return err
		}
	}
	d.mu.Lock()
	d.f = f
	d.mu.Unlock()
	return nil
}

func (d *DeviceSource) Read(p []byte) (int, error) {
	d.mu.Lock()
	f := d.f
	d.mu.Unlock()
	if f == nil {
		return 0, os.ErrClosed
	}
	return f.Read(p)
}

// Close releases the device. Safe to call multiple times.
func (d *DeviceSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
