package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Pump switches the irrigation pump relay through a sysfs GPIO line. The
// line is exported and driven low (pump off) at construction, so a crash
// loop cannot leave the pump running across restarts.
type Pump struct {
	root string
	pin  int
}

// NewPump exports the GPIO line and forces the relay off. An already
// exported line is fine; anything else that keeps the line from being driven
// is an error.
func NewPump(root string, pin int) (*Pump, error) {
	p := &Pump{root: root, pin: pin}

	exportErr := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(pin)), 0o644)

	// Give udev a moment to create the pin directory after export.
	var ready bool
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(p.pinPath("direction")); err == nil {
			ready = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !ready {
		if exportErr != nil {
			return nil, fmt.Errorf("export gpio %d: %w", pin, exportErr)
		}
		return nil, fmt.Errorf("gpio %d not available after export", pin)
	}

	if err := os.WriteFile(p.pinPath("direction"), []byte("out"), 0o644); err != nil {
		return nil, fmt.Errorf("set gpio %d direction: %w", pin, err)
	}
	if err := p.Off(); err != nil {
		return nil, err
	}
	return p, nil
}

// On energizes the relay.
func (p *Pump) On() error {
	return p.write("1")
}

// Off de-energizes the relay.
func (p *Pump) Off() error {
	return p.write("0")
}

// Close forces the relay off and releases the GPIO line. The unexport is
// best effort; the off write is not.
func (p *Pump) Close() error {
	err := p.Off()
	_ = os.WriteFile(filepath.Join(p.root, "unexport"), []byte(strconv.Itoa(p.pin)), 0o644)
	return err
}

func (p *Pump) write(value string) error {
	if err := os.WriteFile(p.pinPath("value"), []byte(value), 0o644); err != nil {
		return fmt.Errorf("write gpio %d value: %w", p.pin, err)
	}
	return nil
}

func (p *Pump) pinPath(file string) string {
	return filepath.Join(p.root, fmt.Sprintf("gpio%d", p.pin), file)
}
