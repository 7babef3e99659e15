package hardware

import (
	"fmt"
	"time"
)

// PCF8574 backpack pin mapping: data on the high nibble, control on the low.
const (
	lcdPinRS        = 0x01
	lcdPinEnable    = 0x04
	lcdPinBacklight = 0x08
)

// HD44780 commands used by the driver.
const (
	lcdCmdClear       = 0x01
	lcdCmdEntryMode   = 0x06 // cursor moves right, no shift
	lcdCmdDisplayOn   = 0x0C // display on, cursor and blink off
	lcdCmdFunctionSet = 0x28 // 4-bit bus, two lines, 5x8 font
	lcdCmdRowBase0    = 0x80
	lcdCmdRowBase1    = 0xC0
)

// LCDWidth is the visible line width of the 16x2 module.
const LCDWidth = 16

// LCD drives a 16x2 HD44780 character display behind a PCF8574 I2C backpack.
// The backpack exposes the controller's 4-bit bus, so every byte goes out as
// two nibbles, each latched by an enable pulse.
type LCD struct {
	bus     Bus
	addr    byte
	sleepFn sleepFunc
}

// NewLCD initializes the display: 4-bit bus handshake, function set, display
// on, clear, entry mode. An error at any step aborts the bring-up.
func NewLCD(bus Bus, addr byte) (*LCD, error) {
	l := &LCD{bus: bus, addr: addr, sleepFn: time.Sleep}

	// Power-on settle, then the three-step 8-bit sync from the HD44780
	// datasheet before dropping to 4-bit mode.
	l.sleepFn(50 * time.Millisecond)
	for _, d := range []time.Duration{5 * time.Millisecond, time.Millisecond, time.Millisecond} {
		if err := l.writeNibble(0x30, false); err != nil {
			return nil, fmt.Errorf("lcd sync: %w", err)
		}
		l.sleepFn(d)
	}
	if err := l.writeNibble(0x20, false); err != nil {
		return nil, fmt.Errorf("lcd enter 4-bit mode: %w", err)
	}

	for _, cmd := range []byte{lcdCmdFunctionSet, lcdCmdDisplayOn} {
		if err := l.command(cmd); err != nil {
			return nil, fmt.Errorf("lcd setup command %#02x: %w", cmd, err)
		}
	}
	if err := l.Clear(); err != nil {
		return nil, err
	}
	if err := l.command(lcdCmdEntryMode); err != nil {
		return nil, fmt.Errorf("lcd entry mode: %w", err)
	}
	return l, nil
}

// Line writes text to row 0 or 1, padded or truncated to the full width so
// stale characters never survive a shorter message.
func (l *LCD) Line(row int, text string) error {
	var base byte
	switch row {
	case 0:
		base = lcdCmdRowBase0
	case 1:
		base = lcdCmdRowBase1
	default:
		return fmt.Errorf("lcd row %d out of range", row)
	}
	if err := l.command(base); err != nil {
		return fmt.Errorf("lcd set row %d: %w", row, err)
	}

	for i := 0; i < LCDWidth; i++ {
		ch := byte(' ')
		if i < len(text) {
			ch = text[i]
			if ch < 0x20 || ch > 0x7E {
				ch = '?'
			}
		}
		if err := l.writeByte(ch, true); err != nil {
			return fmt.Errorf("lcd write row %d: %w", row, err)
		}
	}
	return nil
}

// Clear blanks the display. The controller needs extra time for this one.
func (l *LCD) Clear() error {
	if err := l.command(lcdCmdClear); err != nil {
		return fmt.Errorf("lcd clear: %w", err)
	}
	l.sleepFn(2 * time.Millisecond)
	return nil
}

func (l *LCD) command(cmd byte) error {
	return l.writeByte(cmd, false)
}

// writeByte sends one byte as two enable-pulsed nibbles in a single bus
// transaction. The PCF8574 latches every byte it receives, so the four-byte
// sequence produces the two enable edges the controller needs.
func (l *LCD) writeByte(value byte, data bool) error {
	hi := l.frame(value&0xF0, data)
	lo := l.frame(value<<4, data)
	return l.bus.WriteBytes(l.addr, []byte{hi | lcdPinEnable, hi, lo | lcdPinEnable, lo})
}

// writeNibble sends one raw nibble, used only during the bring-up handshake.
func (l *LCD) writeNibble(value byte, data bool) error {
	b := l.frame(value&0xF0, data)
	return l.bus.WriteBytes(l.addr, []byte{b | lcdPinEnable, b})
}

func (l *LCD) frame(nibble byte, data bool) byte {
	b := nibble | lcdPinBacklight
	if data {
		b |= lcdPinRS
	}
	return b
}
