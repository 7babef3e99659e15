package hardware

import (
	"testing"
)

func newTestLCD(t *testing.T) (*LCD, *fakeBus) {
	t.Helper()
	bus := &fakeBus{}
	l, err := NewLCD(bus, 0x27)
	if err != nil {
		t.Fatalf("NewLCD: %v", err)
	}
	l.sleepFn = noSleep
	// Drop the bring-up traffic so tests see only their own writes.
	bus.writes = nil
	bus.addrs = nil
	return l, bus
}

// decodeChar reassembles the character from a 4-byte nibble transaction.
func decodeChar(tx []byte) byte {
	return (tx[1] & 0xF0) | (tx[3]&0xF0)>>4
}

// TestLCDInitSequence verifies the 4-bit handshake and setup commands run at
// construction.
func TestLCDInitSequence(t *testing.T) {
	bus := &fakeBus{}
	if _, err := NewLCD(bus, 0x27); err != nil {
		t.Fatalf("NewLCD: %v", err)
	}

	if len(bus.writes) < 8 {
		t.Fatalf("bring-up wrote %d transactions, want at least 8", len(bus.writes))
	}
	// Three 8-bit sync nibbles then the 4-bit switch, all two-byte frames
	// with an enable pulse and no RS.
	for i := 0; i < 4; i++ {
		tx := bus.writes[i]
		if len(tx) != 2 {
			t.Fatalf("sync write %d = %#v, want 2 bytes", i, tx)
		}
		if tx[0]&lcdPinEnable == 0 || tx[1]&lcdPinEnable != 0 {
			t.Errorf("sync write %d missing enable pulse: %#v", i, tx)
		}
		if tx[0]&lcdPinRS != 0 {
			t.Errorf("sync write %d has RS set: %#v", i, tx)
		}
	}
	want := []byte{0x30, 0x30, 0x30, 0x20}
	for i, w := range want {
		if got := bus.writes[i][1] & 0xF0; got != w {
			t.Errorf("sync nibble %d = %#02x, want %#02x", i, got, w)
		}
	}

	// The remaining bring-up traffic is 4-byte command frames: function set,
	// display on, clear, entry mode.
	cmds := []byte{lcdCmdFunctionSet, lcdCmdDisplayOn, lcdCmdClear, lcdCmdEntryMode}
	rest := bus.writes[4:]
	if len(rest) != len(cmds) {
		t.Fatalf("setup wrote %d commands, want %d", len(rest), len(cmds))
	}
	for i, tx := range rest {
		if len(tx) != 4 {
			t.Fatalf("setup command %d = %#v, want 4 bytes", i, tx)
		}
		if got := decodeChar(tx); got != cmds[i] {
			t.Errorf("setup command %d = %#02x, want %#02x", i, got, cmds[i])
		}
		if tx[1]&lcdPinRS != 0 {
			t.Errorf("setup command %d has RS set", i)
		}
	}
}

// TestLCDLine verifies row addressing, padding and the RS data flag.
func TestLCDLine(t *testing.T) {
	l, bus := newTestLCD(t)

	if err := l.Line(1, "Soil: 512"); err != nil {
		t.Fatalf("Line: %v", err)
	}

	if len(bus.writes) != 1+LCDWidth {
		t.Fatalf("Line wrote %d transactions, want %d", len(bus.writes), 1+LCDWidth)
	}

	// Row command first, RS clear.
	if got := decodeChar(bus.writes[0]); got != lcdCmdRowBase1 {
		t.Errorf("row command = %#02x, want %#02x", got, lcdCmdRowBase1)
	}
	if bus.writes[0][1]&lcdPinRS != 0 {
		t.Error("row command has RS set")
	}

	// Characters follow, RS set, padded to the full width.
	var text []byte
	for _, tx := range bus.writes[1:] {
		for _, b := range tx {
			if b&lcdPinRS == 0 {
				t.Fatalf("data frame without RS: %#v", tx)
			}
			if b&lcdPinBacklight == 0 {
				t.Fatalf("data frame without backlight: %#v", tx)
			}
		}
		text = append(text, decodeChar(tx))
	}
	if got := string(text); got != "Soil: 512       " {
		t.Errorf("rendered text = %q", got)
	}
}

// TestLCDLineTruncatesAndSanitizes verifies overlong and non-printable input.
func TestLCDLineTruncatesAndSanitizes(t *testing.T) {
	l, bus := newTestLCD(t)

	if err := l.Line(0, "temperature readings overflow"); err != nil {
		t.Fatalf("Line: %v", err)
	}
	var text []byte
	for _, tx := range bus.writes[1:] {
		text = append(text, decodeChar(tx))
	}
	if got := string(text); got != "temperature read" {
		t.Errorf("truncated text = %q", got)
	}

	bus.writes = nil
	if err := l.Line(0, "a\tb"); err != nil {
		t.Fatalf("Line: %v", err)
	}
	if got := decodeChar(bus.writes[2]); got != '?' {
		t.Errorf("control char rendered as %q, want '?'", got)
	}
}

// TestLCDRowRange verifies row validation.
func TestLCDRowRange(t *testing.T) {
	l, bus := newTestLCD(t)

	if err := l.Line(2, "x"); err == nil {
		t.Error("row 2 should fail on a two-line module")
	}
	if len(bus.writes) != 0 {
		t.Errorf("invalid row still wrote %d transactions", len(bus.writes))
	}
}
