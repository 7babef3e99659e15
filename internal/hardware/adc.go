package hardware

import (
	"encoding/binary"
	"fmt"
	"time"
)

// ADS1115 register pointers.
const (
	adcRegConversion = 0x00
	adcRegConfig     = 0x01
)

// ADS1115 config word fields for a single-shot, single-ended read:
// start conversion, PGA +-4.096V, 128 SPS, comparator disabled.
const (
	adcCfgStartSingle = 0x8000
	adcCfgMuxSingle   = 0x4000 // AINx vs GND, channel in bits 13:12
	adcCfgGain4V      = 0x0200
	adcCfgModeSingle  = 0x0100
	adcCfgRate128SPS  = 0x0080
	adcCfgCompOff     = 0x0003
)

// adcConversionDelay covers one conversion at 128 SPS (7.8ms) with margin.
const adcConversionDelay = 9 * time.Millisecond

// ADC reads the four analog sensors through an ADS1115. Readings are scaled
// to the 10-bit range [0,1023] that the decision thresholds are written in.
type ADC struct {
	bus     Bus
	addr    byte
	sleepFn sleepFunc
}

// NewADC creates a driver for the converter at addr.
func NewADC(bus Bus, addr byte) *ADC {
	return &ADC{bus: bus, addr: addr, sleepFn: time.Sleep}
}

// ReadChannel performs a single-shot conversion on channel ch (0..3) and
// returns the reading scaled to [0,1023].
func (a *ADC) ReadChannel(ch int) (int, error) {
	if ch < 0 || ch > 3 {
		return 0, fmt.Errorf("adc channel %d out of range", ch)
	}

	cfg := uint16(adcCfgStartSingle | adcCfgMuxSingle | adcCfgGain4V |
		adcCfgModeSingle | adcCfgRate128SPS | adcCfgCompOff)
	cfg |= uint16(ch) << 12

	var word [2]byte
	binary.BigEndian.PutUint16(word[:], cfg)
	if err := a.bus.WriteBytes(a.addr, []byte{adcRegConfig, word[0], word[1]}); err != nil {
		return 0, fmt.Errorf("adc start conversion ch%d: %w", ch, err)
	}

	a.sleepFn(adcConversionDelay)

	if err := a.bus.WriteBytes(a.addr, []byte{adcRegConversion}); err != nil {
		return 0, fmt.Errorf("adc select conversion register: %w", err)
	}
	data, err := a.bus.ReadBytes(a.addr, 2)
	if err != nil {
		return 0, fmt.Errorf("adc read ch%d: %w", ch, err)
	}
	if len(data) != 2 {
		return 0, fmt.Errorf("adc read ch%d: got %d bytes", ch, len(data))
	}

	raw := int16(binary.BigEndian.Uint16(data))
	// Single-ended readings below ground are noise.
	if raw < 0 {
		raw = 0
	}
	// 15 significant bits down to the 10-bit threshold scale.
	return int(raw >> 5), nil
}
