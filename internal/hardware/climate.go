package hardware

import (
	"fmt"
	"time"
)

// SHT3x single-shot measurement, high repeatability, no clock stretching.
var climateCmdMeasure = []byte{0x24, 0x00}

// climateMeasureDelay covers a high-repeatability measurement (12.5ms typ).
const climateMeasureDelay = 15 * time.Millisecond

// Climate reads temperature and relative humidity from an SHT3x sensor.
type Climate struct {
	bus     Bus
	addr    byte
	sleepFn sleepFunc
}

// NewClimate creates a driver for the sensor at addr.
func NewClimate(bus Bus, addr byte) *Climate {
	return &Climate{bus: bus, addr: addr, sleepFn: time.Sleep}
}

// Read triggers one measurement and returns temperature in Celsius and
// relative humidity in percent. Both words are CRC-checked.
func (c *Climate) Read() (temperature, humidity float64, err error) {
	if err := c.bus.WriteBytes(c.addr, climateCmdMeasure); err != nil {
		return 0, 0, fmt.Errorf("climate trigger measurement: %w", err)
	}

	c.sleepFn(climateMeasureDelay)

	data, err := c.bus.ReadBytes(c.addr, 6)
	if err != nil {
		return 0, 0, fmt.Errorf("climate read: %w", err)
	}
	if len(data) != 6 {
		return 0, 0, fmt.Errorf("climate read: got %d bytes", len(data))
	}

	if crc8(data[0:2]) != data[2] {
		return 0, 0, fmt.Errorf("climate temperature crc mismatch")
	}
	if crc8(data[3:5]) != data[5] {
		return 0, 0, fmt.Errorf("climate humidity crc mismatch")
	}

	rawT := uint16(data[0])<<8 | uint16(data[1])
	rawH := uint16(data[3])<<8 | uint16(data[4])

	temperature = -45.0 + 175.0*float64(rawT)/65535.0
	humidity = 100.0 * float64(rawH) / 65535.0
	return temperature, humidity, nil
}

// crc8 is the SHT3x checksum: polynomial 0x31, init 0xFF, no reflection.
// The datasheet vector is crc8(0xBE 0xEF) = 0x92.
func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
