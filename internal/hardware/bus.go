// Package hardware holds the board-level drivers: the I2C peripherals (ADC,
// climate sensor, character LCD) and the sysfs GPIO pump relay.
//
// Drivers take the Bus interface rather than a concrete bus so tests can run
// against a scripted fake. On the board the interface is satisfied by
// github.com/reef-pi/rpi/i2c.
package hardware

import "time"

// Bus is the subset of the I2C bus the drivers use. It is satisfied by
// i2c.Bus from github.com/reef-pi/rpi/i2c.
type Bus interface {
	WriteBytes(addr byte, value []byte) error
	ReadBytes(addr byte, num int) ([]byte, error)
}

// sleepFunc allows tests to strip conversion delays out of driver calls.
type sleepFunc func(time.Duration)
