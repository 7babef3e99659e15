package hardware

import (
	"fmt"
	"time"
)

// noSleep strips conversion delays out of driver calls.
var noSleep sleepFunc = func(time.Duration) {}

// fakeBus records writes and serves reads from a queue, one entry per
// ReadBytes call.
type fakeBus struct {
	addrs    []byte
	writes   [][]byte
	writeErr error

	reads   [][]byte
	readErr error
}

func (b *fakeBus) WriteBytes(addr byte, value []byte) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	b.addrs = append(b.addrs, addr)
	cp := make([]byte, len(value))
	copy(cp, value)
	b.writes = append(b.writes, cp)
	return nil
}

func (b *fakeBus) ReadBytes(addr byte, num int) ([]byte, error) {
	if b.readErr != nil {
		return nil, b.readErr
	}
	if len(b.reads) == 0 {
		return nil, fmt.Errorf("fakeBus: no queued read for addr %#02x", addr)
	}
	next := b.reads[0]
	b.reads = b.reads[1:]
	if len(next) != num {
		return nil, fmt.Errorf("fakeBus: queued %d bytes, caller wants %d", len(next), num)
	}
	return next, nil
}

// queueRead appends a canned response for the next ReadBytes call.
func (b *fakeBus) queueRead(data ...byte) {
	b.reads = append(b.reads, data)
}
