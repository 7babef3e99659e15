// Package display renders readings, watering progress and faults onto the
// 16x2 character screen. Rendering is best effort: a dead display never
// stops the control loop, it only costs log lines.
package display

import "sync"

// Rows and Width match the character module on the board.
const (
	Rows  = 2
	Width = 16
)

// Screen is a two-line character display. Implemented by hardware.LCD.
type Screen interface {
	Line(row int, text string) error
	Clear() error
}

// MemScreen is an in-memory Screen. It backs tests and keeps the daemon
// runnable on boards without a display wired up.
type MemScreen struct {
	mu    sync.Mutex
	lines [Rows]string
}

func NewMemScreen() *MemScreen {
	return &MemScreen{}
}

func (m *MemScreen) Line(row int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row >= 0 && row < Rows {
		m.lines[row] = text
	}
	return nil
}

func (m *MemScreen) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = [Rows]string{}
	return nil
}

// Lines returns the current contents, row 0 first.
func (m *MemScreen) Lines() [Rows]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines
}
