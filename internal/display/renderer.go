package display

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pumphouse/internal/types"
)

// Pages is the number of rotating data pages.
const Pages = 4

// TimeSource provides display time and sync status. Implemented by
// timesync.Source.
type TimeSource interface {
	Now() time.Time
	Synced() bool
}

// Renderer drives the screen: four rotating pages of readings, a live soil
// view during watering, and fault banners.
type Renderer struct {
	screen Screen
	clock  TimeSource
	rotate time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	page     int
	lastFlip time.Time
}

// RendererConfig holds the collaborators for creating a Renderer.
type RendererConfig struct {
	Screen Screen
	Clock  TimeSource
	// Rotate is how long each page stays up. Defaults to 5s.
	Rotate time.Duration
	// Logger for render failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewRenderer creates a Renderer with the given configuration.
func NewRenderer(cfg RendererConfig) *Renderer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rotate := cfg.Rotate
	if rotate <= 0 {
		rotate = 5 * time.Second
	}
	return &Renderer{
		screen: cfg.Screen,
		clock:  cfg.Clock,
		rotate: rotate,
		logger: logger,
	}
}

// Render draws the current page for the reading, advancing the page when
// its rotation interval has elapsed. While an upload is in flight the
// second row shows progress instead of page data.
func (r *Renderer) Render(reading types.Reading, state types.State) {
	now := r.clock.Now()

	r.mu.Lock()
	if r.lastFlip.IsZero() {
		r.lastFlip = now
	} else if now.Sub(r.lastFlip) >= r.rotate {
		r.page = (r.page + 1) % Pages
		r.lastFlip = now
	}
	page := r.page
	r.mu.Unlock()

	top, bottom := r.pageLines(page, reading, now)
	if state == types.StateSendData || state == types.StateAsyncSending {
		bottom = "Sending data..."
	}
	r.lines(top, bottom)
}

func (r *Renderer) pageLines(page int, reading types.Reading, now time.Time) (string, string) {
	switch page {
	case 0:
		return fmt.Sprintf("Temp: %5.1f C", reading.Temperature),
			fmt.Sprintf("Hum:  %5.1f %%", reading.Humidity)
	case 1:
		return fmt.Sprintf("Soil %4d %s", reading.Soil, level(reading.Soil, false)),
			fmt.Sprintf("Rain %4d %s", reading.Rain, level(reading.Rain, true))
	case 2:
		return fmt.Sprintf("Lght %4d %s", reading.Light, level(reading.Light, true)),
			fmt.Sprintf("Air %6.0f ppm", reading.AirPPM)
	default:
		mark := ""
		if !r.clock.Synced() {
			mark = " ?"
		}
		return fmt.Sprintf("%s%s", now.Format("15:04:05"), mark),
			now.Format("2006-01-02")
	}
}

// ShowSoil is the live view while the pump runs.
func (r *Renderer) ShowSoil(raw int) {
	r.lines("Watering...", fmt.Sprintf("Soil %4d %s", raw, level(raw, false)))
}

// ShowError puts up a fault banner. It stays until the next Render.
func (r *Renderer) ShowError(code types.FaultCode) {
	r.lines(fmt.Sprintf("FAULT: %s", code), faultHint(code))
}

func faultHint(code types.FaultCode) string {
	switch code {
	case types.FaultDht:
		return "climate sensor"
	case types.FaultSoil:
		return "soil sensor"
	case types.FaultRain:
		return "rain sensor"
	case types.FaultAir:
		return "air sensor"
	case types.FaultLdr:
		return "light sensor"
	case types.FaultPump:
		return "check pump"
	case types.FaultWifi:
		return "network down"
	case types.FaultServer:
		return "upload failing"
	case types.FaultTime:
		return "clock unsynced"
	default:
		return ""
	}
}

func (r *Renderer) lines(top, bottom string) {
	if err := r.screen.Line(0, top); err != nil {
		r.logger.Warn("display write failed", "row", 0, "error", err)
		return
	}
	if err := r.screen.Line(1, bottom); err != nil {
		r.logger.Warn("display write failed", "row", 1, "error", err)
	}
}
