package sensors

import (
	"context"
	"log/slog"
	"sync"

	"pumphouse/internal/types"
)

// ADC channel assignments, fixed by the board wiring.
const (
	ChannelLight = 0
	ChannelRain  = 1
	ChannelAir   = 2
	ChannelSoil  = 3
)

// AnalogReader reads one ADC channel. Implemented by hardware.ADC.
type AnalogReader interface {
	ReadChannel(ch int) (int, error)
}

// ClimateSensor reads temperature and humidity. Implemented by
// hardware.Climate.
type ClimateSensor interface {
	Read() (temperature, humidity float64, err error)
}

// FaultSink receives the fault code for each failed check. Implemented by
// faults.Manager.
type FaultSink interface {
	Report(code types.FaultCode)
}

// NopSink discards fault reports. Used by tools that sample once and print.
type NopSink struct{}

func (NopSink) Report(types.FaultCode) {}

// Gateway reads every sensor in a fixed order and assembles a Reading.
//
// A failed or out-of-range check never aborts the cycle: the remaining
// sensors are still read, the failed one gets its fallback value, and the
// reading is marked invalid. When several checks fail in one cycle, each is
// reported in order, so the sink ends up holding the last failure.
type Gateway struct {
	adc     AnalogReader
	climate ClimateSensor
	clock   types.Clock
	faults  FaultSink
	air     *AirModel
	logger  *slog.Logger

	mu   sync.Mutex
	last types.Reading
}

// GatewayConfig holds the collaborators for creating a Gateway.
type GatewayConfig struct {
	ADC     AnalogReader
	Climate ClimateSensor
	// Clock stamps readings. Defaults to the system clock.
	Clock types.Clock
	// Faults receives failed-check codes. Defaults to NopSink.
	Faults FaultSink
	// Air converts the raw air value. Defaults to the uncalibrated model.
	Air *AirModel
	// Logger for per-cycle diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewGateway creates a Gateway with the given collaborators.
func NewGateway(cfg GatewayConfig) *Gateway {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	var faults FaultSink = cfg.Faults
	if faults == nil {
		faults = NopSink{}
	}
	air := cfg.Air
	if air == nil {
		air = NewAirModel(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		adc:     cfg.ADC,
		climate: cfg.Climate,
		clock:   clock,
		faults:  faults,
		air:     air,
		logger:  logger,
	}
}

// Sample runs one full sensor cycle: climate, light, rain, air, soil.
//
// On climate failure the previous cycle's temperature and humidity carry
// over, since pumping stale climate numbers is better than pumping zeros
// into the uploaded series. Analog failures take per-sensor fallbacks
// chosen to keep the irrigation policy conservative.
func (g *Gateway) Sample(ctx context.Context) types.Reading {
	g.mu.Lock()
	prev := g.last
	g.mu.Unlock()

	r := types.Reading{
		Timestamp: g.clock.Now(),
		Valid:     true,
	}

	temp, hum, err := g.climate.Read()
	if err != nil {
		g.logger.WarnContext(ctx, "climate read failed", "error", err)
		g.faults.Report(types.FaultDht)
		r.Valid = false
		r.Temperature = prev.Temperature
		r.Humidity = prev.Humidity
	} else {
		r.Temperature = temp
		r.Humidity = hum
	}

	r.Light = g.analog(ctx, ChannelLight, types.FaultLdr, types.AnalogMin, &r.Valid)
	r.Rain = g.analog(ctx, ChannelRain, types.FaultRain, types.AnalogMax, &r.Valid)
	r.AirRaw = g.analog(ctx, ChannelAir, types.FaultAir, types.AnalogMin, &r.Valid)
	r.Soil = g.analog(ctx, ChannelSoil, types.FaultSoil, types.AnalogMax, &r.Valid)

	r.AirPPM = g.air.PPM(r.AirRaw)

	g.mu.Lock()
	g.last = r
	g.mu.Unlock()

	g.logger.DebugContext(ctx, "sensor cycle complete",
		"valid", r.Valid,
		"temperature", r.Temperature,
		"humidity", r.Humidity,
		"light", r.Light,
		"rain", r.Rain,
		"air_raw", r.AirRaw,
		"soil", r.Soil,
	)
	return r
}

// analog reads one channel, validates the range, and applies the fallback
// on failure.
func (g *Gateway) analog(ctx context.Context, ch int, code types.FaultCode, fallback int, valid *bool) int {
	v, err := g.adc.ReadChannel(ch)
	if err != nil {
		g.logger.WarnContext(ctx, "analog read failed", "channel", ch, "error", err)
		g.faults.Report(code)
		*valid = false
		return fallback
	}
	if !types.InAnalogRange(v) {
		g.logger.WarnContext(ctx, "analog read out of range", "channel", ch, "value", v)
		g.faults.Report(code)
		*valid = false
		return fallback
	}
	return v
}

// ReadSoil reads just the soil channel, for the tight loop that watches the
// soil while the pump runs.
func (g *Gateway) ReadSoil() (int, error) {
	v, err := g.adc.ReadChannel(ChannelSoil)
	if err != nil {
		return 0, types.NewAppError(types.FaultSoil, "soil read failed", err)
	}
	if !types.InAnalogRange(v) {
		return 0, types.NewAppError(types.FaultSoil, "soil read out of range", nil)
	}
	return v, nil
}
