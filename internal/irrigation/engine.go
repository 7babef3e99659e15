// Package irrigation implements the watering policy: the rain-aware
// decision tree and the tick-counted pump loops it drives.
//
// Raw scales matter here. On the soil probe a lower value means drier soil;
// on the rain sensor a lower value means heavier rain. The thresholds are
// written in those raw scales and compared directly, with no unit
// conversion in between.
package irrigation

import (
	"context"
	"log/slog"
	"time"

	"pumphouse/internal/types"
)

// Pump switches the irrigation relay. Implemented by hardware.Pump.
type Pump interface {
	On() error
	Off() error
}

// SoilReader reads the soil channel while the pump runs. Implemented by
// sensors.Gateway.
type SoilReader interface {
	ReadSoil() (int, error)
}

// SoilDisplay shows the live soil value during watering. Implemented by
// display.Renderer.
type SoilDisplay interface {
	ShowSoil(raw int)
}

// Thresholds are the raw-scale decision points.
type Thresholds struct {
	SoilDry     int
	SoilVeryDry int
	RainHeavy   int
	RainLight   int
}

// Limits bound the watering loops.
type Limits struct {
	FullCap    time.Duration
	PartialCap time.Duration
	Tick       time.Duration
}

// Engine owns the watering decision and the pump while it runs.
type Engine struct {
	pump       Pump
	soil       SoilReader
	display    SoilDisplay
	thresholds Thresholds
	limits     Limits
	liveness   func()
	sleepFn    func(time.Duration)
	logger     *slog.Logger
}

// EngineConfig holds the collaborators for creating an Engine.
type EngineConfig struct {
	Pump Pump
	Soil SoilReader
	// Display shows live soil values mid-loop. Optional.
	Display    SoilDisplay
	Thresholds Thresholds
	Limits     Limits
	// Liveness is invoked every tick so the watchdog stays fed through a
	// three-minute watering run. Optional.
	Liveness func()
	// Logger for decisions and loop events. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	liveness := cfg.Liveness
	if liveness == nil {
		liveness = func() {}
	}
	th := cfg.Thresholds
	if th.SoilDry == 0 {
		th.SoilDry = 200
	}
	if th.SoilVeryDry == 0 {
		th.SoilVeryDry = 400
	}
	if th.RainHeavy == 0 {
		th.RainHeavy = 800
	}
	if th.RainLight == 0 {
		th.RainLight = 990
	}
	lim := cfg.Limits
	if lim.FullCap <= 0 {
		lim.FullCap = 180 * time.Second
	}
	if lim.PartialCap <= 0 {
		lim.PartialCap = 60 * time.Second
	}
	if lim.Tick <= 0 {
		lim.Tick = time.Second
	}
	return &Engine{
		pump:       cfg.Pump,
		soil:       cfg.Soil,
		display:    cfg.Display,
		thresholds: th,
		limits:     lim,
		liveness:   liveness,
		sleepFn:    time.Sleep,
		logger:     logger,
	}
}

// ShouldWater reports whether the reading calls for watering at all: soil
// below the dry threshold.
func (e *Engine) ShouldWater(r types.Reading) bool {
	return r.Soil < e.thresholds.SoilDry
}

// DecideAndActuate applies the decision tree to the reading and runs the
// matching pump loop. Whatever branch is taken, the pump is off when this
// returns. A non-nil error means the pump itself misbehaved, except for a
// context error, which means shutdown interrupted the loop.
func (e *Engine) DecideAndActuate(ctx context.Context, r types.Reading) error {
	switch {
	case r.Soil >= e.thresholds.SoilDry:
		e.logger.InfoContext(ctx, "soil moisture adequate, not watering", "soil", r.Soil)
		return e.ensureOff()

	case r.Rain < e.thresholds.RainHeavy:
		e.logger.InfoContext(ctx, "heavy rain, watering suppressed", "rain", r.Rain, "soil", r.Soil)
		return e.ensureOff()

	case r.Rain < e.thresholds.RainLight:
		if r.Soil < e.thresholds.SoilVeryDry {
			e.logger.InfoContext(ctx, "moderate rain with very dry soil, partial watering",
				"rain", r.Rain, "soil", r.Soil, "cap", e.limits.PartialCap)
			return e.water(ctx, e.limits.PartialCap, e.thresholds.SoilVeryDry)
		}
		e.logger.InfoContext(ctx, "moderate rain, watering suppressed", "rain", r.Rain, "soil", r.Soil)
		return e.ensureOff()

	default:
		e.logger.InfoContext(ctx, "no rain, full watering",
			"rain", r.Rain, "soil", r.Soil, "cap", e.limits.FullCap)
		return e.water(ctx, e.limits.FullCap, e.thresholds.SoilDry)
	}
}

// water runs the pump until the soil reaches stopAt, the cap expires, the
// soil sensor dies, or the context ends. Every exit path turns the pump off.
func (e *Engine) water(ctx context.Context, ceiling time.Duration, stopAt int) error {
	if err := e.pump.On(); err != nil {
		// State unknown after a failed switch; try to force it off.
		_ = e.pump.Off()
		return types.NewAppError(types.FaultPump, "pump on failed", err)
	}

	ticks := int(ceiling / e.limits.Tick)
	ran := 0
	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			break
		}
		e.liveness()
		e.sleepFn(e.limits.Tick)
		ran++

		v, err := e.soil.ReadSoil()
		if err != nil {
			e.logger.WarnContext(ctx, "soil read failed mid-watering, stopping early", "error", err)
			break
		}
		if e.display != nil {
			e.display.ShowSoil(v)
		}
		if v >= stopAt {
			e.logger.InfoContext(ctx, "soil target reached", "soil", v, "target", stopAt, "ticks", ran)
			break
		}
	}

	if err := e.pump.Off(); err != nil {
		return types.NewAppError(types.FaultPump, "pump off failed", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "watering finished", "ticks", ran, "cap_ticks", ticks)
	return nil
}

func (e *Engine) ensureOff() error {
	if err := e.pump.Off(); err != nil {
		return types.NewAppError(types.FaultPump, "pump off failed", err)
	}
	return nil
}
