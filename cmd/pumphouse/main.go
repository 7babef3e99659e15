// Package main is the entrypoint for the pumphouse irrigation controller.
//
// The daemon wires the board drivers, the sensor gateway, the irrigation
// engine, the telemetry uploader, and the fault manager into the control
// loop, then runs the loop alongside the local status server until a
// termination signal arrives.
//
// Hardware that is missing on the current machine degrades instead of
// failing the boot: a dead I2C bus faults the sensor cycle, a missing LCD
// falls back to an in-memory screen, and a missing GPIO relay disables
// actuation. Only a broken environment or an explicitly requested watchdog
// that cannot be opened stop the process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/reef-pi/rpi/i2c"
	"golang.org/x/sync/errgroup"

	"pumphouse/internal/calibration"
	"pumphouse/internal/config"
	"pumphouse/internal/controller"
	"pumphouse/internal/display"
	"pumphouse/internal/faults"
	"pumphouse/internal/hardware"
	"pumphouse/internal/irrigation"
	"pumphouse/internal/network"
	"pumphouse/internal/sensors"
	"pumphouse/internal/status"
	"pumphouse/internal/telemetry"
	"pumphouse/internal/timesync"
	"pumphouse/internal/types"
	"pumphouse/internal/watchdog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Every log line of one boot carries the same session id, so interleaved
	// journals from a reboot loop stay separable.
	session := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})).With("service", cfg.Service, "session", session)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("pumphouse controller starting",
		"environment", cfg.Environment,
		"endpoint", cfg.Upload.Endpoint,
		"status_addr", cfg.Status.Addr,
	)

	if err := run(ctx, cfg, session, logger); err != nil {
		logger.Error("controller exited", "error", err)
		os.Exit(1)
	}
	logger.Info("controller stopped")
}

// run wires the dependency graph and blocks until the control loop and the
// status server have both stopped.
func run(ctx context.Context, cfg *config.Config, session string, logger *slog.Logger) error {
	// I2C bus. A bench machine without one still boots; every sensor read
	// faults and the loop shows the fault instead of data.
	var bus hardware.Bus
	bus, err := i2c.New()
	if err != nil {
		logger.Warn("i2c bus unavailable, sensor reads will fault", "error", err)
		bus = deadBus{err: err}
	}

	// Air-quality model, calibrated if the aircal tool has run on this board.
	airModel := sensors.NewAirModel(cfg.Air.RZeroDefault)
	store, err := calibration.Open(cfg.Air.CalibrationPath)
	if err != nil {
		logger.Warn("calibration store unavailable, using default air baseline",
			"error", err,
			"r_zero", cfg.Air.RZeroDefault,
		)
	} else {
		defer store.Close()
		baseline, err := store.AirBaseline()
		switch {
		case err != nil:
			logger.Warn("reading air baseline failed", "error", err)
		case baseline == nil:
			logger.Info("no stored air baseline, using default", "r_zero", cfg.Air.RZeroDefault)
		default:
			airModel = sensors.NewAirModel(baseline.RZero)
			logger.Info("air baseline loaded",
				"r_zero", baseline.RZero,
				"calibrated_at", baseline.CalibratedAt,
				"samples", baseline.Samples,
			)
		}
	}

	adc := hardware.NewADC(bus, byte(cfg.Hardware.ADCAddr))
	climate := hardware.NewClimate(bus, byte(cfg.Hardware.ClimateAddr))

	var pumpDev irrigation.Pump
	pump, err := hardware.NewPump(cfg.Hardware.GPIORoot, cfg.Hardware.PumpGPIO)
	if err != nil {
		logger.Warn("pump gpio unavailable, actuation disabled", "error", err)
		pumpDev = disabledPump{}
	} else {
		defer pump.Close()
		defer func() { _ = pump.Off() }()
		pumpDev = pump
	}

	var screen display.Screen
	lcd, err := hardware.NewLCD(bus, byte(cfg.Hardware.DisplayAddr))
	if err != nil {
		logger.Warn("lcd init failed, using in-memory screen", "error", err)
		screen = display.NewMemScreen()
	} else {
		screen = lcd
	}

	dog, err := watchdog.Detect(watchdog.Config{
		Mode:       cfg.Watchdog.Mode,
		DevicePath: cfg.Watchdog.DevicePath,
		Timeout:    cfg.Watchdog.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("detecting watchdog: %w", err)
	}
	defer dog.Close()

	keeper := timesync.NewSource(timesync.SourceConfig{
		Server:  cfg.TimeSync.Server,
		Timeout: cfg.TimeSync.Timeout,
		Logger:  logger,
	})

	probeAddr, err := network.ProbeAddrFromURL(cfg.Upload.Endpoint)
	if err != nil {
		return fmt.Errorf("deriving probe address: %w", err)
	}
	net := network.NewManager(network.ManagerConfig{
		ProbeAddr:    probeAddr,
		ProbeTimeout: cfg.Network.ProbeTimeout,
		MaxRetries:   cfg.Network.MaxRetries,
		Liveness:     dog.Feed,
		Logger:       logger,
	})

	registry := prometheus.NewRegistry()
	collector := status.NewCollector(registry)

	renderer := display.NewRenderer(display.RendererConfig{
		Screen: screen,
		Clock:  keeper,
		Rotate: cfg.Intervals.PageRotate,
		Logger: logger,
	})

	manager := faults.NewManager(faults.ManagerConfig{
		Net:         net,
		TimeSync:    keeper,
		Screen:      renderer,
		Clock:       keeper,
		MaxFailures: cfg.Upload.MaxFailures,
		Logger:      logger,
	})

	gateway := sensors.NewGateway(sensors.GatewayConfig{
		ADC:     adc,
		Climate: climate,
		Clock:   keeper,
		Faults:  faultRecorder{manager: manager, collector: collector},
		Air:     airModel,
		Logger:  logger,
	})

	engine := irrigation.NewEngine(irrigation.EngineConfig{
		Pump:    pumpDev,
		Soil:    gateway,
		Display: renderer,
		Thresholds: irrigation.Thresholds{
			SoilDry:     cfg.Thresholds.SoilDry,
			SoilVeryDry: cfg.Thresholds.SoilVeryDry,
			RainHeavy:   cfg.Thresholds.RainHeavy,
			RainLight:   cfg.Thresholds.RainLight,
		},
		Limits: irrigation.Limits{
			FullCap:    cfg.Watering.FullCap,
			PartialCap: cfg.Watering.PartialCap,
			Tick:       cfg.Watering.Tick,
		},
		Liveness: dog.Feed,
		Logger:   logger,
	})

	client := telemetry.NewClient(telemetry.ClientConfig{
		Timeout: 2 * cfg.Upload.Timeout,
		Logger:  logger,
	})

	var mirror telemetry.Mirror
	if cfg.Mirror.Enabled {
		pub, err := telemetry.NewMirrorPublisher(telemetry.MirrorPublisherConfig{
			BrokerURL: cfg.Mirror.BrokerURL,
			Topic:     cfg.Mirror.Topic,
			ClientID:  cfg.Mirror.ClientID,
			Username:  cfg.Mirror.Username,
			Password:  cfg.Mirror.Password,
			Logger:    logger,
		})
		if err != nil {
			logger.Warn("mirror broker unavailable, mirroring disabled", "error", err)
		} else {
			defer pub.Close()
			mirror = pub
		}
	}

	uploader := telemetry.NewUploader(telemetry.UploaderConfig{
		Client:   client,
		Net:      net,
		Mirror:   mirror,
		Endpoint: cfg.Upload.Endpoint,
		APIKey:   cfg.Upload.APIKey,
		Timeout:  cfg.Upload.Timeout,
		Clock:    keeper,
		Logger:   logger,
	})

	machine := controller.NewMachine(controller.MachineConfig{
		Sensors:        gateway,
		Engine:         engine,
		Renderer:       renderer,
		Uploader:       uploader,
		Faults:         manager,
		Keeper:         keeper,
		Watchdog:       dog,
		Clock:          keeper,
		Metrics:        collector,
		SendInterval:   cfg.Intervals.Send,
		Pace:           cfg.Intervals.Pace,
		ErrorBackoff:   cfg.Intervals.ErrorBackoff,
		ResyncInterval: cfg.Intervals.Resync,
		Logger:         logger,
	})

	server := status.NewServer(status.ServerConfig{
		Service: cfg.Service,
		Session: session,
		Addr:    cfg.Status.Addr,
		Loop:    machine,
		Faults:  manager,
		Probes: []status.HealthProbe{
			status.ProbeFunc{ProbeName: "network", Fn: net.Probe},
			status.ProbeFunc{ProbeName: "clock", Fn: func(ctx context.Context) error {
				if !keeper.Synced() {
					return errors.New("clock never synced")
				}
				return nil
			}},
		},
		Registry: registry,
		Logger:   logger,
	})

	logger.Info("controller initialized",
		"probe_addr", probeAddr,
		"send_interval", cfg.Intervals.Send,
		"watchdog_timeout", dog.Timeout(),
		"mirror_enabled", mirror != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return machine.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// faultRecorder fans sensor faults out to the fault manager and the metrics
// collector, matching what the control loop does for the faults it raises
// itself.
type faultRecorder struct {
	manager   *faults.Manager
	collector *status.Collector
}

func (f faultRecorder) Report(code types.FaultCode) {
	f.manager.Report(code)
	f.collector.ObserveFault(code)
}

// deadBus stands in for the I2C bus on machines without one. Every access
// fails with the original open error.
type deadBus struct {
	err error
}

func (b deadBus) WriteBytes(addr byte, value []byte) error     { return b.err }
func (b deadBus) ReadBytes(addr byte, num int) ([]byte, error) { return nil, b.err }

// disabledPump keeps the irrigation engine wired when the GPIO relay could
// not be opened.
type disabledPump struct{}

func (disabledPump) On() error  { return nil }
func (disabledPump) Off() error { return nil }

// parseLevel maps the configured log level name to a slog.Level. Unknown
// names fall back to info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
