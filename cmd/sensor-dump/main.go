// Package main implements the sensor-dump CLI tool. It runs one sensor
// cycle and prints the reading as JSON, for checking board wiring without
// starting the daemon.
//
// Logs go to stderr so the reading on stdout stays pipeable:
//
//	go run ./cmd/sensor-dump | jq .soil
//
// The exit code is non-zero when any sensor failed its plausibility check,
// so provisioning scripts can gate on it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/reef-pi/rpi/i2c"

	"pumphouse/internal/calibration"
	"pumphouse/internal/hardware"
	"pumphouse/internal/sensors"
)

func main() {
	adcFlag := flag.Uint("adc-addr", 72, "ADC I2C address (decimal)")
	climateFlag := flag.Uint("climate-addr", 68, "climate sensor I2C address (decimal)")
	rZeroFlag := flag.Float64("rzero", 76.63, "air baseline resistance when no calibration is stored")
	dbFlag := flag.String("db", "/var/lib/pumphouse/calibration.db", "calibration database path")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	bus, err := i2c.New()
	if err != nil {
		logger.Error("opening i2c bus failed", "error", err)
		os.Exit(1)
	}

	// Use the stored calibration when present so the dump shows the same
	// ppm figure the daemon would report.
	model := sensors.NewAirModel(*rZeroFlag)
	if store, err := calibration.Open(*dbFlag); err == nil {
		if baseline, err := store.AirBaseline(); err == nil && baseline != nil {
			model = sensors.NewAirModel(baseline.RZero)
		}
		store.Close()
	}

	gateway := sensors.NewGateway(sensors.GatewayConfig{
		ADC:     hardware.NewADC(bus, byte(*adcFlag)),
		Climate: hardware.NewClimate(bus, byte(*climateFlag)),
		Faults:  sensors.NopSink{},
		Air:     model,
		Logger:  logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reading := gateway.Sample(ctx)

	out, err := json.MarshalIndent(reading, "", "  ")
	if err != nil {
		logger.Error("encoding reading failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if !reading.Valid {
		os.Exit(1)
	}
}
