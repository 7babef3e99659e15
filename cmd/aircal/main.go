// Package main implements the aircal CLI tool for calibrating the
// air-quality sensor.
//
// The MQ-135 reports a resistance ratio against a clean-air baseline, so
// the absolute concentration is meaningless until the board has been
// sampled in known-clean air. This tool averages a burst of raw readings,
// derives the baseline resistance, and stores it in the calibration
// database the controller reads at boot.
//
// Run it once per board, outdoors, away from exhaust, after the sensor has
// had a few minutes to warm up:
//
//	go run ./cmd/aircal
//	go run ./cmd/aircal -samples 50 -interval 2s
//	go run ./cmd/aircal -db /var/lib/pumphouse/calibration.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reef-pi/rpi/i2c"

	"pumphouse/internal/calibration"
	"pumphouse/internal/hardware"
	"pumphouse/internal/sensors"
)

func main() {
	samplesFlag := flag.Int("samples", 25, "number of raw readings to average")
	intervalFlag := flag.Duration("interval", time.Second, "delay between readings")
	dbFlag := flag.String("db", "/var/lib/pumphouse/calibration.db", "calibration database path")
	addrFlag := flag.Uint("adc-addr", 72, "ADC I2C address (decimal)")
	flag.Parse()

	if *samplesFlag < 1 {
		fmt.Fprintln(os.Stderr, "error: -samples must be at least 1")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := calibrate(ctx, *samplesFlag, *intervalFlag, *dbFlag, byte(*addrFlag), logger); err != nil {
		logger.Error("calibration failed", "error", err)
		os.Exit(1)
	}
}

// calibrate samples the air channel, derives the clean-air baseline, and
// persists it.
func calibrate(ctx context.Context, samples int, interval time.Duration, dbPath string, adcAddr byte, logger *slog.Logger) error {
	bus, err := i2c.New()
	if err != nil {
		return fmt.Errorf("opening i2c bus: %w", err)
	}
	adc := hardware.NewADC(bus, adcAddr)

	logger.Info("sampling air channel",
		"samples", samples,
		"interval", interval,
	)

	total := 0
	for i := 0; i < samples; i++ {
		raw, err := adc.ReadChannel(sensors.ChannelAir)
		if err != nil {
			return fmt.Errorf("reading air channel (sample %d): %w", i+1, err)
		}
		total += raw
		logger.Info("sample", "n", i+1, "raw", raw)

		if i == samples-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	avg := int(math.Round(float64(total) / float64(samples)))
	rZero := sensors.BaselineFromRaw(avg)

	store, err := calibration.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	baseline := calibration.AirBaseline{
		RZero:        rZero,
		CalibratedAt: time.Now().UTC(),
		Samples:      samples,
	}
	if err := store.SaveAirBaseline(baseline); err != nil {
		return err
	}

	logger.Info("air baseline stored",
		"avg_raw", avg,
		"r_zero", rZero,
		"db", dbPath,
	)
	return nil
}
