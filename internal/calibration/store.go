// Package calibration persists per-board sensor calibration. The store is a
// single-file bbolt database so calibration survives reflashes of the
// application binary and power loss mid-write.
package calibration

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketCalibration = []byte("calibration")
	keyAir            = []byte("air")
)

// AirBaseline is the stored air-quality sensor calibration: the sensor's
// resistance in clean air, in kilo-ohms.
type AirBaseline struct {
	RZero        float64   `json:"r_zero"`
	CalibratedAt time.Time `json:"calibrated_at"`
	Samples      int       `json:"samples"`
}

// Store is a handle to the calibration database.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the calibration database at path. The
// open blocks at most one second waiting for a file lock, so a stale lock
// from a crashed process fails fast instead of hanging the boot.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open calibration db %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// SaveAirBaseline stores the air sensor baseline, replacing any previous one.
func (s *Store) SaveAirBaseline(b AirBaseline) error {
	buf, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal air baseline: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(bucketCalibration)
		if err != nil {
			return err
		}
		return bkt.Put(keyAir, buf)
	})
}

// AirBaseline returns the stored baseline, or nil when the board has never
// been calibrated.
func (s *Store) AirBaseline() (*AirBaseline, error) {
	var out *AirBaseline
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketCalibration)
		if bkt == nil {
			return nil
		}
		raw := bkt.Get(keyAir)
		if raw == nil {
			return nil
		}
		var b AirBaseline
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("unmarshal air baseline: %w", err)
		}
		out = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}
