// Package telemetry uploads readings to the collector. The wire contract is
// a flat JSON object and is shared with the collector's parser; field names,
// one-decimal climate values and the timestamp layout are all load-bearing.
package telemetry

import (
	"strconv"

	"pumphouse/internal/timesync"
	"pumphouse/internal/types"
)

// Decimal1 marshals with exactly one decimal place, matching what the
// collector's schema expects for climate values.
type Decimal1 float64

func (d Decimal1) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(d), 'f', 1, 64)), nil
}

// Payload is the upload body. The air field carries the RAW analog value,
// not the derived concentration; the collector applies its own curve.
type Payload struct {
	Temp  Decimal1 `json:"temp"`
	Hum   Decimal1 `json:"hum"`
	Light int      `json:"light"`
	Rain  int      `json:"rain"`
	Air   int      `json:"air"`
	Soil  int      `json:"soil"`
	Time  string   `json:"time"`
}

// NewPayload maps a reading onto the wire contract.
func NewPayload(r types.Reading) Payload {
	return Payload{
		Temp:  Decimal1(r.Temperature),
		Hum:   Decimal1(r.Humidity),
		Light: r.Light,
		Rain:  r.Rain,
		Air:   r.AirRaw,
		Soil:  r.Soil,
		Time:  timesync.FormatTimestamp(r.Timestamp),
	}
}
