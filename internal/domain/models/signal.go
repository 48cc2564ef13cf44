package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"EarlyPump/pkg/util"
)

// Signal is one feed entry as received from the signals endpoint.
type Signal struct {
	Coin   string     `json:"coin"`
	Price  float64    `json:"price"`
	Change float64    `json:"change"`
	Volume SpikeValue `json:"volume"`
}

// SignalFeed is the document served by a signals endpoint.
type SignalFeed struct {
	Signals []Signal `json:"signals"`
}

// SpikeValue is the volume field as displayed. The feed sends either a number or a
// label like "3.2x"; labels are kept verbatim.
type SpikeValue string

func (v *SpikeValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = SpikeValue(s)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("volume must be a number or string: %w", err)
		}
		// numbers print like price and change: 1e6 as 1000000, 3.20 as 3.2
		*v = SpikeValue(util.FormatNumber(f))
	}
	return nil
}

func (v SpikeValue) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(string(v), 64); err == nil {
		return []byte(v), nil
	}
	return json.Marshal(string(v))
}

// PumpSignal is an early-pump candidate produced by the detector. It is a superset of Signal.
type PumpSignal struct {
	ID       string    `json:"id"`
	Coin     string    `json:"coin"`
	Price    float64   `json:"price"`
	Change   float64   `json:"change"`
	Volume   float64   `json:"volume"`
	Entry    float64   `json:"entry"`
	Target   float64   `json:"target"`
	Stoploss float64   `json:"stoploss"`
	Strength string    `json:"strength"`
	Time     time.Time `json:"time"`
}

// PumpFeed is the document served at /api/early-pump.
type PumpFeed struct {
	Signals     []PumpSignal `json:"signals"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Ticker is the subset of the Binance 24h ticker used by the detector.
type Ticker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}
