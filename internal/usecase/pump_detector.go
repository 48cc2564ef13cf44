package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"EarlyPump/internal/domain/models"
	drepo "EarlyPump/internal/domain/repository"
	"EarlyPump/pkg/util"

	"github.com/google/uuid"
)

// DetectorConfig holds the early-pump rule. Changes are percentages.
type DetectorConfig struct {
	QuoteAsset     string
	MinChange      float64
	MaxChange      float64
	MinQuoteVolume float64
	EntryFactor    float64
	TargetFactor   float64
	StopFactor     float64
	Strength       string
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		QuoteAsset:     "USDT",
		MinChange:      2,
		MaxChange:      5,
		MinQuoteVolume: 500000,
		EntryFactor:    1.001,
		TargetFactor:   1.03,
		StopFactor:     0.99,
		Strength:       "Medium",
	}
}

// PumpDetector picks pairs with a moderate 24h gain on high quote volume.
type PumpDetector struct {
	source drepo.TickerSource
	cfg    DetectorConfig
	now    func() time.Time
	newID  func() string
}

func NewPumpDetector(source drepo.TickerSource, cfg DetectorConfig) *PumpDetector {
	return &PumpDetector{
		source: source,
		cfg:    cfg,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Detect fetches the tickers and keeps the matching ones in ticker order.
func (d *PumpDetector) Detect(ctx context.Context) ([]models.PumpSignal, error) {
	tickers, err := d.source.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return d.Filter(tickers), nil
}

// Filter applies the rule to tickers. Entries whose numbers do not parse are skipped.
func (d *PumpDetector) Filter(tickers []models.Ticker) []models.PumpSignal {
	at := d.now().UTC()
	out := make([]models.PumpSignal, 0)
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, d.cfg.QuoteAsset) {
			continue
		}
		change, err := strconv.ParseFloat(t.PriceChangePercent, 64)
		if err != nil {
			continue
		}
		volume, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			continue
		}
		if change <= d.cfg.MinChange || change >= d.cfg.MaxChange || volume <= d.cfg.MinQuoteVolume {
			continue
		}
		last, err := strconv.ParseFloat(t.LastPrice, 64)
		if err != nil {
			continue
		}
		out = append(out, models.PumpSignal{
			ID:       d.newID(),
			Coin:     t.Symbol,
			Price:    last,
			Change:   change,
			Volume:   volume,
			Entry:    util.Round(last*d.cfg.EntryFactor, 6),
			Target:   util.Round(last*d.cfg.TargetFactor, 6),
			Stoploss: util.Round(last*d.cfg.StopFactor, 6),
			Strength: d.cfg.Strength,
			Time:     at,
		})
	}
	return out
}
