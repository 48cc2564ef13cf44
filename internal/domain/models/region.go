package models

import (
	"time"

	"EarlyPump/pkg/util"
)

const (
	LoadingMessage = "🔄 Loading..."
	FailureMessage = "❌ Failed to load signals"
)

type RegionState string

const (
	RegionIdle    RegionState = "idle"
	RegionLoading RegionState = "loading"
	RegionSuccess RegionState = "success"
	RegionFailure RegionState = "failure"
)

// SignalCard holds the display strings of one rendered signal.
type SignalCard struct {
	Coin        string `json:"coin"`
	Price       string `json:"price"`
	Change      string `json:"change"`
	VolumeSpike string `json:"volume_spike"`
}

func NewSignalCard(s Signal) SignalCard {
	volume := string(s.Volume)
	if volume == "" {
		volume = "-"
	}
	return SignalCard{
		Coin:        s.Coin,
		Price:       "$" + util.FormatNumber(s.Price),
		Change:      util.FormatNumber(s.Change) + "%",
		VolumeSpike: volume,
	}
}

// Lines returns the card as the four labelled lines shown to the viewer.
func (c SignalCard) Lines() []string {
	return []string{
		"Coin: " + c.Coin,
		"Price: " + c.Price,
		"Change: " + c.Change,
		"Volume Spike: " + c.VolumeSpike,
	}
}

// RegionContent is the full content of a display region; every write replaces it entirely.
type RegionContent struct {
	Region     string       `json:"region"`
	State      RegionState  `json:"state"`
	Message    string       `json:"message,omitempty"`
	Cards      []SignalCard `json:"cards"`
	Generation uint64       `json:"generation"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func IdleContent(region string) RegionContent {
	return RegionContent{Region: region, State: RegionIdle, Cards: []SignalCard{}}
}

func LoadingContent(region string) RegionContent {
	return RegionContent{Region: region, State: RegionLoading, Message: LoadingMessage, Cards: []SignalCard{}}
}

func FailureContent(region string) RegionContent {
	return RegionContent{Region: region, State: RegionFailure, Message: FailureMessage, Cards: []SignalCard{}}
}

func SuccessContent(region string, feed SignalFeed) RegionContent {
	cards := make([]SignalCard, 0, len(feed.Signals))
	for _, s := range feed.Signals {
		cards = append(cards, NewSignalCard(s))
	}
	return RegionContent{Region: region, State: RegionSuccess, Cards: cards}
}
