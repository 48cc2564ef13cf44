package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"EarlyPump/internal/domain/models"
	drepo "EarlyPump/internal/domain/repository"
	xhttp "EarlyPump/pkg/http"

	"github.com/go-playground/validator/v10"
)

// ErrNotJSON is returned when the feed body is not a JSON document.
var ErrNotJSON = errors.New("feed body is not valid JSON")

// ShapeError reports a JSON document that does not have the feed shape.
type ShapeError struct {
	Index  int // entry index, -1 for document level
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("feed shape: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("feed shape: signals[%d].%s: %s", e.Index, e.Field, e.Reason)
}

type wireSignal struct {
	Coin   *string           `json:"coin" validate:"required,min=1"`
	Price  *float64          `json:"price" validate:"required"`
	Change *float64          `json:"change" validate:"required"`
	Volume models.SpikeValue `json:"volume"`
}

// Client fetches a signals feed from a fixed URL.
type Client struct {
	url  string
	http *xhttp.Client
}

// NewClient builds a feed source; a zero timeout keeps the transport default.
func NewClient(url string, timeout time.Duration, opts ...xhttp.ClientOption) *Client {
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &Client{url: url, http: xhttp.NewClient(opts...)}
}

func (c *Client) URL() string { return c.url }

// FetchFeed performs one GET and decodes the body. Non-2xx answers are errors.
func (c *Client) FetchFeed(ctx context.Context) (models.SignalFeed, error) {
	var body []byte
	if err := c.http.GetJSON(ctx, c.url, &body); err != nil {
		return models.SignalFeed{}, fmt.Errorf("fetch feed: %w", err)
	}
	return Decode(ctx, body)
}

// Decode parses and validates a feed document.
func Decode(ctx context.Context, body []byte) (models.SignalFeed, error) {
	if !json.Valid(body) {
		return models.SignalFeed{}, ErrNotJSON
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.SignalFeed{}, &ShapeError{Index: -1, Field: "$", Reason: "feed must be a JSON object"}
	}
	raw, ok := doc["signals"]
	if !ok || string(raw) == "null" {
		return models.SignalFeed{}, &ShapeError{Index: -1, Field: "signals", Reason: "missing"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return models.SignalFeed{}, &ShapeError{Index: -1, Field: "signals", Reason: "must be an array"}
	}

	out := models.SignalFeed{Signals: make([]models.Signal, 0, len(entries))}
	for i, e := range entries {
		var ws wireSignal
		if err := json.Unmarshal(e, &ws); err != nil {
			return models.SignalFeed{}, &ShapeError{Index: i, Field: fieldOf(err), Reason: "wrong type"}
		}
		if err := xhttp.ValidateStruct(ctx, &ws); err != nil {
			var ves validator.ValidationErrors
			if errors.As(err, &ves) && len(ves) > 0 {
				return models.SignalFeed{}, &ShapeError{Index: i, Field: ves[0].Field(), Reason: ves[0].Tag()}
			}
			return models.SignalFeed{}, &ShapeError{Index: i, Field: "$", Reason: err.Error()}
		}
		out.Signals = append(out.Signals, models.Signal{
			Coin:   *ws.Coin,
			Price:  *ws.Price,
			Change: *ws.Change,
			Volume: ws.Volume,
		})
	}
	return out, nil
}

func fieldOf(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return te.Field
	}
	return "$"
}

var _ drepo.FeedSource = (*Client)(nil)
