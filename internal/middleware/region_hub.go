package middleware

import (
	"encoding/json"
	"sync"
	"time"

	"EarlyPump/internal/domain/models"
	domrepo "EarlyPump/internal/domain/repository"
	applogger "EarlyPump/pkg/logger"

	"github.com/gorilla/websocket"
)

// Encoder turns region content into one websocket text frame.
type Encoder func(models.RegionContent) ([]byte, error)

// RegionHub fans region replacements out to connected websocket viewers.
// Each viewer has a bounded queue; a viewer that falls behind loses frames
// instead of slowing the renderer down.
type RegionHub struct {
	encode    Encoder
	log       *applogger.Logger
	metrics   domrepo.Metrics
	bufSize   int
	pingEvery time.Duration
	writeWait time.Duration

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	closed  chan struct{}
	once    sync.Once
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

type HubOption func(*RegionHub)

// WithViewerBuffer sets how many frames may wait per viewer.
func WithViewerBuffer(n int) HubOption {
	return func(h *RegionHub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// WithPingInterval sets the keepalive ping period.
func WithPingInterval(d time.Duration) HubOption {
	return func(h *RegionHub) {
		if d > 0 {
			h.pingEvery = d
		}
	}
}

func NewRegionHub(encode Encoder, log *applogger.Logger, metrics domrepo.Metrics, opts ...HubOption) *RegionHub {
	if encode == nil {
		encode = func(c models.RegionContent) ([]byte, error) { return json.Marshal(c) }
	}
	if log == nil {
		log = applogger.Nop()
	}
	h := &RegionHub{
		encode:    encode,
		log:       log,
		metrics:   metrics,
		bufSize:   8,
		pingEvery: 30 * time.Second,
		writeWait: 10 * time.Second,
		viewers:   make(map[*viewer]struct{}),
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish encodes content once and queues it for every viewer without blocking.
func (h *RegionHub) Publish(content models.RegionContent) {
	msg, err := h.encode(content)
	if err != nil {
		h.log.Error("encode region frame failed", applogger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		select {
		case v.send <- msg:
		default:
			if h.metrics != nil {
				h.metrics.RecordError("ws_frame_drop")
			}
		}
	}
}

// Viewers returns the number of connected viewers.
func (h *RegionHub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Serve pushes initial and every later replacement to conn until the peer leaves or
// the hub is closed. It owns conn and closes it.
func (h *RegionHub) Serve(conn *websocket.Conn, initial models.RegionContent) error {
	defer conn.Close()

	v := &viewer{conn: conn, send: make(chan []byte, h.bufSize)}
	if msg, err := h.encode(initial); err == nil {
		v.send <- msg
	}
	h.add(v)
	defer h.remove(v)

	// reads only to notice the close frame
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return nil
		case <-h.closed:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(h.writeWait))
			return nil
		case msg := <-v.send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait)); err != nil {
				return err
			}
		}
	}
}

// Close disconnects every viewer.
func (h *RegionHub) Close() {
	h.once.Do(func() { close(h.closed) })
}

func (h *RegionHub) add(v *viewer) {
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	n := len(h.viewers)
	h.mu.Unlock()
	h.log.Debug("region viewer connected", applogger.Int("viewers", n))
}

func (h *RegionHub) remove(v *viewer) {
	h.mu.Lock()
	delete(h.viewers, v)
	n := len(h.viewers)
	h.mu.Unlock()
	h.log.Debug("region viewer left", applogger.Int("viewers", n))
}
