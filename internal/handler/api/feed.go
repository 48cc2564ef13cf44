package api

import (
	"net/http"
	"strings"
	"time"

	"EarlyPump/internal/domain/models"
	domrepo "EarlyPump/internal/domain/repository"
	"EarlyPump/internal/service/metrics"
	"EarlyPump/internal/service/ratelimit"
	"EarlyPump/internal/usecase"
	xhttp "EarlyPump/pkg/http"
	xlogger "EarlyPump/pkg/logger"
	"EarlyPump/pkg/util"

	"github.com/labstack/echo/v4"
)

// FeedHandler serves the detected early-pump feed and its stored history.
type FeedHandler struct {
	scanner *usecase.PumpScanner
	store   domrepo.SignalStore
	rl      *ratelimit.Limiter
	l       *xlogger.Logger
}

// NewFeedHandler wires the handler; store and rl may be nil.
func NewFeedHandler(scanner *usecase.PumpScanner, store domrepo.SignalStore, rl *ratelimit.Limiter, l *xlogger.Logger) *FeedHandler {
	metrics.Register()
	if l == nil {
		l = xlogger.Nop()
	}
	return &FeedHandler{scanner: scanner, store: store, rl: rl, l: l}
}

func (h *FeedHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/early-pump")
	g.GET("", h.Feed)
	g.GET("/history", h.History)
}

// Feed returns the bare {"signals":[...]} document so any renderer can consume it.
func (h *FeedHandler) Feed(c echo.Context) error {
	const endpoint = "early_pump"
	start := time.Now()
	defer func() { metrics.FeedLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if h.rl != nil && !h.rl.Allow(c.RealIP()+":"+endpoint) {
		h.l.Warn("early_pump rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	b, hit, err := h.scanner.Feed(c.Request().Context())
	if err != nil {
		metrics.FeedErrors.WithLabelValues(endpoint).Inc()
		h.l.Error("early_pump scan error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("market data unavailable").WithError(err))
	}
	if hit {
		metrics.FeedCache.WithLabelValues("hit").Inc()
	} else {
		metrics.FeedCache.WithLabelValues("miss").Inc()
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSONBlob(http.StatusOK, b)
}

// History returns stored signals newest first.
func (h *FeedHandler) History(c echo.Context) error {
	const endpoint = "early_pump_history"
	start := time.Now()
	defer func() { metrics.FeedLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("signal history is disabled"))
	}

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// validated above; an empty value yields the zero time
	since, _ := util.ParseTime(req.Since)

	rows, err := h.store.Query(c.Request().Context(), strings.ToUpper(req.Coin), since, req.Limit)
	if err != nil {
		metrics.FeedErrors.WithLabelValues(endpoint).Inc()
		h.l.Error("early_pump history error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history query failed").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
