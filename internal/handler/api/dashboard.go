package api

import (
	"bytes"
	"embed"
	"errors"
	"net/http"

	"EarlyPump/internal/domain/models"
	domrepo "EarlyPump/internal/domain/repository"
	mid "EarlyPump/internal/middleware"
	"EarlyPump/internal/usecase"
	xhttp "EarlyPump/pkg/http"
	xlogger "EarlyPump/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// NewTemplates parses the embedded dashboard templates: "index.html" and the "region" fragment.
func NewTemplates() (*xhttp.TemplateRenderer, error) {
	return xhttp.NewTemplateRenderer(templateFS, "templates/*.html")
}

// FragmentEncoder renders region content as the HTML that replaces the page container.
func FragmentEncoder(t *xhttp.TemplateRenderer) mid.Encoder {
	return func(c models.RegionContent) ([]byte, error) {
		var buf bytes.Buffer
		if err := t.Execute(&buf, "region", c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

type pageData struct {
	Title  string
	Region models.RegionContent
}

// DashboardHandler serves the page with the display region and lets viewers refresh it.
type DashboardHandler struct {
	renderer *usecase.SignalRenderer
	region   domrepo.DisplayRegion
	hub      *mid.RegionHub
	upgrader websocket.Upgrader
	l        *xlogger.Logger
}

func NewDashboardHandler(renderer *usecase.SignalRenderer, region domrepo.DisplayRegion, hub *mid.RegionHub, l *xlogger.Logger) *DashboardHandler {
	if l == nil {
		l = xlogger.Nop()
	}
	return &DashboardHandler{
		renderer: renderer,
		region:   region,
		hub:      hub,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		l:        l,
	}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Page)
	e.GET("/api/region", h.Region)
	e.POST("/api/refresh", h.Refresh)
	e.GET("/ws/region", h.Stream)
}

func (h *DashboardHandler) Page(c echo.Context) error {
	content, err := h.region.Content(c.Request().Context())
	if err != nil {
		h.l.Error("dashboard region read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("region unavailable").WithError(err))
	}
	return c.Render(http.StatusOK, "index.html", pageData{Title: "Early Pump Signals", Region: content})
}

func (h *DashboardHandler) Region(c echo.Context) error {
	content, err := h.region.Content(c.Request().Context())
	if err != nil {
		h.l.Error("dashboard region read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("region unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, content)
}

// Refresh re-renders the region and returns what it now shows. A failed fetch still
// answers 200: the failure message is the rendered result.
func (h *DashboardHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	content, err := h.renderer.RefreshSignals(ctx)
	switch {
	case errors.Is(err, usecase.ErrSuperseded):
		if content, err = h.region.Content(ctx); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.InternalError("region unavailable").WithError(err))
		}
	case errors.Is(err, usecase.ErrRegionWrite):
		return xhttp.AppErrorResponse(c, xhttp.InternalError("region unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, content)
}

// Stream upgrades to a websocket that receives the region fragment on every replacement.
func (h *DashboardHandler) Stream(c echo.Context) error {
	content, err := h.region.Content(c.Request().Context())
	if err != nil {
		content = models.IdleContent(h.renderer.RegionID())
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	if err := h.hub.Serve(conn, content); err != nil {
		h.l.Debug("websocket viewer closed", xlogger.Error(err))
	}
	return nil
}
