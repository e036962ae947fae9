package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"FinTrain/internal/domain/models"
	xhttp "FinTrain/pkg/http"
	xlogger "FinTrain/pkg/logger"
)

// StatusReader exposes the state of the run in progress.
type StatusReader interface {
	Status(limit int) models.RunStatus
}

// StatusLoader reads a run status persisted outside this process.
type StatusLoader interface {
	LoadStatus(ctx context.Context, limit int) (models.RunStatus, error)
}

// StreamServer upgrades a request into a live progress subscription.
type StreamServer interface {
	ServeWS(c echo.Context) error
}

// StatusHandler serves run status and the live progress stream.
type StatusHandler struct {
	logger   *xlogger.Logger
	status   StatusReader
	stream   StreamServer
	fallback StatusLoader
}

// StatusHandlerOption configures a StatusHandler.
type StatusHandlerOption func(*StatusHandler)

// WithStatusFallback serves the persisted status while no run has reported
// to the in-process reader.
func WithStatusFallback(l StatusLoader) StatusHandlerOption {
	return func(h *StatusHandler) { h.fallback = l }
}

func NewStatusHandler(logger *xlogger.Logger, status StatusReader, stream StreamServer, opts ...StatusHandlerOption) *StatusHandler {
	h := &StatusHandler{logger: logger, status: status, stream: stream}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/v1")
	g.GET("/runs/current", h.CurrentRun)
	if h.stream != nil {
		g.GET("/progress/stream", h.stream.ServeWS)
	}
}

func (h *StatusHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// CurrentRun returns the run state with the last `limit` epochs of history.
func (h *StatusHandler) CurrentRun(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st := h.status.Status(req.Limit)
	if st.RunID == "" && h.fallback != nil {
		stored, err := h.fallback.LoadStatus(c.Request().Context(), req.Limit)
		if err != nil {
			h.logger.Warn("load stored run status", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		st = stored
	}
	if st.RunID == "" {
		return xhttp.DataResponse(c, http.StatusNotFound, []*xhttp.AppError{xhttp.NotFoundErrorf("no run started yet")})
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, st)
}
