package api

import (
	"errors"
	"net/http"
	"time"

	"EconDash/internal/domain/models"
	"EconDash/internal/service/ratelimit"
	"EconDash/internal/usecase"
	xhttp "EconDash/pkg/http"
	applogger "EconDash/pkg/logger"
	"EconDash/pkg/util"

	"github.com/labstack/echo/v4"
)

// IndicatorsEchoHandler serves the table query API and the refresh trigger.
type IndicatorsEchoHandler struct {
	logger  *applogger.Logger
	query   *usecase.QueryUseCase
	builder usecase.Builder
	limiter *ratelimit.Limiter
}

func NewIndicatorsEchoHandler(logger *applogger.Logger, query *usecase.QueryUseCase, builder usecase.Builder, limiter *ratelimit.Limiter) *IndicatorsEchoHandler {
	return &IndicatorsEchoHandler{logger: logger, query: query, builder: builder, limiter: limiter}
}

func (h *IndicatorsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/indicators", h.Indicators)
	g.GET("/series", h.Series)
	g.GET("/summary", h.Summary)
	g.GET("/dashboard", h.Dashboard)
	g.POST("/refresh", h.Refresh)
}

func (h *IndicatorsEchoHandler) Indicators(c echo.Context) error {
	res, err := h.query.Indicators(c.Request().Context())
	if err != nil {
		return h.fail(c, "indicators", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *IndicatorsEchoHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.query.Series(c.Request().Context(), seriesParams(req))
	if err != nil {
		return h.fail(c, "series", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *IndicatorsEchoHandler) Summary(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.query.Summary(c.Request().Context(), seriesParams(req))
	if err != nil {
		return h.fail(c, "summary", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *IndicatorsEchoHandler) Dashboard(c echo.Context) error {
	req := &models.DashboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.query.Dashboard(c.Request().Context(), usecase.DashboardParams{
		Primary:     req.Primary,
		Secondary:   req.Secondary,
		RangeParams: rangeParams(req.Start, req.End),
	})
	if err != nil {
		return h.fail(c, "dashboard", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Refresh rebuilds the table synchronously and reports the new version.
func (h *IndicatorsEchoHandler) Refresh(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("refresh rate limit exceeded"))
	}
	start := time.Now()
	snap, err := h.builder.Build(c.Request().Context())
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return xhttp.SuccessResponse(c, models.NewRebuildEvent(snap, time.Since(start)))
}

func (h *IndicatorsEchoHandler) fail(c echo.Context, op string, err error) error {
	var unknown *models.UnknownColumnError
	switch {
	case errors.As(err, &unknown):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_UNKNOWN_COLUMN", "columns", unknown.Error(), http.StatusBadRequest).
			WithParam("columns", unknown.Columns))
	case errors.Is(err, usecase.ErrNotReady):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_NOT_READY", "table has not been built yet"))
	case errors.Is(err, models.ErrNoUsableTable):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_NO_USABLE_TABLE", "every data source failed"))
	}
	h.logger.Error(op+" usecase error", applogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("unexpected error").WithError(err))
}

func seriesParams(req *models.SeriesRequest) usecase.SeriesParams {
	return usecase.SeriesParams{
		Columns:     util.SplitList(req.Columns),
		RangeParams: rangeParams(req.Start, req.End),
	}
}

// rangeParams expects dates that already passed validation.
func rangeParams(start, end string) usecase.RangeParams {
	var p usecase.RangeParams
	if d, ok := util.ParseDate(start); ok {
		p.Start = &d
	}
	if d, ok := util.ParseDate(end); ok {
		p.End = &d
	}
	return p
}
