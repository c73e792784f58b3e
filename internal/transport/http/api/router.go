package api

import (
	"bytes"
	"errors"
	"net/http"

	"klinecollector/internal/collector"
	"klinecollector/internal/export"
	"klinecollector/internal/session"
	"klinecollector/pkg/binance"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router exposes run control, estimation, export and the rate budget.
type Router struct {
	Collection Collection
	Symbols    SymbolCatalogue
	Defaults   func() collector.Config
	Logger     *zap.Logger
}

// Register mounts the routes under group (normally /api).
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/estimate", r.handleEstimate)
	group.GET("/collection", r.handleCollection)
	group.POST("/collection/start", r.handleStart)
	group.POST("/collection/pause", r.handlePause)
	group.POST("/collection/resume", r.handleResume)
	group.POST("/collection/cancel", r.handleCancel)
	group.GET("/collection/logs", r.handleLogs)
	group.DELETE("/collection/logs", r.handleClearLogs)
	group.GET("/collection/export", r.handleExport)
	group.GET("/ratelimit", r.handleRateLimit)
	group.PUT("/ratelimit", r.handleUpdateRateLimit)
	group.GET("/symbols", r.handleSymbols)
	group.GET("/timeframes", r.handleTimeframes)
}

func (r *Router) defaults() collector.Config {
	if r.Defaults == nil {
		return collector.Config{}
	}
	return r.Defaults()
}

func (r *Router) handleEstimate(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := req.toConfig(r.defaults())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	est := r.Collection.Estimate(cfg)
	c.JSON(http.StatusOK, estimateResponse{
		Config:           newConfigResponse(cfg),
		TotalCandles:     est.TotalCandles,
		TotalRequests:    est.TotalRequests,
		EffectiveDelayMs: est.EffectiveDelay.Milliseconds(),
		DurationMs:       est.Duration.Milliseconds(),
		Minutes:          est.Minutes(),
		Seconds:          est.Seconds(),
	})
}

func (r *Router) handleCollection(c *gin.Context) {
	stats := r.Collection.Stats()
	resp := collectionResponse{
		State:    r.Collection.State(),
		Stats:    stats,
		Progress: stats.Progress(),
		Candles:  stats.TotalCandles,
	}
	if cfg, ok := r.Collection.Config(); ok {
		cr := newConfigResponse(cfg)
		resp.Config = &cr
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleStart(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := req.toConfig(r.defaults())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if r.Symbols != nil && !r.Symbols.Contains(cfg.Symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown symbol " + cfg.Symbol})
		return
	}

	if err := r.Collection.Start(cfg); err != nil {
		r.respondControlError(c, "start", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"state": r.Collection.State(), "config": newConfigResponse(cfg)})
}

func (r *Router) handlePause(c *gin.Context) {
	r.control(c, "pause", r.Collection.Pause)
}

func (r *Router) handleResume(c *gin.Context) {
	r.control(c, "resume", r.Collection.Resume)
}

func (r *Router) handleCancel(c *gin.Context) {
	r.control(c, "cancel", r.Collection.Cancel)
}

func (r *Router) control(c *gin.Context, op string, fn func() error) {
	if err := fn(); err != nil {
		r.respondControlError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": r.Collection.State()})
}

func (r *Router) respondControlError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrRunActive),
		errors.Is(err, session.ErrNoRun),
		errors.Is(err, collector.ErrNotRunning),
		errors.Is(err, collector.ErrNotPaused),
		errors.Is(err, collector.ErrNotActive):
		status = http.StatusConflict
	default:
		r.logger().Error("collection control failed", zap.String("op", op), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (r *Router) handleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": r.Collection.Logs()})
}

func (r *Router) handleClearLogs(c *gin.Context) {
	r.Collection.ClearLogs()
	c.Status(http.StatusNoContent)
}

func (r *Router) handleExport(c *gin.Context) {
	ex, err := export.NewExporter(c.DefaultQuery("format", export.FormatCSV))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, ok := r.Collection.Config()
	series := r.Collection.Series()
	if !ok || len(series) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": export.ErrEmptySeries.Error()})
		return
	}

	var buf bytes.Buffer
	if err := ex.Write(&buf, series); err != nil {
		r.logger().Error("export failed", zap.String("format", ex.Extension()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := export.FileName(cfg.Symbol, cfg.Timeframe, ex.Extension())
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, ex.ContentType(), buf.Bytes())
}

func (r *Router) handleRateLimit(c *gin.Context) {
	c.JSON(http.StatusOK, r.Collection.RateLimit())
}

func (r *Router) handleUpdateRateLimit(c *gin.Context) {
	var req rateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.Collection.UpdateMaxRequests(req.MaxRequestsPerMinute); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, r.Collection.RateLimit())
}

func (r *Router) handleSymbols(c *gin.Context) {
	var symbols []string
	if r.Symbols != nil {
		symbols = r.Symbols.GetAll()
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

func (r *Router) handleTimeframes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"timeframes": binance.Timeframes()})
}

func (r *Router) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
