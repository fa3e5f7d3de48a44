package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the dashboard page, the JSON API and the live log stream.
func NewRouter(h *Handler, webDir string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	if webDir != "" {
		r.GET("/", func(c *gin.Context) {
			c.File(webDir + "/index.html")
		})
		r.Static("/static", webDir)
	}

	api := r.Group("/api")
	{
		api.GET("/metrics", h.GetMetrics)
		api.GET("/volume", h.GetVolume)
		api.GET("/vehicle-types", h.GetVehicleTypes)
		api.GET("/status-breakdown", h.GetStatusBreakdown)
		api.GET("/revenue-by-vehicle", h.GetRevenueByVehicle)
		api.GET("/revenue-distribution", h.GetRevenueDistribution)
		api.GET("/cancel-reasons", h.GetCancelReasons)
		api.GET("/monthly-trends", h.GetMonthlyTrends)
		api.GET("/filters", h.GetFilters)
		api.GET("/export", h.GetExport)
		api.POST("/reload", h.PostReload)
	}

	r.GET("/logs", h.StreamLogs)

	return r
}

// StreamLogs pushes log lines to the client as they are written, one line
// per chunk, until the client goes away.
func (h *Handler) StreamLogs(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")

	ch := h.Logger.Subscribe()
	defer h.Logger.Unsubscribe(ch)
	for {
		select {
		case line, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintln(c.Writer, line)
			flusher.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
