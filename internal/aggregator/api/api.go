package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qiniu/dcalerts/internal/aggregator/report"
	"github.com/qiniu/dcalerts/internal/aggregator/service"
)

// Api wires the aggregator and report builder to the HTTP surface.
type Api struct {
	agg *service.Aggregator
	rep *report.Builder
}

// NewApi registers all routes on the router. metricsHandler may be nil when
// instrumentation is disabled.
func NewApi(router *gin.Engine, agg *service.Aggregator, rep *report.Builder, metricsHandler http.Handler) *Api {
	api := &Api{agg: agg, rep: rep}
	api.setupRouters(router, metricsHandler)
	return api
}

func (api *Api) setupRouters(router *gin.Engine, metricsHandler http.Handler) {
	router.GET("/api/alerts", api.GetAlerts)
	router.GET("/api/report/daily", api.ReportDaily)
	router.GET("/api/report/weekly", api.ReportWeekly)
	router.GET("/api/report/monthly", api.ReportMonthly)
	router.POST("/api/silence", api.CreateSilence)
	router.POST("/api/unsilence", api.DeleteSilence)
	router.GET("/healthz", api.Healthz)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
}
