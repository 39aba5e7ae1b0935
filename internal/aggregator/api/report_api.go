package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qiniu/dcalerts/internal/aggregator/report"
)

// localDateParams reads y/m/d query parameters, defaulting each to the
// current date in the report builder's civil zone.
func (api *Api) localDateParams(c *gin.Context) (int, time.Month, int) {
	now := time.Now().In(api.rep.Location())
	y := queryInt(c, "y", now.Year())
	m := queryInt(c, "m", int(now.Month()))
	d := queryInt(c, "d", now.Day())
	return y, time.Month(m), d
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func (api *Api) ReportDaily(c *gin.Context) {
	y, m, d := api.localDateParams(c)
	api.serveReport(c, func() (*report.Report, error) {
		return api.rep.Daily(c.Request.Context(), y, m, d)
	})
}

func (api *Api) ReportWeekly(c *gin.Context) {
	y, m, d := api.localDateParams(c)
	api.serveReport(c, func() (*report.Report, error) {
		return api.rep.Weekly(c.Request.Context(), y, m, d)
	})
}

func (api *Api) ReportMonthly(c *gin.Context) {
	y, m, _ := api.localDateParams(c)
	api.serveReport(c, func() (*report.Report, error) {
		return api.rep.Monthly(c.Request.Context(), y, m)
	})
}

// serveReport runs one builder; a query failure returns an error response,
// never a partial report.
func (api *Api) serveReport(c *gin.Context, build func() (*report.Report, error)) {
	rep, err := build()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}
