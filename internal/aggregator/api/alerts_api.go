package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qiniu/dcalerts/internal/aggregator/service"
	"github.com/rs/zerolog/log"
)

// GetAlerts serves the cached per-site view. `q` filters alerts by name or
// annotation text; `force=1` runs a synchronous refresh first.
func (api *Api) GetAlerts(c *gin.Context) {
	force := c.Query("force")
	if force == "1" || force == "true" || force == "yes" {
		if _, err := api.agg.RefreshNow(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
	}

	view := api.agg.View().Filter(c.Query("q"))
	generatedAt := view.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	c.JSON(http.StatusOK, gin.H{
		"generated_at": generatedAt,
		"by_site":      view.BySite,
		"sources":      view.Sources,
	})
}

// Healthz reports the last cycle outcome and per-site counts.
func (api *Api) Healthz(c *gin.Context) {
	view := api.agg.View()
	counts := make(map[string]int, len(view.BySite))
	for site, alerts := range view.BySite {
		counts[site] = len(alerts)
	}
	c.JSON(http.StatusOK, gin.H{
		"generated_at": view.GeneratedAt,
		"last_error":   view.LastError,
		"sources":      view.Sources,
		"counts":       counts,
	})
}

// CreateSilence creates or replaces a silence on one backend.
func (api *Api) CreateSilence(c *gin.Context) {
	var req service.SilenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid JSON"})
		return
	}

	result, err := api.agg.CreateOrUpdateSilence(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrUnknownSource) || errors.Is(err, service.ErrNoMatchers) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("source", req.Source).Msg("silence create failed")
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

// DeleteSilence expires a silence on one backend.
func (api *Api) DeleteSilence(c *gin.Context) {
	var req struct {
		Source string `json:"source"`
		ID     string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Source == "" || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing source or id"})
		return
	}

	if err := api.agg.RemoveSilence(c.Request.Context(), req.Source, req.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrUnknownSource) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("source", req.Source).Str("silence_id", req.ID).Msg("silence delete failed")
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
