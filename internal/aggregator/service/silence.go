package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/qiniu/dcalerts/internal/aggregator/model"
	"github.com/qiniu/dcalerts/internal/config"
	"github.com/rs/zerolog/log"
)

// Matcher names that must never reach a backend; Grafana rejects silences
// carrying its internal rule-UID matcher.
var forbiddenMatcherNames = map[string]bool{"__alert_rule_uid__": true}

var (
	ErrUnknownSource = errors.New("unknown source")
	ErrNoMatchers    = errors.New("no matchers supplied")
)

const defaultSilenceCreator = "dcalerts-ui"

// SilenceRequest describes a silence create/update against one backend.
// A non-empty ID makes this an update: the old silence is deleted first.
type SilenceRequest struct {
	Source    string          `json:"source"` // name or base URL
	ID        string          `json:"id"`
	Matchers  []model.Matcher `json:"matchers"`
	StartsAt  string          `json:"startsAt"`
	EndsAt    string          `json:"endsAt"`
	Comment   string          `json:"comment"`
	CreatedBy string          `json:"createdBy"`
}

// FindSource resolves a backend by name or base URL.
func (a *Aggregator) FindSource(nameOrBase string) (config.SourceConfig, bool) {
	want := strings.TrimRight(nameOrBase, "/")
	for _, src := range a.cfg.Aggregator.Sources {
		if src.Name == nameOrBase || strings.TrimRight(src.BaseURL, "/") == want {
			return src, true
		}
	}
	return config.SourceConfig{}, false
}

// CreateOrUpdateSilence applies a silence to one backend as delete-if-present
// followed by create. The two steps are not atomic: a crash in between leaves
// the suppression absent, and callers retry. A synchronous refresh runs after
// the write so the next read reflects it.
func (a *Aggregator) CreateOrUpdateSilence(ctx context.Context, req SilenceRequest) (map[string]any, error) {
	src, ok := a.FindSource(req.Source)
	if !ok {
		return nil, ErrUnknownSource
	}

	matchers := make([]model.Matcher, 0, len(req.Matchers))
	for _, m := range req.Matchers {
		if m.Name == "" || forbiddenMatcherNames[m.Name] {
			continue
		}
		matchers = append(matchers, m)
	}
	// never build matchers from labels server-side; the caller must be explicit
	if len(matchers) == 0 {
		return nil, ErrNoMatchers
	}

	start, end := silenceWindow(req.StartsAt, req.EndsAt, time.Now().UTC())

	if req.ID != "" {
		if err := a.client.DeleteSilence(ctx, src, req.ID); err != nil {
			log.Warn().Err(err).Str("silence_id", req.ID).Str("source", src.Name).Msg("delete existing silence failed")
		}
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = defaultSilenceCreator
	}
	log.Info().Str("source", src.Name).Int("matchers", len(matchers)).Msg("creating silence")
	result, err := a.client.CreateSilence(ctx, src, model.SilencePayload{
		Matchers:  matchers,
		StartsAt:  start.Format(time.RFC3339),
		EndsAt:    end.Format(time.RFC3339),
		CreatedBy: createdBy,
		Comment:   req.Comment,
	})
	if err != nil {
		return nil, err
	}

	if _, err := a.RefreshNow(ctx); err != nil {
		log.Error().Err(err).Msg("refresh after silence create failed")
	}
	return result, nil
}

// RemoveSilence expires a silence on one backend and refreshes the view.
func (a *Aggregator) RemoveSilence(ctx context.Context, sourceKey, id string) error {
	src, ok := a.FindSource(sourceKey)
	if !ok {
		return ErrUnknownSource
	}
	if err := a.client.DeleteSilence(ctx, src, id); err != nil {
		return err
	}
	if _, err := a.RefreshNow(ctx); err != nil {
		log.Error().Err(err).Msg("refresh after silence delete failed")
	}
	return nil
}

// silenceWindow resolves the requested window: start defaults to now, end to
// start+2h, and an end at or before the start is pushed one minute out.
func silenceWindow(startsAt, endsAt string, now time.Time) (time.Time, time.Time) {
	start := model.ParseTime(startsAt)
	if start.IsZero() {
		start = now
	}
	end := model.ParseTime(endsAt)
	if end.IsZero() {
		end = start.Add(2 * time.Hour)
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}
	return start, end
}
