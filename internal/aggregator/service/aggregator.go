// Package service drives the refresh cycle: fetch from every backend,
// classify and merge, persist the snapshot, publish the cached view.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qiniu/dcalerts/internal/aggregator/classify"
	"github.com/qiniu/dcalerts/internal/aggregator/merge"
	"github.com/qiniu/dcalerts/internal/aggregator/metrics"
	"github.com/qiniu/dcalerts/internal/aggregator/model"
	"github.com/qiniu/dcalerts/internal/config"
	"github.com/rs/zerolog/log"
)

// SourceClient is the fetch collaborator contract.
type SourceClient interface {
	FetchAll(ctx context.Context, src config.SourceConfig) ([]model.RawAlert, []model.Silence, bool, string)
	CreateSilence(ctx context.Context, src config.SourceConfig, payload model.SilencePayload) (map[string]any, error)
	DeleteSilence(ctx context.Context, src config.SourceConfig, id string) error
}

// SnapshotSink is the append-only persistence contract.
type SnapshotSink interface {
	AppendCountRow(ctx context.Context, ts time.Time, site string, active, suppressed, total int) error
	AppendAlertRow(ctx context.Context, ts time.Time, site string, a model.NormalizedAlert) error
}

// Aggregator owns the cached view and runs refresh cycles. The mutex guards
// only the view swap and reads, never a network or storage call.
type Aggregator struct {
	cfg       *config.Config
	client    SourceClient
	sink      SnapshotSink
	cls       *classify.Classifier
	met       *metrics.Metrics
	viewCache *ViewCache

	mu   sync.RWMutex
	view View
}

func New(cfg *config.Config, client SourceClient, sink SnapshotSink, cls *classify.Classifier) *Aggregator {
	if cls == nil {
		cls = classifierFromConfig(&cfg.Aggregator)
	}
	return &Aggregator{
		cfg:    cfg,
		client: client,
		sink:   sink,
		cls:    cls,
		view:   View{BySite: emptyBySite(cls)},
	}
}

// WithMetrics attaches instrumentation.
func (a *Aggregator) WithMetrics(m *metrics.Metrics) *Aggregator {
	a.met = m
	return a
}

// WithViewCache attaches the optional redis write-through cache.
func (a *Aggregator) WithViewCache(c *ViewCache) *Aggregator {
	a.viewCache = c
	return a
}

// Classifier returns the site classifier in use.
func (a *Aggregator) Classifier() *classify.Classifier { return a.cls }

func classifierFromConfig(cfg *config.AggregatorConfig) *classify.Classifier {
	if len(cfg.Sites) == 0 {
		return classify.Default()
	}
	canonical := make([]string, 0, len(cfg.Sites))
	synonyms := make(map[string][]string, len(cfg.Sites))
	for _, s := range cfg.Sites {
		canonical = append(canonical, s.Name)
		synonyms[s.Name] = s.Synonyms
	}
	return classify.New(canonical, synonyms)
}

func emptyBySite(cls *classify.Classifier) map[string][]model.NormalizedAlert {
	out := make(map[string][]model.NormalizedAlert, len(cls.Canonical())+1)
	for _, site := range cls.Canonical() {
		out[site] = []model.NormalizedAlert{}
	}
	out[model.SiteUnassigned] = []model.NormalizedAlert{}
	return out
}

// View returns the latest published view.
func (a *Aggregator) View() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

// RefreshNow runs one complete cycle synchronously and returns the resulting
// view. A failing source reduces the merge input and is reflected in the
// per-source status; only a persistence failure fails the cycle, in which
// case the previous view stays published and LastError records the failure.
func (a *Aggregator) RefreshNow(ctx context.Context) (View, error) {
	cycleID := uuid.NewString()
	started := time.Now()
	log.Debug().Str("cycle_id", cycleID).Msg("refresh cycle starting")

	var (
		allAlerts   []model.RawAlert
		allSilences []model.Silence
		sources     []SourceStatus
	)
	for _, src := range a.cfg.Aggregator.Sources {
		alerts, silences, ok, errText := a.client.FetchAll(ctx, src)
		allAlerts = append(allAlerts, alerts...)
		allSilences = append(allSilences, silences...)
		sources = append(sources, SourceStatus{Name: src.Name, BaseURL: src.BaseURL, OK: ok, Error: errText})
		if a.met != nil {
			up := 0.0
			if ok {
				up = 1.0
			}
			a.met.SourceUp.WithLabelValues(src.Name).Set(up)
			if !ok {
				a.met.SourceFetchFailures.WithLabelValues(src.Name).Inc()
			}
		}
	}

	bySite := merge.Merge(allAlerts, allSilences, a.cls)

	now := time.Now().UTC()
	if err := a.persist(ctx, now, bySite); err != nil {
		a.recordError(err)
		if a.met != nil {
			a.met.CyclesTotal.Inc()
			a.met.CycleFailures.Inc()
		}
		log.Error().Err(err).Str("cycle_id", cycleID).Msg("refresh cycle failed to persist snapshot")
		return a.View(), err
	}

	next := View{
		GeneratedAt: now,
		BySite:      bySite,
		Sources:     sources,
	}
	a.mu.Lock()
	a.view = next
	a.mu.Unlock()

	a.viewCache.Publish(ctx, next)

	if a.met != nil {
		a.met.CyclesTotal.Inc()
		a.met.CycleDuration.Observe(time.Since(started).Seconds())
		for site, alerts := range bySite {
			active, suppressed := countBySuppression(alerts)
			a.met.SiteActive.WithLabelValues(site).Set(float64(active))
			a.met.SiteSuppressed.WithLabelValues(site).Set(float64(suppressed))
		}
	}

	log.Info().
		Str("cycle_id", cycleID).
		Int("alerts", len(allAlerts)).
		Int("silences", len(allSilences)).
		Dur("took", time.Since(started)).
		Msg("refresh cycle complete")
	return next, nil
}

// persist appends one count row per site (including Unassigned) and one
// detail row per surviving alert, all stamped with the cycle timestamp.
func (a *Aggregator) persist(ctx context.Context, ts time.Time, bySite map[string][]model.NormalizedAlert) error {
	sites := append([]string(nil), a.cls.Canonical()...)
	sites = append(sites, model.SiteUnassigned)
	for _, site := range sites {
		alerts := bySite[site]
		active, suppressed := countBySuppression(alerts)
		if err := a.sink.AppendCountRow(ctx, ts, site, active, suppressed, active+suppressed); err != nil {
			return fmt.Errorf("persist counts for %s: %w", site, err)
		}
		for _, alert := range alerts {
			if err := a.sink.AppendAlertRow(ctx, ts, site, alert); err != nil {
				return fmt.Errorf("persist alert row for %s: %w", site, err)
			}
		}
	}
	return nil
}

func countBySuppression(alerts []model.NormalizedAlert) (active, suppressed int) {
	for _, a := range alerts {
		if len(a.Silences) > 0 {
			suppressed++
		} else {
			active++
		}
	}
	return active, suppressed
}

func (a *Aggregator) recordError(err error) {
	a.mu.Lock()
	a.view.LastError = fmt.Sprintf("%s - %s", time.Now().UTC().Format(time.RFC3339), err)
	a.mu.Unlock()
}

// Start runs the background cycle driver until the context is cancelled. An
// immediate cycle runs before the first tick.
func (a *Aggregator) Start(ctx context.Context) {
	interval := a.cfg.Aggregator.GetPollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := a.RefreshNow(ctx); err != nil {
		log.Error().Err(err).Msg("initial refresh failed")
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("refresh loop stopped")
			return
		case <-ticker.C:
			if _, err := a.RefreshNow(ctx); err != nil {
				log.Error().Err(err).Msg("background refresh failed")
			}
		}
	}
}
