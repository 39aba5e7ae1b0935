// Package report builds windowed summaries and per-alert duration detail
// from the persisted snapshot history.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/qiniu/dcalerts/internal/aggregator/database"
	"github.com/qiniu/dcalerts/internal/aggregator/model"
)

// SnapshotSource is the slice of the persistence layer the builder reads.
type SnapshotSource interface {
	SnapshotsInRange(ctx context.Context, start, end time.Time) ([]database.SnapshotRow, error)
}

// SummaryRow counts distinct alerts per site within a window.
type SummaryRow struct {
	Site       string `json:"site"`
	Fired      int    `json:"fired"`
	Suppressed int    `json:"suppressed"`
	Samples    int    `json:"samples"`
}

// DetailRow is the effective presence of one alert within a window, clipped
// to the window bounds.
type DetailRow struct {
	AlertName       string            `json:"alertname"`
	Source          string            `json:"source"`
	Fingerprint     string            `json:"fingerprint"`
	Statuses        []string          `json:"statuses"`
	StartUTC        time.Time         `json:"start_utc"`
	EndUTC          time.Time         `json:"end_utc"`
	DurationSeconds int64             `json:"duration_seconds"`
	Labels          map[string]string `json:"labels"`
	Annotations     map[string]string `json:"annotations"`
}

type Report struct {
	Period   string                 `json:"period"`
	StartUTC time.Time              `json:"start_utc"`
	EndUTC   time.Time              `json:"end_utc"`
	Summary  []SummaryRow           `json:"summary"`
	Details  map[string][]DetailRow `json:"details"`
}

// Builder produces daily, weekly and monthly reports from snapshot history.
type Builder struct {
	source SnapshotSource
	loc    *time.Location
}

func NewBuilder(source SnapshotSource, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{source: source, loc: loc}
}

// Location returns the civil zone used for window boundaries.
func (b *Builder) Location() *time.Location { return b.loc }

// AlertKey is the identity rule for historical rows: fingerprint when
// present, otherwise (alertname, source). This is deliberately coarser than
// the live merge path so that an alert keeps one history line across
// fingerprint churn; do not unify the two rules.
func AlertKey(row *database.SnapshotRow) string {
	if row.Fingerprint != "" {
		return row.Fingerprint
	}
	return row.AlertName + "|" + row.Source
}

func (b *Builder) Daily(ctx context.Context, year int, month time.Month, day int) (*Report, error) {
	start, end := DayBounds(b.loc, year, month, day)
	return b.build(ctx, "daily", start, end)
}

func (b *Builder) Weekly(ctx context.Context, year int, month time.Month, day int) (*Report, error) {
	start, end := WeekBounds(b.loc, year, month, day)
	return b.build(ctx, "weekly", start, end)
}

func (b *Builder) Monthly(ctx context.Context, year int, month time.Month) (*Report, error) {
	start, end := MonthBounds(b.loc, year, month)
	return b.build(ctx, "monthly", start, end)
}

func (b *Builder) build(ctx context.Context, period string, start, end time.Time) (*Report, error) {
	rows, err := b.source.SnapshotsInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("build %s report: %w", period, err)
	}
	return &Report{
		Period:   period,
		StartUTC: start,
		EndUTC:   end,
		Summary:  summarize(rows),
		Details:  detail(rows, start, end),
	}, nil
}

// summarize counts, per site, the distinct alerts that fired at least once
// and the distinct alerts suppressed at least once within the window.
func summarize(rows []database.SnapshotRow) []SummaryRow {
	type sets struct {
		fired   map[string]bool
		supp    map[string]bool
		samples int
	}
	perSite := map[string]*sets{}
	for i := range rows {
		r := &rows[i]
		site := r.Site
		if site == "" {
			site = model.SiteUnassigned
		}
		entry := perSite[site]
		if entry == nil {
			entry = &sets{fired: map[string]bool{}, supp: map[string]bool{}}
			perSite[site] = entry
		}
		entry.samples++
		key := AlertKey(r)
		switch strings.ToLower(r.Status) {
		case model.StatusActive, model.StatusFiring:
			entry.fired[key] = true
		case model.StatusSuppressed:
			entry.supp[key] = true
		}
	}

	sites := make([]string, 0, len(perSite))
	for site := range perSite {
		sites = append(sites, site)
	}
	sort.Strings(sites)

	out := make([]SummaryRow, 0, len(sites))
	for _, site := range sites {
		v := perSite[site]
		out = append(out, SummaryRow{
			Site:       site,
			Fired:      len(v.fired),
			Suppressed: len(v.supp),
			Samples:    v.samples,
		})
	}
	return out
}

type detailAgg struct {
	row         database.SnapshotRow
	statuses    map[string]bool
	minSeen     time.Time
	maxSeen     time.Time
	minStartsAt *time.Time
	maxEndsAt   *time.Time
}

// detail groups rows by (site, alert key) and clips each group's effective
// interval to the window. When no explicit end was ever observed the group
// ends at the last time it was seen, which avoids over-counting alerts that
// resolved between polls.
func detail(rows []database.SnapshotRow, start, end time.Time) map[string][]DetailRow {
	type groupKey struct{ site, key string }
	agg := map[groupKey]*detailAgg{}

	for i := range rows {
		r := &rows[i]
		gk := groupKey{r.Site, AlertKey(r)}
		it := agg[gk]
		if it == nil {
			it = &detailAgg{
				row:         *r,
				statuses:    map[string]bool{},
				minSeen:     r.TS,
				maxSeen:     r.TS,
				minStartsAt: r.StartsAt,
				maxEndsAt:   r.EndsAt,
			}
			agg[gk] = it
		}
		it.statuses[strings.ToLower(r.Status)] = true
		if r.TS.Before(it.minSeen) {
			it.minSeen = r.TS
		}
		if r.TS.After(it.maxSeen) {
			it.maxSeen = r.TS
		}
		if r.StartsAt != nil && (it.minStartsAt == nil || r.StartsAt.Before(*it.minStartsAt)) {
			it.minStartsAt = r.StartsAt
		}
		if r.EndsAt != nil && (it.maxEndsAt == nil || r.EndsAt.After(*it.maxEndsAt)) {
			it.maxEndsAt = r.EndsAt
		}
	}

	bySite := map[string][]DetailRow{}
	for gk, it := range agg {
		alertStart := it.minSeen
		if it.minStartsAt != nil {
			alertStart = *it.minStartsAt
		}
		alertEnd := it.maxSeen
		if it.maxEndsAt != nil {
			alertEnd = *it.maxEndsAt
		}

		effStart := maxTime(alertStart, start)
		effEnd := minTime(alertEnd, end)
		dur := int64(effEnd.Sub(effStart).Seconds())
		if dur < 0 {
			dur = 0
		}

		statuses := make([]string, 0, len(it.statuses))
		for s := range it.statuses {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)

		bySite[gk.site] = append(bySite[gk.site], DetailRow{
			AlertName:       it.row.AlertName,
			Source:          it.row.Source,
			Fingerprint:     it.row.Fingerprint,
			Statuses:        statuses,
			StartUTC:        effStart,
			EndUTC:          effEnd,
			DurationSeconds: dur,
			Labels:          it.row.Labels,
			Annotations:     it.row.Annotations,
		})
	}

	for site := range bySite {
		list := bySite[site]
		sort.Slice(list, func(i, j int) bool {
			if list[i].DurationSeconds != list[j].DurationSeconds {
				return list[i].DurationSeconds > list[j].DurationSeconds
			}
			if list[i].AlertName != list[j].AlertName {
				return list[i].AlertName < list[j].AlertName
			}
			// full tie-break keeps output deterministic across runs
			if list[i].Source != list[j].Source {
				return list[i].Source < list[j].Source
			}
			return list[i].Fingerprint < list[j].Fingerprint
		})
	}
	return bySite
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
