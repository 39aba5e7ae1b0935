// Package merge resolves the raw alert observations collected from all
// backends in one cycle into one canonical record per (site, identity).
package merge

import (
	"sort"
	"strings"

	"github.com/qiniu/dcalerts/internal/aggregator/classify"
	"github.com/qiniu/dcalerts/internal/aggregator/identity"
	"github.com/qiniu/dcalerts/internal/aggregator/model"
)

// statusWeight ranks alert states for winner selection. Unknown states rank
// below suppressed.
func statusWeight(a *model.RawAlert) int {
	switch strings.ToLower(a.Status.State) {
	case model.StatusFiring:
		return 3
	case model.StatusActive:
		return 2
	case model.StatusSuppressed:
		return 1
	default:
		return 0
	}
}

// choose picks the winner between two observations of the same identity:
// higher status weight wins; on equal weight the later-or-equal start time
// wins. The rule is order-independent, so processing order never changes the
// final winner.
func choose(old, new *model.RawAlert) *model.RawAlert {
	if old == nil {
		return new
	}
	ow, nw := statusWeight(old), statusWeight(new)
	if nw != ow {
		if nw > ow {
			return new
		}
		return old
	}
	if !new.StartTime().Before(old.StartTime()) {
		return new
	}
	return old
}

// Merge folds all raw alerts into per-site lists of normalized records, one
// per identity, plus the Unassigned bucket. Every canonical site is present
// in the result even when empty. Silence ids are resolved against the given
// silences; unknown ids carry no detail record.
func Merge(alerts []model.RawAlert, silences []model.Silence, c *classify.Classifier) map[string][]model.NormalizedAlert {
	silenceByID := make(map[string]model.Silence, len(silences))
	for _, s := range silences {
		if s.ID != "" {
			silenceByID[s.ID] = s
		}
	}

	grouped := map[string]map[string]*model.RawAlert{}
	for _, site := range c.Canonical() {
		grouped[site] = map[string]*model.RawAlert{}
	}
	unassigned := map[string]*model.RawAlert{}

	for i := range alerts {
		raw := &alerts[i]
		key := identity.Key(raw.Fingerprint, raw.Labels)
		sites := c.Sites(raw.Labels, raw.Annotations)
		if len(sites) == 0 {
			unassigned[key] = choose(unassigned[key], raw)
			continue
		}
		for _, site := range sites {
			grouped[site][key] = choose(grouped[site][key], raw)
		}
	}

	out := make(map[string][]model.NormalizedAlert, len(grouped)+1)
	for _, site := range c.Canonical() {
		out[site] = normalizeBucket(grouped[site], silenceByID)
	}
	out[model.SiteUnassigned] = normalizeBucket(unassigned, silenceByID)
	return out
}

func normalizeBucket(bucket map[string]*model.RawAlert, silenceByID map[string]model.Silence) []model.NormalizedAlert {
	list := make([]model.NormalizedAlert, 0, len(bucket))
	for _, raw := range bucket {
		list = append(list, normalize(raw, silenceByID))
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].StartTime().After(list[j].StartTime())
	})
	return list
}

// normalize builds the canonical record for a winning observation. Absent
// fields get safe defaults so a malformed record never aborts the cycle.
func normalize(raw *model.RawAlert, silenceByID map[string]model.Silence) model.NormalizedAlert {
	labels := raw.Labels
	if labels == nil {
		labels = map[string]string{}
	}
	annotations := raw.Annotations
	if annotations == nil {
		annotations = map[string]string{}
	}

	status := raw.Status.State
	if status == "" {
		status = model.StatusActive
	}

	name := labels["alertname"]
	if name == "" {
		name = labels["alert_name"]
	}
	if name == "" {
		name = model.AlertNameUnknown
	}

	silencedBy := raw.Status.SilencedBy
	if silencedBy == nil {
		silencedBy = []string{}
	}
	details := make([]model.Silence, 0, len(silencedBy))
	for _, id := range silencedBy {
		if s, ok := silenceByID[id]; ok {
			details = append(details, s)
		}
	}

	return model.NormalizedAlert{
		AlertName:     name,
		Status:        status,
		Labels:        labels,
		Annotations:   annotations,
		StartsAt:      raw.StartsAt,
		EndsAt:        raw.EndsAt,
		Fingerprint:   raw.Fingerprint,
		GeneratorURL:  raw.GeneratorURL,
		Source:        raw.Source,
		SourceBaseURL: raw.SourceBaseURL,
		SilencedBy:    silencedBy,
		Silences:      details,
	}
}
