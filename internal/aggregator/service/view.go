package service

import (
	"strings"
	"time"

	"github.com/qiniu/dcalerts/internal/aggregator/model"
)

// SourceStatus reports the outcome of the latest fetch from one backend.
type SourceStatus struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// View is the immutable per-cycle result published to readers. It is
// replaced wholesale under the aggregator lock; readers never observe a
// partially updated cycle.
type View struct {
	GeneratedAt time.Time                          `json:"generated_at"`
	BySite      map[string][]model.NormalizedAlert `json:"by_site"`
	Sources     []SourceStatus                     `json:"sources"`
	LastError   string                             `json:"last_error,omitempty"`
}

// Filter returns a copy of the view restricted to alerts whose name or
// human-readable annotations contain q (case-insensitive). An empty q
// returns the view unchanged.
func (v View) Filter(q string) View {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return v
	}
	filtered := make(map[string][]model.NormalizedAlert, len(v.BySite))
	for site, alerts := range v.BySite {
		keep := make([]model.NormalizedAlert, 0, len(alerts))
		for _, a := range alerts {
			text := strings.ToLower(strings.Join([]string{
				a.AlertName,
				a.Annotations["summary"],
				a.Annotations["message"],
				a.Annotations["description"],
			}, " "))
			if strings.Contains(text, q) {
				keep = append(keep, a)
			}
		}
		filtered[site] = keep
	}
	out := v
	out.BySite = filtered
	return out
}
