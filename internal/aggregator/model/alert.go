package model

import "time"

// AlertStatus is the nested status object returned by the alertmanager v2 API.
type AlertStatus struct {
	State       string   `json:"state"` // firing, active, suppressed
	SilencedBy  []string `json:"silencedBy"`
	InhibitedBy []string `json:"inhibitedBy"`
}

// RawAlert is one observation of an alert from one backend within a single
// refresh cycle. Timestamps are kept as the RFC3339 strings the backends send
// so that a malformed value never fails the whole decode.
type RawAlert struct {
	Status       AlertStatus       `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     string            `json:"startsAt"`
	EndsAt       string            `json:"endsAt"`
	Fingerprint  string            `json:"fingerprint"`
	GeneratorURL string            `json:"generatorURL"`

	// Filled by the fetcher, not part of the backend payload.
	Source        string `json:"-"`
	SourceBaseURL string `json:"-"`
}

// StartTime parses StartsAt, returning the zero time when absent or malformed.
func (a *RawAlert) StartTime() time.Time { return ParseTime(a.StartsAt) }

// EndTime parses EndsAt, returning the zero time when absent or malformed.
func (a *RawAlert) EndTime() time.Time { return ParseTime(a.EndsAt) }

// NormalizedAlert is the per-site canonical record produced by the merge
// engine: one per identity, annotated with resolved silence detail.
type NormalizedAlert struct {
	AlertName     string            `json:"alertname"`
	Status        string            `json:"status"`
	Labels        map[string]string `json:"labels"`
	Annotations   map[string]string `json:"annotations"`
	StartsAt      string            `json:"startsAt"`
	EndsAt        string            `json:"endsAt,omitempty"`
	Fingerprint   string            `json:"fingerprint"`
	GeneratorURL  string            `json:"generatorURL,omitempty"`
	Source        string            `json:"source"`
	SourceBaseURL string            `json:"sourceBaseURL"`
	SilencedBy    []string          `json:"silencedBy"`
	Silences      []Silence         `json:"silences"`
}

// StartTime parses StartsAt, returning the zero time when absent or malformed.
func (a *NormalizedAlert) StartTime() time.Time { return ParseTime(a.StartsAt) }

// EndTime parses EndsAt, returning the zero time when absent or malformed.
func (a *NormalizedAlert) EndTime() time.Time { return ParseTime(a.EndsAt) }

// ParseTime parses an RFC3339 timestamp, mapping empty or malformed input to
// the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
