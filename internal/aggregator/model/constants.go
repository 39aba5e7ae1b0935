package model

// Alert states as reported by the backends.
const (
	StatusFiring     = "firing"
	StatusActive     = "active"
	StatusSuppressed = "suppressed"
)

// SiteUnassigned is the implicit bucket for alerts matching no site.
const SiteUnassigned = "Unassigned"

// AlertNameUnknown is substituted when a record carries no alertname label.
const AlertNameUnknown = "unknown"
