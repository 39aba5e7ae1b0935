package model

// Matcher is one label matcher attached to a silence.
type Matcher struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	IsRegex bool   `json:"isRegex"`
}

// Silence is a suppression directive fetched from one backend, flattened from
// the alertmanager v2 wire shape (the nested status object becomes State).
type Silence struct {
	ID            string    `json:"id"`
	CreatedBy     string    `json:"createdBy"`
	Comment       string    `json:"comment"`
	StartsAt      string    `json:"startsAt"`
	EndsAt        string    `json:"endsAt"`
	Matchers      []Matcher `json:"matchers"`
	State         string    `json:"state"` // active, pending, expired
	Source        string    `json:"source"`
	SourceBaseURL string    `json:"sourceBaseURL"`
}

// SilencePayload is the request body for creating a silence on a backend.
type SilencePayload struct {
	Matchers  []Matcher `json:"matchers"`
	StartsAt  string    `json:"startsAt"`
	EndsAt    string    `json:"endsAt"`
	CreatedBy string    `json:"createdBy"`
	Comment   string    `json:"comment"`
}
