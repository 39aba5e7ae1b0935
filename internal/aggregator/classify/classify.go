// Package classify maps alerts to logical sites using an explicit synonym
// table. Classification is a pure function over the table so the rules can
// evolve without touching the merge engine.
package classify

import "strings"

// Classifier holds an ordered list of canonical site names and, per name, the
// lowercase synonym substrings that imply it.
type Classifier struct {
	canonical []string
	synonyms  map[string][]string
}

func New(canonical []string, synonyms map[string][]string) *Classifier {
	if synonyms == nil {
		synonyms = map[string][]string{}
	}
	return &Classifier{canonical: canonical, synonyms: synonyms}
}

// Default returns the built-in datacenter table.
func Default() *Classifier {
	return New(
		[]string{"Tehran", "Shiraz", "Tabriz", "Mashhad", "Esfahan"},
		map[string][]string{
			"Tehran":  {"tehran", "teh"},
			"Shiraz":  {"shiraz", "siraz", "shz"},
			"Tabriz":  {"tabriz", "tabz", "tbz", "tab"},
			"Mashhad": {"mashhad", "mashhd"},
			"Esfahan": {"esfahan", "esf", "esf_dc"},
		},
	)
}

// Canonical returns the ordered site list.
func (c *Classifier) Canonical() []string { return c.canonical }

// Sites returns the canonical names the alert belongs to, in canonical order.
// An exact (case-insensitive) DC label match is authoritative; independently,
// any synonym appearing as a substring of the combined label/annotation text
// also matches. An empty result means the caller should bucket the alert as
// Unassigned.
func (c *Classifier) Sites(labels, annotations map[string]string) []string {
	text := strings.Join([]string{
		lower(labels["DC"]), lower(labels["dc"]),
		lower(annotations["summary"]), lower(annotations["message"]),
		lower(annotations["description"]), lower(annotations["body"]),
	}, " ")

	siteLabel := lower(labels["DC"])
	if siteLabel == "" {
		siteLabel = lower(labels["dc"])
	}

	found := map[string]bool{}
	for _, canon := range c.canonical {
		if siteLabel != "" && siteLabel == lower(canon) {
			found[canon] = true
		}
	}
	for _, canon := range c.canonical {
		for _, syn := range c.synonyms[canon] {
			if syn != "" && strings.Contains(text, syn) {
				found[canon] = true
				break
			}
		}
	}

	out := make([]string, 0, len(found))
	for _, canon := range c.canonical {
		if found[canon] {
			out = append(out, canon)
		}
	}
	return out
}

func lower(s string) string { return strings.ToLower(s) }
