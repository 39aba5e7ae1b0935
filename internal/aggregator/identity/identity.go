// Package identity derives the stable key used to recognize repeated
// observations of the same alert across polls and sources.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	promModel "github.com/prometheus/common/model"
)

// Key returns the identity of an alert. A non-empty fingerprint supplied by
// the backend wins unmodified; otherwise the key is a SHA-1 digest of the
// canonical sorted serialization of the label set, so two alerts with the
// same labels hash identically regardless of map iteration order.
func Key(fingerprint string, labels map[string]string) string {
	if fp := strings.TrimSpace(fingerprint); fp != "" {
		return fp
	}
	ls := make(promModel.LabelSet, len(labels))
	for k, v := range labels {
		ls[promModel.LabelName(k)] = promModel.LabelValue(v)
	}
	sum := sha1.Sum([]byte(ls.String()))
	return hex.EncodeToString(sum[:])
}
