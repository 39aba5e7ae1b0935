// Package source talks to the alertmanager-compatible API of each configured
// backend. Grafana exposes the API under two path prefixes depending on
// version, so every call probes an ordered fallback list and succeeds on the
// first 2xx response.
package source

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qiniu/dcalerts/internal/aggregator/model"
	"github.com/qiniu/dcalerts/internal/config"
	"github.com/rs/zerolog/log"
)

// Client fetches alerts and silences from backends with bounded retries.
type Client struct {
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
}

func NewClient(cfg *config.AggregatorConfig) *Client {
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
		MaxIdleConnsPerHost: 32,
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout(), Transport: transport},
		retries:    cfg.FetchRetries,
		retryDelay: cfg.GetFetchRetryDelay(),
	}
}

// pathVariants returns the candidate URLs for an alertmanager API path, most
// specific prefix first.
func pathVariants(baseURL, path string) []string {
	base := strings.TrimRight(baseURL, "/")
	return []string{
		base + "/api/alertmanager/grafana" + path,
		base + "/api/alertmanager" + path,
	}
}

func applyAuth(req *http.Request, src config.SourceConfig) {
	if src.Token != "" {
		req.Header.Set("Authorization", "Bearer "+src.Token)
	} else if src.User != "" {
		req.SetBasicAuth(src.User, src.Password)
	}
}

func (c *Client) get(ctx context.Context, src config.SourceConfig, path string, params url.Values) ([]byte, error) {
	var lastErr error
	for _, u := range pathVariants(src.BaseURL, path) {
		if len(params) > 0 {
			u = u + "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		applyAuth(req, src)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return body, nil
		}
		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil, fmt.Errorf("GET %s failed for %s: %w", path, src.Name, lastErr)
}

func (c *Client) post(ctx context.Context, src config.SourceConfig, path string, jsonBody any) ([]byte, error) {
	data, err := json.Marshal(jsonBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	var lastErr error
	for _, u := range pathVariants(src.BaseURL, path) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		applyAuth(req, src)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}
		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil, fmt.Errorf("POST %s failed for %s: %w", path, src.Name, lastErr)
}

func (c *Client) delete(ctx context.Context, src config.SourceConfig, path string) error {
	var lastErr error
	for _, u := range pathVariants(src.BaseURL, path) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		applyAuth(req, src)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("DELETE %s failed for %s: %w", path, src.Name, lastErr)
}

// Alerts fetches the currently visible alerts from one backend. Both the bare
// list and the {"alerts": [...]} envelope response shapes are accepted.
func (c *Client) Alerts(ctx context.Context, src config.SourceConfig) ([]model.RawAlert, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("inhibited", "false")
	params.Set("silenced", "true")

	body, err := c.get(ctx, src, "/api/v2/alerts", params)
	if err != nil {
		return nil, err
	}

	var alerts []model.RawAlert
	if err := json.Unmarshal(body, &alerts); err != nil {
		var envelope struct {
			Alerts []model.RawAlert `json:"alerts"`
		}
		if err2 := json.Unmarshal(body, &envelope); err2 != nil {
			return nil, fmt.Errorf("failed to decode alerts from %s: %w", src.Name, err)
		}
		alerts = envelope.Alerts
	}

	for i := range alerts {
		alerts[i].Source = src.Name
		alerts[i].SourceBaseURL = src.BaseURL
	}
	return alerts, nil
}

// wireSilence is the alertmanager v2 silence shape with its nested status.
type wireSilence struct {
	ID        string          `json:"id"`
	CreatedBy string          `json:"createdBy"`
	Comment   string          `json:"comment"`
	StartsAt  string          `json:"startsAt"`
	EndsAt    string          `json:"endsAt"`
	Matchers  []model.Matcher `json:"matchers"`
	Status    struct {
		State string `json:"state"`
	} `json:"status"`
}

// Silences fetches all silences from one backend.
func (c *Client) Silences(ctx context.Context, src config.SourceConfig) ([]model.Silence, error) {
	body, err := c.get(ctx, src, "/api/v2/silences", nil)
	if err != nil {
		return nil, err
	}

	var wire []wireSilence
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode silences from %s: %w", src.Name, err)
	}

	silences := make([]model.Silence, 0, len(wire))
	for _, w := range wire {
		silences = append(silences, model.Silence{
			ID:            w.ID,
			CreatedBy:     w.CreatedBy,
			Comment:       w.Comment,
			StartsAt:      w.StartsAt,
			EndsAt:        w.EndsAt,
			Matchers:      w.Matchers,
			State:         w.Status.State,
			Source:        src.Name,
			SourceBaseURL: src.BaseURL,
		})
	}
	return silences, nil
}

// FetchAll retrieves alerts and silences from one backend with bounded
// retries and a fixed inter-attempt delay. Exhausting all attempts marks the
// source failed for the cycle; the error text is returned for the per-source
// status, never propagated as a cycle failure.
func (c *Client) FetchAll(ctx context.Context, src config.SourceConfig) ([]model.RawAlert, []model.Silence, bool, string) {
	attempts := c.retries + 1
	var lastErr error
	for i := 1; i <= attempts; i++ {
		alerts, err := c.Alerts(ctx, src)
		if err == nil {
			var silences []model.Silence
			silences, err = c.Silences(ctx, src)
			if err == nil {
				log.Info().
					Str("source", src.Name).
					Int("alerts", len(alerts)).
					Int("silences", len(silences)).
					Msg("source fetch ok")
				return alerts, silences, true, ""
			}
		}
		lastErr = err
		log.Warn().
			Err(err).
			Str("source", src.Name).
			Int("attempt", i).
			Int("attempts", attempts).
			Msg("source fetch attempt failed")
		if i < attempts {
			select {
			case <-ctx.Done():
				return nil, nil, false, ctx.Err().Error()
			case <-time.After(c.retryDelay):
			}
		}
	}
	log.Error().
		Err(lastErr).
		Str("source", src.Name).
		Int("attempts", attempts).
		Msg("source fetch failed")
	return nil, nil, false, lastErr.Error()
}

// CreateSilence posts a new silence to one backend and returns the raw
// backend response (typically {"silenceID": ...}).
func (c *Client) CreateSilence(ctx context.Context, src config.SourceConfig, payload model.SilencePayload) (map[string]any, error) {
	body, err := c.post(ctx, src, "/api/v2/silences", payload)
	if err != nil {
		return nil, err
	}
	result := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode silence response from %s: %w", src.Name, err)
		}
	}
	return result, nil
}

// DeleteSilence expires a silence by id on one backend.
func (c *Client) DeleteSilence(ctx context.Context, src config.SourceConfig, id string) error {
	return c.delete(ctx, src, "/api/v2/silence/"+url.PathEscape(id))
}
