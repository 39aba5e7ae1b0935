package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qiniu/dcalerts/internal/aggregator/model"
	"github.com/qiniu/dcalerts/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(retries int) *Client {
	return NewClient(&config.AggregatorConfig{
		RequestTimeout:  "5s",
		FetchRetries:    retries,
		FetchRetryDelay: "1ms",
		VerifyTLS:       true,
	})
}

func srcFor(server *httptest.Server) config.SourceConfig {
	return config.SourceConfig{Name: "test", BaseURL: server.URL}
}

func TestPathVariants(t *testing.T) {
	got := pathVariants("https://grafana.example/", "/api/v2/alerts")
	want := []string{
		"https://grafana.example/api/alertmanager/grafana/api/v2/alerts",
		"https://grafana.example/api/alertmanager/api/v2/alerts",
	}
	assert.Equal(t, want, got)
}

func TestAlertsDualPathFallback(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/alertmanager/grafana/api/v2/alerts" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"labels":{"alertname":"HighCPU"},"status":{"state":"firing"},"fingerprint":"fp1"}]`))
	}))
	defer server.Close()

	alerts, err := testClient(0).Alerts(context.Background(), srcFor(server))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "HighCPU", alerts[0].Labels["alertname"])
	assert.Equal(t, "test", alerts[0].Source)
	assert.Equal(t, server.URL, alerts[0].SourceBaseURL)
	// first path probed, then the fallback
	require.Len(t, paths, 2)
	assert.Equal(t, "/api/alertmanager/grafana/api/v2/alerts", paths[0])
	assert.Equal(t, "/api/alertmanager/api/v2/alerts", paths[1])
}

func TestAlertsEnvelopeShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"alerts":[{"labels":{"alertname":"LinkDown"},"status":{"state":"active"}}]}`))
	}))
	defer server.Close()

	alerts, err := testClient(0).Alerts(context.Background(), srcFor(server))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "LinkDown", alerts[0].Labels["alertname"])
}

func TestAlertsQueryParams(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := testClient(0).Alerts(context.Background(), srcFor(server))
	require.NoError(t, err)
	assert.Contains(t, query, "active=true")
	assert.Contains(t, query, "inhibited=false")
	assert.Contains(t, query, "silenced=true")
}

func TestBearerAuth(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	src := srcFor(server)
	src.Token = "secret-token"
	src.User = "ignored"
	_, err := testClient(0).Alerts(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", auth)
}

func TestBasicAuth(t *testing.T) {
	var user, pass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	src := srcFor(server)
	src.User = "admin"
	src.Password = "password"
	_, err := testClient(0).Alerts(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "password", pass)
}

func TestSilencesFlattenStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"sil-1","createdBy":"op","comment":"maintenance",
			"matchers":[{"name":"dc","value":"tehran","isRegex":false}],
			"status":{"state":"active"}}]`))
	}))
	defer server.Close()

	silences, err := testClient(0).Silences(context.Background(), srcFor(server))
	require.NoError(t, err)
	require.Len(t, silences, 1)
	assert.Equal(t, "sil-1", silences[0].ID)
	assert.Equal(t, "active", silences[0].State)
	assert.Equal(t, "test", silences[0].Source)
	require.Len(t, silences[0].Matchers, 1)
	assert.Equal(t, "dc", silences[0].Matchers[0].Name)
}

func TestFetchAllRetriesThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// both path variants fail on the first attempt
		calls++
		if calls <= 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	alerts, silences, ok, errText := testClient(2).FetchAll(context.Background(), srcFor(server))
	assert.True(t, ok)
	assert.Empty(t, errText)
	assert.Empty(t, alerts)
	assert.Empty(t, silences)
}

func TestFetchAllExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, _, ok, errText := testClient(1).FetchAll(context.Background(), srcFor(server))
	assert.False(t, ok)
	assert.Contains(t, errText, "502")
}

func payloadFixture() model.SilencePayload {
	return model.SilencePayload{
		Matchers:  []model.Matcher{{Name: "dc", Value: "tehran"}},
		StartsAt:  "2026-03-01T12:00:00Z",
		EndsAt:    "2026-03-01T14:00:00Z",
		CreatedBy: "dcalerts-ui",
		Comment:   "maintenance",
	}
}

func TestCreateSilence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"silenceID":"new-sil"}`))
	}))
	defer server.Close()

	result, err := testClient(0).CreateSilence(context.Background(), srcFor(server), payloadFixture())
	require.NoError(t, err)
	assert.Equal(t, "new-sil", result["silenceID"])
}

func TestDeleteSilence(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := testClient(0).DeleteSilence(context.Background(), srcFor(server), "sil-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/alertmanager/grafana/api/v2/silence/sil-1", path)
}
