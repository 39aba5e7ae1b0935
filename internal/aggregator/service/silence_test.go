package service

import (
	"context"
	"testing"
	"time"

	"github.com/qiniu/dcalerts/internal/aggregator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSource(t *testing.T) {
	agg := New(testConfig(), &fakeClient{}, &fakeSink{}, nil)

	src, ok := agg.FindSource("g1")
	require.True(t, ok)
	assert.Equal(t, "g1", src.Name)

	// base URL matches too, trailing slash ignored
	src, ok = agg.FindSource("https://grafana2.example/")
	require.True(t, ok)
	assert.Equal(t, "g2", src.Name)

	_, ok = agg.FindSource("nope")
	assert.False(t, ok)
}

func TestCreateOrUpdateSilence(t *testing.T) {
	client := &fakeClient{}
	agg := New(testConfig(), client, &fakeSink{}, nil)

	result, err := agg.CreateOrUpdateSilence(context.Background(), SilenceRequest{
		Source:   "g1",
		Matchers: []model.Matcher{{Name: "dc", Value: "tehran"}},
		StartsAt: "2026-03-01T12:00:00Z",
		EndsAt:   "2026-03-01T14:00:00Z",
		Comment:  "maintenance",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-sil", result["silenceID"])

	require.Len(t, client.created, 1)
	created := client.created[0]
	assert.Equal(t, "g1", created.source)
	assert.Equal(t, "2026-03-01T12:00:00Z", created.payload.StartsAt)
	assert.Equal(t, "2026-03-01T14:00:00Z", created.payload.EndsAt)
	assert.Equal(t, "dcalerts-ui", created.payload.CreatedBy)
	assert.Empty(t, client.deleted)
}

func TestCreateOrUpdateSilenceDeletesExistingFirst(t *testing.T) {
	client := &fakeClient{}
	agg := New(testConfig(), client, &fakeSink{}, nil)

	_, err := agg.CreateOrUpdateSilence(context.Background(), SilenceRequest{
		Source:   "g1",
		ID:       "old-sil",
		Matchers: []model.Matcher{{Name: "dc", Value: "tehran"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"old-sil"}, client.deleted)
	require.Len(t, client.created, 1)
}

func TestCreateOrUpdateSilenceStripsForbiddenMatchers(t *testing.T) {
	client := &fakeClient{}
	agg := New(testConfig(), client, &fakeSink{}, nil)

	_, err := agg.CreateOrUpdateSilence(context.Background(), SilenceRequest{
		Source: "g1",
		Matchers: []model.Matcher{
			{Name: "__alert_rule_uid__", Value: "abc"},
			{Name: "dc", Value: "tehran"},
		},
	})
	require.NoError(t, err)
	require.Len(t, client.created, 1)
	matchers := client.created[0].payload.Matchers
	require.Len(t, matchers, 1)
	assert.Equal(t, "dc", matchers[0].Name)
}

func TestCreateOrUpdateSilenceRejectsEmptyMatchers(t *testing.T) {
	client := &fakeClient{}
	agg := New(testConfig(), client, &fakeSink{}, nil)

	_, err := agg.CreateOrUpdateSilence(context.Background(), SilenceRequest{
		Source:   "g1",
		Matchers: []model.Matcher{{Name: "__alert_rule_uid__", Value: "abc"}},
	})
	assert.ErrorIs(t, err, ErrNoMatchers)
	assert.Empty(t, client.created)
}

func TestCreateOrUpdateSilenceUnknownSource(t *testing.T) {
	agg := New(testConfig(), &fakeClient{}, &fakeSink{}, nil)
	_, err := agg.CreateOrUpdateSilence(context.Background(), SilenceRequest{Source: "nope"})
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestRemoveSilence(t *testing.T) {
	client := &fakeClient{}
	agg := New(testConfig(), client, &fakeSink{}, nil)

	require.NoError(t, agg.RemoveSilence(context.Background(), "g2", "sil-9"))
	assert.Equal(t, []string{"sil-9"}, client.deleted)

	assert.ErrorIs(t, agg.RemoveSilence(context.Background(), "nope", "sil-9"), ErrUnknownSource)
}

func TestSilenceWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		start, end := silenceWindow("", "", now)
		assert.True(t, start.Equal(now))
		assert.True(t, end.Equal(now.Add(2*time.Hour)))
	})

	t.Run("end before start pushed out", func(t *testing.T) {
		start, end := silenceWindow("2026-03-01T12:00:00Z", "2026-03-01T11:00:00Z", now)
		assert.True(t, end.Equal(start.Add(time.Minute)))
	})

	t.Run("malformed times fall back", func(t *testing.T) {
		start, end := silenceWindow("not-a-time", "also-bad", now)
		assert.True(t, start.Equal(now))
		assert.True(t, end.Equal(now.Add(2*time.Hour)))
	})
}
