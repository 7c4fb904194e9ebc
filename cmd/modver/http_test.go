package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modver "github.com/btt-go/btt-modver"
)

type staticSource struct{ body string }

func (s staticSource) Fetch(context.Context) (*modver.ConfigFetch, error) {
	return &modver.ConfigFetch{Version: "1", Body: []byte(s.body)}, nil
}

type staticEvaluator struct{}

func (staticEvaluator) BatchEvaluate(_ context.Context, _ string, reqs []modver.EvaluationRequest) ([]modver.EvaluationResponse, error) {
	none := modver.ValueNone
	out := make([]modver.EvaluationResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, modver.EvaluationResponse{
			Feature: r.Feature,
			Value:   modver.FeatureValue{StringValue: &none},
			Reason:  modver.ReasonDefault,
		})
	}
	return out, nil
}

func (staticEvaluator) Evaluate(_ context.Context, _ string, req modver.EvaluationRequest) (modver.EvaluationResponse, error) {
	on := "on"
	if req.EvaluationContext != `{"plan":"pro"}` {
		return modver.EvaluationResponse{Value: modver.FeatureValue{StringValue: &on}, Reason: modver.ReasonDefault, Variation: "default"}, nil
	}
	return modver.EvaluationResponse{Value: modver.FeatureValue{StringValue: &on}, Reason: "EVALUATION_RULE_MATCH", Variation: "pro"}, nil
}

type feedEvents []modver.FeedEvent

func (f *feedEvents) Next(ctx context.Context) (modver.FeedEvent, error) {
	if len(*f) == 0 {
		<-ctx.Done()
		return modver.FeedEvent{}, ctx.Err()
	}
	ev := (*f)[0]
	*f = (*f)[1:]
	return ev, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	opts := modver.DefaultOptions()
	opts.ConfigPath = "web"
	res, err := modver.New(opts,
		modver.WithConfigSource(staticSource{body: `{"features":[
			{"name":"FooModule_Alpha","variations":{"release":"a1|2024-01-01"}},
			{"name":"BarModule_Beta","variations":{"release":"b1|2024-01-01"}}
		]}`}),
		modver.WithEvaluator(staticEvaluator{}),
	)
	require.NoError(t, err)
	t.Cleanup(res.Shutdown)

	feed := &feedEvents{
		{Record: modver.ModuleRecord{ID: "header", Channels: map[modver.Channel]modver.ReleaseInfo{
			modver.ChannelBeta: {Version: "h1", Date: "2024-02-02"},
		}}},
		{Ready: true},
	}
	cache := modver.NewMetadataCache(feed, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, cache.Start(ctx))

	srv := httptest.NewServer(newMux(res, cache))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestVersionsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var versions modver.Versions
	status := getJSON(t, srv.URL+"/versions/foo?user=u1", &versions)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, modver.Versions{"Alpha": {Hash: "a1", Time: "2024-01-01"}}, versions)

	status = getJSON(t, srv.URL+"/versions/foo?user=u1&channel=beta&source=table", &versions)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, modver.Versions{"header": {Hash: "h1", Time: "2024-02-02"}}, versions)

	var body map[string]string
	status = getJSON(t, srv.URL+"/versions/foo?channel=beta", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "user id is required")
}

func TestFlagsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var result modver.FeatureResult
	status := getJSON(t, srv.URL+"/flags/checkout?user=u1&attr.plan=pro", &result)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pro", result.Variation)
	assert.Equal(t, "u1", result.ID)

	status = getJSON(t, srv.URL+"/flags/checkout?user=u1", &result)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "default", result.Variation)

	var body map[string]string
	status = getJSON(t, srv.URL+"/flags/1bad?user=u1", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "invalid flag name")
}

func TestModulesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var rec modver.ModuleRecord
	status := getJSON(t, srv.URL+"/modules/header", &rec)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "h1", rec.Channels[modver.ChannelBeta].Version)

	var body map[string]string
	status = getJSON(t, srv.URL+"/modules/footer", &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "module not found: footer", body["error"])
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	// 第一次请求会加载快照
	getJSON(t, srv.URL+"/versions/foo?user=u1", nil)

	var health map[string]any
	status := getJSON(t, srv.URL+"/healthz", &health)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1", health["snapshot_version"])
	assert.EqualValues(t, 2, health["modules"])
	assert.EqualValues(t, 1, health["metadata_records"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
