package footballdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/iptv-companion/internal/platform/resilience"
	"github.com/riskibarqy/iptv-companion/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token"

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*ClientConfig)) (*Client, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := ClientConfig{
		HTTPClient: server.Client(),
		BaseURL:    server.URL + "/v4/",
		Token:      testToken,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 3,
			OpenTimeout:      time.Minute,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	client := NewClient(cfg)
	client.backoff = func(int) time.Duration { return time.Millisecond }
	return client, &hits
}

const matchesBody = `{
  "filters": {"dateFrom": "2026-03-14", "dateTo": "2026-03-14"},
  "matches": [
    {
      "id": 536912,
      "utcDate": "2026-03-14T19:45:00Z",
      "status": "IN_PLAY",
      "competition": {"id": 2019, "name": "Serie A"},
      "homeTeam": {"id": 108, "name": "FC Internazionale Milano", "crest": "https://crests.example/108.png"},
      "awayTeam": {"id": 7397, "name": "Como 1907", "crest": "https://crests.example/7397.png"},
      "score": {"fullTime": {"home": 1, "away": 0}}
    },
    {
      "id": 536913,
      "utcDate": "2026-03-14T21:00:00Z",
      "status": "TIMED",
      "competition": {"id": 2021, "name": "Premier League"},
      "homeTeam": {"id": 57, "name": "Arsenal FC"},
      "awayTeam": {"id": 61, "name": "Chelsea FC"},
      "score": {"fullTime": {"home": null, "away": null}}
    }
  ]
}`

func TestClient_FetchMatches(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/matches", r.URL.Path)
		assert.Equal(t, "2026-03-14", r.URL.Query().Get("dateFrom"))
		assert.Equal(t, "2026-03-15", r.URL.Query().Get("dateTo"))
		assert.Equal(t, testToken, r.Header.Get(authHeader))
		_, _ = w.Write([]byte(matchesBody))
	}, nil)

	got, err := client.FetchMatches(context.Background(), "2026-03-14", "2026-03-15")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(536912), got[0].ID)
	assert.Equal(t, int64(2019), got[0].LeagueID)
	assert.Equal(t, "Serie A", got[0].League)
	assert.Equal(t, "FC Internazionale Milano", got[0].HomeTeam)
	assert.Equal(t, "https://crests.example/7397.png", got[0].AwayCrest)
	assert.Equal(t, "IN_PLAY", got[0].StatusCode)
	assert.Equal(t, time.Date(2026, 3, 14, 19, 45, 0, 0, time.UTC), got[0].KickoffAt)
	require.NotNil(t, got[0].HomeScore)
	assert.Equal(t, 1, *got[0].HomeScore)

	assert.Nil(t, got[1].HomeScore)
	assert.Nil(t, got[1].AwayScore)
}

func TestClient_FetchMatchesDefaultsMissingNames(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"matches":[
			{"id": 536920, "utcDate": "2026-03-14T15:00:00Z", "status": "TIMED",
			 "competition": {"id": 2019, "name": " "},
			 "homeTeam": {"id": null, "name": null},
			 "awayTeam": {"id": 100, "name": "AS Roma"},
			 "score": {"fullTime": {"home": null, "away": null}}}
		]}`))
	}, nil)

	got, err := client.FetchMatches(context.Background(), "2026-03-14", "2026-03-14")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Unknown", got[0].League)
	assert.Equal(t, "Home", got[0].HomeTeam)
	assert.Equal(t, "AS Roma", got[0].AwayTeam)
}

func TestClient_FetchLiveMatchesRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "IN_PLAY", r.URL.Query().Get("status"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"You reached your request limit.","errorCode":429}`))
			return
		}
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}, func(cfg *ClientConfig) { cfg.MaxRetries = 1 })

	got, err := client.FetchLiveMatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	client, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"The resource you are looking for is restricted.","errorCode":403}`))
	}, func(cfg *ClientConfig) { cfg.MaxRetries = 3 })

	_, err := client.FetchMatches(context.Background(), "2026-03-14", "2026-03-14")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider status=403")
	assert.NotContains(t, err.Error(), testToken)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_MissingMatchesField(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}, nil)

	_, err := client.FetchLiveMatches(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_WithoutTokenDoesNotCallProvider(t *testing.T) {
	t.Parallel()

	client, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(matchesBody))
	}, func(cfg *ClientConfig) { cfg.Token = "" })

	assert.False(t, client.Configured())
	_, err := client.FetchMatches(context.Background(), "2026-03-14", "2026-03-14")
	assert.ErrorIs(t, err, usecase.ErrDependencyUnavailable)
	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_CircuitOpensOnTransientFailures(t *testing.T) {
	t.Parallel()

	client, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(cfg *ClientConfig) { cfg.CircuitBreaker.FailureThreshold = 1 })

	_, err := client.FetchLiveMatches(context.Background())
	require.Error(t, err)
	assert.True(t, isTransient(err))

	_, err = client.FetchLiveMatches(context.Background())
	assert.ErrorIs(t, err, usecase.ErrDependencyUnavailable)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_FetchMatchDetail(t *testing.T) {
	t.Parallel()

	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4/matches/536912":
			_, _ = w.Write([]byte(`{"id":536912,"goals":[
				{"minute":12,"scorer":{"name":"Hakan Calhanoglu"}},
				{"minute":67,"scorer":{"name":"Lautaro Martinez"}}
			]}`))
		case "/v4/matches/536913":
			_, _ = w.Write([]byte(`{"id":536913,"goals":[]}`))
		case "/v4/matches/536914":
			_, _ = w.Write([]byte(`{"id":536914,"goals":[{"minute":null,"scorer":null}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, nil)
	ctx := context.Background()

	detail, ok, err := client.FetchMatchDetail(ctx, "536912")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Lautaro Martinez", detail.Scorer)
	assert.Equal(t, 67, detail.Minute)

	_, _, err = client.FetchMatchDetail(ctx, "536912")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second lookup served from the detail cache")

	_, ok, err = client.FetchMatchDetail(ctx, "536913")
	require.NoError(t, err)
	assert.False(t, ok)

	detail, ok, err = client.FetchMatchDetail(ctx, "536914")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Goal!", detail.Scorer)
	assert.Equal(t, 0, detail.Minute)

	_, _, err = client.FetchMatchDetail(ctx, " ")
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)
}
