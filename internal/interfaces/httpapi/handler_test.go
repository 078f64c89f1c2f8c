package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/riskibarqy/iptv-companion/internal/infrastructure/repository/memory"
	programmock "github.com/riskibarqy/iptv-companion/internal/mocks/domain/program"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"github.com/riskibarqy/iptv-companion/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testGuideURL = "https://epg.example.test/guide.xml"

type envelope[T any] struct {
	APIVersion string `json:"apiVersion"`
	Data       T      `json:"data"`
	Error      *struct {
		Code   int    `json:"code"`
		Status string `json:"status"`
	} `json:"error"`
}

func programmeBlock(channel string, start, stop time.Time, title string) string {
	return fmt.Sprintf(
		`<programme start="%s +0000" stop="%s +0000" channel="%s"><title>%s</title></programme>`,
		start.UTC().Format("20060102150405"), stop.UTC().Format("20060102150405"), channel, title,
	)
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	doc := `<?xml version="1.0" encoding="UTF-8"?><tv>` +
		programmeBlock("sky.calcio", now.Add(-30*time.Minute), now.Add(30*time.Minute), "Inter - Como") +
		programmeBlock("sky.calcio", now.Add(30*time.Minute), now.Add(2*time.Hour), "Calcio Show") +
		`</tv>`

	fetcher := programmock.NewFetcher(t)
	fetcher.On("Fetch", mock.Anything, testGuideURL).Return([]byte(doc), nil).Once()

	logger := logging.NewNop()
	guide := usecase.NewGuideService(fetcher, testGuideURL, logger)

	cache := usecase.NewFixtureCache(memory.NewKVStore(), usecase.DefaultFixtureCacheConfig(), logger)
	require.NoError(t, cache.Write(context.Background(), usecase.DefaultFixtureCacheKey, []fixture.Fixture{
		{ID: "536912", League: "Serie A", Match: "Inter vs Como", HomeTeam: "Inter", AwayTeam: "Como", Status: fixture.StatusTimed},
	}))
	fixtures := usecase.NewFixtureSyncService(nil, cache, usecase.FixtureSyncConfig{}, logger)

	scheduler := usecase.NewScheduler(guide, fixtures, nil, usecase.SchedulerConfig{
		GuideInterval:   time.Hour,
		FixtureInterval: time.Hour,
		PollInterval:    time.Hour,
	}, logger)
	scheduler.Start(context.Background())
	t.Cleanup(scheduler.Stop)

	return NewRouter(NewHandler(guide, scheduler, logger), logger, true, []string{"*"})
}

func doGet[T any](t *testing.T, router http.Handler, target string) (int, envelope[T]) {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body envelope[T]
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func TestHandler_Healthz(t *testing.T) {
	router := newTestRouter(t)

	code, body := doGet[healthDTO](t, router, "/healthz")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2.0", body.APIVersion)
	assert.Equal(t, "ok", body.Data.Status)
	require.NotNil(t, body.Data.Guide)
	assert.Equal(t, 1, body.Data.Guide.Channels)
	assert.Equal(t, 2, body.Data.Guide.Programs)
	require.NotNil(t, body.Data.Scheduler)
	assert.NotNil(t, body.Data.Scheduler.LastFixtureRefresh)
}

func TestHandler_GetNowNext(t *testing.T) {
	router := newTestRouter(t)

	code, body := doGet[nowNextDTO](t, router, "/v1/channels/sky.calcio/now")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, body.Data.Current)
	require.NotNil(t, body.Data.Next)
	assert.Equal(t, "Inter - Como", body.Data.Current.Title)
	assert.Equal(t, "Calcio Show", body.Data.Next.Title)
	assert.Greater(t, body.Data.Progress, 0.0)

	code, missing := doGet[nowNextDTO](t, router, "/v1/channels/rai.1/now")
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, missing.Error)
	assert.Equal(t, "NOT_FOUND", missing.Error.Status)
}

func TestHandler_LocateMatch(t *testing.T) {
	router := newTestRouter(t)

	code, body := doGet[locateMatchDTO](t, router, "/v1/matches/locate?title=Inter+vs+Como")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Data.Matches, 1)
	assert.Equal(t, "sky.calcio", body.Data.Matches[0].ChannelKey)
	assert.True(t, body.Data.Matches[0].IsLive)

	code, body = doGet[locateMatchDTO](t, router, "/v1/matches/locate?title=Inter+vs+Como&channels=rai.1,+dazn.1")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Data.Matches)

	code, _ = doGet[locateMatchDTO](t, router, "/v1/matches/locate")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doGet[locateMatchDTO](t, router, "/v1/matches/locate?title=Inter")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_ListFixtures(t *testing.T) {
	router := newTestRouter(t)

	code, body := doGet[fixtureListDTO](t, router, "/v1/fixtures")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(usecase.SourceCache), body.Data.Source)
	require.Len(t, body.Data.Fixtures, 1)
	assert.Equal(t, "Inter vs Como", body.Data.Fixtures[0].Match)
}

func TestHandler_ListFixtureEvents(t *testing.T) {
	router := newTestRouter(t)

	code, body := doGet[[]eventDTO](t, router, "/v1/fixtures/events")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Data)

	code, _ = doGet[[]eventDTO](t, router, "/v1/fixtures/events?limit=abc")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doGet[[]eventDTO](t, router, "/v1/fixtures/events?limit=0")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouter_ServesOpenAPI(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/v1/matches/locate")
}
