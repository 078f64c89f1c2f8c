package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	programmock "github.com/riskibarqy/iptv-companion/internal/mocks/domain/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const guideURL = "https://epg.example.test/guide.xml"

var guideNow = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func guideDocument(blocks ...string) []byte {
	doc := `<?xml version="1.0" encoding="UTF-8"?><tv>`
	for _, b := range blocks {
		doc += b
	}
	return []byte(doc + `</tv>`)
}

func guideBlock(channel string, start, stop time.Time, title, desc string) string {
	return fmt.Sprintf(
		`<programme start="%s +0000" stop="%s +0000" channel="%s"><title lang="en">%s</title><desc>%s</desc></programme>`,
		start.Format("20060102150405"), stop.Format("20060102150405"), channel, title, desc,
	)
}

func newTestGuideService(t *testing.T) (*GuideService, *programmock.Fetcher) {
	t.Helper()

	fetcher := programmock.NewFetcher(t)
	service := NewGuideService(fetcher, guideURL, nil)
	service.now = func() time.Time { return guideNow }
	return service, fetcher
}

func TestGuideService_RefreshAndNowNext(t *testing.T) {
	t.Parallel()

	service, fetcher := newTestGuideService(t)
	doc := guideDocument(
		guideBlock("sky.calcio", guideNow.Add(-30*time.Minute), guideNow.Add(30*time.Minute), "Inter - Como", "Serie A live"),
		guideBlock("sky.calcio", guideNow.Add(30*time.Minute), guideNow.Add(90*time.Minute), "Calcio Show", ""),
	)
	fetcher.On("Fetch", mock.Anything, guideURL).Return(doc, nil).Once()

	result := service.Refresh(context.Background())
	require.NoError(t, result.Reason)
	assert.Equal(t, 2, result.Stats.Kept)
	assert.Equal(t, GuideSnapshot{Channels: 1, Programs: 2, FetchedAt: guideNow}, service.Snapshot())

	got, err := service.NowNext(context.Background(), "sky.calcio")
	require.NoError(t, err)
	require.NotNil(t, got.Current)
	require.NotNil(t, got.Next)
	assert.Equal(t, "Inter - Como", got.Current.Title)
	assert.Equal(t, "Calcio Show", got.Next.Title)
	assert.InDelta(t, 50.0, got.Progress, 0.001)

	_, err = service.NowNext(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = service.NowNext(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGuideService_FailedFetchReplacesWithEmptyIndex(t *testing.T) {
	t.Parallel()

	service, fetcher := newTestGuideService(t)
	doc := guideDocument(guideBlock("a", guideNow, guideNow.Add(time.Hour), "News", ""))
	fetcher.On("Fetch", mock.Anything, guideURL).Return(doc, nil).Once()
	fetcher.On("Fetch", mock.Anything, guideURL).Return(nil, errors.New("connection refused")).Once()

	first := service.Refresh(context.Background())
	require.NoError(t, first.Reason)
	assert.Equal(t, 1, service.Index().Channels())

	second := service.Refresh(context.Background())
	require.Error(t, second.Reason)
	assert.NotNil(t, second.Index)
	assert.Equal(t, 0, service.Index().Channels())
}

func TestGuideService_IngestWithoutURL(t *testing.T) {
	t.Parallel()

	service, _ := newTestGuideService(t)
	result := service.Ingest(context.Background(), "")
	assert.ErrorIs(t, result.Reason, ErrInvalidInput)
	assert.Empty(t, result.Index)
}

func TestGuideService_Locate(t *testing.T) {
	t.Parallel()

	service, fetcher := newTestGuideService(t)
	doc := guideDocument(
		guideBlock("dazn.1", guideNow.Add(2*time.Hour), guideNow.Add(4*time.Hour), "Serie A", "Inter v Como"),
		guideBlock("sky.calcio", guideNow.Add(-30*time.Minute), guideNow.Add(30*time.Minute), "Inter - Como highlights", ""),
		guideBlock("rai.1", guideNow, guideNow.Add(time.Hour), "Telegiornale", ""),
	)
	fetcher.On("Fetch", mock.Anything, guideURL).Return(doc, nil).Once()
	service.Refresh(context.Background())

	matches, err := service.Locate(context.Background(), "Inter vs Como", nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "sky.calcio", matches[0].Channel.Key)
	assert.True(t, matches[0].IsLive)
	assert.Equal(t, "dazn.1", matches[1].Channel.Key)
	assert.False(t, matches[1].IsLive)

	matches, err = service.Locate(context.Background(), "Inter vs Como", []string{"rai.1", "dazn.1"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "dazn.1", matches[0].Channel.Key)

	_, err = service.Locate(context.Background(), "Inter", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
