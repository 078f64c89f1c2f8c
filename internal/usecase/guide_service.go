package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/riskibarqy/iptv-companion/internal/domain/program"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

// IngestResult carries the built index, or an empty one plus the reason.
type IngestResult struct {
	Index     program.Index
	Stats     program.ParseStats
	FetchedAt time.Time
	Reason    error
}

// NowNext is what one channel is showing.
type NowNext struct {
	ChannelKey string
	Current    *program.Program
	Next       *program.Program
	Progress   float64
}

type GuideSnapshot struct {
	Channels  int
	Programs  int
	FetchedAt time.Time
}

type GuideService struct {
	fetcher program.Fetcher
	url     string
	locator program.Locator
	logger  *logging.Logger
	now     func() time.Time

	current atomic.Pointer[IngestResult]
}

func NewGuideService(fetcher program.Fetcher, url string, logger *logging.Logger) *GuideService {
	if logger == nil {
		logger = logging.Default()
	}
	s := &GuideService{
		fetcher: fetcher,
		url:     strings.TrimSpace(url),
		locator: program.NewLocator(),
		logger:  logger,
		now:     time.Now,
	}
	s.current.Store(&IngestResult{Index: program.Index{}})
	return s
}

// Ingest performs one fetch and parse of url. Failures yield an empty index
// with Reason set; it never returns an error.
func (s *GuideService) Ingest(ctx context.Context, url string) IngestResult {
	ctx, span := startUsecaseSpan(ctx, "usecase.GuideService.Ingest")
	defer span.End()

	now := s.now()
	if strings.TrimSpace(url) == "" || s.fetcher == nil {
		return IngestResult{Index: program.Index{}, FetchedAt: now, Reason: fmt.Errorf("%w: guide url is not configured", ErrInvalidInput)}
	}

	raw, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		recordSpanError(span, err)
		s.logger.WarnContext(ctx, "guide fetch failed", "error", err)
		return IngestResult{Index: program.Index{}, FetchedAt: now, Reason: fmt.Errorf("fetch guide: %w", err)}
	}

	index, stats := program.Parse(raw, now)
	span.SetAttributes(
		attribute.Int("guide.blocks", stats.Blocks),
		attribute.Int("guide.kept", stats.Kept),
		attribute.Int("guide.malformed", stats.Malformed),
	)
	s.logger.InfoContext(ctx, "guide parsed",
		"channels", index.Channels(),
		"programs", stats.Kept,
		"malformed", stats.Malformed,
		"expired", stats.Expired,
	)
	return IngestResult{Index: index, Stats: stats, FetchedAt: now}
}

// Refresh ingests the configured guide and swaps it in wholesale. A failed
// ingestion also replaces the index, with an empty one.
func (s *GuideService) Refresh(ctx context.Context) IngestResult {
	result := s.Ingest(ctx, s.url)
	s.current.Store(&result)
	return result
}

func (s *GuideService) Index() program.Index {
	return s.current.Load().Index
}

func (s *GuideService) Snapshot() GuideSnapshot {
	result := s.current.Load()
	return GuideSnapshot{
		Channels:  result.Index.Channels(),
		Programs:  result.Index.Programs(),
		FetchedAt: result.FetchedAt,
	}
}

func (s *GuideService) NowNext(ctx context.Context, channelKey string) (NowNext, error) {
	_, span := startUsecaseSpan(ctx, "usecase.GuideService.NowNext", attribute.String("channel", channelKey))
	defer span.End()

	channelKey = strings.TrimSpace(channelKey)
	if channelKey == "" {
		return NowNext{}, fmt.Errorf("%w: channel key is required", ErrInvalidInput)
	}

	programs, ok := s.Index()[channelKey]
	if !ok {
		return NowNext{}, fmt.Errorf("%w: channel %q has no guide data", ErrNotFound, channelKey)
	}

	now := s.now()
	out := NowNext{
		ChannelKey: channelKey,
		Current:    program.Current(programs, now),
		Next:       program.Next(programs, now),
	}
	if out.Current != nil {
		out.Progress = program.Progress(*out.Current, now)
	}
	return out, nil
}

// Locate searches the given channel keys, or every indexed channel in key
// order when none are given.
func (s *GuideService) Locate(ctx context.Context, title string, channelKeys []string) ([]program.LocalMatch, error) {
	_, span := startUsecaseSpan(ctx, "usecase.GuideService.Locate")
	defer span.End()

	if len(program.SplitMatchTitle(title)) < 2 {
		return nil, fmt.Errorf("%w: title must look like \"Home vs Away\"", ErrInvalidInput)
	}

	index := s.Index()
	if len(channelKeys) == 0 {
		channelKeys = make([]string, 0, len(index))
		for key := range index {
			channelKeys = append(channelKeys, key)
		}
		sort.Strings(channelKeys)
	}

	channels := make([]program.Channel, 0, len(channelKeys))
	for _, key := range channelKeys {
		channels = append(channels, program.Channel{Key: key, Name: key})
	}

	matches := s.locator.Locate(title, channels, index, s.now())
	span.SetAttributes(attribute.Int("guide.matches", len(matches)))
	return matches, nil
}
