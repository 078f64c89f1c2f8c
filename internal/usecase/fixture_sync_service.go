package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

// FixtureProvider is the remote fixtures feed.
type FixtureProvider interface {
	FetchMatches(ctx context.Context, dateFrom, dateTo string) ([]ProviderMatch, error)
	FetchLiveMatches(ctx context.Context) ([]ProviderMatch, error)
	// FetchMatchDetail returns the latest goal of a match; ok is false when
	// the match has no goals yet.
	FetchMatchDetail(ctx context.Context, matchID string) (detail fixture.GoalDetail, ok bool, err error)
}

// ProviderMatch is one raw record from the provider before mapping.
type ProviderMatch struct {
	ID         int64
	LeagueID   int64
	League     string
	HomeTeam   string
	AwayTeam   string
	HomeCrest  string
	AwayCrest  string
	StatusCode string
	KickoffAt  time.Time
	HomeScore  *int
	AwayScore  *int
}

// Source tells the caller where a SyncResult came from.
type Source string

const (
	SourceCache      Source = "cache"
	SourceRemote     Source = "remote"
	SourceStaleCache Source = "stale_cache"
	SourceEmpty      Source = "empty"
)

// SyncResult carries data together with the reason the freshest source was
// not used. Reason is nil when data came from a fresh cache or the provider.
type SyncResult[T any] struct {
	Data   T
	Source Source
	Reason error
}

type PollResult struct {
	Events   []fixture.GoalEvent
	Snapshot []fixture.Fixture
	Reason   error
}

type FixtureSyncConfig struct {
	CacheKey        string
	IncludeTomorrow bool
	Location        *time.Location
	LeagueIDs       []int64
	DetailWorkers   int
}

type FixtureSyncService struct {
	provider FixtureProvider
	cache    *FixtureCache
	filter   fixture.Filter
	ranker   fixture.Ranker
	cfg      FixtureSyncConfig
	logger   *logging.Logger
	now      func() time.Time
}

// NewFixtureSyncService accepts a nil provider, which makes every fetch fall
// back to the cache.
func NewFixtureSyncService(provider FixtureProvider, cache *FixtureCache, cfg FixtureSyncConfig, logger *logging.Logger) *FixtureSyncService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.CacheKey == "" {
		cfg.CacheKey = DefaultFixtureCacheKey
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DetailWorkers <= 0 {
		cfg.DetailWorkers = 4
	}

	return &FixtureSyncService{
		provider: provider,
		cache:    cache,
		filter:   fixture.NewFilter(cfg.LeagueIDs),
		ranker:   fixture.DefaultRanker(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchAll returns the ranked fixture list. It never fails: provider errors
// fall back to the cache regardless of freshness, then to an empty list.
func (s *FixtureSyncService) FetchAll(ctx context.Context) SyncResult[[]fixture.Fixture] {
	ctx, span := startUsecaseSpan(ctx, "usecase.FixtureSyncService.FetchAll")
	defer span.End()

	result := s.load(ctx)
	recordSpanError(span, result.Reason)
	span.SetAttributes(
		attribute.String("fixtures.source", string(result.Source)),
		attribute.Int("fixtures.raw", len(result.Data)),
	)

	result.Data = s.present(result.Data)
	return result
}

func (s *FixtureSyncService) load(ctx context.Context) SyncResult[[]fixture.Fixture] {
	if _, err := s.cache.Cleanup(ctx); err != nil {
		s.logger.WarnContext(ctx, "fixture cache cleanup failed", "error", err)
	}

	if cached, ok := s.cache.Read(ctx, s.cfg.CacheKey, false); ok && hasWellFormed(cached) {
		return SyncResult[[]fixture.Fixture]{Data: cached, Source: SourceCache}
	}

	fetched, err := s.fetchRemote(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "fixture fetch failed, serving cache", "error", err)
		if cached, ok := s.cache.Read(ctx, s.cfg.CacheKey, true); ok {
			return SyncResult[[]fixture.Fixture]{Data: cached, Source: SourceStaleCache, Reason: err}
		}
		return SyncResult[[]fixture.Fixture]{Data: []fixture.Fixture{}, Source: SourceEmpty, Reason: err}
	}

	if len(fetched) > 0 {
		if err := s.cache.Write(ctx, s.cfg.CacheKey, fetched); err != nil {
			s.logger.WarnContext(ctx, "fixture cache write failed", "error", err)
		}
	}
	return SyncResult[[]fixture.Fixture]{Data: fetched, Source: SourceRemote}
}

func (s *FixtureSyncService) fetchRemote(ctx context.Context) ([]fixture.Fixture, error) {
	if s.provider == nil {
		return nil, ErrProviderDisabled
	}

	now := s.now()
	local := now.In(s.cfg.Location)
	dateFrom := local.Format(calendarDateLayout)
	dateTo := dateFrom
	if s.cfg.IncludeTomorrow {
		dateTo = local.AddDate(0, 0, 1).Format(calendarDateLayout)
	}

	matches, err := s.provider.FetchMatches(ctx, dateFrom, dateTo)
	if err != nil {
		return nil, fmt.Errorf("fetch matches %s..%s: %w", dateFrom, dateTo, err)
	}

	out := make([]fixture.Fixture, 0, len(matches))
	for _, match := range matches {
		out = append(out, s.mapMatch(match, now))
	}
	return out, nil
}

func (s *FixtureSyncService) mapMatch(match ProviderMatch, now time.Time) fixture.Fixture {
	item := fixture.Fixture{
		ID:        strconv.FormatInt(match.ID, 10),
		League:    match.League,
		Match:     fixture.MatchTitle(match.HomeTeam, match.AwayTeam),
		Time:      fixture.TimeLabel(match.KickoffAt, now, s.cfg.Location),
		RawDate:   match.KickoffAt.UTC(),
		HomeTeam:  match.HomeTeam,
		AwayTeam:  match.AwayTeam,
		HomeLogo:  match.HomeCrest,
		AwayLogo:  match.AwayCrest,
		Status:    fixture.MapProviderStatus(match.StatusCode),
		HomeScore: match.HomeScore,
		AwayScore: match.AwayScore,
	}
	if match.LeagueID > 0 {
		leagueID := match.LeagueID
		item.LeagueID = &leagueID
	}
	return item
}

func (s *FixtureSyncService) present(items []fixture.Fixture) []fixture.Fixture {
	visible := fixture.Visible(items, s.now())
	return s.ranker.Rank(s.filter.Apply(visible))
}

// PollLiveScores diffs the previous snapshot against the provider's in-play
// matches. An empty previous snapshot is replaced by the cached list, read
// without freshness checks and presented like FetchAll output, so a cold
// start still detects goals.
func (s *FixtureSyncService) PollLiveScores(ctx context.Context, previous []fixture.Fixture) PollResult {
	ctx, span := startUsecaseSpan(ctx, "usecase.FixtureSyncService.PollLiveScores")
	defer span.End()

	baseline := previous
	if len(baseline) == 0 {
		if cached, ok := s.cache.Read(ctx, s.cfg.CacheKey, true); ok {
			baseline = s.present(cached)
		}
	}

	if s.provider == nil {
		return PollResult{Events: []fixture.GoalEvent{}, Snapshot: baseline, Reason: ErrProviderDisabled}
	}
	if len(baseline) == 0 {
		return PollResult{Events: []fixture.GoalEvent{}, Snapshot: baseline, Reason: ErrNoBaseline}
	}

	live, err := s.provider.FetchLiveMatches(ctx)
	if err != nil {
		recordSpanError(span, err)
		s.logger.WarnContext(ctx, "live score poll failed", "error", err)
		return PollResult{Events: []fixture.GoalEvent{}, Snapshot: baseline, Reason: fmt.Errorf("fetch live matches: %w", err)}
	}

	updates := make([]fixture.LiveUpdate, 0, len(live))
	for _, match := range live {
		updates = append(updates, fixture.LiveUpdate{
			ID:        strconv.FormatInt(match.ID, 10),
			Status:    fixture.MapProviderStatus(match.StatusCode),
			HomeScore: match.HomeScore,
			AwayScore: match.AwayScore,
		})
	}

	events, snapshot := fixture.Diff(baseline, updates)
	s.resolveScorers(ctx, events)

	span.SetAttributes(attribute.Int("fixtures.events", len(events)))
	if len(events) > 0 {
		s.logger.InfoContext(ctx, "live score events detected", "events", len(events))
	}
	return PollResult{Events: events, Snapshot: snapshot}
}

// resolveScorers fills scorer and minute for goal events in place. VAR events
// are skipped and lookup failures keep the placeholders.
func (s *FixtureSyncService) resolveScorers(ctx context.Context, events []fixture.GoalEvent) {
	targets := make([]int, 0, len(events))
	for i, event := range events {
		if event.Kind == fixture.EventGoal {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return
	}

	workers := s.cfg.DetailWorkers
	if workers > len(targets) {
		workers = len(targets)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		s.logger.WarnContext(ctx, "create scorer lookup pool failed", "error", err)
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, idx := range targets {
		idx := idx
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			s.resolveScorer(ctx, &events[idx])
		}); err != nil {
			wg.Done()
			s.logger.WarnContext(ctx, "submit scorer lookup failed", "fixture_id", events[idx].FixtureID, "error", err)
		}
	}
	wg.Wait()
}

func (s *FixtureSyncService) resolveScorer(ctx context.Context, event *fixture.GoalEvent) {
	detail, ok, err := s.provider.FetchMatchDetail(ctx, event.FixtureID)
	if err != nil {
		s.logger.WarnContext(ctx, "scorer lookup failed", "fixture_id", event.FixtureID, "error", err)
		return
	}
	if !ok {
		return
	}

	event.Scorer = detail.Scorer
	if event.Scorer == "" {
		event.Scorer = fixture.ScorerUnknown
	}
	if detail.Minute > 0 {
		event.MinuteLabel = strconv.Itoa(detail.Minute) + "'"
	}
}

func hasWellFormed(items []fixture.Fixture) bool {
	for _, item := range items {
		if item.WellFormed() {
			return true
		}
	}
	return false
}
