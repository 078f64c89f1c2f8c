package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"github.com/sourcegraph/conc"
)

const (
	defaultGuideInterval   = 6 * time.Hour
	defaultFixtureInterval = 15 * time.Minute
	defaultPollInterval    = time.Minute
	defaultRecentEvents    = 50
)

// GoalNotifier receives every committed goal event.
type GoalNotifier interface {
	NotifyGoal(ctx context.Context, event fixture.GoalEvent) error
}

type SchedulerConfig struct {
	GuideInterval   time.Duration
	FixtureInterval time.Duration
	PollInterval    time.Duration
	RecentEvents    int
}

// FixtureState is the last committed fixture list.
type FixtureState struct {
	Fixtures  []fixture.Fixture
	Source    Source
	Sequence  uint64
	UpdatedAt time.Time
}

type RecordedEvent struct {
	fixture.GoalEvent
	DetectedAt time.Time `json:"detectedAt"`
}

// SchedulerStatus describes recent health of each loop.
type SchedulerStatus struct {
	LastGuideRefresh        time.Time
	LastFixtureRefresh      time.Time
	LastPoll                time.Time
	ConsecutivePollFailures int
	LastPollError           string
	SkippedTicks            int64
}

// Scheduler drives guide refreshes, fixture refreshes and live polls. A tick
// is skipped while the previous run of the same job is outstanding, and a
// cycle that started before the last committed one is discarded.
type Scheduler struct {
	guide    *GuideService
	fixtures *FixtureSyncService
	notifier GoalNotifier
	cfg      SchedulerConfig
	logger   *logging.Logger
	now      func() time.Time

	guideBusy   atomic.Bool
	fixtureBusy atomic.Bool
	pollBusy    atomic.Bool
	skipped     atomic.Int64
	sequence    atomic.Uint64

	mu        sync.RWMutex
	state     FixtureState
	recent    []RecordedEvent
	status    SchedulerStatus
	committed uint64

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	loops     conc.WaitGroup
}

func NewScheduler(guide *GuideService, fixtures *FixtureSyncService, notifier GoalNotifier, cfg SchedulerConfig, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.GuideInterval <= 0 {
		cfg.GuideInterval = defaultGuideInterval
	}
	if cfg.FixtureInterval <= 0 {
		cfg.FixtureInterval = defaultFixtureInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RecentEvents <= 0 {
		cfg.RecentEvents = defaultRecentEvents
	}

	return &Scheduler{
		guide:    guide,
		fixtures: fixtures,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start warms the guide and fixture list concurrently, then runs the loops
// until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		var warm conc.WaitGroup
		warm.Go(func() { s.refreshGuide(ctx) })
		warm.Go(func() { s.refreshFixtures(ctx) })
		warm.Wait()

		s.loops.Go(func() { s.loop(ctx, "guide", s.cfg.GuideInterval, s.refreshGuide) })
		s.loops.Go(func() { s.loop(ctx, "fixtures", s.cfg.FixtureInterval, s.refreshFixtures) })
		s.loops.Go(func() { s.loop(ctx, "live_poll", s.cfg.PollInterval, s.poll) })
		s.logger.Info("scheduler started",
			"guide_interval", s.cfg.GuideInterval,
			"fixture_interval", s.cfg.FixtureInterval,
			"poll_interval", s.cfg.PollInterval,
		)
	})
}

// Stop halts the loops and waits for in-flight runs to settle.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.loops.Wait()
		s.logger.Info("scheduler stopped")
	})
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if !run(ctx) {
				s.skipped.Add(1)
				s.logger.DebugContext(ctx, "scheduler tick skipped", "job", name)
			}
		}
	}
}

// runExclusive returns false without running fn when busy is already set.
func runExclusive(busy *atomic.Bool, fn func()) bool {
	if !busy.CompareAndSwap(false, true) {
		return false
	}
	defer busy.Store(false)
	fn()
	return true
}

func (s *Scheduler) refreshGuide(ctx context.Context) bool {
	if s.guide == nil {
		return true
	}
	return runExclusive(&s.guideBusy, func() {
		s.guide.Refresh(ctx)

		s.mu.Lock()
		s.status.LastGuideRefresh = s.now()
		s.mu.Unlock()
	})
}

func (s *Scheduler) refreshFixtures(ctx context.Context) bool {
	if s.fixtures == nil {
		return true
	}
	return runExclusive(&s.fixtureBusy, func() {
		seq := s.sequence.Add(1)
		result := s.fixtures.FetchAll(ctx)

		if s.commit(ctx, seq, result.Data, result.Source, nil) {
			s.mu.Lock()
			s.status.LastFixtureRefresh = s.now()
			s.mu.Unlock()
		}
	})
}

func (s *Scheduler) poll(ctx context.Context) bool {
	if s.fixtures == nil {
		return true
	}
	return runExclusive(&s.pollBusy, func() {
		seq := s.sequence.Add(1)
		previous := s.Fixtures().Fixtures
		result := s.fixtures.PollLiveScores(ctx, previous)

		s.mu.Lock()
		s.status.LastPoll = s.now()
		if result.Reason != nil {
			s.status.ConsecutivePollFailures++
			s.status.LastPollError = result.Reason.Error()
		} else {
			s.status.ConsecutivePollFailures = 0
			s.status.LastPollError = ""
		}
		s.mu.Unlock()

		if result.Reason != nil {
			return
		}
		s.commit(ctx, seq, result.Snapshot, SourceRemote, result.Events)
	})
}

// commit applies a cycle's output unless a newer cycle already committed.
func (s *Scheduler) commit(ctx context.Context, seq uint64, fixtures []fixture.Fixture, source Source, events []fixture.GoalEvent) bool {
	now := s.now()

	s.mu.Lock()
	if committed := s.committed; seq < committed {
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "discarding superseded fixture cycle", "sequence", seq, "committed", committed)
		return false
	}
	s.committed = seq
	s.state = FixtureState{Fixtures: fixtures, Source: source, Sequence: seq, UpdatedAt: now}
	for _, event := range events {
		s.recent = append(s.recent, RecordedEvent{GoalEvent: event, DetectedAt: now})
	}
	if overflow := len(s.recent) - s.cfg.RecentEvents; overflow > 0 {
		s.recent = append([]RecordedEvent(nil), s.recent[overflow:]...)
	}
	s.mu.Unlock()

	s.notify(ctx, events)
	return true
}

func (s *Scheduler) notify(ctx context.Context, events []fixture.GoalEvent) {
	if s.notifier == nil {
		return
	}
	for _, event := range events {
		if err := s.notifier.NotifyGoal(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "goal notification failed", "fixture_id", event.FixtureID, "error", err)
		}
	}
}

func (s *Scheduler) Fixtures() FixtureState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// RecentEvents returns up to limit events, newest first.
func (s *Scheduler) RecentEvents(limit int) []RecordedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]RecordedEvent, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := s.status
	status.SkippedTicks = s.skipped.Load()
	return status
}
