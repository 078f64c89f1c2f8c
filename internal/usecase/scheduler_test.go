package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []fixture.GoalEvent
	err    error
}

func (n *recordingNotifier) NotifyGoal(_ context.Context, event fixture.GoalEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func TestScheduler_CommitDiscardsSupersededCycle(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil, SchedulerConfig{}, nil)
	ctx := context.Background()

	newer := []fixture.Fixture{{ID: "new"}}
	older := []fixture.Fixture{{ID: "old"}}

	require.True(t, s.commit(ctx, 2, newer, SourceRemote, nil))
	assert.False(t, s.commit(ctx, 1, older, SourceCache, []fixture.GoalEvent{{FixtureID: "old"}}))

	state := s.Fixtures()
	assert.Equal(t, uint64(2), state.Sequence)
	assert.Equal(t, newer, state.Fixtures)
	assert.Empty(t, s.RecentEvents(0))
}

func TestRunExclusive_SkipsWhileBusy(t *testing.T) {
	t.Parallel()

	var busy atomic.Bool
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	go runExclusive(&busy, func() {
		runs.Add(1)
		close(started)
		<-release
	})
	<-started

	assert.False(t, runExclusive(&busy, func() { runs.Add(1) }))
	close(release)

	require.Eventually(t, func() bool { return !busy.Load() }, time.Second, 5*time.Millisecond)
	assert.True(t, runExclusive(&busy, func() { runs.Add(1) }))
	assert.Equal(t, int32(2), runs.Load())
}

func TestScheduler_RefreshThenPollRecordsEvents(t *testing.T) {
	t.Parallel()

	provider := &stubFixtureProvider{
		matches: []ProviderMatch{
			providerMatch(7, "Serie A", "Inter", "Como", "IN_PLAY", syncNow.Add(-time.Hour), fixture.IntPtr(1), fixture.IntPtr(0)),
		},
		live: []ProviderMatch{
			providerMatch(7, "Serie A", "Inter", "Como", "IN_PLAY", syncNow.Add(-time.Hour), fixture.IntPtr(2), fixture.IntPtr(0)),
		},
		details: map[string]fixture.GoalDetail{"7": {Scorer: "Marcus Thuram", Minute: 71}},
	}
	service, _ := newTestSyncService(t, provider)
	notifier := &recordingNotifier{err: errors.New("webhook down")}

	s := NewScheduler(nil, service, notifier, SchedulerConfig{}, nil)
	s.now = func() time.Time { return syncNow }
	ctx := context.Background()

	require.True(t, s.refreshFixtures(ctx))
	state := s.Fixtures()
	require.Len(t, state.Fixtures, 1)
	assert.Equal(t, SourceRemote, state.Source)

	require.True(t, s.poll(ctx))
	state = s.Fixtures()
	assert.Equal(t, 2, *state.Fixtures[0].HomeScore)

	events := s.RecentEvents(10)
	require.Len(t, events, 1)
	assert.Equal(t, "Marcus Thuram", events[0].Scorer)
	assert.Equal(t, syncNow, events[0].DetectedAt)
	assert.Len(t, notifier.events, 1)

	status := s.Status()
	assert.Equal(t, 0, status.ConsecutivePollFailures)
	assert.Equal(t, syncNow, status.LastPoll)
	assert.Equal(t, syncNow, status.LastFixtureRefresh)
}

func TestScheduler_PollFailureKeepsState(t *testing.T) {
	t.Parallel()

	provider := &stubFixtureProvider{liveErr: errors.New("provider status=503")}
	service, _ := newTestSyncService(t, provider)
	s := NewScheduler(nil, service, nil, SchedulerConfig{}, nil)
	ctx := context.Background()

	baseline := []fixture.Fixture{{ID: "7", HomeTeam: "Inter"}}
	require.True(t, s.commit(ctx, s.sequence.Add(1), baseline, SourceCache, nil))

	s.poll(ctx)
	s.poll(ctx)

	status := s.Status()
	assert.Equal(t, 2, status.ConsecutivePollFailures)
	assert.Contains(t, status.LastPollError, "503")
	assert.Equal(t, baseline, s.Fixtures().Fixtures)
}

func TestScheduler_RecentEventsNewestFirstAndCapped(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil, SchedulerConfig{RecentEvents: 2}, nil)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		s.commit(ctx, uint64(i+1), nil, SourceRemote, []fixture.GoalEvent{{FixtureID: id}})
	}

	events := s.RecentEvents(0)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].FixtureID)
	assert.Equal(t, "b", events[1].FixtureID)
	assert.Len(t, s.RecentEvents(1), 1)
}

func TestScheduler_StartWarmsAndStops(t *testing.T) {
	t.Parallel()

	provider := &stubFixtureProvider{
		matches: []ProviderMatch{
			providerMatch(1, "Serie A", "Roma", "Lazio", "TIMED", syncNow.Add(time.Hour), nil, nil),
		},
	}
	service, _ := newTestSyncService(t, provider)
	s := NewScheduler(nil, service, nil, SchedulerConfig{
		GuideInterval:   time.Hour,
		FixtureInterval: time.Hour,
		PollInterval:    time.Hour,
	}, nil)

	s.Start(context.Background())
	defer s.Stop()

	assert.Len(t, s.Fixtures().Fixtures, 1)
	assert.Equal(t, 1, provider.matchCalls)
}
