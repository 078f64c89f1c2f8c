package httpapi

import (
	"time"

	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/riskibarqy/iptv-companion/internal/domain/program"
	"github.com/riskibarqy/iptv-companion/internal/usecase"
)

type healthDTO struct {
	Status    string              `json:"status"`
	Guide     *guideHealthDTO     `json:"guide,omitempty"`
	Scheduler *schedulerHealthDTO `json:"scheduler,omitempty"`
}

type guideHealthDTO struct {
	Channels  int        `json:"channels"`
	Programs  int        `json:"programs"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
}

type schedulerHealthDTO struct {
	LastGuideRefresh        *time.Time `json:"lastGuideRefresh,omitempty"`
	LastFixtureRefresh      *time.Time `json:"lastFixtureRefresh,omitempty"`
	LastPoll                *time.Time `json:"lastPoll,omitempty"`
	ConsecutivePollFailures int        `json:"consecutivePollFailures"`
	LastPollError           string     `json:"lastPollError,omitempty"`
	SkippedTicks            int64      `json:"skippedTicks"`
}

type programDTO struct {
	ChannelKey  string    `json:"channelKey"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type nowNextDTO struct {
	ChannelKey string      `json:"channelKey"`
	Current    *programDTO `json:"current"`
	Next       *programDTO `json:"next"`
	Progress   float64     `json:"progress"`
}

type localMatchDTO struct {
	ChannelKey   string    `json:"channelKey"`
	ChannelName  string    `json:"channelName"`
	ProgramTitle string    `json:"programTitle"`
	IsLive       bool      `json:"isLive"`
	Start        time.Time `json:"start"`
}

type locateMatchDTO struct {
	Title   string          `json:"title"`
	Matches []localMatchDTO `json:"matches"`
}

type fixtureListDTO struct {
	Source    string            `json:"source"`
	Sequence  uint64            `json:"sequence"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
	Fixtures  []fixture.Fixture `json:"fixtures"`
}

type eventDTO struct {
	Kind       string    `json:"kind"`
	FixtureID  string    `json:"fixtureId"`
	MatchTitle string    `json:"matchTitle"`
	Score      string    `json:"score"`
	Scorer     string    `json:"scorer"`
	Minute     string    `json:"minute"`
	DetectedAt time.Time `json:"detectedAt"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toGuideHealthDTO(s usecase.GuideSnapshot) *guideHealthDTO {
	return &guideHealthDTO{
		Channels:  s.Channels,
		Programs:  s.Programs,
		FetchedAt: optionalTime(s.FetchedAt),
	}
}

func toSchedulerHealthDTO(s usecase.SchedulerStatus) *schedulerHealthDTO {
	return &schedulerHealthDTO{
		LastGuideRefresh:        optionalTime(s.LastGuideRefresh),
		LastFixtureRefresh:      optionalTime(s.LastFixtureRefresh),
		LastPoll:                optionalTime(s.LastPoll),
		ConsecutivePollFailures: s.ConsecutivePollFailures,
		LastPollError:           s.LastPollError,
		SkippedTicks:            s.SkippedTicks,
	}
}

func toProgramDTO(p *program.Program) *programDTO {
	if p == nil {
		return nil
	}
	return &programDTO{
		ChannelKey:  p.ChannelKey,
		Title:       p.Title,
		Description: p.Description,
		Start:       p.Start,
		End:         p.End,
	}
}

func toNowNextDTO(n usecase.NowNext) nowNextDTO {
	return nowNextDTO{
		ChannelKey: n.ChannelKey,
		Current:    toProgramDTO(n.Current),
		Next:       toProgramDTO(n.Next),
		Progress:   n.Progress,
	}
}

func toLocalMatchDTOs(items []program.LocalMatch) []localMatchDTO {
	out := make([]localMatchDTO, 0, len(items))
	for _, item := range items {
		out = append(out, localMatchDTO{
			ChannelKey:   item.Channel.Key,
			ChannelName:  item.Channel.Name,
			ProgramTitle: item.ProgramTitle,
			IsLive:       item.IsLive,
			Start:        item.Start,
		})
	}
	return out
}

func toFixtureListDTO(state usecase.FixtureState) fixtureListDTO {
	fixtures := state.Fixtures
	if fixtures == nil {
		fixtures = []fixture.Fixture{}
	}
	return fixtureListDTO{
		Source:    string(state.Source),
		Sequence:  state.Sequence,
		UpdatedAt: optionalTime(state.UpdatedAt),
		Fixtures:  fixtures,
	}
}

func toEventDTOs(items []usecase.RecordedEvent) []eventDTO {
	out := make([]eventDTO, 0, len(items))
	for _, item := range items {
		out = append(out, eventDTO{
			Kind:       string(item.Kind),
			FixtureID:  item.FixtureID,
			MatchTitle: item.MatchTitle,
			Score:      item.ScoreLabel,
			Scorer:     item.Scorer,
			Minute:     item.MinuteLabel,
			DetectedAt: item.DetectedAt,
		})
	}
	return out
}
