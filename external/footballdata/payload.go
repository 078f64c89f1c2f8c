package footballdata

import (
	"strings"
	"time"

	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/riskibarqy/iptv-companion/internal/usecase"
)

const (
	unknownLeague   = "Unknown"
	unknownHomeTeam = "Home"
	unknownAwayTeam = "Away"
)

type matchesEnvelope struct {
	Matches   *[]matchPayload `json:"matches"`
	Message   string          `json:"message"`
	ErrorCode int             `json:"errorCode"`
}

func (e matchesEnvelope) describe() string {
	if e.Message == "" {
		return "no matches field"
	}
	return e.Message
}

type matchPayload struct {
	ID          int64       `json:"id"`
	UTCDate     string      `json:"utcDate"`
	Status      string      `json:"status"`
	Competition competition `json:"competition"`
	HomeTeam    team        `json:"homeTeam"`
	AwayTeam    team        `json:"awayTeam"`
	Score       score       `json:"score"`
}

type competition struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type team struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Crest string `json:"crest"`
}

type score struct {
	FullTime struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"fullTime"`
}

type matchDetailPayload struct {
	ID    int64         `json:"id"`
	Goals []goalPayload `json:"goals"`
}

type goalPayload struct {
	Minute *int `json:"minute"`
	Scorer *struct {
		Name string `json:"name"`
	} `json:"scorer"`
}

// lastGoal returns the most recent goal; ok is false when there are none.
func (p matchDetailPayload) lastGoal() (fixture.GoalDetail, bool) {
	if len(p.Goals) == 0 {
		return fixture.GoalDetail{}, false
	}
	last := p.Goals[len(p.Goals)-1]

	detail := fixture.GoalDetail{Scorer: fixture.ScorerUnknown}
	if last.Scorer != nil && strings.TrimSpace(last.Scorer.Name) != "" {
		detail.Scorer = strings.TrimSpace(last.Scorer.Name)
	}
	if last.Minute != nil {
		detail.Minute = *last.Minute
	}
	return detail, true
}

func mapMatches(items []matchPayload) []usecase.ProviderMatch {
	out := make([]usecase.ProviderMatch, 0, len(items))
	for _, item := range items {
		if item.ID <= 0 {
			continue
		}
		out = append(out, usecase.ProviderMatch{
			ID:         item.ID,
			LeagueID:   item.Competition.ID,
			League:     orDefault(item.Competition.Name, unknownLeague),
			HomeTeam:   orDefault(item.HomeTeam.Name, unknownHomeTeam),
			AwayTeam:   orDefault(item.AwayTeam.Name, unknownAwayTeam),
			HomeCrest:  strings.TrimSpace(item.HomeTeam.Crest),
			AwayCrest:  strings.TrimSpace(item.AwayTeam.Crest),
			StatusCode: item.Status,
			KickoffAt:  parseUTCDate(item.UTCDate),
			HomeScore:  item.Score.FullTime.Home,
			AwayScore:  item.Score.FullTime.Away,
		})
	}
	return out
}

func orDefault(raw, fallback string) string {
	if value := strings.TrimSpace(raw); value != "" {
		return value
	}
	return fallback
}

func parseUTCDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
