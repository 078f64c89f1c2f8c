package fixture

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusTimed     Status = "TIMED"
	StatusInPlay    Status = "IN_PLAY"
	StatusPaused    Status = "PAUSED"
	StatusFinished  Status = "FINISHED"
	StatusPostponed Status = "POSTPONED"
	StatusCancelled Status = "CANCELLED"
	StatusSuspended Status = "SUSPENDED"
)

// providerStatuses translates upstream status codes into Status.
var providerStatuses = map[string]Status{
	"SCHEDULED":        StatusScheduled,
	"TIMED":            StatusTimed,
	"IN_PLAY":          StatusInPlay,
	"LIVE":             StatusInPlay,
	"EXTRA_TIME":       StatusInPlay,
	"PENALTY_SHOOTOUT": StatusInPlay,
	"PAUSED":           StatusPaused,
	"FINISHED":         StatusFinished,
	"AWARDED":          StatusFinished,
	"POSTPONED":        StatusPostponed,
	"CANCELLED":        StatusCancelled,
	"CANCELED":         StatusCancelled,
	"SUSPENDED":        StatusSuspended,
}

// MapProviderStatus returns StatusScheduled for unknown codes.
func MapProviderStatus(code string) Status {
	if status, ok := providerStatuses[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return status
	}
	return StatusScheduled
}

func (s Status) IsLive() bool {
	return s == StatusInPlay || s == StatusPaused
}

func (s Status) IsPending() bool {
	return s == StatusScheduled || s == StatusTimed
}

// Fixture is one match snapshot. ID never changes between polls.
type Fixture struct {
	ID        string    `json:"id"`
	LeagueID  *int64    `json:"leagueId,omitempty"`
	League    string    `json:"league"`
	Match     string    `json:"match"`
	Time      string    `json:"time"`
	RawDate   time.Time `json:"rawDate"`
	HomeTeam  string    `json:"homeTeam"`
	AwayTeam  string    `json:"awayTeam"`
	HomeLogo  string    `json:"homeLogo"`
	AwayLogo  string    `json:"awayLogo"`
	Status    Status    `json:"status"`
	HomeScore *int      `json:"homeScore"`
	AwayScore *int      `json:"awayScore"`
}

// WellFormed reports whether the fixture carries the fields a cached list needs.
func (f Fixture) WellFormed() bool {
	return f.ID != "" && f.HomeTeam != ""
}

// SearchText is the lower-cased text used by filtering and ranking rules.
func (f Fixture) SearchText() string {
	return strings.ToLower(f.Match + " " + f.League)
}

func MatchTitle(home, away string) string {
	return home + " vs " + away
}

// TimeLabel renders kickoff as HH:MM in loc, prefixed with "Tom" when it falls
// on a different day of month than now.
func TimeLabel(kickoff, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	local := kickoff.In(loc)
	label := local.Format("15:04")
	if local.Day() != now.In(loc).Day() {
		return "Tom " + label
	}
	return label
}

func ScoreLabel(home, away int) string {
	return fmt.Sprintf("%d - %d", home, away)
}

func IntPtr(v int) *int {
	return &v
}

func scoreOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

type EventKind string

const (
	EventGoal       EventKind = "GOAL"
	EventDisallowed EventKind = "VAR"
)

const (
	ScorerPending    = "Checking..."
	ScorerDisallowed = "Goal Disallowed (VAR)"
	ScorerUnknown    = "Goal!"
	MinuteLive       = "LIVE"
	MinuteVAR        = "VAR"
)

// GoalEvent is produced by one diff pass and handed to the caller.
type GoalEvent struct {
	Kind        EventKind `json:"kind"`
	FixtureID   string    `json:"fixtureId"`
	MatchTitle  string    `json:"matchTitle"`
	ScoreLabel  string    `json:"score"`
	Scorer      string    `json:"scorer"`
	MinuteLabel string    `json:"minute"`
}

// GoalDetail is the latest goal reported by the detail endpoint.
type GoalDetail struct {
	Scorer string
	Minute int
}
