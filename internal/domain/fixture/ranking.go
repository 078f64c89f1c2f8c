package fixture

import (
	"sort"
	"strings"
	"time"
)

const (
	VisibleAfterKickoff = 12 * time.Hour
	FallbackLimit       = 15
)

var (
	TopItalianTeams = []string{"juventus", "napoli", "roma", "lazio", "atalanta", "fiorentina", "bologna", "torino", "inter", "milan"}
	TopGlobalTeams  = []string{"man city", "arsenal", "liverpool", "chelsea", "man utd", "tottenham", "real madrid", "barcelona", "atletico", "bayern", "dortmund", "psg", "benfica", "porto"}
	OtherTeams      = []string{"leipzig", "newcastle", "aston villa", "brighton", "ajax", "psv", "feyenoord", "sporting"}
)

// TextRule matches the lower-cased search text of a fixture.
type TextRule struct {
	Name  string
	Match func(text string) bool
}

func containsAny(parts ...string) func(string) bool {
	return func(text string) bool {
		for _, part := range parts {
			if strings.Contains(text, part) {
				return true
			}
		}
		return false
	}
}

var (
	interRule = TextRule{Name: "inter", Match: containsAny("inter ", "internazionale")}
	milanRule = TextRule{Name: "milan", Match: func(text string) bool {
		return strings.Contains(text, "ac milan") || (strings.Contains(text, "milan") && !strings.Contains(text, "inter"))
	}}
)

// DefaultKeepRules decide whether a fixture is on the allow-list by name.
var DefaultKeepRules = []TextRule{
	interRule,
	milanRule,
	{Name: "serie_a", Match: containsAny("serie a", "calcio")},
	{Name: "premier_league", Match: containsAny("premier league", "epl")},
	{Name: "la_liga", Match: containsAny("primera division", "la liga")},
	{Name: "uefa", Match: containsAny("champions league", "europa")},
	{Name: "bundesliga", Match: containsAny("bundesliga")},
	{Name: "interesting_team", Match: containsAny(append(append(append([]string{}, TopItalianTeams...), TopGlobalTeams...), OtherTeams...)...)},
}

// Filter keeps fixtures whose league id is allowed or whose text matches a rule.
type Filter struct {
	LeagueIDs map[int64]struct{}
	Rules     []TextRule
}

func NewFilter(leagueIDs []int64) Filter {
	ids := make(map[int64]struct{}, len(leagueIDs))
	for _, id := range leagueIDs {
		ids[id] = struct{}{}
	}
	return Filter{LeagueIDs: ids, Rules: DefaultKeepRules}
}

func (f Filter) Keeps(item Fixture) bool {
	if item.LeagueID != nil {
		if _, ok := f.LeagueIDs[*item.LeagueID]; ok {
			return true
		}
	}
	text := item.SearchText()
	for _, rule := range f.Rules {
		if rule.Match(text) {
			return true
		}
	}
	return false
}

// Apply filters items; when nothing survives it falls back to the first
// FallbackLimit unfiltered fixtures.
func (f Filter) Apply(items []Fixture) []Fixture {
	out := make([]Fixture, 0, len(items))
	for _, item := range items {
		if f.Keeps(item) {
			out = append(out, item)
		}
	}
	if len(out) == 0 && len(items) > 0 {
		limit := FallbackLimit
		if len(items) < limit {
			limit = len(items)
		}
		out = append(out, items[:limit]...)
	}
	return out
}

// Visible drops fixtures that kicked off more than VisibleAfterKickoff ago.
// Live fixtures and ones without a kickoff are always kept.
func Visible(items []Fixture, now time.Time) []Fixture {
	out := make([]Fixture, 0, len(items))
	for _, item := range items {
		if item.Status.IsLive() || item.RawDate.IsZero() || now.Before(item.RawDate.Add(VisibleAfterKickoff)) {
			out = append(out, item)
		}
	}
	return out
}

// FixedScore short-circuits ranking for dedicated teams.
type FixedScore struct {
	Rule  TextRule
	Score int
}

// BaseScore is added for the first matching league rule.
type BaseScore struct {
	Rule  TextRule
	Score int
}

// TokenBonus adds PerToken for each token found in the text.
type TokenBonus struct {
	Tokens   []string
	PerToken int
}

// Ranker scores fixtures from declarative tables.
type Ranker struct {
	Fixed        []FixedScore
	Leagues      []BaseScore
	DefaultBase  int
	TokenBonuses []TokenBonus
	LiveBonus    int
}

func DefaultRanker() Ranker {
	return Ranker{
		Fixed: []FixedScore{
			{Rule: interRule, Score: 5_000_000},
			{Rule: milanRule, Score: 4_900_000},
		},
		Leagues: []BaseScore{
			{Rule: TextRule{Name: "italy", Match: containsAny("serie a", "calcio", "coppa italia")}, Score: 50_000},
			{Rule: TextRule{Name: "champions_league", Match: containsAny("champions league")}, Score: 60_000},
			{Rule: TextRule{Name: "premier_league", Match: containsAny("premier league", "epl")}, Score: 40_000},
			{Rule: TextRule{Name: "la_liga", Match: containsAny("primera division", "la liga")}, Score: 30_000},
		},
		DefaultBase: 10_000,
		TokenBonuses: []TokenBonus{
			{Tokens: TopItalianTeams, PerToken: 250_000},
			{Tokens: TopGlobalTeams, PerToken: 200_000},
		},
		LiveBonus: 5_000,
	}
}

func (r Ranker) Score(item Fixture) int {
	text := item.SearchText()
	for _, fixed := range r.Fixed {
		if fixed.Rule.Match(text) {
			return fixed.Score
		}
	}

	score := r.DefaultBase
	for _, league := range r.Leagues {
		if league.Rule.Match(text) {
			score = league.Score
			break
		}
	}
	for _, bonus := range r.TokenBonuses {
		for _, token := range bonus.Tokens {
			if strings.Contains(text, token) {
				score += bonus.PerToken
			}
		}
	}
	if item.Status.IsLive() {
		score += r.LiveBonus
	}
	return score
}

// Rank returns a copy of items sorted by descending score; ties keep input order.
func (r Ranker) Rank(items []Fixture) []Fixture {
	type scored struct {
		item  Fixture
		score int
	}
	rows := make([]scored, len(items))
	for i, item := range items {
		rows[i] = scored{item: item, score: r.Score(item)}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].score > rows[j].score })

	out := make([]Fixture, len(rows))
	for i, row := range rows {
		out[i] = row.item
	}
	return out
}
