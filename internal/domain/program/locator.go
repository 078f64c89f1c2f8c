package program

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	LocateHorizon    = 12 * time.Hour
	LocateMaxResults = 20
)

var versusRegex = regexp.MustCompile(`(?i)\s(?:vs|v)\s`)

// Channel is a playable channel that may carry a guide id.
type Channel struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// LocalMatch is a channel whose guide plausibly carries a match.
type LocalMatch struct {
	Channel      Channel   `json:"channel"`
	ProgramTitle string    `json:"programTitle"`
	IsLive       bool      `json:"isLive"`
	Start        time.Time `json:"start"`
}

// MatchRule decides whether a lower-cased guide text mentions a team term.
type MatchRule struct {
	Name  string
	Match func(text, term string) bool
}

var teamStopWords = map[string]struct{}{
	"fc":     {},
	"afc":    {},
	"united": {},
	"city":   {},
	"real":   {},
}

// DefaultMatchRules is evaluated in order; the first rule that fires wins.
var DefaultMatchRules = []MatchRule{
	{Name: "substring", Match: func(text, term string) bool {
		return strings.Contains(text, term)
	}},
	{Name: "significant_word", Match: func(text, term string) bool {
		for _, word := range strings.Split(term, " ") {
			if len(word) <= 2 {
				continue
			}
			if _, stop := teamStopWords[word]; stop {
				continue
			}
			if strings.Contains(text, word) {
				return true
			}
		}
		return false
	}},
	aliasRule("manchester", "man ", "man."),
	aliasRule("saint-germain", "psg"),
}

func aliasRule(termPart string, textParts ...string) MatchRule {
	return MatchRule{
		Name: "alias_" + termPart,
		Match: func(text, term string) bool {
			if !strings.Contains(term, termPart) {
				return false
			}
			for _, part := range textParts {
				if strings.Contains(text, part) {
					return true
				}
			}
			return false
		},
	}
}

// FuzzyMatch reports whether any rule matches term against text.
func FuzzyMatch(rules []MatchRule, text, term string) bool {
	text = strings.ToLower(text)
	for _, rule := range rules {
		if rule.Match(text, term) {
			return true
		}
	}
	return false
}

// SplitMatchTitle turns "Inter Milan vs Como" into ["inter milan", "como"].
func SplitMatchTitle(title string) []string {
	parts := versusRegex.Split(strings.ToLower(title), -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

// Locator finds channels whose upcoming programs mention both teams.
type Locator struct {
	Rules      []MatchRule
	Horizon    time.Duration
	MaxResults int
}

func NewLocator() Locator {
	return Locator{
		Rules:      DefaultMatchRules,
		Horizon:    LocateHorizon,
		MaxResults: LocateMaxResults,
	}
}

func (l Locator) Locate(title string, channels []Channel, index Index, now time.Time) []LocalMatch {
	terms := SplitMatchTitle(title)
	if len(terms) < 2 || len(channels) == 0 || len(index) == 0 {
		return []LocalMatch{}
	}
	home, away := terms[0], terms[1]
	horizon := now.Add(l.Horizon)

	results := make([]LocalMatch, 0, 4)
	for _, channel := range channels {
		if len(results) >= l.MaxResults {
			break
		}
		if channel.Key == "" {
			continue
		}
		programs := index[channel.Key]
		if len(programs) == 0 {
			continue
		}

		for _, p := range programs {
			if p.End.Before(now) || p.Start.After(horizon) {
				continue
			}
			text := p.Title + " " + p.Description
			if !FuzzyMatch(l.Rules, text, home) || !FuzzyMatch(l.Rules, text, away) {
				continue
			}
			results = append(results, LocalMatch{
				Channel:      channel,
				ProgramTitle: p.Title,
				IsLive:       p.IsAiring(now),
				Start:        p.Start,
			})
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].IsLive && !results[j].IsLive
	})
	return results
}
