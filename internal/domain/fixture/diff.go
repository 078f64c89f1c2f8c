package fixture

// LiveUpdate is the score and status of one fixture from a live poll.
type LiveUpdate struct {
	ID        string
	Status    Status
	HomeScore *int
	AwayScore *int
}

// Diff compares the baseline against live updates. Matched fixtures take the
// new score and status; unmatched ones are passed through unchanged. A score
// increase yields a goal event, a decrease yields a VAR event.
func Diff(baseline []Fixture, updates []LiveUpdate) ([]GoalEvent, []Fixture) {
	byID := make(map[string]LiveUpdate, len(updates))
	for _, u := range updates {
		byID[u.ID] = u
	}

	events := make([]GoalEvent, 0)
	snapshot := make([]Fixture, 0, len(baseline))
	for _, prev := range baseline {
		live, ok := byID[prev.ID]
		if !ok {
			snapshot = append(snapshot, prev)
			continue
		}

		newHome, newAway := scoreOrZero(live.HomeScore), scoreOrZero(live.AwayScore)
		oldHome, oldAway := scoreOrZero(prev.HomeScore), scoreOrZero(prev.AwayScore)

		switch {
		case newHome > oldHome || newAway > oldAway:
			events = append(events, GoalEvent{
				Kind:        EventGoal,
				FixtureID:   prev.ID,
				MatchTitle:  prev.Match,
				ScoreLabel:  ScoreLabel(newHome, newAway),
				Scorer:      ScorerPending,
				MinuteLabel: MinuteLive,
			})
		case newHome < oldHome || newAway < oldAway:
			events = append(events, GoalEvent{
				Kind:        EventDisallowed,
				FixtureID:   prev.ID,
				MatchTitle:  prev.Match,
				ScoreLabel:  ScoreLabel(newHome, newAway),
				Scorer:      ScorerDisallowed,
				MinuteLabel: MinuteVAR,
			})
		}

		next := prev
		next.Status = live.Status
		next.HomeScore = IntPtr(newHome)
		next.AwayScore = IntPtr(newAway)
		snapshot = append(snapshot, next)
	}

	return events, snapshot
}
