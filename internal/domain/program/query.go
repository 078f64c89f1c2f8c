package program

import "time"

// Current returns the first program airing at now. Buckets are sorted by start,
// so on overlap the earliest starting program wins.
func Current(programs []Program, now time.Time) *Program {
	for i := range programs {
		if programs[i].IsAiring(now) {
			return &programs[i]
		}
	}
	return nil
}

// Next returns the first program starting strictly after now.
func Next(programs []Program, now time.Time) *Program {
	for i := range programs {
		if programs[i].Start.After(now) {
			return &programs[i]
		}
	}
	return nil
}

// Progress returns how far now is through p, clamped to [0, 100].
func Progress(p Program, now time.Time) float64 {
	total := p.End.Sub(p.Start)
	if total <= 0 {
		return 0
	}
	elapsed := now.Sub(p.Start)
	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= total:
		return 100
	}
	return float64(elapsed) / float64(total) * 100
}
