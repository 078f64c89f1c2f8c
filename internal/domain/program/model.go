package program

import (
	"context"
	"sort"
	"time"
)

const (
	RetentionPast   = 2 * time.Hour
	RetentionFuture = 24 * time.Hour
)

// Program is one guide entry for a channel.
type Program struct {
	ChannelKey  string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// IsAiring reports whether now falls inside [Start, End).
func (p Program) IsAiring(now time.Time) bool {
	return !now.Before(p.Start) && now.Before(p.End)
}

// Index maps a guide channel id to its programs ordered by start time.
// Duplicate entries from the feed are kept.
type Index map[string][]Program

// Channels returns the number of channel buckets.
func (i Index) Channels() int {
	return len(i)
}

// Programs returns the total number of programs over all buckets.
func (i Index) Programs() int {
	total := 0
	for _, bucket := range i {
		total += len(bucket)
	}
	return total
}

// Window is the retention window applied during one ingestion pass.
type Window struct {
	PastLimit   time.Time
	FutureLimit time.Time
}

func NewWindow(now time.Time) Window {
	return Window{
		PastLimit:   now.Add(-RetentionPast),
		FutureLimit: now.Add(RetentionFuture),
	}
}

// Keeps reports whether p survives the window.
func (w Window) Keeps(p Program) bool {
	if p.End.Before(w.PastLimit) {
		return false
	}
	if p.Start.After(w.FutureLimit) {
		return false
	}
	return true
}

func sortBuckets(index Index) {
	for key := range index {
		bucket := index[key]
		sort.SliceStable(bucket, func(a, b int) bool {
			return bucket[a].Start.Before(bucket[b].Start)
		})
	}
}

// Fetcher downloads a raw guide document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
