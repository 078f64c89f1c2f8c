package program

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/riskibarqy/iptv-companion/internal/platform/xmltvtime"
)

const defaultTitle = "No Title"

var (
	programmeBlockRegex = regexp.MustCompile(`(?s)<programme(\s[^>]*)?>(.*?)</programme>`)
	attrRegex           = regexp.MustCompile(`([a-zA-Z_:-]+)\s*=\s*"([^"]*)"`)
	titleRegex          = regexp.MustCompile(`(?s)<title[^>]*>([^<]*)</title>`)
	descRegex           = regexp.MustCompile(`(?s)<desc[^>]*>(.*?)</desc>`)
)

// ParseStats counts what a Parse pass did with each block.
type ParseStats struct {
	Blocks    int
	Kept      int
	Malformed int
	Expired   int
}

// Parse scans an XMLTV document and builds a fresh index, keeping only programs
// inside the retention window around now. Malformed blocks are skipped.
func Parse(raw []byte, now time.Time) (Index, ParseStats) {
	window := NewWindow(now)
	index := make(Index)
	stats := ParseStats{}

	for _, match := range programmeBlockRegex.FindAllSubmatch(raw, -1) {
		stats.Blocks++

		p, ok := parseBlock(match[1], match[2])
		if !ok {
			stats.Malformed++
			continue
		}
		if !window.Keeps(p) {
			stats.Expired++
			continue
		}

		index[p.ChannelKey] = append(index[p.ChannelKey], p)
		stats.Kept++
	}

	sortBuckets(index)
	return index, stats
}

func parseBlock(attrs, body []byte) (Program, bool) {
	var channel, start, stop string
	var hasChannel, hasStart, hasStop bool
	for _, attr := range attrRegex.FindAllSubmatch(attrs, -1) {
		value := string(attr[2])
		switch string(attr[1]) {
		case "channel":
			channel, hasChannel = value, true
		case "start":
			start, hasStart = value, true
		case "stop":
			stop, hasStop = value, true
		}
	}
	if !hasChannel || !hasStart || !hasStop {
		return Program{}, false
	}

	startAt, err := xmltvtime.Parse(strings.TrimSpace(start))
	if err != nil {
		return Program{}, false
	}
	endAt, err := xmltvtime.Parse(strings.TrimSpace(stop))
	if err != nil {
		return Program{}, false
	}
	if !startAt.Before(endAt) {
		return Program{}, false
	}

	title := defaultTitle
	if m := titleRegex.FindSubmatch(body); m != nil {
		title = unescape(m[1])
	}
	description := ""
	if m := descRegex.FindSubmatch(body); m != nil {
		description = unescape(m[1])
	}

	return Program{
		ChannelKey:  html.UnescapeString(channel),
		Title:       title,
		Description: description,
		Start:       startAt,
		End:         endAt,
	}, true
}

func unescape(raw []byte) string {
	return html.UnescapeString(string(bytes.TrimSpace(raw)))
}
