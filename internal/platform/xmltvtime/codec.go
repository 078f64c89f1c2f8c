// Package xmltvtime decodes the fixed-width XMLTV date token
// "YYYYMMDDHHMMSS +HHMM" into an absolute UTC instant.
package xmltvtime

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const layoutLen = 14

var (
	ErrTooShort  = errors.New("xmltv time token shorter than 14 characters")
	ErrBadNumber = errors.New("xmltv time token has a non numeric field")
	ErrBadOffset = errors.New("xmltv time token has a malformed zone offset")
)

// Parse reads the wall-clock fields as UTC and then removes the literal zone
// offset. Only the numeric offset in the token is honoured; anything after
// the fourteen digits must be a space followed by a full "+HHMM" offset.
func Parse(token string) (time.Time, error) {
	if len(token) < layoutLen {
		return time.Time{}, ErrTooShort
	}

	fields := [6]int{}
	bounds := [6][2]int{{0, 4}, {4, 6}, {6, 8}, {8, 10}, {10, 12}, {12, 14}}
	for i, b := range bounds {
		v, err := atoi(token[b[0]:b[1]])
		if err != nil {
			return time.Time{}, err
		}
		fields[i] = v
	}

	instant := time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], 0, time.UTC)

	if len(token) == layoutLen {
		return instant, nil
	}
	if len(token) < layoutLen+6 || token[layoutLen] != ' ' {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadOffset, token[layoutLen:])
	}

	// "+0200" means the wall clock is two hours ahead of UTC.
	sign := token[15]
	hours, err := atoi(token[16:18])
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := atoi(token[18:20])
	if err != nil {
		return time.Time{}, err
	}
	offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	switch sign {
	case '+':
		instant = instant.Add(-offset)
	case '-':
		instant = instant.Add(offset)
	default:
		return time.Time{}, fmt.Errorf("%w: offset sign %q", ErrBadOffset, sign)
	}

	return instant.UTC(), nil
}

// Format renders t as a token whose wall clock is shifted by offset
// ("+HHMM" or "-HHMM"). An empty offset yields the bare 14 character form.
func Format(t time.Time, offset string) (string, error) {
	t = t.UTC()
	if offset == "" {
		return t.Format("20060102150405"), nil
	}
	if len(offset) != 5 {
		return "", fmt.Errorf("%w: offset %q", ErrBadNumber, offset)
	}
	hours, err := atoi(offset[1:3])
	if err != nil {
		return "", err
	}
	minutes, err := atoi(offset[3:5])
	if err != nil {
		return "", err
	}
	shift := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	switch offset[0] {
	case '+':
		t = t.Add(shift)
	case '-':
		t = t.Add(-shift)
	default:
		return "", fmt.Errorf("%w: offset sign %q", ErrBadNumber, offset[0])
	}
	return t.Format("20060102150405") + " " + offset, nil
}

func atoi(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	return v, nil
}
