// Package isotime formats and parses the date and time stamps carried by
// document attributes such as docdate and localtime.
package isotime

import (
	"strings"
	"time"
	"unicode"
)

// Grain represents the granularity of a time stamp.
type Grain uint

// Grain constants, from unset zero, down to second.
const (
	GrainNone Grain = iota
	GrainYear
	GrainMonth
	GrainDay
	GrainHour
	GrainMinute
	GrainSecond
)

// Layouts of the date and time attributes.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05 MST"
)

// GrainedTime is a time truncated to a granularity. Its zero value has
// GrainNone.
type GrainedTime struct {
	grain Grain
	t     time.Time
}

// At returns t truncated to grain.
func At(t time.Time, grain Grain) GrainedTime {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()
	switch grain {
	case GrainNone:
		return GrainedTime{}
	case GrainYear:
		month, day, hour, minute, second = 1, 1, 0, 0, 0
	case GrainMonth:
		day, hour, minute, second = 1, 0, 0, 0
	case GrainDay:
		hour, minute, second = 0, 0, 0
	case GrainHour:
		minute, second = 0, 0
	case GrainMinute:
		second = 0
	}
	return GrainedTime{grain, time.Date(year, month, day, hour, minute, second, 0, t.Location())}
}

// Grain returns the receiver's granularity.
func (t GrainedTime) Grain() Grain { return t.grain }

// Any returns true only if the time's grain is at least year.
func (t GrainedTime) Any() bool { return t.grain > GrainNone }

// Time returns the first instant within the receiver's time range.
func (t GrainedTime) Time() time.Time { return t.t }

// Date returns the date attribute form, like 2006-01-02, or the empty
// string for a time finer than a day that has no date.
func (t GrainedTime) Date() string {
	if t.grain < GrainDay {
		return ""
	}
	return t.t.Format(DateLayout)
}

// Clock returns the time attribute form, like 15:04:05 MST.
func (t GrainedTime) Clock() string {
	if t.grain < GrainHour {
		return ""
	}
	return t.t.Format(ClockLayout)
}

// String returns an ISO time string; it only specifies components up to the
// set granularity.
func (t GrainedTime) String() string {
	switch t.grain {
	case GrainYear:
		return t.t.Format("2006")
	case GrainMonth:
		return t.t.Format("2006-01")
	case GrainDay:
		return t.t.Format("2006-01-02")
	case GrainHour:
		return t.t.Format("2006-01-02T15Z07")
	case GrainMinute:
		return t.t.Format("2006-01-02T15:04Z07")
	case GrainSecond:
		return t.t.Format("2006-01-02T15:04:05Z07")
	}
	return ""
}

// Parse consumes as many ISO time components as it can from the left of s,
// returning the time, the remaining string and true if any component was
// consumed. Dates are separated by - or /, clock components by :, with
// optional spaces or a T between the date and the clock.
func Parse(s string, loc *time.Location) (GrainedTime, string, bool) {
	if loc == nil {
		loc = time.Local
	}
	var (
		comps [6]int
		grain Grain
	)
	comps[1], comps[2] = 1, 1
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for len(rest) > 0 && grain < GrainSecond {
		next := strings.TrimLeft(rest, " ")
		if next == "" {
			break
		}
		switch {
		case grain == GrainDay && next[0] == 'T':
			next = next[1:]
		case grain > GrainNone && grain < GrainDay && (next[0] == '-' || next[0] == '/'):
			next = next[1:]
		case grain > GrainDay && next[0] == ':':
			next = next[1:]
		}
		num, i := 0, 0
		for i < len(next) && '0' <= next[i] && next[i] <= '9' {
			num = 10*num + int(next[i]-'0')
			i++
		}
		if i == 0 || !inRange(grain, num) {
			break
		}
		comps[grain] = num
		grain++
		rest = next[i:]
	}
	if grain == GrainNone {
		return GrainedTime{}, s, false
	}
	t := time.Date(comps[0], time.Month(comps[1]), comps[2], comps[3], comps[4], comps[5], 0, loc)
	return GrainedTime{grain, t}, rest, true
}

// inRange checks the component that would advance the grain past g.
func inRange(g Grain, num int) bool {
	switch g {
	case GrainYear:
		return 1 <= num && num <= 12
	case GrainMonth:
		return 1 <= num && num <= 31
	case GrainDay:
		return num < 24
	case GrainHour, GrainMinute:
		return num < 60
	}
	return true
}
