package isotime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in    string
		grain Grain
		str   string
		rest  string
	}{
		{"", GrainNone, "", ""},
		{"now", GrainNone, "", "now"},
		{"2024", GrainYear, "2024", ""},
		{"2024-03", GrainMonth, "2024-03", ""},
		{"2024/03/07", GrainDay, "2024-03-07", ""},
		{"2024-03-07T14", GrainHour, "2024-03-07T14Z", ""},
		{"2024-03-07 14:05", GrainMinute, "2024-03-07T14:05Z", ""},
		{"2024-03-07T14:05:09 rest", GrainSecond, "2024-03-07T14:05:09Z", " rest"},
		{"2024-13", GrainYear, "2024", "-13"},
	} {
		t.Run(tc.in, func(t *testing.T) {
			gt, rest, ok := Parse(tc.in, time.UTC)
			assert.Equal(t, tc.grain != GrainNone, ok)
			assert.Equal(t, tc.grain, gt.Grain())
			assert.Equal(t, tc.str, gt.String())
			assert.Equal(t, tc.rest, rest)
		})
	}
}

func TestAt(t *testing.T) {
	tm := time.Date(2024, 3, 7, 14, 5, 9, 500, time.UTC)

	day := At(tm, GrainDay)
	assert.True(t, day.Any())
	assert.Equal(t, "2024-03-07", day.Date())
	assert.Equal(t, "", day.Clock())
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), day.Time())

	sec := At(tm, GrainSecond)
	assert.Equal(t, "2024-03-07", sec.Date())
	assert.Equal(t, "14:05:09 UTC", sec.Clock())

	assert.False(t, At(tm, GrainNone).Any())
	assert.Equal(t, "", At(tm, GrainMonth).Date())
}
