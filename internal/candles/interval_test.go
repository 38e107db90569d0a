package candles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseInterval(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    Interval
		expectError bool
	}{
		{name: "Seconds", input: "30s", expected: Seconds(30)},
		{name: "Minutes", input: "5m", expected: Minutes(5)},
		{name: "Hours", input: "24h", expected: Hours(24)},
		{name: "Days", input: "28d", expected: Days(28)},
		{name: "Minutes out of range", input: "61m", expectError: true},
		{name: "Days out of range", input: "29d", expectError: true},
		{name: "Zero value", input: "0s", expectError: true},
		{name: "Unknown unit", input: "5w", expectError: true},
		{name: "Not a number", input: "xm", expectError: true},
		{name: "Empty", input: "", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			iv, err := ParseInterval(tc.input)

			if tc.expectError {
				assert.ErrorIs(t, err, ErrInvalidInterval)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, iv)
				assert.Equal(t, tc.input, iv.String())
			}
		})
	}
}

func TestIntervalValidate(t *testing.T) {
	assert.NoError(t, Seconds(60).Validate())
	assert.NoError(t, Hours(1).Validate())
	assert.ErrorIs(t, Hours(25).Validate(), ErrInvalidInterval)
	assert.ErrorIs(t, Interval{Value: 1, Unit: Unit(9)}.Validate(), ErrInvalidInterval)
}

func TestIntervalFloor(t *testing.T) {
	ts := time.Date(2024, 3, 14, 13, 47, 38, 123456789, time.UTC)

	testCases := []struct {
		name     string
		interval Interval
		expected time.Time
	}{
		{name: "15 seconds", interval: Seconds(15), expected: time.Date(2024, 3, 14, 13, 47, 30, 0, time.UTC)},
		{name: "1 minute", interval: Minutes(1), expected: time.Date(2024, 3, 14, 13, 47, 0, 0, time.UTC)},
		{name: "5 minutes", interval: Minutes(5), expected: time.Date(2024, 3, 14, 13, 45, 0, 0, time.UTC)},
		{name: "4 hours", interval: Hours(4), expected: time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)},
		{name: "1 day", interval: Days(1), expected: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		{name: "5 days", interval: Days(5), expected: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.interval.Floor(ts))
		})
	}
}

func TestIntervalFloor_DayBucketsRestartEachMonth(t *testing.T) {
	day := func(m time.Month, d, h int) time.Time { return time.Date(2024, m, d, h, 0, 0, 0, time.UTC) }

	testCases := []struct {
		name     string
		interval Interval
		at       time.Time
		expected time.Time
	}{
		{name: "5d on the 31st", interval: Days(5), at: day(time.January, 31, 18), expected: day(time.January, 31, 0)},
		{name: "5d on the 1st", interval: Days(5), at: day(time.February, 1, 3), expected: day(time.February, 1, 0)},
		{name: "5d late february", interval: Days(5), at: day(time.February, 29, 23), expected: day(time.February, 26, 0)},
		{name: "5d early march", interval: Days(5), at: day(time.March, 2, 0), expected: day(time.March, 1, 0)},
		{name: "28d on the 30th", interval: Days(28), at: day(time.April, 30, 12), expected: day(time.April, 29, 0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.interval.Floor(tc.at))
		})
	}

	// The January 31st bucket is one day wide although the interval lasts five.
	jan31 := Days(5).Floor(day(time.January, 31, 0))
	feb1 := Days(5).Floor(day(time.February, 1, 0))
	assert.Equal(t, 24*time.Hour, feb1.Sub(jan31))
	assert.Equal(t, 5*24*time.Hour, Days(5).Duration())
}

func TestIntervalFloor_ConvertsToUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2024, 3, 14, 9, 3, 0, 0, tokyo)

	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), Minutes(5).Floor(ts))
}

func TestIntervalDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, Seconds(30).Duration())
	assert.Equal(t, 5*time.Minute, Minutes(5).Duration())
	assert.Equal(t, 4*time.Hour, Hours(4).Duration())
	assert.Equal(t, 48*time.Hour, Days(2).Duration())
}
