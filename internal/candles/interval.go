package candles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval is returned when an interval's unit or value is out of range.
var ErrInvalidInterval = errors.New("invalid candlestick interval")

// Unit is the calendar field an interval is aligned to.
type Unit int

const (
	Second Unit = iota
	Minute
	Hour
	Day
)

// maxValue holds the largest accepted interval value for each unit.
var maxValue = map[Unit]int{
	Second: 60,
	Minute: 60,
	Hour:   24,
	Day:    28,
}

var unitSuffix = map[Unit]string{
	Second: "s",
	Minute: "m",
	Hour:   "h",
	Day:    "d",
}

// Interval is a candlestick width such as 5 minutes or 4 hours.
type Interval struct {
	Value int
	Unit  Unit
}

// Seconds, Minutes, Hours and Days are shorthands for building intervals.
func Seconds(n int) Interval { return Interval{Value: n, Unit: Second} }
func Minutes(n int) Interval { return Interval{Value: n, Unit: Minute} }
func Hours(n int) Interval   { return Interval{Value: n, Unit: Hour} }
func Days(n int) Interval    { return Interval{Value: n, Unit: Day} }

// ParseInterval parses strings like "30s", "5m", "4h" or "1d".
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	var unit Unit
	switch s[len(s)-1] {
	case 's':
		unit = Second
	case 'm':
		unit = Minute
	case 'h':
		unit = Hour
	case 'd':
		unit = Day
	default:
		return Interval{}, fmt.Errorf("%w: unknown unit in %q", ErrInvalidInterval, s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	iv := Interval{Value: n, Unit: unit}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate checks the value is within the bounds of its unit.
func (iv Interval) Validate() error {
	limit, ok := maxValue[iv.Unit]
	if !ok {
		return fmt.Errorf("%w: unknown unit %d", ErrInvalidInterval, iv.Unit)
	}
	if iv.Value < 1 || iv.Value > limit {
		return fmt.Errorf("%w: %s must be in 1~%d, got %d", ErrInvalidInterval, iv.unitName(), limit, iv.Value)
	}
	return nil
}

func (iv Interval) String() string {
	return strconv.Itoa(iv.Value) + unitSuffix[iv.Unit]
}

func (iv Interval) unitName() string {
	switch iv.Unit {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	default:
		return "day"
	}
}

// Duration is the nominal width of the interval.
func (iv Interval) Duration() time.Duration {
	n := time.Duration(iv.Value)
	switch iv.Unit {
	case Second:
		return n * time.Second
	case Minute:
		return n * time.Minute
	case Hour:
		return n * time.Hour
	default:
		return n * 24 * time.Hour
	}
}

// Floor returns the open time of the bucket containing t. The field matching the
// unit is floored to a multiple of Value and all smaller fields are zeroed.
// Days are 1-based and restart every month, so a 5d interval opens on the 1st,
// 6th, 11th... and the last bucket of a month is cut short by the next 1st: the
// bucket opening on January 31st spans one day, not Duration().
func (iv Interval) Floor(t time.Time) time.Time {
	t = t.UTC()
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	switch iv.Unit {
	case Second:
		return time.Date(y, mo, d, h, mi, (s/iv.Value)*iv.Value, 0, time.UTC)
	case Minute:
		return time.Date(y, mo, d, h, (mi/iv.Value)*iv.Value, 0, 0, time.UTC)
	case Hour:
		return time.Date(y, mo, d, (h/iv.Value)*iv.Value, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, mo, ((d-1)/iv.Value)*iv.Value+1, 0, 0, 0, 0, time.UTC)
	}
}
