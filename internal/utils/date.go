package utils

import (
	"fmt"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
	TimeLayout     = "15:04"
)

// Dates 按配置时区格式化时间
type Dates struct {
	loc *time.Location
}

// NewDates 时区为空时使用 Asia/Seoul
func NewDates(timezone string) (*Dates, error) {
	if timezone == "" {
		timezone = "Asia/Seoul"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Dates{loc: loc}, nil
}

func (d *Dates) Location() *time.Location { return d.loc }

func (d *Dates) Date(t time.Time) string     { return d.format(t, DateLayout) }
func (d *Dates) DateTime(t time.Time) string { return d.format(t, DateTimeLayout) }
func (d *Dates) Time(t time.Time) string     { return d.format(t, TimeLayout) }

// Today 当前时区的日期
func (d *Dates) Today(now time.Time) string { return d.Date(now) }

func (d *Dates) format(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.In(d.loc).Format(layout)
}

// Parse 接受 RFC3339 或 "2006-01-02"，后者按配置时区解释
func (d *Dates) Parse(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, d.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// DiffDays to 与 from 相差的日历天数
func (d *Dates) DiffDays(from, to time.Time) int {
	f := from.In(d.loc)
	t := to.In(d.loc)
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

// IsBefore 两个日期字符串比较
func (d *Dates) IsBefore(a, b string) (bool, error) {
	ta, tb, err := d.parsePair(a, b)
	if err != nil {
		return false, err
	}
	return ta.Before(tb), nil
}

func (d *Dates) IsAfter(a, b string) (bool, error) {
	ta, tb, err := d.parsePair(a, b)
	if err != nil {
		return false, err
	}
	return ta.After(tb), nil
}

func (d *Dates) parsePair(a, b string) (time.Time, time.Time, error) {
	ta, err := d.Parse(a)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	tb, err := d.Parse(b)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return ta, tb, nil
}

// FromNow 韩文相对时间，例如 "3일 전"、"2시간 후"
func FromNow(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	suffix := "전"
	if diff < 0 {
		diff = -diff
		suffix = "후"
	}

	seconds := diff.Seconds()
	minutes := diff.Minutes()
	hours := diff.Hours()
	days := hours / 24

	var phrase string
	switch {
	case seconds < 45:
		phrase = "몇 초"
	case seconds < 90:
		phrase = "1분"
	case minutes < 45:
		phrase = fmt.Sprintf("%d분", roundInt(minutes))
	case minutes < 90:
		phrase = "1시간"
	case hours < 22:
		phrase = fmt.Sprintf("%d시간", roundInt(hours))
	case hours < 36:
		phrase = "하루"
	case days < 26:
		phrase = fmt.Sprintf("%d일", roundInt(days))
	case days < 46:
		phrase = "한 달"
	case days < 320:
		phrase = fmt.Sprintf("%d달", roundInt(days/30.4))
	case days < 548:
		phrase = "일 년"
	default:
		phrase = fmt.Sprintf("%d년", roundInt(days/365))
	}
	return phrase + " " + suffix
}

func roundInt(f float64) int {
	return int(f + 0.5)
}
