package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatResponseTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{500 * time.Nanosecond, "< 1μs"},
		{250 * time.Microsecond, "250μs"},
		{42 * time.Millisecond, "42ms"},
		{2500 * time.Millisecond, "2.5s"},
		{15 * time.Second, "15s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatResponseTime(tt.in), tt.in.String())
	}
	assert.Equal(t, "120ms", FormatMillis(120))
}

func TestStatsFormatting(t *testing.T) {
	assert.Equal(t, 0, WinRate(3, 0))
	assert.Equal(t, 67, WinRate(2, 3))
	assert.Equal(t, "-", FormatRank(nil))
	rank := 2
	assert.Equal(t, "2위", FormatRank(&rank))
	assert.Equal(t, "25.0%", FormatPercentage(1, 4))
	assert.Equal(t, "0.0%", FormatPercentage(1, 0))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, Badge{"진행 중", "success"}, Lookup(SeasonStatus, "active"))
	assert.Equal(t, Badge{"archived", "grey"}, Lookup(SeasonStatus, "archived"))
	assert.Equal(t, "혼복", Label(MatchType, "mixed_doubles"))
	assert.Equal(t, "purple", Lookup(MatchType, "mixed_doubles").Color)
	assert.Equal(t, "토너먼트", Label(SessionType, "tournament"))
	assert.Equal(t, "warning", Lookup(MatchStatus, "in_progress").Color)
	assert.Equal(t, "승인 대기", Label(MemberStatus, "pending"))
	assert.Equal(t, "일", DayOfWeekLabel(0))
	assert.Equal(t, "토", DayOfWeekLabel(6))
	assert.Empty(t, DayOfWeekLabel(7))
}

func TestDatesInTimezone(t *testing.T) {
	d, err := NewDates("Asia/Seoul")
	require.NoError(t, err)

	// UTC 15:30 已是首尔的第二天
	ts := time.Date(2024, 3, 9, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-10", d.Date(ts))
	assert.Equal(t, "2024-03-10 00:30", d.DateTime(ts))
	assert.Equal(t, "00:30", d.Time(ts))
	assert.Empty(t, d.Date(time.Time{}))

	assert.Equal(t, 1, d.DiffDays(time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC), ts))

	before, err := d.IsBefore("2024-03-01", "2024-03-02")
	require.NoError(t, err)
	assert.True(t, before)
	after, err := d.IsAfter("2024-03-01T10:00:00+09:00", "2024-03-01")
	require.NoError(t, err)
	assert.True(t, after)

	_, err = d.IsBefore("yesterday", "2024-03-02")
	assert.Error(t, err)

	_, err = NewDates("Mars/Olympus")
	assert.Error(t, err)
}

func TestFromNow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "몇 초 전"},
		{now.Add(-time.Minute), "1분 전"},
		{now.Add(-20 * time.Minute), "20분 전"},
		{now.Add(-5 * time.Hour), "5시간 전"},
		{now.Add(-30 * time.Hour), "하루 전"},
		{now.Add(-3 * 24 * time.Hour), "3일 전"},
		{now.Add(2 * time.Hour), "2시간 후"},
		{now.Add(-400 * 24 * time.Hour), "일 년 전"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromNow(tt.t, now))
	}
	assert.Empty(t, FromNow(time.Time{}, now))
}
