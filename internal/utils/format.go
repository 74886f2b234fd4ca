// Package utils 格式化与展示用的工具函数
package utils

import (
	"fmt"
	"math"
	"time"
)

// FormatResponseTime 友好格式化响应时间
func FormatResponseTime(duration time.Duration) string {
	if duration == 0 {
		return "0ms"
	}

	ms := float64(duration.Nanoseconds()) / 1e6
	switch {
	case ms < 1:
		us := float64(duration.Nanoseconds()) / 1e3
		if us < 1 {
			return "< 1μs"
		}
		return fmt.Sprintf("%.0fμs", us)
	case ms < 1000:
		return fmt.Sprintf("%.0fms", ms)
	case ms < 60000:
		seconds := ms / 1000
		if seconds < 10 {
			return fmt.Sprintf("%.1fs", seconds)
		}
		return fmt.Sprintf("%.0fs", seconds)
	default:
		minutes := int(ms / 60000)
		seconds := (ms - float64(minutes*60000)) / 1000
		return fmt.Sprintf("%dm%.0fs", minutes, seconds)
	}
}

// FormatMillis 格式化以毫秒存储的耗时
func FormatMillis(ms int64) string {
	return FormatResponseTime(time.Duration(ms) * time.Millisecond)
}

// WinRate 胜率百分比，四舍五入到整数
func WinRate(wins, totalGames int) int {
	if totalGames <= 0 {
		return 0
	}
	return int(math.Round(float64(wins) / float64(totalGames) * 100))
}

// FormatRank 未排名显示 "-"
func FormatRank(rank *int) string {
	if rank == nil || *rank == 0 {
		return "-"
	}
	return fmt.Sprintf("%d위", *rank)
}

// FormatPercentage 格式化百分比
func FormatPercentage(value, total int64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(value)/float64(total)*100)
}
