package utils

// Badge 状态或类型的展示名称与颜色
type Badge struct {
	Label string
	Color string
}

const defaultColor = "grey"

var (
	SeasonStatus = map[string]Badge{
		"upcoming":  {"예정", "info"},
		"active":    {"진행 중", "success"},
		"completed": {"완료", "grey"},
	}

	SessionStatus = map[string]Badge{
		"scheduled":   {"예정", "info"},
		"in_progress": {"진행 중", "warning"},
		"completed":   {"완료", "success"},
	}

	SessionType = map[string]Badge{
		"league":     {"리그전", "primary"},
		"tournament": {"토너먼트", "secondary"},
	}

	MatchStatus = map[string]Badge{
		"scheduled":   {"예정", "info"},
		"in_progress": {"진행 중", "warning"},
		"completed":   {"완료", "success"},
	}

	MatchType = map[string]Badge{
		"mens_doubles":   {"남복", "blue"},
		"womens_doubles": {"여복", "pink"},
		"mixed_doubles":  {"혼복", "purple"},
		"singles":        {"단식", "orange"},
	}

	MemberRole = map[string]Badge{
		"manager": {"매니저", "primary"},
		"member":  {"회원", "success"},
		"guest":   {"게스트", "grey"},
	}

	MemberStatus = map[string]Badge{
		"pending":  {"승인 대기", "warning"},
		"active":   {"활성", "success"},
		"inactive": {"비활성", "grey"},
		"left":     {"탈퇴", "error"},
		"banned":   {"강퇴", "error"},
	}

	Gender = map[string]Badge{
		"male":   {"남성", "blue"},
		"female": {"여성", "pink"},
	}

	ParticipantCategory = map[string]Badge{
		"member":    {"정회원", "success"},
		"guest":     {"게스트", "warning"},
		"associate": {"준회원", "info"},
	}
)

// Lookup 未知取值时标签为原值，颜色为 grey
func Lookup(table map[string]Badge, key string) Badge {
	if b, ok := table[key]; ok {
		return b
	}
	return Badge{Label: key, Color: defaultColor}
}

// Label Lookup 的标签部分
func Label(table map[string]Badge, key string) string {
	return Lookup(table, key).Label
}

var dayOfWeek = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// DayOfWeekLabel 0 表示星期日
func DayOfWeekLabel(day int) string {
	if day < 0 || day >= len(dayOfWeek) {
		return ""
	}
	return dayOfWeek[day]
}
