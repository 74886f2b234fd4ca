package validators

// RegisterForm 注册表单
type RegisterForm struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,password"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Name            string `json:"name" validate:"required,min=2,max=50"`
}

type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProfileForm 补全资料表单
type ProfileForm struct {
	Name      string `json:"name" validate:"omitempty,min=2,max=50"`
	Gender    string `json:"gender" validate:"required,oneof=male female"`
	BirthDate string `json:"birth_date" validate:"required,datetime=2006-01-02"`
}

type GuestForm struct {
	Name   string `json:"name" validate:"required,max=50"`
	Gender string `json:"gender" validate:"required,oneof=male female"`
	Phone  string `json:"phone" validate:"omitempty,krphone"`
	Notes  string `json:"notes" validate:"max=500"`
}

// SessionForm 场次表单
type SessionForm struct {
	Date                 string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime            string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime              string `json:"end_time" validate:"required,datetime=15:04"`
	NumCourts            int    `json:"num_courts" validate:"gte=1,lte=20"`
	MatchDurationMinutes int    `json:"match_duration_minutes" validate:"gte=10,lte=180"`
}
