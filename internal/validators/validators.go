// Package validators 表单输入校验，返回面向用户的韩文提示
package validators

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	phonePattern    = regexp.MustCompile(`^01[0-9]-?[0-9]{3,4}-?[0-9]{4}$`)
	letterPattern   = regexp.MustCompile(`[A-Za-z]`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validate 返回注册了自定义规则的共享校验器
func Validate() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		mustRegister(v, "password", func(fl validator.FieldLevel) bool {
			return Password(fl.Field().String()) == ""
		})
		mustRegister(v, "username", func(fl validator.FieldLevel) bool {
			return Username(fl.Field().String()) == ""
		})
		mustRegister(v, "krphone", func(fl validator.FieldLevel) bool {
			return Phone(fl.Field().String()) == ""
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// Email 返回空串表示通过
func Email(email string) string {
	if email == "" {
		return "이메일을 입력해주세요."
	}
	if Validate().Var(email, "email") != nil {
		return "올바른 이메일 형식이 아닙니다."
	}
	return ""
}

// Password 至少 8 位，同时包含字母和数字
func Password(password string) string {
	switch {
	case password == "":
		return "비밀번호를 입력해주세요."
	case len([]rune(password)) < 8:
		return "비밀번호는 최소 8자 이상이어야 합니다."
	case !letterPattern.MatchString(password):
		return "비밀번호에 영문자가 포함되어야 합니다."
	case !digitPattern.MatchString(password):
		return "비밀번호에 숫자가 포함되어야 합니다."
	}
	return ""
}

func Required(value string) string {
	if value == "" {
		return "필수 입력 항목입니다."
	}
	return ""
}

// MinLength 空值视为通过，交给 Required 处理
func MinLength(min int) func(string) string {
	return func(value string) string {
		if value != "" && len([]rune(value)) < min {
			return fmt.Sprintf("최소 %d자 이상 입력해주세요.", min)
		}
		return ""
	}
}

func MaxLength(max int) func(string) string {
	return func(value string) string {
		if value != "" && len([]rune(value)) > max {
			return fmt.Sprintf("최대 %d자까지 입력 가능합니다.", max)
		}
		return ""
	}
}

// Range 校验数值区间，空值视为通过
func Range(min, max float64) func(string) string {
	return func(value string) string {
		if value == "" {
			return ""
		}
		num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return "숫자를 입력해주세요."
		}
		if num < min || num > max {
			return fmt.Sprintf("%s에서 %s 사이의 값을 입력해주세요.", formatNumber(min), formatNumber(max))
		}
		return ""
	}
}

func Username(username string) string {
	switch {
	case username == "":
		return "사용자명을 입력해주세요."
	case len(username) < 3:
		return "사용자명은 최소 3자 이상이어야 합니다."
	case len(username) > 20:
		return "사용자명은 최대 20자까지 가능합니다."
	case !usernamePattern.MatchString(username):
		return "사용자명은 영문자, 숫자, 밑줄(_)만 사용 가능합니다."
	}
	return ""
}

// Phone 韩国手机号，可选
func Phone(phone string) string {
	if phone == "" {
		return ""
	}
	if !phonePattern.MatchString(phone) {
		return "올바른 전화번호 형식이 아닙니다."
	}
	return ""
}

// URL 可选
func URL(raw string) string {
	if raw == "" {
		return ""
	}
	if Validate().Var(raw, "url") != nil {
		return "올바른 URL 형식이 아닙니다."
	}
	return ""
}

func ConfirmPassword(password string) func(string) string {
	return func(value string) string {
		if value == "" {
			return "비밀번호 확인을 입력해주세요."
		}
		if value != password {
			return "비밀번호가 일치하지 않습니다."
		}
		return ""
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FieldError 单个字段的校验失败
type FieldError struct {
	Field   string
	Message string
}

// Errors 按字段顺序排列的校验失败集合
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Message 返回指定字段的提示，没有则返回空串
func (e Errors) Message(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Struct 按 validate 标签校验结构体，失败时返回 Errors
func Struct(s any) error {
	err := Validate().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	value := fmt.Sprint(fe.Value())
	switch fe.Tag() {
	case "required":
		return Required("")
	case "email":
		return Email(value)
	case "password":
		return Password(value)
	case "username":
		return Username(value)
	case "krphone":
		return Phone(value)
	case "url":
		return "올바른 URL 형식이 아닙니다."
	case "eqfield":
		return "비밀번호가 일치하지 않습니다."
	case "min", "max", "gte", "lte":
		return boundMessage(fe)
	case "oneof":
		return fmt.Sprintf("다음 중 하나를 선택해주세요: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return "올바른 날짜 형식이 아닙니다."
	}
	return fmt.Sprintf("올바르지 않은 값입니다. (%s)", fe.Tag())
}

func boundMessage(fe validator.FieldError) string {
	n, _ := strconv.Atoi(fe.Param())
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("최소 %d자 이상 입력해주세요.", n)
		}
		return fmt.Sprintf("%s 이상의 값을 입력해주세요.", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("최대 %d자까지 입력 가능합니다.", n)
		}
		return fmt.Sprintf("%s 이하의 값을 입력해주세요.", fe.Param())
	case "gte":
		return fmt.Sprintf("%s 이상의 값을 입력해주세요.", fe.Param())
	default:
		return fmt.Sprintf("%s 이하의 값을 입력해주세요.", fe.Param())
	}
}
