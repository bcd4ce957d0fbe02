// пакет validation проверяет входящие данные по набору правил
// для полей и собирает все нарушения в один список.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError - описание одного нарушенного правила.
type FieldError struct {
	Value    string `json:"value,omitempty"`
	Msg      string `json:"msg"`
	Param    string `json:"param,omitempty"`
	Location string `json:"location"`
}

// Errors - упорядоченный список нарушений.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Param+": "+e[i].Msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// LocationBody - данные получены из тела запроса.
const LocationBody = "body"

// Validator проверяет структуры с тегами `validate`
// и сообщениями об ошибках в тегах `msg`.
type Validator struct {
	v *validator.Validate
}

// New возвращает [*Validator]. Имена полей в ошибках
// берутся из тегов json.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Struct проверяет все поля s. Возвращает nil или [Errors],
// по одной ошибке на поле в порядке объявления полей.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}

	t := reflect.Indirect(reflect.ValueOf(s)).Type()
	out := make(Errors, 0, len(ves))
	for _, fe := range ves {
		out = append(out, FieldError{
			Value:    valueString(fe.Value()),
			Msg:      message(t, fe),
			Param:    fe.Field(),
			Location: LocationBody,
		})
	}
	return out
}

// message возвращает текст из тега `msg` поля,
// либо общее описание по названию правила.
func message(t reflect.Type, fe validator.FieldError) string {
	if f, ok := t.FieldByName(fe.StructField()); ok {
		if m := f.Tag.Get("msg"); m != "" {
			return m
		}
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	default:
		return "invalid value"
	}
}

func valueString(v any) string {
	s, _ := v.(string)
	return s
}
