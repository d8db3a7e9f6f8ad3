package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	structValidator *validator.Validate
	once            sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// 报错时使用配置文件中的字段名（例如 timing.poll_timeout）。
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("name"); name != "" {
				return name
			}
			return f.Name
		})
		structValidator = v
	})
	return structValidator
}

func validate(eff EffectiveConfig) error {
	err := getValidator().Struct(eff)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s 不能为空", field)
	case "oneof":
		return fmt.Sprintf("%s 只能是 %s，实际是 %q", field, strings.ReplaceAll(fe.Param(), " ", "/"), fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("%s 不是合法 URL：%q", field, fmt.Sprint(fe.Value()))
	case "gt", "gte":
		return fmt.Sprintf("%s 必须 %s %s，实际是 %v", field, opText(fe.Tag()), fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s 不能小于 timing.poll_interval（实际是 %v）", field, fe.Value())
	default:
		return fmt.Sprintf("%s 校验失败（%s）：%v", field, fe.Tag(), fe.Value())
	}
}

func opText(tag string) string {
	if tag == "gt" {
		return ">"
	}
	return ">="
}
