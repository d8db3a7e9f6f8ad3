package portal

import (
	"errors"
	"fmt"
)

// MissingControlError 表示页面上找不到某个必需控件（门户改版、未登录或页面尚未加载）。
type MissingControlError struct {
	Control  string // home/mode/mode_option/query/submit
	Selector string
}

func (e *MissingControlError) Error() string {
	if e == nil {
		return "missing control"
	}
	if e.Selector == "" {
		return fmt.Sprintf("控件缺失：%s", e.Control)
	}
	return fmt.Sprintf("控件缺失：%s（%s）", e.Control, e.Selector)
}

func IsMissingControl(err error) bool {
	var mc *MissingControlError
	return errors.As(err, &mc)
}

// StepError 包装适配器在某一步骤上的非“控件缺失”失败（CDP 断开、脚本异常等）。
type StepError struct {
	Driver string
	Step   string
	Err    error
}

func (e *StepError) Error() string {
	if e == nil {
		return "portal step error"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s 失败", e.Driver, e.Step)
	}
	return fmt.Sprintf("%s: %s 失败: %v", e.Driver, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
