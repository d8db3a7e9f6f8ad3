package domain

import (
	"regexp"
	"strings"
)

// Msisdn 是一次查询的输入主键（已规范化的用户号码）。
//
// 约束：trim 后非空；格式校验由解析策略决定（strict / digits / raw / intl），这里不做假设。
type Msisdn string

var strictMsisdnRE = regexp.MustCompile(`^71\d{7}$`)

// ParseMsisdn 只做最小约束：trim 后非空。
func ParseMsisdn(s string) (Msisdn, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return Msisdn(s), true
}

// IsStrictMsisdn 判断 s 是否满足门户侧号段约束：以 71 开头且共 9 位数字。
func IsStrictMsisdn(s string) bool {
	return strictMsisdnRE.MatchString(s)
}
