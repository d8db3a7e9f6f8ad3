package domain

import "strings"

// DefaultCarrierPrefix 是门户返回 ICCID 时固定携带的运营商前缀（13 位）。
const DefaultCarrierPrefix = "8925263790000"

// Outcome 是单条查询的终态标签。只有 OutcomeFound 会携带非空 ICCID。
type Outcome string

const (
	OutcomeFound          Outcome = "found"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeMissingControl Outcome = "missing_control"
	OutcomeFailed         Outcome = "failed"
	OutcomeCanceled       Outcome = "canceled"
)

// LookupResult 是导出的最小单元。
//
// 约束：Iccid 为空串表示“未找到/未解析”，永远不会缺省，保证导出时每条输入都有一行。
type LookupResult struct {
	Msisdn Msisdn
	Iccid  string
}

// StripCarrierPrefix 去掉 ICCID 开头的 prefix（恰好 len(prefix) 个字符）；
// 不以 prefix 开头（含空串）时原样返回。
func StripCarrierPrefix(iccid, prefix string) string {
	if prefix == "" {
		return iccid
	}
	if rest, ok := strings.CutPrefix(iccid, prefix); ok {
		return rest
	}
	return iccid
}
