package domain

import (
	"encoding/json"
	"time"
)

const (
	ErrCodeMissingControl = "missing_control"
	ErrCodePortal         = "portal_error"
	ErrCodeTimeout        = "timeout"
	ErrCodeCanceled       = "canceled"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeConfigPortal   = "config_missing_portal"
)

// AbortHomeUnavailable 表示首条查询前找不到“回到首页”的控件，整批放弃。
const AbortHomeUnavailable = "home_unavailable"

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Portal string `json:"portal"`
	Driver string `json:"driver"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Total          int `json:"total"`
	Found          int `json:"found"`
	NotFound       int `json:"not_found"`
	Timeout        int `json:"timeout"`
	MissingControl int `json:"missing_control"`
	Failed         int `json:"failed"`
	Canceled       int `json:"canceled"`
}

// ItemResult 是单条 MSISDN 的执行结果。
// RawIccid 保留门户原文（前缀剥离之前），Iccid 是导出值。
type ItemResult struct {
	Msisdn   Msisdn  `json:"msisdn"`
	Iccid    string  `json:"iccid"`
	RawIccid string  `json:"raw_iccid"`
	Outcome  Outcome `json:"outcome"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	DurationMS int64 `json:"duration_ms"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 items 计算得出
//
// 注意：与输入顺序一致是对外契约，这里禁止对 items 排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []ItemResult{}
	}

	s := ReportSummary{Total: len(r.Items)}
	for _, it := range r.Items {
		switch it.Outcome {
		case OutcomeFound:
			s.Found++
		case OutcomeNotFound:
			s.NotFound++
		case OutcomeTimeout:
			s.Timeout++
		case OutcomeMissingControl:
			s.MissingControl++
		case OutcomeFailed:
			s.Failed++
		case OutcomeCanceled:
			s.Canceled++
		}
	}
	r.Summary = s
}

// Results 把 items 投影为导出用的 ResultSet（顺序不变）。
func (r RunReport) Results() []LookupResult {
	out := make([]LookupResult, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, LookupResult{Msisdn: it.Msisdn, Iccid: it.Iccid})
	}
	return out
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
