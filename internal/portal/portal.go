package portal

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/ICCIDX/internal/infra/clock"
)

// Portal 是查询流程与在线门户之间唯一的接缝；DOM 细节全部留在实现内部。
//
// 约束：
// - 控件缺失必须返回 *MissingControlError（上层据此短路当前号码）
// - 各步骤不做重试、不做等待（settle/cooldown 由上层统一控制）
// - PollResult 只在 deadline 前轮询；到期返回 TimedOut 而不是 error
// - PollResult 把与 stale 相同的终态视为尚未出结果（上一条查询留在页面上的残留）
type Portal interface {
	GoHome(ctx context.Context) error
	SelectMode(ctx context.Context) error
	SetQuery(ctx context.Context, msisdn string) error
	Submit(ctx context.Context) error
	// Observe 立即读取一次页面并分类，不等待。
	Observe(ctx context.Context) (Observation, error)
	PollResult(ctx context.Context, deadline time.Time, stale Observation) (Result, error)
	Close() error
}

// Kind 是一次查询的终态。
type Kind int

const (
	TimedOut Kind = iota
	Found
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "timeout"
	}
}

// Result 只有 Found 时 Value 非空。
type Result struct {
	Kind  Kind
	Value string
	// Probes 是本次轮询读取页面快照的次数（仅用于日志）。
	Probes int
	// LastErr 是超时前最后一次快照失败的原因（可能为空）。
	LastErr error
}

// Selectors 描述门户页面上的控件位置。默认值来自门户当前的 DOM。
type Selectors struct {
	Home         string
	ModeSelect   string
	ModeOption   string // 选项文本，大小写不敏感
	Query        string
	SubmitButton string
	SubmitLabel  string // 按钮文本包含该子串（大小写不敏感）
	Result       string
	Alert        string
	// NotFoundText 出现在页面任意可见文本中即判定未找到。
	NotFoundText string
	// AlertNotFound 只在 Alert 区域内匹配，措辞比 NotFoundText 宽松。
	AlertNotFound []string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Home:          "img.logoImg",
		ModeSelect:    "select#idtype",
		ModeOption:    "msisdn",
		Query:         "input#number",
		SubmitButton:  "button.btn.btn-info",
		SubmitLabel:   "search",
		Result:        ".customer-details-ans.text-break",
		Alert:         ".alert, .alert-danger, [role=alert]",
		NotFoundText:  "subscriber not found",
		AlertNotFound: []string{"not found", "no record", "does not exist"},
	}
}

// WithDefaults 用默认值补齐空字段。
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.Home, d.Home)
	fill(&s.ModeSelect, d.ModeSelect)
	fill(&s.ModeOption, d.ModeOption)
	fill(&s.Query, d.Query)
	fill(&s.SubmitButton, d.SubmitButton)
	fill(&s.SubmitLabel, d.SubmitLabel)
	fill(&s.Result, d.Result)
	fill(&s.Alert, d.Alert)
	fill(&s.NotFoundText, d.NotFoundText)
	if len(s.AlertNotFound) == 0 {
		s.AlertNotFound = d.AlertNotFound
	}
	return s
}

// Options 是打开一个门户会话所需的全部参数（由 cmd 层从配置映射而来）。
type Options struct {
	URL         string
	DebuggerURL string // 非空时附着到已登录的浏览器，而不是自行启动
	Bin         string
	Headless    bool
	Stealth     bool
	Flags       []string // "name" 或 "name=value"
	NavTimeout  time.Duration
	// ProbeTimeout 是控件存在性探测的上限；超过即视为控件缺失。
	ProbeTimeout time.Duration
	PollInterval time.Duration
	Selectors    Selectors
	Clock        clock.Clock
	Logger       *zap.Logger
}

const (
	DefaultNavTimeout   = 30 * time.Second
	DefaultProbeTimeout = 500 * time.Millisecond
	DefaultPollInterval = 200 * time.Millisecond
)

// Normalize 补齐零值字段，适配器在 Open 开头调用。
func (o Options) Normalize() Options {
	o.URL = strings.TrimSpace(o.URL)
	o.DebuggerURL = strings.TrimSpace(o.DebuggerURL)
	if o.NavTimeout <= 0 {
		o.NavTimeout = DefaultNavTimeout
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Selectors = o.Selectors.WithDefaults()
	return o
}

// SplitFlag 把 "name=value" 拆开；没有 '=' 时 value 为空、hasValue=false。
func SplitFlag(raw string) (name, value string, hasValue bool) {
	raw = strings.TrimLeft(strings.TrimSpace(raw), "-")
	name, value, hasValue = strings.Cut(raw, "=")
	return strings.TrimSpace(name), strings.TrimSpace(value), hasValue
}
