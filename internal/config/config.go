package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPortal 表示既没有 portal.url 也没有 browser.debugger_url，无法定位门户。
	ErrCodeMissingPortal = "config_missing_portal"
)

// FileName 是 cwd 下自动发现的配置文件名。
const FileName = "iccidx.yaml"

const (
	DefaultDriver   = "rod"
	DefaultMode     = "strict"
	DefaultRegion   = "SO"
	DefaultPrefix   = "8925263790000"
	DefaultLogLevel = "info"
	DefaultExport   = "."

	DefaultHomeSettle   = 1000 * time.Millisecond
	DefaultModeSettle   = 300 * time.Millisecond
	DefaultQuerySettle  = 200 * time.Millisecond
	DefaultSubmitSettle = 800 * time.Millisecond
	DefaultPollInterval = 200 * time.Millisecond
	DefaultPollTimeout  = 5000 * time.Millisecond
	DefaultCooldown     = 1200 * time.Millisecond
	DefaultNavTimeout   = 30 * time.Second
)

// CLIArgs 保留“是否显式指定”的信息，保证覆盖优先级可实现：
// 例如 --headless=false 必须能覆盖 browser.headless=true。
type CLIArgs struct {
	ConfigPath string

	Portal    string
	PortalSet bool

	Driver    string
	DriverSet bool

	DebuggerURL    string
	DebuggerURLSet bool

	Mode    string
	ModeSet bool

	OutDir    string
	OutDirSet bool

	Copy    bool
	CopySet bool

	Preview    bool
	PreviewSet bool

	Headless    bool
	HeadlessSet bool

	NoStripPrefix bool
	Verbose       bool
}

// Selectors 与 portal.Selectors 一一对应；空字段由 portal 侧补默认值。
type Selectors struct {
	Home          string
	ModeSelect    string
	ModeOption    string
	Query         string
	SubmitButton  string
	SubmitLabel   string
	Result        string
	Alert         string
	NotFoundText  string
	AlertNotFound []string
}

// Timing 是查询流程中所有固定等待的时长。
type Timing struct {
	HomeSettle   time.Duration `name:"timing.home_settle" validate:"gte=0"`
	ModeSettle   time.Duration `name:"timing.mode_settle" validate:"gte=0"`
	QuerySettle  time.Duration `name:"timing.query_settle" validate:"gte=0"`
	SubmitSettle time.Duration `name:"timing.submit_settle" validate:"gte=0"`
	PollInterval time.Duration `name:"timing.poll_interval" validate:"gt=0"`
	PollTimeout  time.Duration `name:"timing.poll_timeout" validate:"gt=0,gtefield=PollInterval"`
	Cooldown     time.Duration `name:"timing.cooldown" validate:"gte=0"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string

	PortalURL string `name:"portal.url" validate:"omitempty,url"`
	Selectors Selectors

	Driver      string        `name:"browser.driver" validate:"required,oneof=rod chromedp"`
	DebuggerURL string        `name:"browser.debugger_url"`
	Bin         string        `name:"browser.bin"`
	Headless    bool          `name:"browser.headless"`
	Stealth     bool          `name:"browser.stealth"`
	Flags       []string      `name:"browser.flags" validate:"dive,required"`
	NavTimeout  time.Duration `name:"browser.nav_timeout" validate:"gt=0"`

	InputMode string `name:"input.mode" validate:"oneof=strict digits raw intl"`
	Region    string `name:"input.region" validate:"len=2,uppercase"`

	StripPrefix bool
	Prefix      string `name:"iccid.prefix" validate:"omitempty,numeric"`

	Timing Timing

	ExportDir string `name:"export.dir" validate:"required"`
	CopyBlock bool
	Clipboard bool
	Preview   bool

	LogLevel string `name:"log.level" validate:"oneof=debug info warn error"`
	LogJSON  bool

	MetricsTextfile string `name:"metrics.textfile"`
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPortal:
		return fmt.Sprintf("%s：需要 portal.url 或 browser.debugger_url（配置文件 %q 或 --portal/--debugger-url）", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 给了 --config：必须存在
// 2) 否则尝试 <cwd>/iccidx.yaml（可选，不存在则全部使用默认值）
//
// 覆盖优先级（固定）：CLI 显式指定 > 配置文件 > 内置默认
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	eff := merge(cwdAbs, cli, fc)
	if exists {
		eff.ConfigPath = cfgPath
	}

	if eff.PortalURL == "" && eff.DebuggerURL == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPortal, Path: cfgPath}
	}
	if err := validate(eff); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) EffectiveConfig {
	eff := EffectiveConfig{
		PortalURL: strings.TrimSpace(fc.Portal.URL),
		Selectors: Selectors{
			Home:          strings.TrimSpace(fc.Portal.Selectors.Home),
			ModeSelect:    strings.TrimSpace(fc.Portal.Selectors.ModeSelect),
			ModeOption:    strings.TrimSpace(fc.Portal.Selectors.ModeOption),
			Query:         strings.TrimSpace(fc.Portal.Selectors.Query),
			SubmitButton:  strings.TrimSpace(fc.Portal.Selectors.SubmitButton),
			SubmitLabel:   strings.TrimSpace(fc.Portal.Selectors.SubmitLabel),
			Result:        strings.TrimSpace(fc.Portal.Selectors.Result),
			Alert:         strings.TrimSpace(fc.Portal.Selectors.Alert),
			NotFoundText:  strings.TrimSpace(fc.Portal.Selectors.NotFoundText),
			AlertNotFound: append([]string(nil), fc.Portal.Selectors.AlertNotFound...),
		},

		Driver:      strings.ToLower(orDefault(fc.Browser.Driver, DefaultDriver)),
		DebuggerURL: strings.TrimSpace(fc.Browser.DebuggerURL),
		Bin:         strings.TrimSpace(fc.Browser.Bin),
		Headless:    boolOr(fc.Browser.Headless, true),
		Stealth:     boolOr(fc.Browser.Stealth, false),
		Flags:       append([]string(nil), fc.Browser.Flags...),
		NavTimeout:  fc.Browser.NavTimeout.Or(DefaultNavTimeout),

		InputMode: orDefault(fc.Input.Mode, DefaultMode),
		Region:    strings.ToUpper(orDefault(fc.Input.Region, DefaultRegion)),

		StripPrefix: boolOr(fc.ICCID.StripPrefix, true),
		Prefix:      DefaultPrefix,

		Timing: Timing{
			HomeSettle:   fc.Timing.HomeSettle.Or(DefaultHomeSettle),
			ModeSettle:   fc.Timing.ModeSettle.Or(DefaultModeSettle),
			QuerySettle:  fc.Timing.QuerySettle.Or(DefaultQuerySettle),
			SubmitSettle: fc.Timing.SubmitSettle.Or(DefaultSubmitSettle),
			PollInterval: fc.Timing.PollInterval.Or(DefaultPollInterval),
			PollTimeout:  fc.Timing.PollTimeout.Or(DefaultPollTimeout),
			Cooldown:     fc.Timing.Cooldown.Or(DefaultCooldown),
		},

		ExportDir: absCleanFrom(cwdAbs, orDefault(fc.Export.Dir, DefaultExport)),
		CopyBlock: fc.Export.CopyBlock,
		Clipboard: boolOr(fc.Export.Clipboard, true),
		Preview:   boolOr(fc.Export.Preview, true),

		LogLevel: strings.ToLower(orDefault(fc.Log.Level, DefaultLogLevel)),
		LogJSON:  fc.Log.JSON,
	}
	if fc.ICCID.Prefix != nil {
		eff.Prefix = strings.TrimSpace(*fc.ICCID.Prefix)
	}
	if mt := strings.TrimSpace(fc.Metrics.Textfile); mt != "" {
		eff.MetricsTextfile = absCleanFrom(cwdAbs, mt)
	}

	if cli.PortalSet {
		eff.PortalURL = strings.TrimSpace(cli.Portal)
	}
	if cli.DriverSet {
		eff.Driver = strings.ToLower(strings.TrimSpace(cli.Driver))
	}
	if cli.DebuggerURLSet {
		eff.DebuggerURL = strings.TrimSpace(cli.DebuggerURL)
	}
	if cli.ModeSet {
		eff.InputMode = strings.ToLower(strings.TrimSpace(cli.Mode))
	}
	if cli.OutDirSet {
		eff.ExportDir = absCleanFrom(cwdAbs, cli.OutDir)
	}
	if cli.CopySet {
		eff.Clipboard = cli.Copy
	}
	if cli.PreviewSet {
		eff.Preview = cli.Preview
	}
	if cli.HeadlessSet {
		eff.Headless = cli.Headless
	}
	if cli.NoStripPrefix {
		eff.StripPrefix = false
	}
	if cli.Verbose {
		eff.LogLevel = "debug"
	}
	return eff
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
