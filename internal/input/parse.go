package input

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/width"

	"github.com/John-Robertt/ICCIDX/internal/domain"
)

// Mode 是输入解析策略。
type Mode string

const (
	// ModeStrict 按行切分，必须匹配 ^71\d{7}$（默认）。
	ModeStrict Mode = "strict"
	// ModeDigits 按换行/逗号/空白切分，只保留数字，长度 1..15。
	ModeDigits Mode = "digits"
	// ModeRaw 按行切分 + trim，原样保留（粘贴什么就查什么）。
	ModeRaw Mode = "raw"
	// ModeIntl 用 libphonenumber 按默认地区解析，保留国内有效号码部分。
	ModeIntl Mode = "intl"
)

// DefaultRegion 是 intl 模式下未带国家码时使用的地区（ISO 3166-1 alpha-2）。
const DefaultRegion = "SO"

const maxDigits = 15

var (
	// ErrEmptyInput 表示 trim 后为空：批处理不会启动。
	ErrEmptyInput = errors.New("Please enter at least one MSISDN.")
	// ErrNoValidEntries 表示过滤后一个合法号码都没有：批处理不会启动。
	ErrNoValidEntries = errors.New("No valid MSISDNs found.")
)

// Options 控制解析策略；Region 只对 ModeIntl 生效。
type Options struct {
	Mode   Mode
	Region string
}

// Parsed 是解析结果：Valid 保持输入顺序，不去重（每条输入都要在导出中占一行）。
type Parsed struct {
	Mode    Mode
	Valid   []domain.Msisdn
	Invalid []string
}

// Warning 在存在被跳过的条目时返回给用户看的提示；否则返回空串。
func (p Parsed) Warning() string {
	n := len(p.Invalid)
	if n == 0 {
		return ""
	}
	switch p.Mode {
	case ModeStrict:
		return fmt.Sprintf("Skipped %d invalid number(s). Must start with \"71\" and be 9 digits.", n)
	case ModeDigits:
		return fmt.Sprintf("Skipped %d invalid number(s). Must contain 1-%d digits.", n, maxDigits)
	default:
		return fmt.Sprintf("Skipped %d invalid number(s).", n)
	}
}

// ParseMode 把配置/CLI 里的字符串转为 Mode；空串视为默认 strict。
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeStrict, nil
	case ModeStrict, ModeDigits, ModeRaw, ModeIntl:
		return m, nil
	default:
		return "", fmt.Errorf("input mode 只能是 strict|digits|raw|intl，实际是 %q", s)
	}
}

// Parse 把原始文本解析为有序的 MSISDN 列表。
//
// 约束：
// - trim 后为空：返回 ErrEmptyInput
// - 过滤后为空：返回 ErrNoValidEntries（Parsed.Invalid 仍然可用，便于提示）
// - 幂等：把 Valid 用 "\n" 拼回去再解析，得到相同结果
func Parse(raw string, opts Options) (Parsed, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeStrict
	}
	p := Parsed{Mode: mode}

	if strings.TrimSpace(raw) == "" {
		return p, ErrEmptyInput
	}

	switch mode {
	case ModeStrict:
		for _, line := range lines(raw) {
			if domain.IsStrictMsisdn(line) {
				p.Valid = append(p.Valid, domain.Msisdn(line))
			} else {
				p.Invalid = append(p.Invalid, line)
			}
		}
	case ModeDigits:
		for _, tok := range tokenSplitRE.Split(strings.TrimSpace(raw), -1) {
			if tok == "" {
				continue
			}
			d := onlyDigits(width.Narrow.String(tok))
			if len(d) == 0 || len(d) > maxDigits {
				p.Invalid = append(p.Invalid, tok)
				continue
			}
			p.Valid = append(p.Valid, domain.Msisdn(d))
		}
	case ModeRaw:
		for _, line := range lines(raw) {
			if m, ok := domain.ParseMsisdn(line); ok {
				p.Valid = append(p.Valid, m)
			}
		}
	case ModeIntl:
		region := strings.ToUpper(strings.TrimSpace(opts.Region))
		if region == "" {
			region = DefaultRegion
		}
		for _, line := range lines(raw) {
			n, err := phonenumbers.Parse(line, region)
			if err != nil {
				p.Invalid = append(p.Invalid, line)
				continue
			}
			nsn := phonenumbers.GetNationalSignificantNumber(n)
			if nsn == "" {
				p.Invalid = append(p.Invalid, line)
				continue
			}
			p.Valid = append(p.Valid, domain.Msisdn(nsn))
		}
	default:
		return p, fmt.Errorf("未知 input mode：%q", mode)
	}

	if len(p.Valid) == 0 {
		return p, ErrNoValidEntries
	}
	return p, nil
}

// Join 是 Parse 的逆操作（用于回显/幂等校验）。
func Join(ms []domain.Msisdn) string {
	parts := make([]string, 0, len(ms))
	for _, m := range ms {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, "\n")
}

var tokenSplitRE = regexp.MustCompile(`[\s,]+`)

// lines 按行切分、trim、丢弃空行。兼容 \r\n。
func lines(raw string) []string {
	parts := strings.Split(strings.TrimSpace(raw), "\n")
	out := make([]string, 0, len(parts))
	for _, l := range parts {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
