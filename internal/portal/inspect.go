package portal

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// State 是单次页面快照的分类结果。
type State int

const (
	Pending State = iota
	SawResult
	SawNotFound
)

func (s State) String() string {
	switch s {
	case SawResult:
		return "result"
	case SawNotFound:
		return "not_found"
	default:
		return "pending"
	}
}

// Observation 是 Inspect 的输出；Source 记录命中的规则（page/alert/result），便于排查门户改版。
type Observation struct {
	State  State
	Value  string
	Source string
}

// 不可见节点：与浏览器 innerText 的口径保持一致。
const invisible = `script, style, template, noscript, [hidden], [aria-hidden=true], [style*="display:none"], [style*="display: none"]`

// Inspect 对一次页面快照做纯函数分类，优先级：
//  1. 页面可见文本包含 NotFoundText => SawNotFound
//  2. Alert 区域包含 AlertNotFound 任一措辞 => SawNotFound
//  3. Result 字段非空 => SawResult
//  4. 其余 => Pending
func Inspect(html []byte, sel Selectors) (Observation, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return Observation{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Observation{}, fmt.Errorf("解析页面快照失败: %w", err)
	}
	doc.Find(invisible).Remove()

	if phrase := fold(sel.NotFoundText); phrase != "" {
		body := doc.Find("body")
		if body.Length() == 0 {
			body = doc.Selection
		}
		if strings.Contains(fold(body.Text()), phrase) {
			return Observation{State: SawNotFound, Source: "page"}, nil
		}
	}

	if strings.TrimSpace(sel.Alert) != "" {
		hit := false
		doc.Find(sel.Alert).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := fold(s.Text())
			for _, p := range sel.AlertNotFound {
				if p = fold(p); p != "" && strings.Contains(text, p) {
					hit = true
					return false
				}
			}
			return true
		})
		if hit {
			return Observation{State: SawNotFound, Source: "alert"}, nil
		}
	}

	if strings.TrimSpace(sel.Result) != "" {
		var value string
		doc.Find(sel.Result).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value = strings.TrimSpace(s.Text())
			return value == ""
		})
		if value != "" {
			return Observation{State: SawResult, Value: value, Source: "result"}, nil
		}
	}

	return Observation{State: Pending}, nil
}

// fold 折叠空白并转小写，用于大小写不敏感的措辞匹配。
func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ValidateSelectors 检查所有 CSS 选择器能否编译；goquery 对非法选择器只会静默返回空集合。
func ValidateSelectors(sel Selectors) error {
	fields := []struct{ name, css string }{
		{"home", sel.Home},
		{"mode_select", sel.ModeSelect},
		{"query", sel.Query},
		{"submit_button", sel.SubmitButton},
		{"result", sel.Result},
		{"alert", sel.Alert},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.css) == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(f.css); err != nil {
			return fmt.Errorf("选择器 %s 非法（%q）: %w", f.name, f.css, err)
		}
	}
	return nil
}
