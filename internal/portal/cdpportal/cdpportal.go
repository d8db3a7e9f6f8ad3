// Package cdpportal 是基于 chromedp 的备选 driver：每个步骤是一段与门户脚本等价的 JS。
package cdpportal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/John-Robertt/ICCIDX/internal/portal"
)

const Name = "chromedp"

type Driver struct{}

func (Driver) Name() string { return Name }

// Open 在已登录浏览器（DebuggerURL）或新启动的 Chrome 中打开一个标签页并导航到门户。
// chromedp 无法安全复用操作员已有的标签页，因此两种模式都要求 URL。
func (Driver) Open(ctx context.Context, opts portal.Options) (portal.Portal, error) {
	opts = opts.Normalize()
	if opts.URL == "" {
		return nil, errors.New("chromedp: 需要 portal.url")
	}
	log := opts.Logger.With(zap.String("driver", Name))

	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if opts.DebuggerURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.DebuggerURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, execOptions(opts)...)
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Warnf),
	)
	p := &Portal{opts: opts, sel: opts.Selectors, log: log, tab: tabCtx, cancel: func() {
		cancelTab()
		cancelAlloc()
	}}

	// 第一次 Run 决定浏览器/标签页的生命周期，不能带超时。
	if err := chromedp.Run(tabCtx); err != nil {
		p.cancel()
		return nil, &portal.StepError{Driver: Name, Step: "connect", Err: err}
	}
	navCtx, cancel := context.WithTimeout(tabCtx, opts.NavTimeout)
	defer cancel()
	actions := []chromedp.Action{
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if opts.DebuggerURL != "" || !opts.Headless {
		// 操作员需要看到正在被驱动的标签页
		actions = append(actions, page.BringToFront())
	}
	if err := chromedp.Run(navCtx, actions...); err != nil {
		p.cancel()
		return nil, &portal.StepError{Driver: Name, Step: "navigate", Err: err}
	}
	log.Debug("门户会话已打开", zap.Bool("attached", opts.DebuggerURL != ""), zap.String("url", opts.URL))
	return p, nil
}

func execOptions(opts portal.Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out, chromedp.Flag("headless", opts.Headless))
	if strings.TrimSpace(opts.Bin) != "" {
		out = append(out, chromedp.ExecPath(opts.Bin))
	}
	for _, f := range opts.Flags {
		name, value, hasValue := portal.SplitFlag(f)
		if name == "" {
			continue
		}
		if hasValue {
			out = append(out, chromedp.Flag(name, value))
		} else {
			out = append(out, chromedp.Flag(name, true))
		}
	}
	return out
}

type Portal struct {
	opts   portal.Options
	sel    portal.Selectors
	log    *zap.Logger
	tab    context.Context
	cancel context.CancelFunc
}

// run 在标签页 context 上执行动作；调用方 ctx 结束时同步取消。
func (p *Portal) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rctx, cancel := context.WithTimeout(p.tab, p.opts.NavTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Portal) evalBool(ctx context.Context, step, js string) (bool, error) {
	var ok bool
	if err := p.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, &portal.StepError{Driver: Name, Step: step, Err: err}
	}
	return ok, nil
}

func (p *Portal) GoHome(ctx context.Context) error {
	ok, err := p.evalBool(ctx, "home", clickJS(p.sel.Home))
	if err != nil {
		return err
	}
	if !ok {
		return &portal.MissingControlError{Control: "home", Selector: p.sel.Home}
	}
	return nil
}

func (p *Portal) SelectMode(ctx context.Context) error {
	var status string
	if err := p.run(ctx, chromedp.Evaluate(selectModeJS(p.sel.ModeSelect, p.sel.ModeOption), &status)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &portal.StepError{Driver: Name, Step: "mode", Err: err}
	}
	switch status {
	case "ok":
		return nil
	case "no_option":
		return &portal.MissingControlError{Control: "mode_option", Selector: fmt.Sprintf("%s option[%s]", p.sel.ModeSelect, p.sel.ModeOption)}
	default:
		return &portal.MissingControlError{Control: "mode", Selector: p.sel.ModeSelect}
	}
}

func (p *Portal) SetQuery(ctx context.Context, msisdn string) error {
	ok, err := p.evalBool(ctx, "query", setValueJS(p.sel.Query, msisdn))
	if err != nil {
		return err
	}
	if !ok {
		return &portal.MissingControlError{Control: "query", Selector: p.sel.Query}
	}
	return nil
}

func (p *Portal) Submit(ctx context.Context) error {
	ok, err := p.evalBool(ctx, "submit", clickLabeledJS(p.sel.SubmitButton, p.sel.SubmitLabel))
	if err != nil {
		return err
	}
	if !ok {
		return &portal.MissingControlError{Control: "submit", Selector: p.sel.SubmitButton}
	}
	return nil
}

func (p *Portal) Observe(ctx context.Context) (portal.Observation, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return portal.Observation{}, err
	}
	return portal.Inspect([]byte(html), p.sel)
}

func (p *Portal) PollResult(ctx context.Context, deadline time.Time, stale portal.Observation) (portal.Result, error) {
	res, err := portal.Poll(ctx, p.opts.Clock, p.opts.PollInterval, deadline, portal.Fresh(stale, p.Observe))
	if res.LastErr != nil {
		p.log.Debug("页面快照失败", zap.Int("probes", res.Probes), zap.Error(res.LastErr))
	}
	return res, err
}

// Close 关闭本会话打开的标签页；附着模式下浏览器本身保持运行。
func (p *Portal) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// jsString 把任意字符串编码成 JS 字符串字面量。
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func clickJS(css string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.click();
  return true;
})()`, jsString(css))
}

func selectModeJS(css, label string) string {
	return fmt.Sprintf(`(() => {
  const sel = document.querySelector(%s);
  if (!sel) return "no_select";
  const want = %s.trim().toLowerCase();
  const opt = Array.from(sel.options || []).find(o => (o.text || "").trim().toLowerCase() === want);
  if (!opt) return "no_option";
  sel.value = opt.value;
  sel.dispatchEvent(new Event("change", { bubbles: true }));
  return "ok";
})()`, jsString(css), jsString(label))
}

func setValueJS(css, value string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.value = %s;
  el.dispatchEvent(new Event("input", { bubbles: true }));
  return true;
})()`, jsString(css), jsString(value))
}

func clickLabeledJS(css, label string) string {
	return fmt.Sprintf(`(() => {
  const want = %s.trim().toLowerCase();
  const btn = Array.from(document.querySelectorAll(%s))
    .find(b => (b.innerText || b.textContent || "").toLowerCase().includes(want));
  if (!btn) return false;
  btn.click();
  return true;
})()`, jsString(label), jsString(css))
}
