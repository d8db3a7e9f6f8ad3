// Package rodportal 用 go-rod 驱动门户页面（默认 driver）。
package rodportal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/John-Robertt/ICCIDX/internal/portal"
)

const Name = "rod"

// Driver 实现 portal.Driver。
type Driver struct{}

func (Driver) Name() string { return Name }

// Open 附着到 DebuggerURL 指向的浏览器（操作员已登录），或自行启动一个 Chrome。
func (Driver) Open(ctx context.Context, opts portal.Options) (portal.Portal, error) {
	opts = opts.Normalize()
	if opts.URL == "" && opts.DebuggerURL == "" {
		return nil, errors.New("rod: 需要 portal.url 或 browser.debugger_url")
	}
	log := opts.Logger.With(zap.String("driver", Name))

	p := &Portal{opts: opts, sel: opts.Selectors, log: log}

	controlURL := opts.DebuggerURL
	if controlURL != "" {
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, &portal.StepError{Driver: Name, Step: "attach", Err: err}
		}
		controlURL = u
	} else {
		l := launcher.New().Context(ctx).Headless(opts.Headless)
		if strings.TrimSpace(opts.Bin) != "" {
			l = l.Bin(opts.Bin)
		}
		for _, f := range opts.Flags {
			name, value, hasValue := portal.SplitFlag(f)
			if name == "" {
				continue
			}
			if hasValue {
				l = l.Set(flags.Flag(name), value)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Launch()
		if err != nil {
			return nil, &portal.StepError{Driver: Name, Step: "launch", Err: err}
		}
		p.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		p.cleanupLauncher()
		return nil, &portal.StepError{Driver: Name, Step: "connect", Err: err}
	}
	p.browser = browser

	page, created, err := p.openPage(ctx)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.page = page
	p.ownPage = created
	log.Debug("门户会话已打开",
		zap.Bool("attached", p.launcher == nil),
		zap.Bool("new_page", created),
		zap.String("url", opts.URL),
	)
	return p, nil
}

// Portal 是单个标签页上的门户会话；不支持并发调用。
type Portal struct {
	opts     portal.Options
	sel      portal.Selectors
	log      *zap.Logger
	launcher *launcher.Launcher // nil 表示附着模式
	browser  *rod.Browser
	page     *rod.Page
	ownPage  bool
}

func (p *Portal) openPage(ctx context.Context) (*rod.Page, bool, error) {
	if p.launcher == nil {
		pages, err := p.browser.Pages()
		if err != nil {
			return nil, false, &portal.StepError{Driver: Name, Step: "pages", Err: err}
		}
		for _, pg := range pages {
			info, err := pg.Info()
			if err != nil {
				continue
			}
			if p.opts.URL == "" || strings.HasPrefix(info.URL, p.opts.URL) {
				return pg, false, nil
			}
		}
		if p.opts.URL == "" {
			return nil, false, errors.New("rod: 已附着的浏览器中没有可用页面，请配置 portal.url")
		}
	}

	var (
		page *rod.Page
		err  error
	)
	if p.opts.Stealth {
		page, err = stealth.Page(p.browser)
	} else {
		page, err = p.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, false, &portal.StepError{Driver: Name, Step: "new_page", Err: err}
	}
	nav := page.Context(ctx).Timeout(p.opts.NavTimeout)
	if err := nav.Navigate(p.opts.URL); err != nil {
		_ = page.Close()
		return nil, false, &portal.StepError{Driver: Name, Step: "navigate", Err: err}
	}
	if err := nav.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, false, &portal.StepError{Driver: Name, Step: "wait_load", Err: err}
	}
	return page, true, nil
}

// find 在 ProbeTimeout 内探测控件；超时视为控件缺失。
func (p *Portal) find(ctx context.Context, control, css string) (*rod.Element, error) {
	el, err := p.page.Context(ctx).Timeout(p.opts.ProbeTimeout).Element(css)
	if err == nil {
		return el.Context(ctx), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &portal.MissingControlError{Control: control, Selector: css}
	}
	return nil, &portal.StepError{Driver: Name, Step: control, Err: err}
}

// click 直接派发 DOM click，与门户脚本的行为一致（不要求元素可见或未被遮挡）。
func click(el *rod.Element) error {
	_, err := el.Eval(`() => this.click()`)
	return err
}

func (p *Portal) step(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.opts.NavTimeout)
}

func (p *Portal) GoHome(ctx context.Context) error {
	sctx, cancel := p.step(ctx)
	defer cancel()
	el, err := p.find(sctx, "home", p.sel.Home)
	if err != nil {
		return err
	}
	if err := click(el); err != nil {
		return &portal.StepError{Driver: Name, Step: "home", Err: err}
	}
	return nil
}

func (p *Portal) SelectMode(ctx context.Context) error {
	sctx, cancel := p.step(ctx)
	defer cancel()
	el, err := p.find(sctx, "mode", p.sel.ModeSelect)
	if err != nil {
		return err
	}
	options, err := el.Elements("option")
	if err != nil {
		return &portal.StepError{Driver: Name, Step: "mode", Err: err}
	}
	label := ""
	for _, opt := range options {
		text, err := opt.Text()
		if err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(p.sel.ModeOption)) {
			label = strings.TrimSpace(text)
			break
		}
	}
	if label == "" {
		return &portal.MissingControlError{Control: "mode_option", Selector: fmt.Sprintf("%s option[%s]", p.sel.ModeSelect, p.sel.ModeOption)}
	}
	if err := el.Select([]string{label}, true, rod.SelectorTypeText); err != nil {
		return &portal.StepError{Driver: Name, Step: "mode", Err: err}
	}
	return nil
}

func (p *Portal) SetQuery(ctx context.Context, msisdn string) error {
	sctx, cancel := p.step(ctx)
	defer cancel()
	el, err := p.find(sctx, "query", p.sel.Query)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return &portal.StepError{Driver: Name, Step: "query", Err: err}
	}
	if err := el.Input(msisdn); err != nil {
		return &portal.StepError{Driver: Name, Step: "query", Err: err}
	}
	return nil
}

func (p *Portal) Submit(ctx context.Context) error {
	sctx, cancel := p.step(ctx)
	defer cancel()
	buttons, err := p.page.Context(sctx).Elements(p.sel.SubmitButton)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &portal.StepError{Driver: Name, Step: "submit", Err: err}
	}
	want := strings.ToLower(strings.TrimSpace(p.sel.SubmitLabel))
	for _, b := range buttons {
		text, err := b.Text()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), want) {
			if err := click(b); err != nil {
				return &portal.StepError{Driver: Name, Step: "submit", Err: err}
			}
			return nil
		}
	}
	return &portal.MissingControlError{Control: "submit", Selector: p.sel.SubmitButton}
}

func (p *Portal) Observe(ctx context.Context) (portal.Observation, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
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

// Close 只清理自己创建的资源：附着模式下不关闭操作员的浏览器。
func (p *Portal) Close() error {
	var err error
	if p.ownPage && p.launcher == nil && p.page != nil {
		err = p.page.Close()
	}
	if p.launcher != nil && p.browser != nil {
		err = errors.Join(err, p.browser.Close())
	}
	p.cleanupLauncher()
	return err
}

func (p *Portal) cleanupLauncher() {
	if p.launcher == nil {
		return
	}
	p.launcher.Kill()
	p.launcher.Cleanup()
	p.launcher = nil
}
