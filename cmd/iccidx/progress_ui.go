package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/ICCIDX/internal/app/lookup"
	"github.com/John-Robertt/ICCIDX/internal/config"
	"github.com/John-Robertt/ICCIDX/internal/domain"
)

var _ lookup.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的逐条进度输出。
//
// - 所有过程信息写到 stderr，不污染 stdout 的 JSON 输出契约
// - 事件驱动：lookup 层只发事件，CLI 决定如何展示
// - keepalive：单条查询长时间没有结果（轮询等待）时定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total  int
	done   int
	found  int
	empty  int
	active domain.Msisdn

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
	aborted       bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, total int) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.startedAt = now
	p.total = total

	target := eff.PortalURL
	if eff.DebuggerURL != "" {
		target = "attach " + eff.DebuggerURL
	}
	fmt.Fprintf(p.w, "[%s] ICCIDX lookup: %d 条\n", now.Format("15:04:05"), total)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  portal: %s\n", truncate(target, 120))
	fmt.Fprintf(p.w, "  driver: %s (headless=%s stealth=%s)\n", eff.Driver, onOff(eff.Headless), onOff(eff.Stealth))
	fmt.Fprintf(p.w, "  input: %s\n", eff.InputMode)
	fmt.Fprintf(p.w, "  strip_prefix: %s\n", onOff(eff.StripPrefix))
	fmt.Fprintf(p.w, "  poll: %s / %s, cooldown %s\n",
		eff.Timing.PollInterval, eff.Timing.PollTimeout, eff.Timing.Cooldown,
	)
	fmt.Fprintf(p.w, "  export: %s\n\n", eff.ExportDir)
	p.lastPrinted = time.Now()

	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnItemStart(idx, total int, msisdn domain.Msisdn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = msisdn
}

func (p *progressUI) OnItemDone(idx, total int, item domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx + 1
	p.total = total
	p.active = ""
	if item.Iccid != "" {
		p.found++
	} else {
		p.empty++
	}

	switch item.Outcome {
	case domain.OutcomeFound:
		fmt.Fprintf(p.w, "[%d/%d] %s OK %s (%s)\n", p.done, total, item.Msisdn, item.Iccid, formatShortDuration(dur))
	case domain.OutcomeNotFound:
		fmt.Fprintf(p.w, "[%d/%d] %s NOT FOUND (%s)\n", p.done, total, item.Msisdn, formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			p.done, total, item.Msisdn, strings.ToUpper(string(item.Outcome)),
			item.ErrorCode, truncate(item.ErrorMsg, 160), formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopLocked()
	}
}

func (p *progressUI) OnAbort(reason string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		fmt.Fprintf(p.w, "已放弃：%s: %v\n", reason, err)
	} else {
		fmt.Fprintf(p.w, "已放弃：%s\n", reason)
	}
	p.lastPrinted = time.Now()
	p.aborted = true
	p.stopLocked()
}

// OnProgress 输出一行 keepalive；整批已结束（或已放弃）后的迟到调用直接丢弃。
func (p *progressUI) OnProgress(done, total int, active domain.Msisdn, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted || (p.total > 0 && p.done >= p.total) {
		return
	}
	p.printProgressLocked(done, total, active, elapsed)
}

// Stop 停止 keepalive ticker；可重复调用。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *progressUI) stopLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) printProgressLocked(done, total int, active domain.Msisdn, elapsed time.Duration) {
	a := string(active)
	if a == "" {
		a = "-"
	}
	fmt.Fprintf(p.w, "进度: done=%d/%d found=%d empty=%d active=%s elapsed=%s\n",
		done, total, p.found, p.empty, a, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	stop := make(chan struct{})
	p.stopCh = stop
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				due := p.total > 0 && p.done < p.total && time.Since(p.lastPrinted) > threshold
				done, total, active, elapsed := p.done, p.total, p.active, time.Since(p.startedAt)
				p.mu.Unlock()
				if due {
					p.OnProgress(done, total, active, elapsed)
				}
			case <-stop:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// truncate 按字符（rune）截断，避免把中文错误信息切成半个字符。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
