package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/ICCIDX/internal/app/lookup"
	"github.com/John-Robertt/ICCIDX/internal/config"
	"github.com/John-Robertt/ICCIDX/internal/domain"
	"github.com/John-Robertt/ICCIDX/internal/export"
	"github.com/John-Robertt/ICCIDX/internal/infra/metrics"
	"github.com/John-Robertt/ICCIDX/internal/input"
	"github.com/John-Robertt/ICCIDX/internal/portal"
	"github.com/John-Robertt/ICCIDX/internal/tui"
)

func runLookup(ctx context.Context, e *env, eff config.EffectiveConfig, log *zap.Logger, inputFile string, args []string) error {
	mode, err := input.ParseMode(eff.InputMode)
	if err != nil {
		return usageError(err)
	}
	parsed, ok, err := collect(ctx, e, input.Options{Mode: mode, Region: eff.Region}, inputFile, args)
	if err != nil {
		return err
	}
	if !ok {
		log.Info("输入已取消，未开始查询")
		return nil
	}
	if w := parsed.Warning(); w != "" {
		log.Warn(w, zap.Strings("invalid", parsed.Invalid))
	}

	rr, err := lookupBatch(ctx, e, eff, log, parsed.Valid)
	if err != nil {
		return err
	}
	if rr.Aborted {
		emitReport(e, rr)
		return runFailure(fmt.Errorf("批量查询已放弃：%s", rr.AbortReason))
	}

	text := export.Render(rr.Results(), export.Options{CopyBlock: eff.CopyBlock})
	path, err := export.WriteFile(eff.ExportDir, text, e.now())
	if err != nil {
		emitReport(e, rr)
		return runFailure(err)
	}
	log.Info("结果已导出", zap.String("file", path))

	// 复制与预览都只是便利出口，失败不影响退出码。
	if eff.Clipboard {
		method := export.Copy(text, terminal(e))
		log.Info("结果已复制", zap.String("method", string(method)))
	}
	if eff.Preview && e.stdinTTY && e.stderrTTY {
		preview(ctx, e, eff, log, rr, text)
	}

	emitReport(e, rr)
	if e.stderrTTY {
		fmt.Fprintf(e.stderr, "out: %s\n", path)
	}
	return nil
}

// collect 汇总非交互来源；都没有且 stdin 是终端时弹出输入框。
func collect(ctx context.Context, e *env, opts input.Options, inputFile string, args []string) (input.Parsed, bool, error) {
	src := input.Sources{
		Args:  args,
		File:  inputFile,
		Stdin: e.stdin,
		// 给了参数或文件时不再读管道，避免在空的非终端 stdin 上阻塞。
		ReadStdin: !e.stdinTTY && len(args) == 0 && strings.TrimSpace(inputFile) == "",
	}
	if src.Empty() {
		parsed, ok, err := tui.Collect(ctx, e.stdin, e.stderr, opts)
		if err != nil {
			return input.Parsed{}, false, runFailure(err)
		}
		return parsed, ok, nil
	}

	raw, err := input.Read(src)
	if err != nil {
		return input.Parsed{}, false, usageError(err)
	}
	parsed, err := input.Parse(raw, opts)
	if err != nil {
		if errors.Is(err, input.ErrNoValidEntries) {
			if w := parsed.Warning(); w != "" {
				err = fmt.Errorf("%w %s", err, w)
			}
		}
		return input.Parsed{}, false, usageError(err)
	}
	return parsed, true, nil
}

// lookupBatch 打开门户会话、跑完整批并在导出之前关闭浏览器。
func lookupBatch(ctx context.Context, e *env, eff config.EffectiveConfig, log *zap.Logger, entries []domain.Msisdn) (domain.RunReport, error) {
	reg, err := portal.NewRegistry(e.drivers...)
	if err != nil {
		return domain.RunReport{}, runFailure(fmt.Errorf("初始化 driver registry 失败：%w", err))
	}
	drv, ok := reg.Get(eff.Driver)
	if !ok {
		return domain.RunReport{}, runFailure(fmt.Errorf("未知 driver %q（可选：%s）", eff.Driver, strings.Join(reg.Names(), ", ")))
	}

	opts := portalOptions(eff, log)
	if err := portal.ValidateSelectors(opts.Selectors.WithDefaults()); err != nil {
		return domain.RunReport{}, runFailure(&config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigPath, Err: err})
	}

	p, err := drv.Open(ctx, opts)
	if err != nil {
		return domain.RunReport{}, runFailure(fmt.Errorf("打开门户失败（driver=%s）：%w", drv.Name(), err))
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("关闭浏览器失败", zap.Error(err))
		}
	}()

	rec := metrics.New(drv.Name())
	var obs lookup.Observer
	if e.stderrTTY {
		ui := newProgressUI(e.stderr)
		defer ui.Stop()
		obs = ui
	}

	rr := lookup.ExecuteWithObserver(ctx, eff, p, entries, obs,
		lookup.WithLogger(log),
		lookup.WithMetrics(rec),
	)

	if eff.MetricsTextfile != "" {
		if err := rec.WriteTextfile(eff.MetricsTextfile); err != nil {
			log.Warn("写入 metrics 文件失败", zap.String("path", eff.MetricsTextfile), zap.Error(err))
		}
	}
	return rr, nil
}

func portalOptions(eff config.EffectiveConfig, log *zap.Logger) portal.Options {
	s := eff.Selectors
	return portal.Options{
		URL:          eff.PortalURL,
		DebuggerURL:  eff.DebuggerURL,
		Bin:          eff.Bin,
		Headless:     eff.Headless,
		Stealth:      eff.Stealth,
		Flags:        eff.Flags,
		NavTimeout:   eff.NavTimeout,
		PollInterval: eff.Timing.PollInterval,
		Selectors: portal.Selectors{
			Home:          s.Home,
			ModeSelect:    s.ModeSelect,
			ModeOption:    s.ModeOption,
			Query:         s.Query,
			SubmitButton:  s.SubmitButton,
			SubmitLabel:   s.SubmitLabel,
			Result:        s.Result,
			Alert:         s.Alert,
			NotFoundText:  s.NotFoundText,
			AlertNotFound: s.AlertNotFound,
		},
		Logger: log.Named("portal"),
	}
}

func preview(ctx context.Context, e *env, eff config.EffectiveConfig, log *zap.Logger, rr domain.RunReport, text string) {
	title := fmt.Sprintf("Results: %d found / %d total", rr.Summary.Found, rr.Summary.Total)
	written, err := tui.Preview(ctx, e.stdin, e.stderr, title, text, tui.Actions{
		Copy: func(s string) export.Method { return export.Copy(s, e.stderr) },
		Download: func(s string) (string, error) {
			return export.WriteFile(eff.ExportDir, s, e.now())
		},
	})
	if err != nil {
		log.Warn("结果框异常退出", zap.Error(err))
	}
	for _, p := range written {
		log.Info("结果已另存", zap.String("file", p))
	}
}

// terminal 返回可以写 OSC 52 的终端；stderr 被重定向时不写控制序列。
func terminal(e *env) io.Writer {
	if e.stderrTTY {
		return e.stderr
	}
	return nil
}

func summaryLine(rr domain.RunReport) string {
	if rr.Aborted {
		return fmt.Sprintf("已放弃：%s", rr.AbortReason)
	}
	s := rr.Summary
	return fmt.Sprintf("完成：total=%d found=%d not_found=%d timeout=%d missing_control=%d failed=%d canceled=%d",
		s.Total, s.Found, s.NotFound, s.Timeout, s.MissingControl, s.Failed, s.Canceled,
	)
}

func emitReport(e *env, rr domain.RunReport) {
	if e.stdoutTTY {
		fmt.Fprintln(e.stdout, summaryLine(rr))
		for _, it := range rr.Items {
			if it.ErrorCode == "" {
				continue
			}
			fmt.Fprintf(e.stderr, "%s %s: %s\n", it.Msisdn, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	_ = json.NewEncoder(e.stdout).Encode(rr)
	fmt.Fprintln(e.stderr, summaryLine(rr))
}
