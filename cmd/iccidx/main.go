package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/ICCIDX/internal/config"
	"github.com/John-Robertt/ICCIDX/internal/infra/logx"
	"github.com/John-Robertt/ICCIDX/internal/portal"
	"github.com/John-Robertt/ICCIDX/internal/portal/cdpportal"
	"github.com/John-Robertt/ICCIDX/internal/portal/rodportal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, osEnv(), os.Args[1:])
	stop()
	os.Exit(code)
}

// env 收拢进程级依赖（标准流、TTY 判定、driver 列表、时间），测试里整体替换。
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	stdinTTY  bool
	stdoutTTY bool
	stderrTTY bool

	cwd       string
	drivers   []portal.Driver
	now       func() time.Time
	newLogger func(logx.Options) (*zap.Logger, error)
}

func osEnv() env {
	cwd, _ := os.Getwd()
	return env{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdinTTY:  isTTY(os.Stdin),
		stdoutTTY: isTTY(os.Stdout),
		stderrTTY: isTTY(os.Stderr),
		cwd:       cwd,
		drivers:   []portal.Driver{rodportal.Driver{}, cdpportal.Driver{}},
		now:       time.Now,
		newLogger: logx.New,
	}
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// exitError 把错误与进程退出码绑在一起：
// 1 = 配置/运行失败或整批放弃，2 = 用法或输入校验错误。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: 2, err: err} }
func runFailure(err error) error { return &exitError{code: 1, err: err} }

func execute(ctx context.Context, e env, args []string) int {
	cmd := newRootCmd(&e)
	cmd.SetArgs(args)
	cmd.SetIn(e.stdin)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		fmt.Fprintln(e.stderr, ee.err)
		return ee.code
	}
	// cobra 自身的错误（未知参数、取值非法等）。
	fmt.Fprintf(e.stderr, "参数错误：%v\n\n", err)
	fmt.Fprint(e.stderr, cmd.UsageString())
	return 2
}

type rootFlags struct {
	configPath  string
	portal      string
	driver      string
	debuggerURL string
	mode        string
	inputFile   string
	outDir      string
	copy        bool
	preview     bool
	headless    bool
	noStrip     bool
	verbose     bool
}

func newRootCmd(e *env) *cobra.Command {
	var (
		f   rootFlags
		eff config.EffectiveConfig
		log *zap.Logger
	)

	cmd := &cobra.Command{
		Use:   "iccidx [msisdn...]",
		Short: "通过门户查询页面批量查询 MSISDN 对应的 ICCID",
		Long: `按顺序驱动门户的查询界面，逐条查询 MSISDN，导出 MSISDN\tICCID 文本文件。

输入来源（按顺序拼接）：位置参数、--input 文件（"-" 表示 stdin）、管道输入。
没有任何输入且 stdin 是终端时，弹出输入框。

stdout 非终端时只输出一个 JSON 报告；日志与进度写到 stderr。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			eff, err = config.LoadEffective(e.cwd, cliArgs(cmd, &f))
			if err != nil {
				return runFailure(err)
			}
			log, err = e.newLogger(logx.Options{
				Level: eff.LogLevel,
				JSON:  eff.LogJSON || !e.stderrTTY,
				Color: e.stderrTTY,
			})
			if err != nil {
				return runFailure(fmt.Errorf("初始化日志失败：%w", err))
			}
			if eff.ConfigPath != "" {
				log.Debug("已读取配置文件", zap.String("path", eff.ConfigPath))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd.Context(), e, eff, log, f.inputFile, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "配置文件路径（默认读取当前目录下的 "+config.FileName+"，可选）")
	fl.StringVar(&f.portal, "portal", "", "门户查询页 URL（覆盖 portal.url）")
	fl.StringVar(&f.driver, "driver", "", "浏览器驱动："+strings.Join(driverNames(e.drivers), "|"))
	fl.StringVar(&f.debuggerURL, "debugger-url", "", "附着到已登录浏览器的调试地址（覆盖 browser.debugger_url）")
	fl.StringVar(&f.mode, "mode", "", "输入解析模式：strict|digits|raw|intl")
	fl.StringVarP(&f.inputFile, "input", "i", "", `从文件读取 MSISDN（"-" 表示 stdin）`)
	fl.StringVarP(&f.outDir, "out", "o", "", "导出目录（覆盖 export.dir）")
	fl.BoolVar(&f.copy, "copy", true, "完成后复制结果到剪贴板")
	fl.BoolVar(&f.preview, "preview", true, "完成后在终端显示结果框")
	fl.BoolVar(&f.headless, "headless", true, "无头模式启动浏览器（附着模式下忽略）")
	fl.BoolVar(&f.noStrip, "no-strip-prefix", false, "保留 ICCID 的运营商前缀")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "输出 debug 日志")
	return cmd
}

// cliArgs 用 Changed 区分“显式指定”与“flag 默认值”，保证 --headless=false 能覆盖配置文件。
func cliArgs(cmd *cobra.Command, f *rootFlags) config.CLIArgs {
	fl := cmd.Flags()
	return config.CLIArgs{
		ConfigPath:     f.configPath,
		Portal:         f.portal,
		PortalSet:      fl.Changed("portal"),
		Driver:         f.driver,
		DriverSet:      fl.Changed("driver"),
		DebuggerURL:    f.debuggerURL,
		DebuggerURLSet: fl.Changed("debugger-url"),
		Mode:           f.mode,
		ModeSet:        fl.Changed("mode"),
		OutDir:         f.outDir,
		OutDirSet:      fl.Changed("out"),
		Copy:           f.copy,
		CopySet:        fl.Changed("copy"),
		Preview:        f.preview,
		PreviewSet:     fl.Changed("preview"),
		Headless:       f.headless,
		HeadlessSet:    fl.Changed("headless"),
		NoStripPrefix:  f.noStrip,
		Verbose:        f.verbose,
	}
}

func driverNames(ds []portal.Driver) []string {
	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, d.Name())
	}
	return names
}
