package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/John-Robertt/ICCIDX/internal/domain"
	"github.com/John-Robertt/ICCIDX/internal/infra/logx"
	"github.com/John-Robertt/ICCIDX/internal/portal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubPortal 按 MSISDN 返回固定结果；home 为 false 时模拟首页控件缺失。
type stubPortal struct {
	known  map[string]string
	noHome bool
	query  string
	closed bool
}

func (p *stubPortal) GoHome(context.Context) error {
	if p.noHome {
		return &portal.MissingControlError{Control: "home", Selector: "img.logoImg"}
	}
	return nil
}
func (p *stubPortal) SelectMode(context.Context) error { return nil }
func (p *stubPortal) SetQuery(_ context.Context, m string) error {
	p.query = m
	return nil
}
func (p *stubPortal) Submit(context.Context) error { return nil }
func (p *stubPortal) Observe(context.Context) (portal.Observation, error) {
	return portal.Observation{State: portal.Pending}, nil
}
func (p *stubPortal) PollResult(context.Context, time.Time, portal.Observation) (portal.Result, error) {
	if v, ok := p.known[p.query]; ok {
		return portal.Result{Kind: portal.Found, Value: v, Probes: 1}, nil
	}
	return portal.Result{Kind: portal.NotFound, Probes: 1}, nil
}
func (p *stubPortal) Close() error {
	p.closed = true
	return nil
}

type stubDriver struct {
	p    *stubPortal
	opts portal.Options
}

func (d *stubDriver) Name() string { return "rod" }
func (d *stubDriver) Open(_ context.Context, opts portal.Options) (portal.Portal, error) {
	d.opts = opts
	return d.p, nil
}

const testConfig = `portal:
  url: http://portal.test/search
timing:
  home_settle: 0
  mode_settle: 0
  query_settle: 0
  submit_settle: 0
  poll_interval: 1ms
  poll_timeout: 10ms
  cooldown: 0
export:
  clipboard: false
  preview: false
`

type harness struct {
	env    env
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	drv    *stubDriver
	cwd    string
}

func newHarness(t *testing.T, cfg string, stdin string) *harness {
	t.Helper()
	cwd := t.TempDir()
	if cfg != "" {
		if err := os.WriteFile(filepath.Join(cwd, "iccidx.yaml"), []byte(cfg), 0o644); err != nil {
			t.Fatalf("写入配置失败：%v", err)
		}
	}
	h := &harness{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		drv: &stubDriver{p: &stubPortal{known: map[string]string{
			"717814328": "8925263790000111111",
		}}},
		cwd: cwd,
	}
	h.env = env{
		stdin:   strings.NewReader(stdin),
		stdout:  h.stdout,
		stderr:  h.stderr,
		cwd:     cwd,
		drivers: []portal.Driver{h.drv},
		now:     func() time.Time { return time.UnixMilli(1700000000000) },
		newLogger: func(o logx.Options) (*zap.Logger, error) {
			return logx.NewWriter(h.stderr, o)
		},
	}
	return h
}

func (h *harness) run(args ...string) int {
	return execute(context.Background(), h.env, args)
}

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	h := newHarness(t, testConfig, "")
	code := h.run("717814328", "717519988")
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, h.stderr.String())
	}

	var rr domain.RunReport
	if err := json.Unmarshal(h.stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, h.stdout.String())
	}
	if rr.Summary.Total != 2 || rr.Summary.Found != 1 || rr.Summary.NotFound != 1 {
		t.Fatalf("summary=%+v", rr.Summary)
	}
	if rr.Items[0].Iccid != "111111" || rr.Items[0].RawIccid != "8925263790000111111" {
		t.Fatalf("item0=%+v", rr.Items[0])
	}
	if !strings.Contains(h.stderr.String(), "完成：total=2 found=1") {
		t.Fatalf("stderr 缺少完成摘要：%q", h.stderr.String())
	}
	if !h.drv.p.closed {
		t.Fatalf("浏览器会话应被关闭")
	}

	b, err := os.ReadFile(filepath.Join(h.cwd, "iccid_results_1700000000000.txt"))
	if err != nil {
		t.Fatalf("导出文件不存在：%v", err)
	}
	if got, want := string(b), "MSISDN\tICCID\n717814328\t111111\n717519988\t"; got != want {
		t.Fatalf("导出内容=%q want=%q", got, want)
	}
}

func TestCLI_ReadsPipedStdin(t *testing.T) {
	h := newHarness(t, testConfig, "717814328\nnope\n")
	if code := h.run(); code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, h.stderr.String())
	}
	var rr domain.RunReport
	if err := json.Unmarshal(h.stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是 JSON：%v", err)
	}
	if rr.Summary.Total != 1 {
		t.Fatalf("无效条目应被跳过：%+v", rr.Summary)
	}
	if !strings.Contains(h.stderr.String(), "Skipped 1 invalid number(s)") {
		t.Fatalf("stderr 应包含跳过提示：%q", h.stderr.String())
	}
}

func TestCLI_InputErrorsExit2(t *testing.T) {
	cases := map[string]struct {
		stdin string
		args  []string
		want  string
	}{
		"empty":    {stdin: "  \n", want: "Please enter at least one MSISDN."},
		"no valid": {args: []string{"12345"}, want: "No valid MSISDNs found."},
		"bad flag": {args: []string{"--nope"}, want: "参数错误"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, testConfig, tc.stdin)
			if code := h.run(tc.args...); code != 2 {
				t.Fatalf("exit=%d want 2, stderr=%s", code, h.stderr.String())
			}
			if !strings.Contains(h.stderr.String(), tc.want) {
				t.Fatalf("stderr=%q 应包含 %q", h.stderr.String(), tc.want)
			}
			if h.stdout.Len() != 0 {
				t.Fatalf("输入错误时 stdout 应为空：%q", h.stdout.String())
			}
		})
	}
}

func TestCLI_ConfigErrorsExit1(t *testing.T) {
	h := newHarness(t, "", "")
	if code := h.run("717814328"); code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
	if !strings.Contains(h.stderr.String(), "config_missing_portal") {
		t.Fatalf("stderr=%q", h.stderr.String())
	}

	h = newHarness(t, testConfig, "")
	if code := h.run("--config", "missing.yaml", "717814328"); code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
	if !strings.Contains(h.stderr.String(), "config_not_found") {
		t.Fatalf("stderr=%q", h.stderr.String())
	}
}

func TestCLI_AbortOnFirstHomeExit1(t *testing.T) {
	h := newHarness(t, testConfig, "")
	h.drv.p.noHome = true
	if code := h.run("717814328", "717519988"); code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
	var rr domain.RunReport
	if err := json.Unmarshal(h.stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是 JSON：%v", err)
	}
	if !rr.Aborted || rr.AbortReason != domain.AbortHomeUnavailable || len(rr.Items) != 0 {
		t.Fatalf("report=%+v", rr)
	}
	matches, _ := filepath.Glob(filepath.Join(h.cwd, "iccid_results_*"))
	if len(matches) != 0 {
		t.Fatalf("放弃的批次不应导出：%v", matches)
	}
}

func TestCLI_FlagsOverrideConfig(t *testing.T) {
	h := newHarness(t, testConfig+"browser:\n  headless: true\n", "")
	out := filepath.Join(h.cwd, "exports")
	code := h.run("--headless=false", "--no-strip-prefix", "--out", out, "--portal", "http://other.test/", "717814328")
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, h.stderr.String())
	}
	if h.drv.opts.Headless {
		t.Fatalf("--headless=false 应覆盖配置文件")
	}
	if h.drv.opts.URL != "http://other.test/" {
		t.Fatalf("url=%q", h.drv.opts.URL)
	}
	b, err := os.ReadFile(filepath.Join(out, "iccid_results_1700000000000.txt"))
	if err != nil {
		t.Fatalf("导出文件应写到 --out：%v", err)
	}
	if !strings.Contains(string(b), "717814328\t8925263790000111111") {
		t.Fatalf("--no-strip-prefix 应保留前缀：%q", b)
	}
}

func TestCLI_InvalidSelectorIsConfigError(t *testing.T) {
	cfg := strings.Replace(testConfig, "  url: http://portal.test/search\n",
		"  url: http://portal.test/search\n  selectors:\n    result: \"div[\"\n", 1)
	h := newHarness(t, cfg, "")
	if code := h.run("717814328"); code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
	if !strings.Contains(h.stderr.String(), "config_invalid") {
		t.Fatalf("stderr=%q", h.stderr.String())
	}
	if h.drv.opts.URL != "" {
		t.Fatalf("选择器非法时不应打开浏览器")
	}
}

func TestPortalOptions_MapsSelectors(t *testing.T) {
	h := newHarness(t, testConfig, "")
	if code := h.run("717814328"); code != 0 {
		t.Fatalf("exit=%d", code)
	}
	o := h.drv.opts
	if o.PollInterval != time.Millisecond {
		t.Fatalf("poll interval=%s", o.PollInterval)
	}
	if o.Selectors.Result != "" {
		t.Fatalf("未配置的 selector 应保持空串（由 portal 补默认值）：%q", o.Selectors.Result)
	}
	if o.Logger == nil {
		t.Fatalf("portal logger 未注入")
	}
}
