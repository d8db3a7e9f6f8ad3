package lookup

import (
	"context"
	"sync"
	"time"

	"github.com/John-Robertt/ICCIDX/internal/config"
	"github.com/John-Robertt/ICCIDX/internal/domain"
	"github.com/John-Robertt/ICCIDX/internal/portal"
)

// step 描述某一条号码在假门户上的表现。
type step struct {
	home, mode, query, submit, poll error
	result                          portal.Result
	// page 是提交前页面上的观察结果（Observe 的返回值）。
	page portal.Observation
	// onSubmit 在 Submit 时回调（用于模拟中途取消）。
	onSubmit func()
}

// fakePortal 按 GoHome 调用次数推进“当前条目”，并记录所有调用。
type fakePortal struct {
	mu        sync.Mutex
	steps     []step
	cur       int
	calls     []string
	deadlines []time.Time
	stales    []portal.Observation
	closed    bool
}

func newFakePortal(steps ...step) *fakePortal {
	return &fakePortal{steps: steps, cur: -1}
}

func (f *fakePortal) at() step {
	if f.cur < 0 || f.cur >= len(f.steps) {
		return step{}
	}
	return f.steps[f.cur]
}

func (f *fakePortal) GoHome(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur++
	f.calls = append(f.calls, "home")
	return f.at().home
}

func (f *fakePortal) SelectMode(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "mode")
	return f.at().mode
}

func (f *fakePortal) SetQuery(ctx context.Context, msisdn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "query:"+msisdn)
	return f.at().query
}

func (f *fakePortal) Submit(ctx context.Context) error {
	f.mu.Lock()
	s := f.at()
	f.calls = append(f.calls, "submit")
	f.mu.Unlock()
	if s.onSubmit != nil {
		s.onSubmit()
	}
	return s.submit
}

func (f *fakePortal) Observe(ctx context.Context) (portal.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "observe")
	return f.at().page, nil
}

func (f *fakePortal) PollResult(ctx context.Context, deadline time.Time, stale portal.Observation) (portal.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "poll")
	f.deadlines = append(f.deadlines, deadline)
	f.stales = append(f.stales, stale)
	if err := ctx.Err(); err != nil {
		return portal.Result{}, err
	}
	s := f.at()
	return s.result, s.poll
}

func (f *fakePortal) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePortal) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testConfig() config.EffectiveConfig {
	return config.EffectiveConfig{
		PortalURL:   "https://care.example.so/",
		Driver:      "rod",
		StripPrefix: true,
		Prefix:      domain.DefaultCarrierPrefix,
		Timing: config.Timing{
			HomeSettle:   config.DefaultHomeSettle,
			ModeSettle:   config.DefaultModeSettle,
			QuerySettle:  config.DefaultQuerySettle,
			SubmitSettle: config.DefaultSubmitSettle,
			PollInterval: config.DefaultPollInterval,
			PollTimeout:  config.DefaultPollTimeout,
			Cooldown:     config.DefaultCooldown,
		},
	}
}

func found(v string) step {
	return step{result: portal.Result{Kind: portal.Found, Value: v}}
}

func notFound() step {
	return step{result: portal.Result{Kind: portal.NotFound}}
}

func timedOut() step {
	return step{result: portal.Result{Kind: portal.TimedOut, Probes: 26}}
}

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	started    []domain.Msisdn
	items      []domain.ItemResult
	aborts     []string
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnItemStart(idx, total int, msisdn domain.Msisdn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, msisdn)
}

func (o *recordObserver) OnItemDone(idx, total int, item domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, item)
}

func (o *recordObserver) OnAbort(reason string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.aborts = append(o.aborts, reason)
}

func (o *recordObserver) OnProgress(done, total int, active domain.Msisdn, elapsed time.Duration) {
	// keepalive 由 CLI 触发；这里无需断言。
}
