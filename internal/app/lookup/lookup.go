// Package lookup 逐条驱动门户查询：回到首页 → 选择查询类型 → 输入号码 → 提交 → 等待结果 → 记录 → 冷却。
// 严格串行，不重试；每条输入恰好对应一条结果（整批放弃时为零条）。
package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/ICCIDX/internal/config"
	"github.com/John-Robertt/ICCIDX/internal/domain"
	"github.com/John-Robertt/ICCIDX/internal/infra/clock"
	"github.com/John-Robertt/ICCIDX/internal/infra/metrics"
	"github.com/John-Robertt/ICCIDX/internal/portal"
)

// ErrHomeUnavailable 表示第一条查询前无法回到门户首页；整批放弃且不导出。
var ErrHomeUnavailable = errors.New("门户首页不可用")

type Option func(*runner)

func WithClock(c clock.Clock) Option {
	return func(r *runner) {
		if c != nil {
			r.clk = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *runner) { r.metrics = m }
}

// WithRunID 固定 run_id（默认随机 UUID）。
func WithRunID(id string) Option {
	return func(r *runner) { r.runID = id }
}

type runner struct {
	eff     config.EffectiveConfig
	p       portal.Portal
	obs     Observer
	clk     clock.Clock
	log     *zap.Logger
	metrics *metrics.Recorder
	runID   string
}

// Execute 执行一次批量查询，并返回对外稳定的 RunReport。
// 单条失败只影响该条（记录为空 ICCID），不会中断其他条目。
func Execute(ctx context.Context, eff config.EffectiveConfig, p portal.Portal, entries []domain.Msisdn, opts ...Option) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, p, entries, nil, opts...)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, p portal.Portal, entries []domain.Msisdn, obs Observer, opts ...Option) domain.RunReport {
	r := &runner{
		eff: eff,
		p:   p,
		obs: obs,
		clk: clock.Real{},
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	return r.run(ctx, entries)
}

func (r *runner) run(ctx context.Context, entries []domain.Msisdn) domain.RunReport {
	total := len(entries)
	rr := domain.RunReport{
		RunID:     r.runID,
		Portal:    r.eff.PortalURL,
		Driver:    r.eff.Driver,
		StartedAt: r.clk.Now(),
		Items:     make([]domain.ItemResult, 0, total),
	}
	if rr.Portal == "" {
		rr.Portal = r.eff.DebuggerURL
	}
	log := r.log.With(zap.String("run_id", r.runID))

	if r.obs != nil {
		r.obs.OnStart(r.eff, total)
	}
	log.Info("开始批量查询", zap.Int("total", total), zap.String("driver", r.eff.Driver))

	for i, m := range entries {
		if i > 0 {
			if err := r.clk.Sleep(ctx, r.eff.Timing.Cooldown); err != nil {
				r.cancelRest(&rr, entries[i:], i, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			r.cancelRest(&rr, entries[i:], i, err)
			break
		}

		if r.obs != nil {
			r.obs.OnItemStart(i, total, m)
		}
		started := r.clk.Now()
		item, abortErr := r.lookupOne(ctx, i, m, log)
		if abortErr != nil {
			rr.Aborted = true
			rr.AbortReason = domain.AbortHomeUnavailable
			rr.Items = rr.Items[:0]
			r.metrics.Abort(rr.AbortReason)
			log.Error("批量查询已放弃", zap.String("reason", rr.AbortReason), zap.Error(abortErr))
			if r.obs != nil {
				r.obs.OnAbort(rr.AbortReason, abortErr)
			}
			break
		}
		dur := r.clk.Now().Sub(started)
		item.DurationMS = dur.Milliseconds()
		r.record(&rr, i, total, item, dur)
	}

	rr.FinishedAt = r.clk.Now()
	r.metrics.Finish(rr.FinishedAt)
	rr.Finalize()
	log.Info("批量查询结束",
		zap.Bool("aborted", rr.Aborted),
		zap.Int("found", rr.Summary.Found),
		zap.Int("not_found", rr.Summary.NotFound),
		zap.Int("timeout", rr.Summary.Timeout),
		zap.Int("missing_control", rr.Summary.MissingControl),
		zap.Int("failed", rr.Summary.Failed),
		zap.Int("canceled", rr.Summary.Canceled),
	)
	return rr
}

func (r *runner) record(rr *domain.RunReport, idx, total int, item domain.ItemResult, dur time.Duration) {
	rr.Items = append(rr.Items, item)
	r.metrics.Observe(string(item.Outcome), dur)
	if r.obs != nil {
		r.obs.OnItemDone(idx, total, item, dur)
	}
}

// cancelRest 把尚未执行的条目记录为 canceled（保持 len(items) == len(entries)）。
func (r *runner) cancelRest(rr *domain.RunReport, rest []domain.Msisdn, offset int, cause error) {
	total := offset + len(rest)
	for j, m := range rest {
		r.record(rr, offset+j, total, canceledItem(m, cause), 0)
	}
	r.log.Warn("批量查询被取消", zap.Int("remaining", len(rest)), zap.Error(cause))
}

func canceledItem(m domain.Msisdn, cause error) domain.ItemResult {
	msg := "已取消"
	if cause != nil {
		msg = cause.Error()
	}
	return domain.ItemResult{
		Msisdn:    m,
		Outcome:   domain.OutcomeCanceled,
		ErrorCode: domain.ErrCodeCanceled,
		ErrorMsg:  msg,
	}
}

// lookupOne 执行单条查询。只有“第一条回不到首页”会返回 abortErr。
func (r *runner) lookupOne(ctx context.Context, idx int, m domain.Msisdn, runLog *zap.Logger) (domain.ItemResult, error) {
	log := runLog.With(zap.Int("idx", idx+1), zap.String("msisdn", string(m)))
	item := domain.ItemResult{Msisdn: m}
	t := r.eff.Timing

	// 1) 回到首页：清掉上一条的残留结果。
	log.Debug("回到首页")
	if err := r.p.GoHome(ctx); err != nil {
		if ctx.Err() != nil {
			return canceledItem(m, ctx.Err()), nil
		}
		if idx == 0 {
			return item, fmt.Errorf("%w: %w", ErrHomeUnavailable, err)
		}
		log.Warn("回到首页失败，继续在当前页面查询", zap.Error(err))
	}
	if err := r.clk.Sleep(ctx, t.HomeSettle); err != nil {
		return canceledItem(m, err), nil
	}

	// 2) 选择查询类型（msisdn）。
	log.Debug("选择查询类型")
	if err := r.p.SelectMode(ctx); err != nil {
		return r.stepFailed(ctx, item, "mode", err, log), nil
	}
	if err := r.clk.Sleep(ctx, t.ModeSettle); err != nil {
		return canceledItem(m, err), nil
	}

	// 3) 输入号码。
	log.Debug("输入号码")
	if err := r.p.SetQuery(ctx, string(m)); err != nil {
		return r.stepFailed(ctx, item, "query", err, log), nil
	}
	if err := r.clk.Sleep(ctx, t.QuerySettle); err != nil {
		return canceledItem(m, err), nil
	}

	// 4) 提交。提交前先记下页面上已有的终态：回到首页失败时上一条的结果还留在页面上，
	// 轮询必须等到它变化才算本条的结果。
	stale, err := r.p.Observe(ctx)
	if err != nil {
		log.Debug("提交前读取页面失败", zap.Error(err))
		stale = portal.Observation{}
	} else if stale.State != portal.Pending {
		log.Debug("页面上有残留结果", zap.Stringer("state", stale.State), zap.String("value", stale.Value))
	}
	log.Debug("提交查询")
	if err := r.p.Submit(ctx); err != nil {
		return r.stepFailed(ctx, item, "submit", err, log), nil
	}
	if err := r.clk.Sleep(ctx, t.SubmitSettle); err != nil {
		return canceledItem(m, err), nil
	}

	// 5) 等待结果（有界轮询）。
	res, err := r.p.PollResult(ctx, r.clk.Now().Add(t.PollTimeout), stale)
	if err != nil {
		return r.stepFailed(ctx, item, "poll", err, log), nil
	}

	// 6) 记录。
	switch res.Kind {
	case portal.Found:
		item.RawIccid = res.Value
		item.Iccid = res.Value
		if r.eff.StripPrefix {
			item.Iccid = domain.StripCarrierPrefix(res.Value, r.eff.Prefix)
		}
		item.Outcome = domain.OutcomeFound
		log.Debug("找到 ICCID", zap.String("iccid", item.Iccid))
	case portal.NotFound:
		item.Outcome = domain.OutcomeNotFound
		log.Debug("门户提示未找到")
	default:
		item.Outcome = domain.OutcomeTimeout
		item.ErrorCode = domain.ErrCodeTimeout
		item.ErrorMsg = fmt.Sprintf("%s 内未出现结果", t.PollTimeout)
		fields := []zap.Field{zap.Duration("timeout", t.PollTimeout), zap.Int("probes", res.Probes)}
		if res.LastErr != nil {
			fields = append(fields, zap.NamedError("last_probe_error", res.LastErr))
		}
		log.Warn("等待结果超时", fields...)
	}
	return item, nil
}

// stepFailed 把某一步的错误映射为条目结果：控件缺失直接短路（不再轮询），其余视为门户错误。
func (r *runner) stepFailed(ctx context.Context, item domain.ItemResult, step string, err error, log *zap.Logger) domain.ItemResult {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return canceledItem(item.Msisdn, err)
	}
	item.Iccid = ""
	item.ErrorMsg = err.Error()
	if portal.IsMissingControl(err) {
		item.Outcome = domain.OutcomeMissingControl
		item.ErrorCode = domain.ErrCodeMissingControl
		log.Warn("控件缺失，跳过该号码", zap.String("step", step), zap.Error(err))
		return item
	}
	item.Outcome = domain.OutcomeFailed
	item.ErrorCode = domain.ErrCodePortal
	log.Warn("门户操作失败，跳过该号码", zap.String("step", step), zap.Error(err))
	return item
}
