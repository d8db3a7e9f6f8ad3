package portal

import (
	"context"
	"time"

	"github.com/John-Robertt/ICCIDX/internal/infra/clock"
)

// Probe 读取一次页面快照并分类；返回 error 表示本次快照不可用（例如页面正在跳转）。
type Probe func(ctx context.Context) (Observation, error)

// Poll 是带显式截止时间的有界轮询：
// - 第一次探测立即进行，之后每 interval 一次
// - 探测出错不会终止轮询，只记录为 LastErr
// - 到达 deadline 仍为 Pending => TimedOut
// 只有 ctx 结束时才返回 error。
func Poll(ctx context.Context, clk clock.Clock, interval time.Duration, deadline time.Time, probe Probe) (Result, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		obs, err := probe(ctx)
		res.Probes++
		if err != nil {
			res.LastErr = err
		} else {
			switch obs.State {
			case SawResult:
				return Result{Kind: Found, Value: obs.Value, Probes: res.Probes}, nil
			case SawNotFound:
				return Result{Kind: NotFound, Probes: res.Probes}, nil
			}
		}

		left := deadline.Sub(clk.Now())
		if left <= 0 {
			res.Kind = TimedOut
			return res, nil
		}
		wait := interval
		if left < wait {
			wait = left
		}
		if err := clk.Sleep(ctx, wait); err != nil {
			return res, err
		}
	}
}

// Fresh 包装 probe：与 stale 状态和值都相同的观察降级为 Pending。
// stale 本身是 Pending 时原样返回 probe。
func Fresh(stale Observation, probe Probe) Probe {
	if stale.State == Pending {
		return probe
	}
	return func(ctx context.Context) (Observation, error) {
		obs, err := probe(ctx)
		if err == nil && obs.State == stale.State && obs.Value == stale.Value {
			return Observation{State: Pending, Source: "stale"}, nil
		}
		return obs, err
	}
}
