package lookup

import (
	"time"

	"github.com/John-Robertt/ICCIDX/internal/config"
	"github.com/John-Robertt/ICCIDX/internal/domain"
)

// Observer 用于把“运行进度/条目结果”从查询流程中解耦出来。
//
// 约束：
// - lookup 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：OnProgress 通常来自 CLI 自己的 ticker goroutine。
type Observer interface {
	// OnStart 在第一条查询之前调用。
	OnStart(eff config.EffectiveConfig, total int)
	// OnItemStart 在某条 MSISDN 开始（回到首页之前）时调用。
	OnItemStart(idx, total int, msisdn domain.Msisdn)
	// OnItemDone 在某条 MSISDN 记录结果后调用（用于每条结果的一行输出）。
	OnItemDone(idx, total int, item domain.ItemResult, dur time.Duration)
	// OnAbort 在整批放弃时调用（此后不会再有 OnItemDone）。
	OnAbort(reason string, err error)
	// OnProgress 用于 keepalive：CLI 的 ticker 在长时间没有输出时调用它（lookup 层不调用）。
	OnProgress(done, total int, active domain.Msisdn, elapsed time.Duration)
}
