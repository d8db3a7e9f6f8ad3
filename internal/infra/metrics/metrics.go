// Package metrics 为单次批量运行维护一个独立的 prometheus registry，
// 运行结束后可写成 node_exporter textfile collector 格式。
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes 是预先初始化为 0 的结果标签（保证每次输出的序列集合稳定）。
var Outcomes = []string{"found", "not_found", "timeout", "missing_control", "failed", "canceled"}

// Recorder 记录一次运行的计数与耗时；方法可并发调用。nil Recorder 的方法都是空操作。
type Recorder struct {
	reg *prometheus.Registry

	lookups  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	aborted  *prometheus.CounterVec
	finished prometheus.Gauge
}

func New(driver string) *Recorder {
	constLabels := prometheus.Labels{"driver": driver}
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "iccidx_lookups_total",
				Help:        "Portal lookups by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "iccidx_lookup_duration_seconds",
				Help:        "Wall time per MSISDN including settle waits",
				ConstLabels: constLabels,
				Buckets:     []float64{0.5, 1, 2, 3, 4, 5, 7.5, 10, 15},
			},
			[]string{"outcome"},
		),
		aborted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "iccidx_runs_aborted_total",
				Help:        "Batches abandoned before the first lookup",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "iccidx_run_finished_timestamp_seconds",
			Help:        "Unix time the last batch finished",
			ConstLabels: constLabels,
		}),
	}
	r.reg.MustRegister(r.lookups, r.duration, r.aborted, r.finished)
	for _, o := range Outcomes {
		r.lookups.WithLabelValues(o)
	}
	return r
}

// Observe 记录一条 MSISDN 的结果与耗时。
func (r *Recorder) Observe(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (r *Recorder) Abort(reason string) {
	if r == nil {
		return
	}
	r.aborted.WithLabelValues(reason).Inc()
}

func (r *Recorder) Finish(at time.Time) {
	if r == nil {
		return
	}
	r.finished.Set(float64(at.UnixNano()) / 1e9)
}

// Registry 暴露底层 registry（测试与外部 Gatherer 使用）。
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// WriteTextfile 原子地写出 textfile；path 为空时什么都不做。
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建 metrics 目录失败: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("写入 metrics textfile 失败: %w", err)
	}
	return nil
}
