package server

import (
	"sync/atomic"
)

// Metrics 记录服务端运行期的关键指标（用于监控与调试）
type Metrics struct {
	Logins          int64 // 成功登录次数
	PacketsIn       int64 // Playing 状态收到的请求包数
	PlaceAccepted   int64
	PlaceRejected   int64
	BreakAccepted   int64
	BreakRejected   int64
	BroadcastErrors int64 // 扇出时被跳过的失败发送数
	TickCount       int64
	TotalTickNs     int64 // 广播循环累计耗时（纳秒）
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncLogin()    { atomic.AddInt64(&m.Logins, 1) }
func (m *Metrics) IncPacketIn() { atomic.AddInt64(&m.PacketsIn, 1) }

func (m *Metrics) IncPlace(accepted bool) {
	if accepted {
		atomic.AddInt64(&m.PlaceAccepted, 1)
	} else {
		atomic.AddInt64(&m.PlaceRejected, 1)
	}
}

func (m *Metrics) IncBreak(accepted bool) {
	if accepted {
		atomic.AddInt64(&m.BreakAccepted, 1)
	} else {
		atomic.AddInt64(&m.BreakRejected, 1)
	}
}

func (m *Metrics) IncBroadcastError() { atomic.AddInt64(&m.BroadcastErrors, 1) }

func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"logins":           atomic.LoadInt64(&m.Logins),
		"packets_in":       atomic.LoadInt64(&m.PacketsIn),
		"place_accepted":   atomic.LoadInt64(&m.PlaceAccepted),
		"place_rejected":   atomic.LoadInt64(&m.PlaceRejected),
		"break_accepted":   atomic.LoadInt64(&m.BreakAccepted),
		"break_rejected":   atomic.LoadInt64(&m.BreakRejected),
		"broadcast_errors": atomic.LoadInt64(&m.BroadcastErrors),
		"tick_count":       tick,
		"avg_tick_ms":      avgMs,
	}
}
