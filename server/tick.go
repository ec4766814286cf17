package server

import (
	"time"

	"github.com/leycm/pycraft/protocol"
)

// StartBroadcaster 启动位置广播循环（默认 100ms 一拍），独立于所有连接的请求循环。
// 重复调用只会起一个协程。
func (s *Server) StartBroadcaster() {
	s.tickOnce.Do(func() {
		go s.broadcastLoop()
	})
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-s.stopTick:
			return
		case <-ticker.C:
			start := time.Now()
			s.broadcastPositions()
			s.metrics.AddTick(time.Since(start).Nanoseconds())
		}
	}
}

// broadcastPositions 每拍把快照里每个玩家的位置发给所有连接（含本人，
// 客户端按 UUID 忽略自己的回声）。单个发送失败记日志跳过，不影响其余接收方。
func (s *Server) broadcastPositions() {
	players := s.registry.Snapshot()
	for _, p := range players {
		x, y, z, yaw, pitch, _ := p.Transform()
		frame, err := protocol.Encode(&protocol.InfoPlayerMove{
			UUID: p.UUID,
			Name: p.Name,
			X:    x, Y: y, Z: z,
			Yaw: yaw, Pitch: pitch,
		})
		if err != nil {
			Log.Errorf("tick encode for %s: %v", p.Name, err)
			continue
		}
		for _, q := range players {
			if err := q.Conn.SendFrame(frame); err != nil {
				s.metrics.IncBroadcastError()
				Log.Debugf("tick send to %s failed: %v", q.Name, err)
			}
		}
	}
}
