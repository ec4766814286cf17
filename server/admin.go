package server

import (
	"encoding/json"
	"net/http"
)

// HandleMetrics 输出服务端运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"players_online": s.registry.Count(),
		"chunks_loaded":  s.world.ChunkCount(),
		"metrics":        s.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// HandlePlayers 列出在线玩家及其位置
// GET /admin/players
func (s *Server) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		UUID string  `json:"uuid"`
		Name string  `json:"name"`
		Addr string  `json:"addr"`
		X    float32 `json:"x"`
		Y    float32 `json:"y"`
		Z    float32 `json:"z"`
	}
	players := s.registry.Snapshot()
	out := make([]entry, 0, len(players))
	for _, p := range players {
		x, y, z, _, _, _ := p.Transform()
		out = append(out, entry{UUID: p.UUID, Name: p.Name, Addr: p.Addr, X: x, Y: y, Z: z})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// AdminMux 管理与监控接口 + WebSocket 接入点
func (s *Server) AdminMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/admin/players", s.HandlePlayers)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
