package server

import (
	"errors"
	"net"
	"sync"

	"github.com/leycm/pycraft/protocol"
	"github.com/leycm/pycraft/world"
)

// Server 持有权威世界状态与在线玩家表，按连接起协程处理请求，
// 另有一个独立的周期广播协程（见 tick.go）。
type Server struct {
	cfg      Config
	world    *world.World
	registry *Registry
	names    *NameGen
	metrics  *Metrics

	mu       sync.Mutex
	ln       net.Listener
	closed   bool
	stopTick chan struct{}
	tickOnce sync.Once
}

func New(cfg Config, w *world.World, reg *Registry) *Server {
	cfg.Normalize()
	return &Server{
		cfg:      cfg,
		world:    w,
		registry: reg,
		names:    NewNameGen(cfg.Seed),
		metrics:  NewMetrics(),
		stopTick: make(chan struct{}),
	}
}

func (s *Server) World() *world.World { return s.world }
func (s *Server) Registry() *Registry { return s.registry }
func (s *Server) Metrics() *Metrics   { return s.metrics }

// ListenAndServe 监听配置地址并进入接收循环
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve 在给定监听器上跑接收循环；单个连接的任何故障都不影响此循环。
// 监听器被 Close 关闭时正常返回 nil。
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			Log.Warnf("accept: %v", err)
			continue
		}
		go s.handleConn(conn)
	}
}

// Addr 实际监听地址（测试用 :0 端口时读取）
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

// Close 停掉广播循环并关闭监听器；已建立的连接由各自 handler 自行收尾
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.stopTick)
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	h := &handler{
		srv:  s,
		conn: newClientConn(newTCPLink(conn)),
		addr: conn.RemoteAddr().String(),
	}
	h.run()
}

// broadcast 把数据包发给所有在线连接（可按 UUID 排除）。
// 编码一次、快照一次，发送全在注册表锁外；单个接收方失败只记日志并跳过，
// 它自己的读循环会在下次 I/O 时发现故障并清场。
func (s *Server) broadcast(p protocol.Packet, exclude ...string) {
	frame, err := protocol.Encode(p)
	if err != nil {
		Log.Errorf("broadcast encode: %v", err)
		return
	}
	for _, q := range s.registry.Snapshot() {
		if contains(exclude, q.UUID) {
			continue
		}
		if err := q.Conn.SendFrame(frame); err != nil {
			s.metrics.IncBroadcastError()
			Log.Warnf("broadcast to %s failed: %v", q.Name, err)
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
