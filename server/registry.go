package server

import (
	"sort"
	"sync"
)

// Registry 在线玩家表。显式注入到每个连接处理器与广播协程，不做进程级单例。
// 所有操作只在锁内动 map，绝不在持锁时做网络 I/O。
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

// Register 登录成功后登记玩家
func (r *Registry) Register(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.UUID] = p
}

// Unregister 移除玩家，返回被移除的条目（不存在时为 nil）
func (r *Registry) Unregister(id string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.players[id]
	delete(r.players, id)
	return p
}

func (r *Registry) Get(id string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[id]
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Snapshot 取某一时刻的玩家副本（按 UUID 排序），迭代与发送都在锁外进行，
// 某个插入/移除不会和广播互相撕裂
func (r *Registry) Snapshot() []*Player {
	r.mu.Lock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}
