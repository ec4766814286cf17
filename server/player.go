package server

import "sync"

// Player 一个已登录的客户端（服务端权威状态）。
// 位置由其所属连接写入、广播协程读取，转换状态走内部小锁。
type Player struct {
	UUID string
	Name string
	Skin string
	Addr string

	Conn *ClientConn

	mu       sync.Mutex
	x, y, z  float32
	yaw      float32
	pitch    float32
	sneaking bool
}

// NewPlayer 在登录成功时创建玩家，初始出生点 (0, 65, 0)
func NewPlayer(id, name, skin, addr string, conn *ClientConn) *Player {
	return &Player{
		UUID: id,
		Name: name,
		Skin: skin,
		Addr: addr,
		Conn: conn,
		y:    65,
	}
}

// SetTransform 无条件更新位置/视角/潜行（移动校验不在本核心范围内）
func (p *Player) SetTransform(x, y, z, yaw, pitch float32, sneaking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x, p.y, p.z = x, y, z
	p.yaw, p.pitch = yaw, pitch
	p.sneaking = sneaking
}

// Transform 读取当前转换状态的一致快照
func (p *Player) Transform() (x, y, z, yaw, pitch float32, sneaking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x, p.y, p.z, p.yaw, p.pitch, p.sneaking
}
