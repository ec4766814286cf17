package server

import (
	"github.com/leycm/pycraft/protocol"
	"github.com/leycm/pycraft/world"
)

// handler 单连接状态机：Connecting（只认登录包）→ Playing（请求循环）→ Disconnected。
// 协议错误、传输错误、半截帧都只影响本连接，统一走 cleanup 收尾。
type handler struct {
	srv    *Server
	conn   *ClientConn
	addr   string
	player *Player

	// bulkChunks: WebSocket 客户端登录时用单个压缩区块包代替逐方块回放
	bulkChunks bool
}

func (h *handler) run() {
	defer h.cleanup()
	Log.Infof("client connected: %s", h.addr)

	// Connecting：只读一个包，必须是登录请求，否则视为协议违规直接断开
	pkt, err := h.conn.Read()
	if err != nil {
		Log.Infof("client %s gone before login: %v", h.addr, err)
		return
	}
	login, ok := pkt.(*protocol.LoginRequest)
	if !ok {
		Log.Warnf("client %s sent %T as first packet, disconnecting", h.addr, pkt)
		return
	}
	if err := h.login(login); err != nil {
		Log.Infof("login sync to %s failed: %v", h.addr, err)
		return
	}

	// Playing：逐包解码、按类型分发；任何读错误（含对端关闭）结束循环
	for {
		pkt, err := h.conn.Read()
		if err != nil {
			Log.Debugf("client %s read: %v", h.addr, err)
			return
		}
		h.dispatch(pkt)
	}
}

// login 分配身份、登记、回反馈、通知其他人、同步出生区块
func (h *handler) login(req *protocol.LoginRequest) error {
	id := NewPlayerID()
	name := req.Name
	if name == "" {
		name = h.srv.names.Generate()
	}
	h.player = NewPlayer(id, name, req.Skin, h.addr, h.conn)
	h.srv.registry.Register(h.player)
	h.srv.metrics.IncLogin()
	Log.Infof("player %s (uuid: %s) logged in from %s", name, id, h.addr)

	fb := &protocol.FeedbackLogin{PacketID: req.PacketID, Success: true, UUID: id, Name: name}
	if err := h.conn.Send(fb); err != nil {
		return err
	}

	// 加入通知发给其他人，不发给自己
	h.srv.broadcast(&protocol.InfoPlayerJoin{UUID: id, Name: name, Skin: req.Skin}, id)

	return h.sendSpawnChunk()
}

// sendSpawnChunk 把出生区块 (0,0) 同步给新客户端：
// TCP 按原始协议逐方块下发（跳过 Air），WebSocket 端整块压缩下发
func (h *handler) sendSpawnChunk() error {
	ch := h.srv.world.Chunk(0, 0)
	blocks := ch.Snapshot()
	if h.bulkChunks {
		return h.conn.Send(&protocol.InfoChunkData{ChunkX: 0, ChunkZ: 0, Blocks: blocks})
	}
	i := 0
	for x := 0; x < world.ChunkWidth; x++ {
		for y := 0; y < world.ChunkHeight; y++ {
			for z := 0; z < world.ChunkDepth; z++ {
				bt := world.BlockType(blocks[i])
				i++
				if bt == world.Air {
					continue
				}
				// 出生区块是 (0,0)，局部坐标即世界坐标
				pkt := &protocol.InfoBlockChange{X: int32(x), Y: int32(y), Z: int32(z), Block: byte(bt)}
				if err := h.conn.Send(pkt); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (h *handler) dispatch(pkt protocol.Packet) {
	h.srv.metrics.IncPacketIn()
	switch req := pkt.(type) {
	case *protocol.PlaceBlockRequest:
		h.handlePlace(req)
	case *protocol.BreakBlockRequest:
		h.handleBreak(req)
	case *protocol.PlayerMoveRequest:
		h.handleMove(req)
	default:
		// Playing 状态下的计划外包：忽略不断开
		Log.Debugf("ignoring unexpected %T from %s", pkt, h.player.Name)
	}
}

func (h *handler) handlePlace(req *protocol.PlaceBlockRequest) {
	allowed := h.srv.world.Place(int(req.X), int(req.Y), int(req.Z), world.BlockType(req.Block))
	h.srv.metrics.IncPlace(allowed)

	// 反馈必须先于广播发出，客户端先知道自己请求的结果
	fb := &protocol.FeedbackBlockChange{
		PacketID: req.PacketID,
		Success:  allowed,
		X:        req.X, Y: req.Y, Z: req.Z,
		Block: req.Block,
	}
	if err := h.conn.Send(fb); err != nil {
		Log.Debugf("feedback to %s: %v", h.player.Name, err)
		return
	}
	if allowed {
		h.srv.broadcast(&protocol.InfoBlockChange{X: req.X, Y: req.Y, Z: req.Z, Block: req.Block})
	}
}

func (h *handler) handleBreak(req *protocol.BreakBlockRequest) {
	allowed := h.srv.world.Break(int(req.X), int(req.Y), int(req.Z))
	h.srv.metrics.IncBreak(allowed)

	fb := &protocol.FeedbackBlockChange{
		PacketID: req.PacketID,
		Success:  allowed,
		X:        req.X, Y: req.Y, Z: req.Z,
		Block: byte(world.Air),
	}
	if err := h.conn.Send(fb); err != nil {
		Log.Debugf("feedback to %s: %v", h.player.Name, err)
		return
	}
	if allowed {
		h.srv.broadcast(&protocol.InfoBlockChange{X: req.X, Y: req.Y, Z: req.Z, Block: byte(world.Air)})
	}
}

// handleMove 移动永远被接受（碰撞/物理校验不是本服务端的职责），
// 反馈回显权威位置，位置的扩散交给周期广播
func (h *handler) handleMove(req *protocol.PlayerMoveRequest) {
	h.player.SetTransform(req.X, req.Y, req.Z, req.Yaw, req.Pitch, req.Sneaking)
	fb := &protocol.FeedbackPlayerMove{
		PacketID: req.PacketID,
		Success:  true,
		X:        req.X, Y: req.Y, Z: req.Z,
	}
	if err := h.conn.Send(fb); err != nil {
		Log.Debugf("feedback to %s: %v", h.player.Name, err)
	}
}

// cleanup 无论从哪个状态走到 Disconnected 都只执行一次：
// 登记过就摘掉，最后关连接。刻意不广播 InfoPlayerLeave，
// 其余客户端通过位置广播里的缺席感知离线（沿用原始行为）。
func (h *handler) cleanup() {
	if h.player != nil {
		h.srv.registry.Unregister(h.player.UUID)
		Log.Infof("player %s disconnected", h.player.Name)
	} else {
		Log.Infof("client %s disconnected before login", h.addr)
	}
	h.conn.Close()
}
