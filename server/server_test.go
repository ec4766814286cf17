package server

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leycm/pycraft/protocol"
	"github.com/leycm/pycraft/world"
)

// spawnSolidCount 出生区块非空体素数：每柱 0..64 共 65 个实心格
const spawnSolidCount = world.ChunkWidth * world.ChunkDepth * 65

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TickMs = 50
	cfg.Seed = 1
	w := world.New()
	w.Chunk(0, 0)
	srv := New(cfg, w, NewRegistry())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(ln) }()
	srv.StartBroadcaster()
	t.Cleanup(srv.Close)
	return srv, ln.Addr().String()
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	br   *bufio.Reader
	uuid string
	name string
}

func dialClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, br: bufio.NewReader(conn)}
}

func (c *testClient) send(p protocol.Packet) {
	c.t.Helper()
	frame, err := protocol.Encode(p)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) read(timeout time.Duration) (protocol.Packet, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	return protocol.ReadPacket(c.br)
}

// waitFor 跳过不匹配的包（周期位置广播等）直到命中或超时
func (c *testClient) waitFor(timeout time.Duration, match func(protocol.Packet) bool) protocol.Packet {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			c.t.Fatal("timed out waiting for packet")
		}
		p, err := c.read(remain)
		if err != nil {
			c.t.Fatalf("read while waiting: %v", err)
		}
		if match(p) {
			return p
		}
	}
}

// expectNone 在给定时间窗内断言没有 bad 命中的包到达（其余包照常消费）
func (c *testClient) expectNone(window time.Duration, bad func(protocol.Packet) bool) {
	c.t.Helper()
	deadline := time.Now().Add(window)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return
		}
		p, err := c.read(remain)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return
			}
			c.t.Fatalf("read: %v", err)
		}
		if bad(p) {
			c.t.Fatalf("received forbidden packet %+v", p)
		}
	}
}

func (c *testClient) login(name string) *protocol.FeedbackLogin {
	c.t.Helper()
	c.send(&protocol.LoginRequest{PacketID: 1, Name: name})
	p := c.waitFor(2*time.Second, func(p protocol.Packet) bool {
		_, ok := p.(*protocol.FeedbackLogin)
		return ok
	})
	fb := p.(*protocol.FeedbackLogin)
	c.uuid, c.name = fb.UUID, fb.Name
	return fb
}

// drainSpawnChunk 消费登录后的整段出生区块回放；周期广播会夹在其中，一并跳过
func (c *testClient) drainSpawnChunk() []*protocol.InfoBlockChange {
	c.t.Helper()
	out := make([]*protocol.InfoBlockChange, 0, spawnSolidCount)
	for len(out) < spawnSolidCount {
		p, err := c.read(10 * time.Second)
		if err != nil {
			c.t.Fatalf("drain spawn chunk after %d packets: %v", len(out), err)
		}
		if bc, ok := p.(*protocol.InfoBlockChange); ok {
			out = append(out, bc)
		}
	}
	return out
}

func join(t *testing.T, addr, name string) *testClient {
	t.Helper()
	c := dialClient(t, addr)
	fb := c.login(name)
	if !fb.Success {
		t.Fatalf("login rejected for %q", name)
	}
	c.drainSpawnChunk()
	return c
}

func TestLoginHandshakeAndSpawnChunkStream(t *testing.T) {
	srv, addr := startTestServer(t)
	c := dialClient(t, addr)

	fb := c.login("Alice")
	if !fb.Success {
		t.Fatal("login rejected")
	}
	if fb.Name != "Alice" {
		t.Fatalf("assigned name %q, want Alice", fb.Name)
	}
	if _, err := uuid.Parse(fb.UUID); err != nil {
		t.Fatalf("assigned id %q is not a uuid: %v", fb.UUID, err)
	}

	blocks := c.drainSpawnChunk()
	if len(blocks) != spawnSolidCount {
		t.Fatalf("spawn stream has %d packets, want %d", len(blocks), spawnSolidCount)
	}
	// 回放只含非空体素，且分层符合平坦地形
	for _, bc := range blocks {
		if bc.Block == byte(world.Air) {
			t.Fatalf("air voxel (%d,%d,%d) in spawn stream", bc.X, bc.Y, bc.Z)
		}
		if bc.X < 0 || bc.X >= 16 || bc.Z < 0 || bc.Z >= 16 {
			t.Fatalf("voxel (%d,%d,%d) outside chunk (0,0)", bc.X, bc.Y, bc.Z)
		}
		var want world.BlockType
		switch {
		case bc.Y < 61:
			want = world.Stone
		case bc.Y < 64:
			want = world.Dirt
		case bc.Y == 64:
			want = world.Grass
		default:
			t.Fatalf("solid voxel above surface at y=%d", bc.Y)
		}
		if bc.Block != byte(want) {
			t.Fatalf("voxel (%d,%d,%d) = %d, want %d", bc.X, bc.Y, bc.Z, bc.Block, want)
		}
	}

	if srv.Registry().Count() != 1 {
		t.Fatalf("registry count %d, want 1", srv.Registry().Count())
	}
}

func TestLoginGeneratesNameWhenEmpty(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialClient(t, addr)
	fb := c.login("")
	if !fb.Success {
		t.Fatal("login rejected")
	}
	if !namePattern.MatchString(fb.Name) {
		t.Fatalf("generated name %q does not match scheme", fb.Name)
	}
}

func TestNonLoginFirstPacketDisconnects(t *testing.T) {
	srv, addr := startTestServer(t)
	c := dialClient(t, addr)

	c.send(&protocol.PlayerMoveRequest{PacketID: 1, X: 1, Y: 65, Z: 1})
	if _, err := c.read(2 * time.Second); err == nil {
		t.Fatal("server replied instead of disconnecting")
	}
	if srv.Registry().Count() != 0 {
		t.Fatalf("registry count %d after protocol violation, want 0", srv.Registry().Count())
	}
}

func TestSecondClientSeesJoinBroadcast(t *testing.T) {
	_, addr := startTestServer(t)
	a := join(t, addr, "Alice")

	b := dialClient(t, addr)
	fb := b.login("Bob")

	// 加入通知发给其他人；包在 A 的接收缓冲里等着
	jp := a.waitFor(2*time.Second, func(p protocol.Packet) bool {
		_, ok := p.(*protocol.InfoPlayerJoin)
		return ok
	}).(*protocol.InfoPlayerJoin)
	if jp.UUID != fb.UUID || jp.Name != "Bob" {
		t.Fatalf("join broadcast %+v, want uuid=%s name=Bob", jp, fb.UUID)
	}
}

func TestPlaceFeedbackThenBroadcast(t *testing.T) {
	_, addr := startTestServer(t)
	a := join(t, addr, "Alice")
	b := join(t, addr, "Bob")

	a.send(&protocol.PlaceBlockRequest{PacketID: 9, X: 5, Y: 70, Z: 5, Block: byte(world.Stone)})

	fb := a.waitFor(2*time.Second, func(p protocol.Packet) bool {
		_, ok := p.(*protocol.FeedbackBlockChange)
		return ok
	}).(*protocol.FeedbackBlockChange)
	if !fb.Success || fb.X != 5 || fb.Y != 70 || fb.Z != 5 || fb.Block != byte(world.Stone) {
		t.Fatalf("place feedback %+v", fb)
	}
	if fb.PacketID != 9 {
		t.Fatalf("feedback echoes packet id %d, want 9", fb.PacketID)
	}

	bc := b.waitFor(2*time.Second, func(p protocol.Packet) bool {
		v, ok := p.(*protocol.InfoBlockChange)
		return ok && v.X == 5 && v.Y == 70 && v.Z == 5
	}).(*protocol.InfoBlockChange)
	if bc.Block != byte(world.Stone) {
		t.Fatalf("broadcast block %d, want Stone", bc.Block)
	}

	// 同一坐标再放一次：目标已被占用，拒绝且不再广播
	a.send(&protocol.PlaceBlockRequest{PacketID: 10, X: 5, Y: 70, Z: 5, Block: byte(world.Dirt)})
	fb2 := a.waitFor(2*time.Second, func(p protocol.Packet) bool {
		v, ok := p.(*protocol.FeedbackBlockChange)
		return ok && v.PacketID == 10
	}).(*protocol.FeedbackBlockChange)
	if fb2.Success {
		t.Fatal("place on occupied target accepted")
	}
	b.expectNone(300*time.Millisecond, func(p protocol.Packet) bool {
		_, ok := p.(*protocol.InfoBlockChange)
		return ok
	})
}

func TestBreakSemantics(t *testing.T) {
	_, addr := startTestServer(t)
	a := join(t, addr, "Alice")
	b := join(t, addr, "Bob")

	// 破坏地表草皮
	a.send(&protocol.BreakBlockRequest{PacketID: 20, X: 0, Y: 64, Z: 0})
	fb := a.waitFor(2*time.Second, func(p protocol.Packet) bool {
		v, ok := p.(*protocol.FeedbackBlockChange)
		return ok && v.PacketID == 20
	}).(*protocol.FeedbackBlockChange)
	if !fb.Success || fb.Block != byte(world.Air) {
		t.Fatalf("break feedback %+v", fb)
	}
	bc := b.waitFor(2*time.Second, func(p protocol.Packet) bool {
		v, ok := p.(*protocol.InfoBlockChange)
		return ok && v.X == 0 && v.Y == 64 && v.Z == 0
	}).(*protocol.InfoBlockChange)
	if bc.Block != byte(world.Air) {
		t.Fatalf("broadcast block %d, want Air", bc.Block)
	}

	// 同一格再破坏一次：已是空气，拒绝
	a.send(&protocol.BreakBlockRequest{PacketID: 21, X: 0, Y: 64, Z: 0})
	fb2 := a.waitFor(2*time.Second, func(p protocol.Packet) bool {
		v, ok := p.(*protocol.FeedbackBlockChange)
		return ok && v.PacketID == 21
	}).(*protocol.FeedbackBlockChange)
	if fb2.Success {
		t.Fatal("break on air accepted")
	}

	// 一直是空气的格子也拒绝
	a.send(&protocol.BreakBlockRequest{PacketID: 22, X: 3, Y: 70, Z: 3})
	fb3 := a.waitFor(2*time.Second, func(p protocol.Packet) bool {
		v, ok := p.(*protocol.FeedbackBlockChange)
		return ok && v.PacketID == 22
	}).(*protocol.FeedbackBlockChange)
	if fb3.Success {
		t.Fatal("break on never-placed air accepted")
	}
}

func TestMoveFeedbackAndTickBroadcast(t *testing.T) {
	_, addr := startTestServer(t)
	a := join(t, addr, "Alice")
	b := join(t, addr, "Bob")

	a.send(&protocol.PlayerMoveRequest{PacketID: 30, X: 1, Y: 65, Z: 1, Yaw: 90, Pitch: 0})
	fb := a.waitFor(2*time.Second, func(p protocol.Packet) bool {
		_, ok := p.(*protocol.FeedbackPlayerMove)
		return ok
	}).(*protocol.FeedbackPlayerMove)
	if !fb.Success || fb.X != 1 || fb.Y != 65 || fb.Z != 1 {
		t.Fatalf("move feedback %+v", fb)
	}

	// 一个广播周期内（50ms 拍率，给足余量）B 应看到 A 的新位置
	mv := b.waitFor(time.Second, func(p protocol.Packet) bool {
		v, ok := p.(*protocol.InfoPlayerMove)
		return ok && v.UUID == a.uuid && v.X == 1 && v.Yaw == 90
	}).(*protocol.InfoPlayerMove)
	if mv.Name != a.name {
		t.Fatalf("tick broadcast name %q, want %q", mv.Name, a.name)
	}
}

func TestTickBroadcastIncludesSelf(t *testing.T) {
	_, addr := startTestServer(t)
	a := join(t, addr, "Alice")

	// 客户端靠比对 UUID 忽略自己的回声，但服务端确实会发
	mv := a.waitFor(time.Second, func(p protocol.Packet) bool {
		v, ok := p.(*protocol.InfoPlayerMove)
		return ok && v.UUID == a.uuid
	}).(*protocol.InfoPlayerMove)
	if mv.Y != 65 {
		t.Fatalf("self echo y=%v, want spawn height 65", mv.Y)
	}
}

func TestUnexpectedPacketIgnoredInPlaying(t *testing.T) {
	_, addr := startTestServer(t)
	a := join(t, addr, "Alice")

	// Playing 状态收到服务端方向的包：忽略、不断开
	a.send(&protocol.InfoPlayerJoin{PacketID: 1, UUID: "x", Name: "y"})
	a.send(&protocol.PlayerMoveRequest{PacketID: 31, X: 2, Y: 66, Z: 2})
	fb := a.waitFor(2*time.Second, func(p protocol.Packet) bool {
		_, ok := p.(*protocol.FeedbackPlayerMove)
		return ok
	}).(*protocol.FeedbackPlayerMove)
	if !fb.Success {
		t.Fatal("connection did not survive unexpected packet")
	}
}

func TestNoLeaveBroadcastOnDisconnect(t *testing.T) {
	srv, addr := startTestServer(t)
	a := join(t, addr, "Alice")
	b := join(t, addr, "Bob")

	_ = a.conn.Close()

	// 沿用原始行为：离线不广播 InfoPlayerLeave，其他客户端只能从位置广播缺席推断
	b.expectNone(400*time.Millisecond, func(p protocol.Packet) bool {
		_, ok := p.(*protocol.InfoPlayerLeave)
		return ok
	})

	deadline := time.Now().Add(2 * time.Second)
	for srv.Registry().Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("registry count %d, want 1 after disconnect", srv.Registry().Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConcurrentPlaceExactlyOneWinner(t *testing.T) {
	_, addr := startTestServer(t)
	a := join(t, addr, "Alice")
	b := join(t, addr, "Bob")

	var wg sync.WaitGroup
	for _, c := range []*testClient{a, b} {
		wg.Add(1)
		go func(c *testClient) {
			defer wg.Done()
			c.send(&protocol.PlaceBlockRequest{PacketID: 40, X: 8, Y: 80, Z: 8, Block: byte(world.Stone)})
		}(c)
	}
	wg.Wait()

	results := make([]bool, 0, 2)
	for _, c := range []*testClient{a, b} {
		fb := c.waitFor(2*time.Second, func(p protocol.Packet) bool {
			v, ok := p.(*protocol.FeedbackBlockChange)
			return ok && v.PacketID == 40
		}).(*protocol.FeedbackBlockChange)
		results = append(results, fb.Success)
	}
	if results[0] == results[1] {
		t.Fatalf("results %v, want exactly one success", results)
	}
}
