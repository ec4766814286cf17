package protocol

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// --- C -> S ---

// PlayerMoveRequest 客户端请求移动（位置/视角更新）
type PlayerMoveRequest struct {
	PacketID   int64
	X, Y, Z    float32
	Yaw, Pitch float32
	Sneaking   bool
}

func (p *PlayerMoveRequest) Type() Type { return TypePlayerMoveRequest }
func (p *PlayerMoveRequest) ID() int64  { return p.PacketID }

func (p *PlayerMoveRequest) appendBody(b *bytes.Buffer) error {
	putF32(b, p.X)
	putF32(b, p.Y)
	putF32(b, p.Z)
	putF32(b, p.Yaw)
	putF32(b, p.Pitch)
	putBool(b, p.Sneaking)
	return nil
}

func decodePlayerMoveRequest(r *reader, id int64) *PlayerMoveRequest {
	return &PlayerMoveRequest{
		PacketID: id,
		X:        r.f32(),
		Y:        r.f32(),
		Z:        r.f32(),
		Yaw:      r.f32(),
		Pitch:    r.f32(),
		Sneaking: r.bool8(),
	}
}

// PlaceBlockRequest 客户端请求放置方块
type PlaceBlockRequest struct {
	PacketID int64
	X, Y, Z  int32
	Block    byte
}

func (p *PlaceBlockRequest) Type() Type { return TypePlaceBlockRequest }
func (p *PlaceBlockRequest) ID() int64  { return p.PacketID }

func (p *PlaceBlockRequest) appendBody(b *bytes.Buffer) error {
	putI32(b, p.X)
	putI32(b, p.Y)
	putI32(b, p.Z)
	putU8(b, p.Block)
	return nil
}

func decodePlaceBlockRequest(r *reader, id int64) *PlaceBlockRequest {
	return &PlaceBlockRequest{
		PacketID: id,
		X:        r.i32(),
		Y:        r.i32(),
		Z:        r.i32(),
		Block:    r.u8(),
	}
}

// BreakBlockRequest 客户端请求破坏方块
type BreakBlockRequest struct {
	PacketID int64
	X, Y, Z  int32
}

func (p *BreakBlockRequest) Type() Type { return TypeBreakBlockRequest }
func (p *BreakBlockRequest) ID() int64  { return p.PacketID }

func (p *BreakBlockRequest) appendBody(b *bytes.Buffer) error {
	putI32(b, p.X)
	putI32(b, p.Y)
	putI32(b, p.Z)
	return nil
}

func decodeBreakBlockRequest(r *reader, id int64) *BreakBlockRequest {
	return &BreakBlockRequest{
		PacketID: id,
		X:        r.i32(),
		Y:        r.i32(),
		Z:        r.i32(),
	}
}

// LoginRequest 客户端登录；Name 为空则由服务端生成，Skin 可选（零长度表示缺省）
type LoginRequest struct {
	PacketID int64
	Name     string
	Skin     string
}

func (p *LoginRequest) Type() Type { return TypeLoginRequest }
func (p *LoginRequest) ID() int64  { return p.PacketID }

func (p *LoginRequest) appendBody(b *bytes.Buffer) error {
	if err := putString(b, p.Name); err != nil {
		return err
	}
	return putString(b, p.Skin)
}

func decodeLoginRequest(r *reader, id int64) *LoginRequest {
	return &LoginRequest{
		PacketID: id,
		Name:     r.str(),
		Skin:     r.str(),
	}
}

// --- S -> C 单播反馈 ---

// FeedbackPlayerMove 移动请求的反馈，回显服务端权威位置
type FeedbackPlayerMove struct {
	PacketID int64
	Success  bool
	X, Y, Z  float32
}

func (p *FeedbackPlayerMove) Type() Type { return TypeFeedbackPlayerMove }
func (p *FeedbackPlayerMove) ID() int64  { return p.PacketID }

func (p *FeedbackPlayerMove) appendBody(b *bytes.Buffer) error {
	putBool(b, p.Success)
	putF32(b, p.X)
	putF32(b, p.Y)
	putF32(b, p.Z)
	return nil
}

func decodeFeedbackPlayerMove(r *reader, id int64) *FeedbackPlayerMove {
	return &FeedbackPlayerMove{
		PacketID: id,
		Success:  r.bool8(),
		X:        r.f32(),
		Y:        r.f32(),
		Z:        r.f32(),
	}
}

// FeedbackBlockChange 放置/破坏请求的反馈，Success 表示是否被允许
type FeedbackBlockChange struct {
	PacketID int64
	Success  bool
	X, Y, Z  int32
	Block    byte
}

func (p *FeedbackBlockChange) Type() Type { return TypeFeedbackBlockChange }
func (p *FeedbackBlockChange) ID() int64  { return p.PacketID }

func (p *FeedbackBlockChange) appendBody(b *bytes.Buffer) error {
	putBool(b, p.Success)
	putI32(b, p.X)
	putI32(b, p.Y)
	putI32(b, p.Z)
	putU8(b, p.Block)
	return nil
}

func decodeFeedbackBlockChange(r *reader, id int64) *FeedbackBlockChange {
	return &FeedbackBlockChange{
		PacketID: id,
		Success:  r.bool8(),
		X:        r.i32(),
		Y:        r.i32(),
		Z:        r.i32(),
		Block:    r.u8(),
	}
}

// FeedbackLogin 登录反馈，携带分配的 UUID 与最终名字
type FeedbackLogin struct {
	PacketID int64
	Success  bool
	UUID     string
	Name     string
}

func (p *FeedbackLogin) Type() Type { return TypeFeedbackLogin }
func (p *FeedbackLogin) ID() int64  { return p.PacketID }

func (p *FeedbackLogin) appendBody(b *bytes.Buffer) error {
	putBool(b, p.Success)
	if err := putString(b, p.UUID); err != nil {
		return err
	}
	return putString(b, p.Name)
}

func decodeFeedbackLogin(r *reader, id int64) *FeedbackLogin {
	return &FeedbackLogin{
		PacketID: id,
		Success:  r.bool8(),
		UUID:     r.str(),
		Name:     r.str(),
	}
}

// --- S -> C 广播 ---

// InfoPlayerMove 广播：某玩家的位置与视角；Skin 可选，周期广播时为空
type InfoPlayerMove struct {
	PacketID   int64
	UUID       string
	Name       string
	X, Y, Z    float32
	Yaw, Pitch float32
	Skin       string
}

func (p *InfoPlayerMove) Type() Type { return TypeInfoPlayerMove }
func (p *InfoPlayerMove) ID() int64  { return p.PacketID }

func (p *InfoPlayerMove) appendBody(b *bytes.Buffer) error {
	if err := putString(b, p.UUID); err != nil {
		return err
	}
	if err := putString(b, p.Name); err != nil {
		return err
	}
	putF32(b, p.X)
	putF32(b, p.Y)
	putF32(b, p.Z)
	putF32(b, p.Yaw)
	putF32(b, p.Pitch)
	return putString(b, p.Skin)
}

func decodeInfoPlayerMove(r *reader, id int64) *InfoPlayerMove {
	return &InfoPlayerMove{
		PacketID: id,
		UUID:     r.str(),
		Name:     r.str(),
		X:        r.f32(),
		Y:        r.f32(),
		Z:        r.f32(),
		Yaw:      r.f32(),
		Pitch:    r.f32(),
		Skin:     r.str(),
	}
}

// InfoBlockChange 广播：某坐标的方块发生变化
type InfoBlockChange struct {
	PacketID int64
	X, Y, Z  int32
	Block    byte
}

func (p *InfoBlockChange) Type() Type { return TypeInfoBlockChange }
func (p *InfoBlockChange) ID() int64  { return p.PacketID }

func (p *InfoBlockChange) appendBody(b *bytes.Buffer) error {
	putI32(b, p.X)
	putI32(b, p.Y)
	putI32(b, p.Z)
	putU8(b, p.Block)
	return nil
}

func decodeInfoBlockChange(r *reader, id int64) *InfoBlockChange {
	return &InfoBlockChange{
		PacketID: id,
		X:        r.i32(),
		Y:        r.i32(),
		Z:        r.i32(),
		Block:    r.u8(),
	}
}

// InfoPlayerJoin 广播：新玩家加入
type InfoPlayerJoin struct {
	PacketID int64
	UUID     string
	Name     string
	Skin     string
}

func (p *InfoPlayerJoin) Type() Type { return TypeInfoPlayerJoin }
func (p *InfoPlayerJoin) ID() int64  { return p.PacketID }

func (p *InfoPlayerJoin) appendBody(b *bytes.Buffer) error {
	if err := putString(b, p.UUID); err != nil {
		return err
	}
	if err := putString(b, p.Name); err != nil {
		return err
	}
	return putString(b, p.Skin)
}

func decodeInfoPlayerJoin(r *reader, id int64) *InfoPlayerJoin {
	return &InfoPlayerJoin{
		PacketID: id,
		UUID:     r.str(),
		Name:     r.str(),
		Skin:     r.str(),
	}
}

// InfoPlayerLeave 广播：玩家离开
type InfoPlayerLeave struct {
	PacketID int64
	UUID     string
	Name     string
}

func (p *InfoPlayerLeave) Type() Type { return TypeInfoPlayerLeave }
func (p *InfoPlayerLeave) ID() int64  { return p.PacketID }

func (p *InfoPlayerLeave) appendBody(b *bytes.Buffer) error {
	if err := putString(b, p.UUID); err != nil {
		return err
	}
	return putString(b, p.Name)
}

func decodeInfoPlayerLeave(r *reader, id int64) *InfoPlayerLeave {
	return &InfoPlayerLeave{
		PacketID: id,
		UUID:     r.str(),
		Name:     r.str(),
	}
}

// InfoChunkData 广播：整块区块数据。Blocks 为按 x,y,z 展平的原始体素字节，
// 线缆上以 zstd 压缩后传输：[i32 cx][i32 cz][u32 压缩长度][压缩数据]
type InfoChunkData struct {
	PacketID       int64
	ChunkX, ChunkZ int32
	Blocks         []byte
}

func (p *InfoChunkData) Type() Type { return TypeInfoChunkData }
func (p *InfoChunkData) ID() int64  { return p.PacketID }

// EncodeAll/DecodeAll 可并发复用同一对编解码器
var (
	chunkEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	chunkDec, _ = zstd.NewReader(nil)
)

func (p *InfoChunkData) appendBody(b *bytes.Buffer) error {
	putI32(b, p.ChunkX)
	putI32(b, p.ChunkZ)
	blob := chunkEnc.EncodeAll(p.Blocks, nil)
	putU32(b, uint32(len(blob)))
	b.Write(blob)
	return nil
}

func decodeInfoChunkData(r *reader, id int64) *InfoChunkData {
	p := &InfoChunkData{
		PacketID: id,
		ChunkX:   r.i32(),
		ChunkZ:   r.i32(),
	}
	n := int(r.i32())
	blob := r.take(n)
	if blob == nil {
		return p
	}
	raw, err := chunkDec.DecodeAll(blob, nil)
	if err != nil {
		r.err = fmt.Errorf("chunk data: %w", err)
		return p
	}
	p.Blocks = raw
	return p
}
