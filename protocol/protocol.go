package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// 线上帧格式：[4字节大端总长][1字节类型][8字节大端包序号][类型专属包体]
// 长度前缀覆盖类型+序号+包体，不含自身；所有整数大端，浮点为 IEEE-754 单精度。

// Type 是数据包的一字节类型标签（线缆层判别式）
type Type byte

const (
	// C -> S
	TypePlayerMoveRequest Type = 1
	TypePlaceBlockRequest Type = 2
	TypeBreakBlockRequest Type = 3
	TypeLoginRequest      Type = 4

	// S -> C 单播反馈
	TypeFeedbackPlayerMove  Type = 101
	TypeFeedbackBlockChange Type = 102
	TypeFeedbackLogin       Type = 103

	// S -> C 广播
	TypeInfoPlayerMove  Type = 201
	TypeInfoBlockChange Type = 202
	TypeInfoPlayerJoin  Type = 203
	TypeInfoPlayerLeave Type = 204
	TypeInfoChunkData   Type = 205
)

const (
	headerSize = 9 // 1 字节类型 + 8 字节包序号

	// MaxFrameSize 限制单帧长度，拒绝异常的长度前缀
	MaxFrameSize = 1 << 22
)

var (
	ErrUnknownType   = errors.New("protocol: unknown packet type")
	ErrFrameTooLarge = errors.New("protocol: frame exceeds size limit")
	ErrShortFrame    = errors.New("protocol: frame shorter than header")
	ErrStringTooLong = errors.New("protocol: string exceeds 65535 bytes")
)

// Packet 是所有数据包的封闭集合；新增类型需同时登记编号、编码与解码分支。
type Packet interface {
	Type() Type
	ID() int64
	appendBody(b *bytes.Buffer) error
}

// Encode 将数据包编码为带长度前缀的完整帧
func Encode(p Packet) ([]byte, error) {
	var body bytes.Buffer
	if err := p.appendBody(&body); err != nil {
		return nil, err
	}
	n := headerSize + body.Len()
	out := make([]byte, 0, 4+n)
	var hdr [4 + headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(n))
	hdr[4] = byte(p.Type())
	binary.BigEndian.PutUint64(hdr[5:13], uint64(p.ID()))
	out = append(out, hdr[:]...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// ReadFrame 按长度前缀读满一帧，返回类型+序号+包体部分（不含前缀）。
// 对端在帧边界干净关闭时返回 io.EOF；帧中途断开返回 io.ErrUnexpectedEOF。
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n < headerSize {
		return nil, ErrShortFrame
	}
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// ReadPacket 读取并解码一个完整数据包
func ReadPacket(r io.Reader) (Packet, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return Decode(frame)
}

// Decode 解码一帧（不含长度前缀）：先取类型标签，再按登记的布局解包体。
// 未知标签是硬错误，不会被静默跳过。
func Decode(frame []byte) (Packet, error) {
	if len(frame) < headerSize {
		return nil, ErrShortFrame
	}
	t := Type(frame[0])
	id := int64(binary.BigEndian.Uint64(frame[1:9]))
	rd := &reader{buf: frame[headerSize:]}

	var p Packet
	switch t {
	case TypePlayerMoveRequest:
		p = decodePlayerMoveRequest(rd, id)
	case TypePlaceBlockRequest:
		p = decodePlaceBlockRequest(rd, id)
	case TypeBreakBlockRequest:
		p = decodeBreakBlockRequest(rd, id)
	case TypeLoginRequest:
		p = decodeLoginRequest(rd, id)
	case TypeFeedbackPlayerMove:
		p = decodeFeedbackPlayerMove(rd, id)
	case TypeFeedbackBlockChange:
		p = decodeFeedbackBlockChange(rd, id)
	case TypeFeedbackLogin:
		p = decodeFeedbackLogin(rd, id)
	case TypeInfoPlayerMove:
		p = decodeInfoPlayerMove(rd, id)
	case TypeInfoBlockChange:
		p = decodeInfoBlockChange(rd, id)
	case TypeInfoPlayerJoin:
		p = decodeInfoPlayerJoin(rd, id)
	case TypeInfoPlayerLeave:
		p = decodeInfoPlayerLeave(rd, id)
	case TypeInfoChunkData:
		p = decodeInfoChunkData(rd, id)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if rd.err != nil {
		return nil, fmt.Errorf("protocol: decode %d: %w", t, rd.err)
	}
	return p, nil
}

// reader 是带粘性错误的包体读取器：任一字段越界后，后续读取全部短路
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) bool8() bool {
	return r.u8() != 0
}

func (r *reader) i32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *reader) f32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func (r *reader) str() string {
	b := r.take(2)
	if b == nil {
		return ""
	}
	n := int(binary.BigEndian.Uint16(b))
	s := r.take(n)
	if s == nil {
		return ""
	}
	return string(s)
}

func putU8(b *bytes.Buffer, v byte) {
	b.WriteByte(v)
}

func putBool(b *bytes.Buffer, v bool) {
	if v {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
}

func putI32(b *bytes.Buffer, v int32) {
	var t [4]byte
	binary.BigEndian.PutUint32(t[:], uint32(v))
	b.Write(t[:])
}

func putU32(b *bytes.Buffer, v uint32) {
	var t [4]byte
	binary.BigEndian.PutUint32(t[:], v)
	b.Write(t[:])
}

func putF32(b *bytes.Buffer, v float32) {
	putU32(b, math.Float32bits(v))
}

// putString 写入 [2字节大端长度][UTF-8 字节]；可选字符串缺省时写零长度，不用空标记
func putString(b *bytes.Buffer, s string) error {
	if len(s) > 0xFFFF {
		return ErrStringTooLong
	}
	var t [2]byte
	binary.BigEndian.PutUint16(t[:], uint16(len(s)))
	b.Write(t[:])
	b.WriteString(s)
	return nil
}
