package server

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/leycm/pycraft/protocol"
)

const writeTimeout = 5 * time.Second

// packetLink 抽象一条能收发协议帧的链路（TCP 或 WebSocket）
type packetLink interface {
	ReadPacket() (protocol.Packet, error)
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() string
}

// tcpLink 裸 TCP 链路：读端按长度前缀拆帧，写端带超时
type tcpLink struct {
	conn net.Conn
	br   *bufio.Reader
}

func newTCPLink(conn net.Conn) *tcpLink {
	return &tcpLink{conn: conn, br: bufio.NewReader(conn)}
}

func (l *tcpLink) ReadPacket() (protocol.Packet, error) {
	return protocol.ReadPacket(l.br)
}

func (l *tcpLink) WriteFrame(frame []byte) error {
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := l.conn.Write(frame)
	return err
}

func (l *tcpLink) Close() error {
	return l.conn.Close()
}

func (l *tcpLink) RemoteAddr() string {
	return l.conn.RemoteAddr().String()
}

// ClientConn 单个客户端连接的发送端封装。
// 同一个底层连接会被自身 handler 和广播协程同时写，所有写出都经写锁串行化，
// 不会出现交错的半截帧；反馈先于广播的顺序也由同步写保证。
type ClientConn struct {
	link packetLink
	mu   sync.Mutex
}

func newClientConn(link packetLink) *ClientConn {
	return &ClientConn{link: link}
}

// Read 读下一个数据包（仅连接自己的 handler 调用）
func (c *ClientConn) Read() (protocol.Packet, error) {
	return c.link.ReadPacket()
}

// Send 编码并发送一个数据包
func (c *ClientConn) Send(p protocol.Packet) error {
	frame, err := protocol.Encode(p)
	if err != nil {
		return err
	}
	return c.SendFrame(frame)
}

// SendFrame 发送预编码帧；广播路径复用同一份编码结果
func (c *ClientConn) SendFrame(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link.WriteFrame(frame)
}

func (c *ClientConn) Close() {
	_ = c.link.Close()
}

func (c *ClientConn) RemoteAddr() string {
	return c.link.RemoteAddr()
}
