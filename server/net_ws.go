package server

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leycm/pycraft/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// wsLink WebSocket 链路：一条二进制消息承载一个完整帧（含长度前缀），
// 与 TCP 端字节布局完全一致，客户端可共用同一套编解码
type wsLink struct {
	ws *websocket.Conn
}

func (l *wsLink) ReadPacket() (protocol.Packet, error) {
	for {
		mt, msg, err := l.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if len(msg) < 4 {
			return nil, fmt.Errorf("ws frame too short: %d bytes", len(msg))
		}
		declared := binary.BigEndian.Uint32(msg[:4])
		if int(declared) != len(msg)-4 {
			return nil, fmt.Errorf("ws frame length mismatch: declared %d, got %d", declared, len(msg)-4)
		}
		return protocol.Decode(msg[4:])
	}
}

func (l *wsLink) WriteFrame(frame []byte) error {
	_ = l.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return l.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (l *wsLink) Close() error {
	return l.ws.Close()
}

func (l *wsLink) RemoteAddr() string {
	return l.ws.RemoteAddr().String()
}

// HandleWS WebSocket 接入：网页客户端走同一套协议与状态机，
// 出生区块用单个压缩区块包下发，省掉上万个逐方块帧
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}
	h := &handler{
		srv:        s,
		conn:       newClientConn(&wsLink{ws: ws}),
		addr:       ws.RemoteAddr().String(),
		bulkChunks: true,
	}
	// 在 HTTP 处理协程内同步运行，连接断开即返回
	h.run()
}
