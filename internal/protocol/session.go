package protocol

import "github.com/helmut-steiner/finalmq/internal/buffer"

// Message 传输层的一条消息
type Message interface {
	// AllocateSendBuffer 返回发送缓冲区，hint 为建议的块大小
	AllocateSendBuffer(hint int) *buffer.Buffer
	// ReceivePayload 收到的完整负载
	ReceivePayload() []byte
}

// Session 传输层会话
type Session interface {
	ContentType() int
	CreateMessage() Message
	SendMessage(msg Message) error
}
