package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/protocol"
	"github.com/helmut-steiner/finalmq/pkg/logger"
)

// Message 内存消息：发送方向写 send，接收方向读 recv
type Message struct {
	send *buffer.Buffer
	recv []byte
}

var _ protocol.Message = (*Message)(nil)

// NewReceivedMessage 用收到的负载构造消息
func NewReceivedMessage(payload []byte) *Message {
	return &Message{recv: payload}
}

func (m *Message) AllocateSendBuffer(hint int) *buffer.Buffer {
	if m.send == nil {
		m.send = buffer.New(hint)
	}
	return m.send
}

func (m *Message) ReceivePayload() []byte { return m.recv }

// SendPayload 已写入的发送内容
func (m *Message) SendPayload() []byte {
	if m.send == nil {
		return nil
	}
	return m.send.Bytes()
}

// Base 基础会话信息
type Base struct {
	id          string
	contentType int
	closed      int32
}

func newBase(contentType int) Base {
	return Base{id: uuid.New().String(), contentType: contentType}
}

func (b *Base) ID() string       { return b.id }
func (b *Base) ContentType() int { return b.contentType }

func (b *Base) CreateMessage() protocol.Message { return &Message{} }

func (b *Base) Closed() bool { return atomic.LoadInt32(&b.closed) == 1 }

func (b *Base) Close() error {
	atomic.StoreInt32(&b.closed, 1)
	return nil
}

// MemSession 把发送的消息收集到 outbox，用于测试和离线转换
type MemSession struct {
	Base
	mu     sync.Mutex
	outbox []*Message
}

var _ protocol.Session = (*MemSession)(nil)

func NewMemSession(contentType int) *MemSession {
	return &MemSession{Base: newBase(contentType)}
}

func (s *MemSession) SendMessage(msg protocol.Message) error {
	if s.Closed() {
		return ErrSessionClosed.withContext(s.id)
	}
	m, ok := msg.(*Message)
	if !ok {
		return ErrForeignMessage.withContext(fmt.Sprintf("%T", msg))
	}
	s.mu.Lock()
	s.outbox = append(s.outbox, m)
	s.mu.Unlock()
	return nil
}

// Drain 取走并清空 outbox
func (s *MemSession) Drain() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outbox
	s.outbox = nil
	return out
}

// StreamSession 在 io 流上以 FrameCodec 收发消息
type StreamSession struct {
	Base
	r     io.Reader
	w     io.Writer
	codec *FrameCodec
	log   *zap.Logger
}

var _ protocol.Session = (*StreamSession)(nil)

func NewStreamSession(r io.Reader, w io.Writer, contentType int, codec *FrameCodec) *StreamSession {
	s := &StreamSession{Base: newBase(contentType), r: r, w: w, codec: codec}
	s.log = logger.L().Named("transport").With(zap.String("session", s.id))
	return s
}

func (s *StreamSession) SendMessage(msg protocol.Message) error {
	if s.Closed() {
		return ErrSessionClosed.withContext(s.id)
	}
	m, ok := msg.(*Message)
	if !ok {
		return ErrForeignMessage.withContext(fmt.Sprintf("%T", msg))
	}
	if m.send == nil {
		return s.codec.WriteFrame(s.w, nil)
	}
	return s.codec.WriteBuffer(s.w, m.send)
}

// Receive 读取下一帧
func (s *StreamSession) Receive() (*Message, error) {
	data, err := s.codec.ReadFrame(s.r)
	if err != nil {
		return nil, err
	}
	return NewReceivedMessage(data), nil
}

// Serve 循环读取帧交给 handle，直到流结束、ctx 取消或 handle 出错
//
// 正常的 io.EOF 返回 nil。
func (s *StreamSession) Serve(ctx context.Context, handle func(protocol.Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msg, err := s.Receive()
		if errors.Is(err, io.EOF) {
			s.log.Debug("stream closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("transport.Serve: %w", err)
		}
		if err := handle(msg); err != nil {
			return fmt.Errorf("transport.Serve: %w", err)
		}
	}
}
