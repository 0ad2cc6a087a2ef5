package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/helmut-steiner/finalmq/internal/buffer"
)

const DefaultMaxFrameSize = 16 * 1024 * 1024

// FrameCodec 长度前缀帧：4 字节大端长度 + 内容
type FrameCodec struct {
	readMu  sync.Mutex // 读锁
	writeMu sync.Mutex // 写锁
	maxSize int
	bufPool *sync.Pool // 用于复用缓冲区
}

// NewFrameCodec maxSize <= 0 时使用 DefaultMaxFrameSize
func NewFrameCodec(maxSize int) *FrameCodec {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameCodec{
		maxSize: maxSize,
		bufPool: &sync.Pool{
			New: func() any {
				return make([]byte, 64*1024)
			},
		},
	}
}

func (c *FrameCodec) MaxSize() int { return c.maxSize }

// WriteFrame 写入一个帧
func (c *FrameCodec) WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > c.maxSize {
		return fmt.Errorf("write frame %d bytes: %w", len(payload), ErrFrameTooLarge)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	// 先发长度，再发内容
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// WriteBuffer 按块写出发送缓冲区，不拼接
func (c *FrameCodec) WriteBuffer(w io.Writer, buf *buffer.Buffer) error {
	if buf.Len() > c.maxSize {
		return fmt.Errorf("write frame %d bytes: %w", buf.Len(), ErrFrameTooLarge)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(buf.Len()))
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// ReadFrame 读取一个帧，超过 maxSize 的帧不读取内容直接返回 ErrFrameTooLarge
func (c *FrameCodec) ReadFrame(r io.Reader) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint32(header[:]))
	if length > c.maxSize {
		return nil, fmt.Errorf("read frame %d bytes: %w", length, ErrFrameTooLarge)
	}

	buf := c.bufPool.Get().([]byte)
	if cap(buf) < length {
		buf = make([]byte, length)
	} else {
		buf = buf[:length]
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		c.bufPool.Put(buf[:cap(buf)])
		return nil, err
	}
	// 调用者可以持有返回值
	data := make([]byte, length)
	copy(data, buf)
	c.bufPool.Put(buf[:cap(buf)])
	return data, nil
}
