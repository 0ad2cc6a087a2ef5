package buffer

import (
	"encoding/binary"
	"fmt"
)

// Cursor 字节切片上的读游标，不会越界读取
type Cursor struct {
	data []byte
	pos  int
}

func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Pos 当前读取偏移
func (c *Cursor) Pos() int { return c.pos }

// Remaining 未读字节数
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// Next 读取接下来的 n 字节
func (c *Cursor) Next(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d at offset %d, have %d", ErrShortBuffer, n, c.pos, c.Remaining())
	}
	p := c.data[c.pos : c.pos+n]
	c.pos += n
	return p, nil
}

// Rest 返回全部未读字节并移到末尾
func (c *Cursor) Rest() []byte {
	p := c.data[c.pos:]
	c.pos = len(c.data)
	return p
}

func (c *Cursor) Uint8() (uint8, error) {
	p, err := c.Next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (c *Cursor) Uint16BE() (uint16, error) {
	p, err := c.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (c *Cursor) Uint32BE() (uint32, error) {
	p, err := c.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (c *Cursor) Uint64BE() (uint64, error) {
	p, err := c.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}

func (c *Cursor) Uint32LE() (uint32, error) {
	p, err := c.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}
