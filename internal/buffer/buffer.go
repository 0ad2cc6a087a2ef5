// Package buffer 序列化器使用的分块发送缓冲区，以及二进制解析器使用的带边界检查的读游标
package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const DefaultBlockSize = 2048

var (
	ErrShortBuffer = errors.New("buffer: not enough data")
	ErrPatchSize   = errors.New("buffer: patch size does not match reservation")
)

// Buffer 分块的只追加缓冲区，扩容不移动已写入的字节，Reservation 始终有效
type Buffer struct {
	blocks    [][]byte
	blockSize int
	size      int
}

// New 创建缓冲区，每块至少 blockSize 字节
func New(blockSize int) *Buffer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Buffer{blockSize: blockSize}
}

// Len 已写入的字节数
func (b *Buffer) Len() int { return b.size }

// tail 返回至少有 n 字节空闲的块
func (b *Buffer) tail(n int) []byte {
	if len(b.blocks) > 0 {
		last := b.blocks[len(b.blocks)-1]
		if cap(last)-len(last) >= n {
			return last
		}
	}
	size := b.blockSize
	if n > size {
		size = n
	}
	b.blocks = append(b.blocks, make([]byte, 0, size))
	return b.blocks[len(b.blocks)-1]
}

// Write 追加 p，先填满当前块再分配下一块
func (b *Buffer) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		blk := b.tail(1)
		free := cap(blk) - len(blk)
		if free > len(p) {
			free = len(p)
		}
		b.blocks[len(b.blocks)-1] = append(blk, p[:free]...)
		p = p[free:]
	}
	b.size += n
	return n, nil
}

func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

func (b *Buffer) WriteByte(c byte) error {
	blk := b.tail(1)
	b.blocks[len(b.blocks)-1] = append(blk, c)
	b.size++
	return nil
}

// Reserve 追加 n 个连续的占位字节，返回用于稍后回填的句柄
func (b *Buffer) Reserve(n int) Reservation {
	blk := b.tail(n)
	off := len(blk)
	b.blocks[len(b.blocks)-1] = append(blk, make([]byte, n)...)
	b.size += n
	return Reservation{buf: b, block: len(b.blocks) - 1, off: off, n: n}
}

// Bytes 以单个切片返回已写入的内容
func (b *Buffer) Bytes() []byte {
	if len(b.blocks) == 1 {
		return b.blocks[0]
	}
	out := make([]byte, 0, b.size)
	for _, blk := range b.blocks {
		out = append(out, blk...)
	}
	return out
}

// WriteTo 逐块写到 w
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, blk := range b.blocks {
		n, err := w.Write(blk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Reset 丢弃内容，保留第一块
func (b *Buffer) Reset() {
	if len(b.blocks) > 0 {
		b.blocks = b.blocks[:1]
		b.blocks[0] = b.blocks[0][:0]
	}
	b.size = 0
}

// Reservation Buffer 中的定长区域
type Reservation struct {
	buf   *Buffer
	block int
	off   int
	n     int
}

func (r Reservation) Len() int { return r.n }

// Patch 覆盖预留区域，len(p) 必须等于预留大小
func (r Reservation) Patch(p []byte) error {
	if r.buf == nil || len(p) != r.n {
		return fmt.Errorf("%w: have %d, want %d", ErrPatchSize, len(p), r.n)
	}
	copy(r.buf.blocks[r.block][r.off:r.off+r.n], p)
	return nil
}

// PutUint32LE 以小端写入 4 字节预留区
func (r Reservation) PutUint32LE(v uint32) error {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return r.Patch(tmp[:])
}
