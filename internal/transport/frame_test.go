package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/helmut-steiner/finalmq/internal/buffer"
)

func TestFrameCodec_RoundTrip(t *testing.T) {
	c := NewFrameCodec(0)
	var stream bytes.Buffer

	payloads := [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{0xab}, 70*1024)}
	for _, p := range payloads {
		if err := c.WriteFrame(&stream, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for i, want := range payloads {
		got, err := c.ReadFrame(&stream)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d: got %d bytes, want %d", i, len(got), len(want))
		}
	}
	if _, err := c.ReadFrame(&stream); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestFrameCodec_WriteBuffer(t *testing.T) {
	c := NewFrameCodec(0)
	buf := buffer.New(4)
	_, _ = buf.WriteString("abcdefghij")

	var stream bytes.Buffer
	if err := c.WriteBuffer(&stream, buf); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	want := append([]byte{0, 0, 0, 10}, "abcdefghij"...)
	if !bytes.Equal(stream.Bytes(), want) {
		t.Fatalf("stream = %v, want %v", stream.Bytes(), want)
	}
}

func TestFrameCodec_TooLarge(t *testing.T) {
	c := NewFrameCodec(4)
	var stream bytes.Buffer
	if err := c.WriteFrame(&stream, []byte("12345")); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("WriteFrame err = %v, want ErrFrameTooLarge", err)
	}
	if stream.Len() != 0 {
		t.Fatalf("nothing should be written, got %d bytes", stream.Len())
	}

	stream.Write([]byte{0, 0, 0, 5, '1', '2', '3', '4', '5'})
	if _, err := c.ReadFrame(&stream); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("ReadFrame err = %v, want ErrFrameTooLarge", err)
	}
}

func TestFrameCodec_Truncated(t *testing.T) {
	c := NewFrameCodec(0)
	stream := bytes.NewReader([]byte{0, 0, 0, 5, 'a'})
	if _, err := c.ReadFrame(stream); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want ErrUnexpectedEOF", err)
	}
}
