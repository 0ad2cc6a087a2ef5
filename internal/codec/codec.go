// Package codec 按名称选择线格式（json、proto、qt），并提供结构体编解码与格式互转
package codec

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/observe"
	"github.com/helmut-steiner/finalmq/internal/serialize"
	"github.com/helmut-steiner/finalmq/internal/serializejson"
	"github.com/helmut-steiner/finalmq/internal/serializeproto"
	"github.com/helmut-steiner/finalmq/internal/serializeqt"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
)

const (
	ApplicationJson     = "application/json"
	ApplicationProtobuf = "application/x-protobuf"
	ApplicationQt       = "application/x-qdatastream"
)

const blockSize = 1024

var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrTooLarge     = errors.New("input exceeds max size")
)

// Codec 一种线格式的解析器/序列化器工厂
type Codec interface {
	Name() string
	ContentType() string
	NewParser(reg *metadata.Registry, visitor serialize.Visitor, data []byte) serialize.Parser
	NewSerializer(reg *metadata.Registry, out *buffer.Buffer) serialize.Visitor
}

type jsonCodec struct{ opts []serializejson.Option }

func (jsonCodec) Name() string        { return "json" }
func (jsonCodec) ContentType() string { return ApplicationJson }
func (jsonCodec) NewParser(reg *metadata.Registry, v serialize.Visitor, data []byte) serialize.Parser {
	return serializejson.NewParser(reg, v, data)
}
func (c jsonCodec) NewSerializer(reg *metadata.Registry, out *buffer.Buffer) serialize.Visitor {
	return serializejson.NewSerializer(reg, out, c.opts...)
}

type protoCodec struct{}

func (protoCodec) Name() string        { return "proto" }
func (protoCodec) ContentType() string { return ApplicationProtobuf }
func (protoCodec) NewParser(reg *metadata.Registry, v serialize.Visitor, data []byte) serialize.Parser {
	return serializeproto.NewParser(reg, v, data)
}
func (protoCodec) NewSerializer(reg *metadata.Registry, out *buffer.Buffer) serialize.Visitor {
	return serializeproto.NewSerializer(reg, out)
}

type qtCodec struct{}

func (qtCodec) Name() string        { return "qt" }
func (qtCodec) ContentType() string { return ApplicationQt }
func (qtCodec) NewParser(reg *metadata.Registry, v serialize.Visitor, data []byte) serialize.Parser {
	return serializeqt.NewParser(reg, v, data)
}
func (qtCodec) NewSerializer(reg *metadata.Registry, out *buffer.Buffer) serialize.Visitor {
	return serializeqt.NewSerializer(reg, out)
}

var (
	JSON  Codec = jsonCodec{}
	Proto Codec = protoCodec{}
	Qt    Codec = qtCodec{}

	codecs = map[string]Codec{
		JSON.Name():  JSON,
		Proto.Name(): Proto,
		Qt.Name():    Qt,
	}
)

// JSONWithEnumAsNumber 枚举写成数字的 JSON 编码
func JSONWithEnumAsNumber() Codec {
	return jsonCodec{opts: []serializejson.Option{serializejson.WithEnumAsNumber()}}
}

// Lookup 按名称或 MIME 类型查找
func Lookup(name string) (Codec, bool) {
	if c, ok := codecs[name]; ok {
		return c, true
	}
	for _, c := range codecs {
		if c.ContentType() == name {
			return c, true
		}
	}
	return nil, false
}

func MustLookup(name string) (Codec, error) {
	c, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("codec %q: %w", name, ErrUnknownCodec)
	}
	return c, nil
}

func Names() []string {
	names := make([]string, 0, len(codecs))
	for n := range codecs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Marshal 把结构体实例编码为 c 的线格式
func Marshal(c Codec, reg *metadata.Registry, s serializestruct.Struct) ([]byte, error) {
	out := buffer.New(blockSize)
	if err := serializestruct.NewParser(reg, c.NewSerializer(reg, out)).ParseStruct(s); err != nil {
		observe.IncCodecError(c.Name())
		return nil, fmt.Errorf("codec.Marshal %s: %w", c.Name(), err)
	}
	return out.Bytes(), nil
}

// Unmarshal 把 data 解码进 s
func Unmarshal(c Codec, reg *metadata.Registry, data []byte, s serializestruct.Struct) error {
	ser := serializestruct.NewSerializer(reg, s)
	if _, err := c.NewParser(reg, ser, data).ParseStruct(s.TypeName()); err != nil {
		observe.IncCodecError(c.Name())
		return fmt.Errorf("codec.Unmarshal %s: %w", c.Name(), err)
	}
	if err := ser.Err(); err != nil {
		observe.IncCodecError(c.Name())
		return fmt.Errorf("codec.Unmarshal %s: %w", c.Name(), err)
	}
	return nil
}

// Encode 编码后写入 w
func Encode(w io.Writer, c Codec, reg *metadata.Registry, s serializestruct.Struct) error {
	out := buffer.New(blockSize)
	if err := serializestruct.NewParser(reg, c.NewSerializer(reg, out)).ParseStruct(s); err != nil {
		observe.IncCodecError(c.Name())
		return fmt.Errorf("codec.Encode %s: %w", c.Name(), err)
	}
	_, err := out.WriteTo(w)
	return err
}

// Decode 读完 r 后解码进 s，maxSize > 0 时超过上限返回 ErrTooLarge
func Decode(r io.Reader, c Codec, reg *metadata.Registry, s serializestruct.Struct, maxSize int) error {
	data, err := readAll(r, maxSize)
	if err != nil {
		return fmt.Errorf("codec.Decode %s: %w", c.Name(), err)
	}
	return Unmarshal(c, reg, data, s)
}

func readAll(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Convert 不经过 Go 结构体，直接把 from 格式的 data 转成 to 格式
func Convert(reg *metadata.Registry, from, to Codec, typeName string, data []byte) ([]byte, error) {
	out := buffer.New(blockSize)
	if _, err := from.NewParser(reg, to.NewSerializer(reg, out), data).ParseStruct(typeName); err != nil {
		observe.IncCodecError(from.Name())
		return nil, fmt.Errorf("codec.Convert %s->%s: %w", from.Name(), to.Name(), err)
	}
	observe.IncConversion(from.Name(), to.Name())
	return out.Bytes(), nil
}
