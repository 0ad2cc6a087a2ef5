package protocol

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/observe"
	"github.com/helmut-steiner/finalmq/internal/serialize"
	"github.com/helmut-steiner/finalmq/internal/serializejson"
	"github.com/helmut-steiner/finalmq/internal/serializeproto"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
	"github.com/helmut-steiner/finalmq/pkg/logger"
)

const (
	protoBlockSize = 2048
	jsonBlockSize  = 2048
)

var (
	ErrContentTypeMismatch = errors.New("generic message content type does not match envelope")
	ErrUnknownContentType  = errors.New("unknown content type")
)

// Format 信封的组装与解析
//
// 二进制信封：[u32 LE 头长度][proto 头][负载]
// 文本信封：[<头 JSON>,\t<负载>] 或 /dest/type#corrid{负载}
type Format struct {
	reg     *metadata.Registry
	factory *serializestruct.Factory
	log     *zap.Logger
}

// NewFormat reg 必须已包含 remoteentity 类型（见 RegisterTypes）
func NewFormat(reg *metadata.Registry, factory *serializestruct.Factory) *Format {
	return &Format{reg: reg, factory: factory, log: logger.L().Named("protocol")}
}

func formatName(contentType int) string {
	switch contentType {
	case ContentTypeProto:
		return "proto"
	case ContentTypeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// Serialize 把头和负载写入 msg 的发送缓冲区，payload 为 nil 时只写头
func (f *Format) Serialize(msg Message, contentType int, header *Header, payload serializestruct.Struct) error {
	if gm, ok := payload.(*GenericMessage); ok && int(gm.ContentType) != contentType {
		return fmt.Errorf("protocol.Serialize %s: %w", gm.Type, ErrContentTypeMismatch)
	}
	var err error
	switch contentType {
	case ContentTypeProto:
		err = f.serializeProto(msg.AllocateSendBuffer(protoBlockSize), header, payload)
	case ContentTypeJSON:
		err = f.serializeJSON(msg.AllocateSendBuffer(jsonBlockSize), header, payload)
	default:
		return fmt.Errorf("protocol.Serialize %d: %w", contentType, ErrUnknownContentType)
	}
	if err != nil {
		return fmt.Errorf("protocol.Serialize: %w", err)
	}
	observe.IncSent(formatName(contentType))
	return nil
}

func (f *Format) serializeProto(out *buffer.Buffer, header *Header, payload serializestruct.Struct) error {
	sizeHeader := out.Reserve(4)
	start := out.Len()
	if err := serializestruct.NewParser(f.reg, serializeproto.NewSerializer(f.reg, out)).ParseStruct(header); err != nil {
		return err
	}
	if err := sizeHeader.PutUint32LE(uint32(out.Len() - start)); err != nil {
		return err
	}
	switch p := payload.(type) {
	case nil:
		return nil
	case *GenericMessage:
		_, err := out.Write(p.Data)
		return err
	default:
		return serializestruct.NewParser(f.reg, serializeproto.NewSerializer(f.reg, out)).ParseStruct(p)
	}
}

func (f *Format) serializeJSON(out *buffer.Buffer, header *Header, payload serializestruct.Struct) error {
	_ = out.WriteByte('[')
	if err := serializestruct.NewParser(f.reg, serializejson.NewSerializer(f.reg, out)).ParseStruct(header); err != nil {
		return err
	}
	switch p := payload.(type) {
	case nil:
		_, _ = out.WriteString(",\t{}]")
		return nil
	case *GenericMessage:
		_, _ = out.WriteString(",\t")
		_, _ = out.Write(p.Data)
	default:
		_, _ = out.WriteString(",\t")
		if err := serializestruct.NewParser(f.reg, serializejson.NewSerializer(f.reg, out)).ParseStruct(p); err != nil {
			return err
		}
	}
	return out.WriteByte(']')
}

// Send 按会话的格式发送，被 ShallSend 拦下的应答直接返回 nil
func (f *Format) Send(session Session, header *Header, payload serializestruct.Struct) error {
	if !ShallSend(header) {
		observe.IncSuppressed()
		f.log.Debug("reply suppressed", zap.String("destname", header.DestName), zap.Stringer("status", header.Status))
		return nil
	}
	msg := session.CreateMessage()
	if err := f.Serialize(msg, session.ContentType(), header, payload); err != nil {
		return err
	}
	if err := session.SendMessage(msg); err != nil {
		return fmt.Errorf("protocol.Send: %w", err)
	}
	return nil
}

// ParseMessage 解析 msg 的接收负载，header 被就地填充
//
// 返回 (负载, 语法错误)。没有负载或缓冲区过短时返回 (nil, false)。
func (f *Format) ParseMessage(msg Message, contentType int, header *Header) (serializestruct.Struct, bool) {
	switch contentType {
	case ContentTypeProto:
		return f.ParseProto(msg.ReceivePayload(), header)
	case ContentTypeJSON:
		return f.ParseJSON(msg.ReceivePayload(), header)
	default:
		f.log.Warn("unknown content type", zap.Int("contenttype", contentType))
		return nil, false
	}
}

// ParseProto 解析二进制信封
func (f *Format) ParseProto(buf []byte, header *Header) (serializestruct.Struct, bool) {
	cur := buffer.NewCursor(buf)
	sizeHeader, err := cur.Uint32LE()
	if err != nil {
		f.log.Debug("buffer size too small", zap.Int("size", len(buf)))
		return nil, false
	}
	observe.IncReceived("proto")
	if uint64(sizeHeader) > uint64(cur.Remaining()) {
		return f.syntaxError("proto", "header size exceeds buffer", zap.Uint32("headersize", sizeHeader))
	}
	headerBytes, _ := cur.Next(int(sizeHeader))
	if err := f.decode(f.protoParser(headerBytes), header); err != nil {
		return f.syntaxError("proto", "header decode failed", zap.Error(err))
	}
	if header.Type == "" {
		return nil, false
	}
	rest := cur.Rest()
	data, ok := f.factory.Create(header.Type)
	if !ok {
		observe.IncPassThrough("proto")
		return &GenericMessage{Type: header.Type, ContentType: ContentTypeProto, Data: append([]byte{}, rest...)}, false
	}
	if err := f.decode(f.protoParser(rest), data); err != nil {
		return f.syntaxError("proto", "payload decode failed", zap.String("type", header.Type), zap.Error(err))
	}
	return data, false
}

// ParseJSON 解析文本信封，支持完整头对象和 /dest/type#corrid 路径头两种形式
func (f *Format) ParseJSON(buf []byte, header *Header) (serializestruct.Struct, bool) {
	if len(buf) == 0 {
		return nil, false
	}
	observe.IncReceived("json")
	if buf[0] == '[' {
		buf = buf[1:]
	}
	if n := len(buf); n > 0 && buf[n-1] == ']' {
		buf = buf[:n-1]
	}

	var rest []byte
	if len(buf) > 0 && buf[0] == '/' {
		rest = parsePathHeader(buf, header)
	} else {
		ser := serializestruct.NewSerializer(f.reg, header)
		end, err := serializejson.NewParser(f.reg, ser, buf).ParseStruct(HeaderTypeName)
		if err == nil {
			err = ser.Err()
		}
		if err != nil {
			return f.syntaxError("json", "header decode failed", zap.Error(err))
		}
		rest = skipSeparator(buf[end:])
	}
	if header.Type == "" {
		return nil, false
	}

	data, ok := f.factory.Create(header.Type)
	if !ok {
		observe.IncPassThrough("json")
		return &GenericMessage{Type: header.Type, ContentType: ContentTypeJSON, Data: append([]byte{}, rest...)}, false
	}
	if len(rest) == 0 {
		return data, false
	}
	if err := f.decode(f.jsonParser(rest), data); err != nil {
		return f.syntaxError("json", "payload decode failed", zap.String("type", header.Type), zap.Error(err))
	}
	return data, false
}

func (f *Format) decode(newParser func(serialize.Visitor) serialize.Parser, target serializestruct.Struct) error {
	ser := serializestruct.NewSerializer(f.reg, target)
	if _, err := newParser(ser).ParseStruct(target.TypeName()); err != nil {
		return err
	}
	return ser.Err()
}

func (f *Format) protoParser(data []byte) func(serialize.Visitor) serialize.Parser {
	return func(v serialize.Visitor) serialize.Parser { return serializeproto.NewParser(f.reg, v, data) }
}

func (f *Format) jsonParser(data []byte) func(serialize.Visitor) serialize.Parser {
	return func(v serialize.Visitor) serialize.Parser { return serializejson.NewParser(f.reg, v, data) }
}

func (f *Format) syntaxError(format, msg string, fields ...zap.Field) (serializestruct.Struct, bool) {
	observe.IncSyntaxError(format)
	f.log.Warn(msg, fields...)
	return nil, true
}

// skipSeparator 跳过头对象之后的空白和一个逗号
func skipSeparator(b []byte) []byte {
	b = trimSpace(b)
	if len(b) > 0 && b[0] == ',' {
		b = b[1:]
	}
	return trimSpace(b)
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 {
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			b = b[1:]
		default:
			return b
		}
	}
	return b
}
