// Package protocol 把 Header 与负载组合成二进制或文本信封，并负责反向解析与请求分发
package protocol

import (
	_ "embed"
	"fmt"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
)

//go:embed remoteentity.fmq.yaml
var schema []byte

const (
	HeaderTypeName         = "remoteentity.Header"
	GenericMessageTypeName = "remoteentity.GenericMessage"
)

// 信封格式
const (
	ContentTypeProto = 1
	ContentTypeJSON  = 2
)

// CorrelationIDNone 不需要回复
const CorrelationIDNone int64 = 0

type MsgMode int32

const (
	MsgRequest MsgMode = 0
	MsgReply   MsgMode = 1
)

func (m MsgMode) String() string {
	switch m {
	case MsgRequest:
		return "MSG_REQUEST"
	case MsgReply:
		return "MSG_REPLY"
	default:
		return fmt.Sprintf("MsgMode(%d)", int32(m))
	}
}

type Status int32

const (
	StatusOK                  Status = 0
	StatusEntityNotFound      Status = 1
	StatusSyntaxError         Status = 2
	StatusRequestNotFound     Status = 3
	StatusRequestTypeNotKnown Status = 4
)

var statusNames = map[Status]string{
	StatusOK:                  "STATUS_OK",
	StatusEntityNotFound:      "STATUS_ENTITY_NOT_FOUND",
	StatusSyntaxError:         "STATUS_SYNTAX_ERROR",
	StatusRequestNotFound:     "STATUS_REQUEST_NOT_FOUND",
	StatusRequestTypeNotKnown: "STATUS_REQUESTTYPE_NOT_KNOWN",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Header 信封头
type Header struct {
	DestName string  `fmq:"destname"`
	DestID   uint64  `fmq:"destid"`
	SrcID    uint64  `fmq:"srcid"`
	Mode     MsgMode `fmq:"mode"`
	CorrID   int64   `fmq:"corrid"`
	Status   Status  `fmq:"status"`
	Type     string  `fmq:"type"`
}

func (*Header) TypeName() string { return HeaderTypeName }

// GenericMessage 本地没有工厂的负载，按原样保存线格式数据以便转发
type GenericMessage struct {
	Type        string `fmq:"type"`
	ContentType uint32 `fmq:"contenttype"`
	Data        []byte `fmq:"data"`
}

func (*GenericMessage) TypeName() string { return GenericMessageTypeName }

// RegisterTypes 注册 remoteentity 的 schema 与 Go 类型，factory 可为 nil
func RegisterTypes(reg *metadata.Registry, factory *serializestruct.Factory) error {
	if err := metadata.LoadSchema(reg, schema); err != nil {
		return fmt.Errorf("protocol.RegisterTypes: %w", err)
	}
	if factory == nil {
		return nil
	}
	for _, proto := range []serializestruct.Struct{&Header{}, &GenericMessage{}} {
		if err := factory.RegisterType(proto); err != nil {
			return fmt.Errorf("protocol.RegisterTypes: %w", err)
		}
	}
	return nil
}

// ShallSend 没有 corrid 的请求不需要应答，除非目标实体不存在
func ShallSend(h *Header) bool {
	return h.Mode != MsgReply || h.Status == StatusEntityNotFound || h.CorrID != CorrelationIDNone
}
