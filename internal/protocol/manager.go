package protocol

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/helmut-steiner/finalmq/internal/observe"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
)

// Manager 解析收到的请求、分发到 Router 并发送应答
type Manager struct {
	format *Format
	router *Router
	log    *zap.Logger
}

func NewManager(format *Format, router *Router) *Manager {
	return &Manager{format: format, router: router, log: format.log.Named("manager")}
}

func (m *Manager) Router() *Router { return m.router }

// ProcessMessage 处理 session 上收到的一条消息
//
// 语法错误应答 STATUS_SYNTAX_ERROR，没有处理函数应答 STATUS_REQUEST_NOT_FOUND，
// 缺少类型名应答 STATUS_REQUESTTYPE_NOT_KNOWN。收到的应答消息被忽略。
// 是否真正发出由 ShallSend 决定。
func (m *Manager) ProcessMessage(session Session, msg Message) error {
	var header Header
	payload, syntaxError := m.format.ParseMessage(msg, session.ContentType(), &header)

	reply := Header{
		DestID: header.SrcID,
		SrcID:  header.DestID,
		Mode:   MsgReply,
		CorrID: header.CorrID,
	}
	if syntaxError {
		return m.reply(session, &reply, StatusSyntaxError, nil)
	}
	if header.Mode == MsgReply {
		m.log.Debug("ignore reply", zap.Int64("corrid", header.CorrID), zap.Stringer("status", header.Status))
		return nil
	}
	if header.Type == "" {
		return m.reply(session, &reply, StatusRequestTypeNotKnown, nil)
	}
	h, ok := m.router.Lookup(header.Type)
	if !ok {
		m.log.Info("no handler", zap.String("type", header.Type), zap.String("destname", header.DestName))
		return m.reply(session, &reply, StatusRequestNotFound, nil)
	}
	result, err := h(&header, payload)
	if err != nil {
		observe.IncRequest("handler_error")
		return fmt.Errorf("protocol.ProcessMessage %s: %w", header.Type, err)
	}
	return m.reply(session, &reply, StatusOK, result)
}

func (m *Manager) reply(session Session, reply *Header, status Status, payload serializestruct.Struct) error {
	reply.Status = status
	observe.IncRequest(status.String())
	if payload != nil {
		reply.Type = payload.TypeName()
	}
	return m.format.Send(session, reply, payload)
}
