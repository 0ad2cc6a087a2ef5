package transport

import (
	"fmt"
)

// 传输层错误定义，errors.Is 按错误码比较
var (
	ErrSessionClosed  = NewTpError(1001, "Session is closed", "")
	ErrFrameTooLarge  = NewTpError(1003, "Frame too large", "")
	ErrForeignMessage = NewTpError(1004, "Message was not created by this transport", "")
)

type tpError struct {
	code    int
	msg     string
	context string
}

func (e *tpError) Error() string {
	if e.context != "" {
		return fmt.Sprintf("Error %d: %s (context: %s)", e.code, e.msg, e.context)
	}
	return fmt.Sprintf("Error %d: %s", e.code, e.msg)
}

func (e *tpError) Code() int { return e.code }

func (e *tpError) Is(target error) bool {
	t, ok := target.(*tpError)
	return ok && t.code == e.code
}

// withContext 复制一份带上下文（会话 id、消息类型等）的错误
func (e *tpError) withContext(context string) *tpError {
	return &tpError{code: e.code, msg: e.msg, context: context}
}

func NewTpError(code int, message string, context string) *tpError {
	return &tpError{
		code:    code,
		msg:     message,
		context: context,
	}
}
