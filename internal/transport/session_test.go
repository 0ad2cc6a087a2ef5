package transport_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/protocol"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
	"github.com/helmut-steiner/finalmq/internal/testschema"
	"github.com/helmut-steiner/finalmq/internal/transport"
)

type otherMessage struct{ transport.Message }

func TestMemSession(t *testing.T) {
	s := transport.NewMemSession(protocol.ContentTypeJSON)
	other := transport.NewMemSession(protocol.ContentTypeJSON)
	assert.NotEqual(t, s.ID(), other.ID())
	assert.Equal(t, protocol.ContentTypeJSON, s.ContentType())

	msg := s.CreateMessage()
	buf := msg.AllocateSendBuffer(8)
	_, _ = buf.WriteString("abc")
	assert.Same(t, buf, msg.AllocateSendBuffer(8))
	require.NoError(t, s.SendMessage(msg))

	sent := s.Drain()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte("abc"), sent[0].SendPayload())
	assert.Empty(t, s.Drain())

	assert.True(t, errors.Is(s.SendMessage(&otherMessage{}), transport.ErrForeignMessage))
	require.NoError(t, s.Close())
	assert.True(t, errors.Is(s.SendMessage(msg), transport.ErrSessionClosed))
}

func TestStreamSession_Serve(t *testing.T) {
	reg := metadata.NewRegistry()
	factory := serializestruct.NewFactory()
	require.NoError(t, testschema.Register(reg, factory))
	require.NoError(t, protocol.RegisterTypes(reg, factory))
	require.NoError(t, reg.Freeze())
	factory.Freeze()

	format := protocol.NewFormat(reg, factory)
	router := protocol.NewRouter()
	router.Handle("test.TestRequest", func(h *protocol.Header, payload serializestruct.Struct) (serializestruct.Struct, error) {
		return &testschema.TestReply{Text: payload.(*testschema.TestRequest).Name}, nil
	})
	manager := protocol.NewManager(format, router)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	codec := transport.NewFrameCodec(1 << 20)
	server := transport.NewStreamSession(serverConn, serverConn, protocol.ContentTypeProto, codec)
	client := transport.NewStreamSession(clientConn, clientConn, protocol.ContentTypeProto, codec)

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(context.Background(), func(msg protocol.Message) error {
			return manager.ProcessMessage(server, msg)
		})
	}()

	header := &protocol.Header{CorrID: 1, Type: "test.TestRequest"}
	require.NoError(t, format.Send(client, header, &testschema.TestRequest{Name: "piped"}))

	reply, err := client.Receive()
	require.NoError(t, err)
	var h protocol.Header
	payload, syntaxError := format.ParseProto(reply.ReceivePayload(), &h)
	require.False(t, syntaxError)
	assert.Equal(t, protocol.MsgReply, h.Mode)
	assert.Equal(t, int64(1), h.CorrID)
	assert.Equal(t, &testschema.TestReply{Text: "piped"}, payload)

	require.NoError(t, clientConn.Close())
	require.NoError(t, <-done)
}

func TestStreamSession_ServeCanceled(t *testing.T) {
	_, serverConn := net.Pipe()
	defer serverConn.Close()
	s := transport.NewStreamSession(serverConn, serverConn, protocol.ContentTypeJSON, transport.NewFrameCodec(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Serve(ctx, func(protocol.Message) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled))
}
