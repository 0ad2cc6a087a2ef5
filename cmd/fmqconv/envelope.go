package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/codec"
	"github.com/helmut-steiner/finalmq/internal/protocol"
	"github.com/helmut-steiner/finalmq/internal/serialize"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
	"github.com/helmut-steiner/finalmq/internal/transport"
)

func newEnvelopeCmd(a *app) *cobra.Command {
	envelopeCmd := &cobra.Command{
		Use:   "envelope",
		Short: "Build or inspect remote entity envelopes",
	}
	envelopeCmd.AddCommand(newEnvelopeEncodeCmd(a), newEnvelopeDecodeCmd(a))
	return envelopeCmd
}

func contentTypeOf(name string) (int, codec.Codec, error) {
	switch name {
	case "proto", codec.ApplicationProtobuf:
		return protocol.ContentTypeProto, codec.Proto, nil
	case "json", codec.ApplicationJson:
		return protocol.ContentTypeJSON, codec.JSON, nil
	default:
		return 0, nil, fmt.Errorf("envelope content type %q: %w", name, protocol.ErrUnknownContentType)
	}
}

func parseMode(s string) (protocol.MsgMode, error) {
	for _, m := range []protocol.MsgMode{protocol.MsgRequest, protocol.MsgReply} {
		if s == m.String() || s == modeAlias(m) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func modeAlias(m protocol.MsgMode) string {
	if m == protocol.MsgReply {
		return "reply"
	}
	return "request"
}

type encodeOptions struct {
	contentType string
	from        string
	in, out     string
	framed      bool
	mode        string
	header      protocol.Header
}

func newEnvelopeEncodeCmd(a *app) *cobra.Command {
	o := encodeOptions{from: "json", mode: "request"}
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Wrap a payload into an envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.contentType == "" {
				o.contentType = a.cfg.ContentType
			}
			mode, err := parseMode(o.mode)
			if err != nil {
				return err
			}
			o.header.Mode = mode

			var data []byte
			if o.header.Type != "" {
				if data, err = a.readInput(cmd, o.in); err != nil {
					return err
				}
			}
			out, err := a.encodeEnvelope(&o, data)
			if err != nil {
				return err
			}
			if !o.framed {
				return a.writeOutput(cmd, o.out, out)
			}
			var framed bytes.Buffer
			if err := transport.NewFrameCodec(int(a.cfg.MaxMessageSize.Bytes())).WriteFrame(&framed, out); err != nil {
				return err
			}
			return a.writeOutput(cmd, o.out, framed.Bytes())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.contentType, "content-type", "", "envelope format: proto or json (default from config)")
	f.StringVar(&o.from, "from", o.from, "payload input format")
	f.StringVarP(&o.in, "in", "i", "", "payload file (default stdin)")
	f.StringVarP(&o.out, "out", "o", "", "output file (default stdout)")
	f.BoolVar(&o.framed, "framed", false, "prefix the envelope with a 4 byte big endian length")
	f.StringVar(&o.mode, "mode", o.mode, "request or reply")
	f.StringVarP(&o.header.Type, "type", "t", "", "payload type, empty for a header only envelope")
	f.StringVar(&o.header.DestName, "dest", "", "destination entity name")
	f.Uint64Var(&o.header.DestID, "destid", 0, "destination entity id")
	f.Uint64Var(&o.header.SrcID, "srcid", 0, "source entity id")
	f.Int64Var(&o.header.CorrID, "corrid", 0, "correlation id, 0 for fire and forget")
	return cmd
}

// encodeEnvelope 负载先转成信封格式再以 GenericMessage 原样嵌入
func (a *app) encodeEnvelope(o *encodeOptions, data []byte) ([]byte, error) {
	contentType, dst, err := contentTypeOf(o.contentType)
	if err != nil {
		return nil, err
	}
	var payload serializestruct.Struct
	if o.header.Type != "" {
		encoded, err := a.convert(convertOptions{typeName: o.header.Type, from: o.from, to: dst.Name()}, data)
		if err != nil {
			return nil, err
		}
		payload = &protocol.GenericMessage{Type: o.header.Type, ContentType: uint32(contentType), Data: encoded}
	}
	msg := &transport.Message{}
	if err := a.format.Serialize(msg, contentType, &o.header, payload); err != nil {
		return nil, err
	}
	return msg.SendPayload(), nil
}

type decodeOptions struct {
	contentType string
	to          string
	in, out     string
	framed      bool
}

func newEnvelopeDecodeCmd(a *app) *cobra.Command {
	o := decodeOptions{to: "json"}
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Print the header and payload of one or more envelopes",
		Long: "Decode a single envelope, or with --framed a stream of length prefixed envelopes, " +
			"and print each as {\"header\":...,\"payload\":...}.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.contentType == "" {
				o.contentType = a.cfg.ContentType
			}
			if o.to != "json" && o.to != formatYAML {
				return fmt.Errorf("decode output %q: want json or yaml", o.to)
			}
			data, err := a.readInput(cmd, o.in)
			if err != nil {
				return err
			}
			var envelopes [][]byte
			if o.framed {
				if envelopes, err = a.splitFrames(data); err != nil {
					return err
				}
			} else {
				envelopes = [][]byte{data}
			}

			var out bytes.Buffer
			for i, env := range envelopes {
				doc, err := a.decodeEnvelope(o.contentType, env)
				if err != nil {
					return fmt.Errorf("envelope %d: %w", i, err)
				}
				if o.to == formatYAML {
					if doc, err = yaml.JSONToYAML(doc); err != nil {
						return err
					}
					if i > 0 {
						out.WriteString("---\n")
					}
					out.Write(doc)
					continue
				}
				out.Write(doc)
				out.WriteByte('\n')
			}
			a.log.Debug("decoded", zap.Int("envelopes", len(envelopes)), zap.String("contenttype", o.contentType))
			return a.writeOutput(cmd, o.out, out.Bytes())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.contentType, "content-type", "", "envelope format: proto or json (default from config)")
	f.StringVar(&o.to, "to", o.to, "output format: json or yaml")
	f.StringVarP(&o.in, "in", "i", "", "input file (default stdin)")
	f.StringVarP(&o.out, "out", "o", "", "output file (default stdout)")
	f.BoolVar(&o.framed, "framed", false, "input is a stream of length prefixed frames")
	return cmd
}

func (a *app) splitFrames(data []byte) ([][]byte, error) {
	fc := transport.NewFrameCodec(int(a.cfg.MaxMessageSize.Bytes()))
	r := bytes.NewReader(data)
	var frames [][]byte
	for {
		frame, err := fc.ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", len(frames), err)
		}
		frames = append(frames, frame)
	}
}

// decodeEnvelope 输出 {"header":...,"payload":...}，已注册类型的负载转成 JSON，
// 其余以 GenericMessage 形式输出
func (a *app) decodeEnvelope(contentType string, env []byte) ([]byte, error) {
	ct, src, err := contentTypeOf(contentType)
	if err != nil {
		return nil, err
	}
	var header protocol.Header
	payload, syntaxError := a.format.ParseMessage(transport.NewReceivedMessage(env), ct, &header)
	if syntaxError {
		return nil, fmt.Errorf("%w: malformed %s envelope", serialize.ErrSyntax, src.Name())
	}

	out := buffer.New(int(a.cfg.SendBlockSize.Bytes()))
	_, _ = out.WriteString(`{"header":`)
	hdr, err := codec.Marshal(codec.JSON, a.reg, &header)
	if err != nil {
		return nil, err
	}
	_, _ = out.Write(hdr)
	_, _ = out.WriteString(`,"payload":`)

	var body []byte
	switch p := payload.(type) {
	case nil:
		body = []byte("null")
	case *protocol.GenericMessage:
		body, err = a.genericPayload(src, p)
	default:
		body, err = codec.Marshal(codec.JSON, a.reg, p)
	}
	if err != nil {
		return nil, err
	}
	_, _ = out.Write(body)
	_ = out.WriteByte('}')
	return out.Bytes(), nil
}

func (a *app) genericPayload(src codec.Codec, p *protocol.GenericMessage) ([]byte, error) {
	if _, ok := a.reg.FindStruct(p.Type); !ok {
		a.log.Debug("payload type not registered", zap.String("type", p.Type))
		return codec.Marshal(codec.JSON, a.reg, p)
	}
	if len(p.Data) == 0 && src.Name() == codec.JSON.Name() {
		return []byte("{}"), nil
	}
	return codec.Convert(a.reg, src, codec.JSON, p.Type, p.Data)
}
