package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/helmut-steiner/finalmq/internal/buffer"
	"github.com/helmut-steiner/finalmq/internal/codec"
	"github.com/helmut-steiner/finalmq/internal/serialize"
	"github.com/helmut-steiner/finalmq/internal/serializevariant"
)

const (
	formatCBOR = "cbor"
	formatYAML = "yaml"
)

func allFormats() []string {
	return append(codec.Names(), formatCBOR, formatYAML)
}

type convertOptions struct {
	typeName     string
	from, to     string
	in, out      string
	enumAsNumber bool
}

func newConvertCmd(a *app) *cobra.Command {
	o := convertOptions{from: "json", to: "proto"}
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a message between wire formats",
		Long: "Convert a message of a registered struct type between formats: " +
			strings.Join(allFormats(), ", ") + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readInput(cmd, o.in)
			if err != nil {
				return err
			}
			out, err := a.convert(o, data)
			if err != nil {
				return err
			}
			a.log.Debug("converted", zap.String("type", o.typeName), zap.String("from", o.from),
				zap.String("to", o.to), zap.Int("in", len(data)), zap.Int("out", len(out)))
			return a.writeOutput(cmd, o.out, out)
		},
	}
	cmd.Flags().StringVarP(&o.typeName, "type", "t", "", "struct type name, e.g. test.TestRequest")
	cmd.Flags().StringVar(&o.from, "from", o.from, "input format")
	cmd.Flags().StringVar(&o.to, "to", o.to, "output format")
	cmd.Flags().StringVarP(&o.in, "in", "i", "", "input file (default stdin)")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&o.enumAsNumber, "enum-as-number", false, "write enums as numbers in json/yaml/cbor output")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// convert 线格式之间直接互转；yaml 经由 json，cbor 经由动态树
func (a *app) convert(o convertOptions, data []byte) ([]byte, error) {
	if _, ok := a.reg.FindStruct(o.typeName); !ok {
		return nil, fmt.Errorf("type %q is not registered", o.typeName)
	}

	var (
		src  codec.Codec
		tree any
	)
	switch o.from {
	case formatYAML:
		js, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("yaml input: %w", err)
		}
		src, data = codec.JSON, js
	case formatCBOR:
		t, err := serializevariant.UnmarshalCBOR(data)
		if err != nil {
			return nil, err
		}
		tree = t
	default:
		c, err := codec.MustLookup(o.from)
		if err != nil {
			return nil, err
		}
		src = c
	}

	jsonOut := codec.JSON
	if o.enumAsNumber {
		jsonOut = codec.JSONWithEnumAsNumber()
	}

	switch o.to {
	case formatYAML:
		js, err := a.encode(src, tree, jsonOut, o.typeName, data)
		if err != nil {
			return nil, err
		}
		return yaml.JSONToYAML(js)
	case formatCBOR:
		var opts []serializevariant.Option
		if o.enumAsNumber {
			opts = append(opts, serializevariant.WithEnumAsNumber())
		}
		ser := serializevariant.NewSerializer(a.reg, opts...)
		if err := a.parse(src, tree, ser, o.typeName, data); err != nil {
			return nil, err
		}
		return serializevariant.MarshalCBOR(ser.Root())
	case "json":
		return a.encode(src, tree, jsonOut, o.typeName, data)
	default:
		dst, err := codec.MustLookup(o.to)
		if err != nil {
			return nil, err
		}
		return a.encode(src, tree, dst, o.typeName, data)
	}
}

// encode 把 src 格式的 data（或 CBOR 动态树）写成 dst 格式
func (a *app) encode(src codec.Codec, tree any, dst codec.Codec, typeName string, data []byte) ([]byte, error) {
	if src != nil {
		return codec.Convert(a.reg, src, dst, typeName, data)
	}
	out := buffer.New(int(a.cfg.SendBlockSize.Bytes()))
	if err := a.parse(nil, tree, dst.NewSerializer(a.reg, out), typeName, nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (a *app) parse(src codec.Codec, tree any, v serialize.Visitor, typeName string, data []byte) error {
	var err error
	if src != nil {
		_, err = src.NewParser(a.reg, v, data).ParseStruct(typeName)
	} else {
		_, err = serializevariant.NewParser(a.reg, v, tree).ParseStruct(typeName)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", typeName, err)
	}
	return nil
}
