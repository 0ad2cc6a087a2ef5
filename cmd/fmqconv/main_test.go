package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoSchema = `namespace: demo
enums:
  - type: Color
    entries:
      - {name: COLOR_RED, id: 0}
      - {name: COLOR_BLUE, id: 1}
structs:
  - type: Point
    desc: a labelled point
    fields:
      - {tid: int32, name: x}
      - {tid: int32, name: z}
      - {tid: string, name: label}
      - {tid: enum, type: Color, name: color}
`

const pointJSON = `{"x":1,"z":-2,"label":"a","color":"COLOR_BLUE"}`

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.fmq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demoSchema), 0o644))
	return path
}

// run 执行一次命令行，返回标准输出
func run(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithStderr(t, stdin, args...)
	return out, err
}

func runWithStderr(t *testing.T, stdin []byte, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(bytes.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, stdin []byte, args ...string) string {
	t.Helper()
	out, err := run(t, stdin, args...)
	require.NoError(t, err)
	return out
}

func TestSchemaList(t *testing.T) {
	schema := writeSchema(t)
	out := mustRun(t, nil, "-s", schema, "schema", "list")
	assert.Contains(t, out, "demo.Point")
	assert.Contains(t, out, "demo.Color")
	assert.Contains(t, out, "remoteentity.Header")
	assert.Contains(t, out, "a labelled point")

	out = mustRun(t, nil, "-s", schema, "schema", "show", "demo.Point")
	for _, field := range []string{"x", "z", "label", "color", "demo.Color"} {
		assert.Contains(t, out, field)
	}
	out = mustRun(t, nil, "-s", schema, "schema", "show", "demo.Color")
	assert.Contains(t, out, "COLOR_BLUE")

	_, err := run(t, nil, "-s", schema, "schema", "show", "demo.Missing")
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	schema := writeSchema(t)
	convert := func(from, to string, in []byte, extra ...string) []byte {
		args := append([]string{"-s", schema, "convert", "-t", "demo.Point", "--from", from, "--to", to}, extra...)
		return []byte(mustRun(t, in, args...))
	}

	tests := []struct {
		name string
		via  string
	}{
		{"proto", "proto"},
		{"qt", "qt"},
		{"cbor", "cbor"},
		{"yaml", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mid := convert("json", tt.via, []byte(pointJSON))
			assert.NotEmpty(t, mid)
			assert.Equal(t, pointJSON, string(convert(tt.via, "json", mid)))
		})
	}

	t.Run("yaml keys", func(t *testing.T) {
		out := convert("json", "yaml", []byte(pointJSON))
		assert.Equal(t, "color: COLOR_BLUE\nlabel: a\nx: 1\nz: -2\n", string(out))
		// yaml 按键名排序，回到 json 时恢复声明顺序
		assert.Equal(t, pointJSON, string(convert("yaml", "json", out)))
	})
	t.Run("enum as number from names", func(t *testing.T) {
		out := string(convert("json", "json", []byte(`{"color":"COLOR_BLUE","x":1}`), "--enum-as-number"))
		assert.Equal(t, `{"x":1,"color":1}`, out)
	})
	t.Run("enum as number", func(t *testing.T) {
		out := string(convert("json", "json", []byte(pointJSON), "--enum-as-number"))
		assert.Equal(t, `{"x":1,"z":-2,"label":"a","color":1}`, out)
	})
	t.Run("files", func(t *testing.T) {
		dir := t.TempDir()
		in := filepath.Join(dir, "point.json")
		out := filepath.Join(dir, "point.bin")
		require.NoError(t, os.WriteFile(in, []byte(pointJSON), 0o644))
		mustRun(t, nil, "-s", schema, "convert", "-t", "demo.Point", "--to", "proto", "-i", in, "-o", out)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, pointJSON, string(convert("proto", "json", data)))
	})
}

func TestConvert_Errors(t *testing.T) {
	schema := writeSchema(t)
	tests := []struct {
		name string
		args []string
		in   string
	}{
		{"unknown type", []string{"convert", "-t", "demo.Nope"}, pointJSON},
		{"missing type", []string{"convert"}, pointJSON},
		{"unknown format", []string{"convert", "-t", "demo.Point", "--to", "xml"}, pointJSON},
		{"bad json", []string{"convert", "-t", "demo.Point", "--to", "proto"}, `{"x":`},
		{"bad cbor", []string{"convert", "-t", "demo.Point", "--from", "cbor"}, "\xff\xff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, []byte(tt.in), append([]string{"-s", schema}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestEnvelope_JSON(t *testing.T) {
	schema := writeSchema(t)
	env := mustRun(t, []byte(pointJSON), "-s", schema, "envelope", "encode",
		"--content-type", "json", "-t", "demo.Point", "--dest", "svc", "--corrid", "7")
	assert.Equal(t, `[{"destname":"svc","destid":0,"srcid":0,"mode":"MSG_REQUEST","corrid":7,`+
		`"status":"STATUS_OK","type":"demo.Point"},`+"\t"+pointJSON+`]`, env)

	out := mustRun(t, []byte(env), "-s", schema, "envelope", "decode", "--content-type", "json")
	assert.Equal(t, `{"header":{"destname":"svc","destid":0,"srcid":0,"mode":"MSG_REQUEST","corrid":7,`+
		`"status":"STATUS_OK","type":"demo.Point"},"payload":`+pointJSON+"}\n", out)

	out = mustRun(t, []byte("/svc/demo.Point#3"+pointJSON), "-s", schema, "envelope", "decode", "--content-type", "json")
	assert.Contains(t, out, `"destname":"svc"`)
	assert.Contains(t, out, `"corrid":3`)
	assert.Contains(t, out, `"payload":`+pointJSON)
}

func TestEnvelope_ProtoFramed(t *testing.T) {
	schema := writeSchema(t)
	encode := func(args ...string) []byte {
		base := []string{"-s", schema, "envelope", "encode", "--content-type", "proto", "--framed"}
		return []byte(mustRun(t, []byte(pointJSON), append(base, args...)...))
	}
	stream := append(encode("-t", "demo.Point", "--corrid", "1"), encode("--mode", "reply", "--corrid", "2")...)

	out := mustRun(t, stream, "-s", schema, "envelope", "decode", "--content-type", "proto", "--framed")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"corrid":1`)
	assert.Contains(t, lines[0], `"payload":`+pointJSON)
	assert.Contains(t, lines[1], `"mode":"MSG_REPLY"`)
	assert.Contains(t, lines[1], `"payload":null`)

	out = mustRun(t, stream, "-s", schema, "envelope", "decode", "--content-type", "proto", "--framed", "--to", "yaml")
	assert.Equal(t, 1, strings.Count(out, "---\n"))
	assert.Contains(t, out, "label: a")
}

func TestEnvelope_UnknownPayload(t *testing.T) {
	schema := writeSchema(t)
	env := mustRun(t, []byte(pointJSON), "-s", schema, "envelope", "encode", "--content-type", "json", "-t", "demo.Point")

	// 不加载 schema 时负载按 GenericMessage 输出
	out := mustRun(t, []byte(env), "envelope", "decode", "--content-type", "json")
	assert.Contains(t, out, `"payload":{"type":"demo.Point","contenttype":2,"data":`)
}

func TestEnvelope_Errors(t *testing.T) {
	_, err := run(t, []byte{0xff, 0xff, 0xff, 0x7f, 1}, "envelope", "decode", "--content-type", "proto")
	assert.Error(t, err)

	_, err = run(t, nil, "envelope", "encode", "--content-type", "xml")
	assert.Error(t, err)

	_, err = run(t, nil, "envelope", "encode", "--mode", "push")
	assert.Error(t, err)

	_, err = run(t, []byte{0, 0, 0, 9, 1}, "envelope", "decode", "--framed")
	assert.Error(t, err)
}

func TestMetricsFlag(t *testing.T) {
	schema := writeSchema(t)
	_, stderr, err := runWithStderr(t, []byte(pointJSON), "-s", schema, "--metrics",
		"convert", "-t", "demo.Point", "--to", "qt")
	require.NoError(t, err)
	assert.Contains(t, stderr, "fmq_conversions_total")
	assert.Contains(t, stderr, "from=json,to=qt")
}
