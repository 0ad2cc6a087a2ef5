// Package serializejson 实现 schema 驱动的 JSON 解析器与序列化器
package serializejson

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

const maxDepth = 512

// Parser 递归下降的 JSON 解析器
//
// 标量经 serialize.Converter 转换为字段声明的类型，未知的键按结构跳过。
type Parser struct {
	reg     *metadata.Registry
	visitor serialize.Visitor
	conv    *serialize.Converter
	buf     []byte
	pos     int
	depth   int
}

var _ serialize.Parser = (*Parser)(nil)

// NewParser 创建解析 buf 的解析器
func NewParser(reg *metadata.Registry, visitor serialize.Visitor, buf []byte) *Parser {
	return &Parser{
		reg:     reg,
		visitor: visitor,
		conv:    serialize.NewConverter(visitor),
		buf:     buf,
	}
}

type syntaxError struct {
	pos int
	msg string
}

func (e *syntaxError) Error() string { return fmt.Sprintf("offset %d: %s", e.pos, e.msg) }

func (p *Parser) fail(msg string) error {
	return &syntaxError{pos: p.pos, msg: msg}
}

// ParseStruct 解析根对象，返回根对象之后的偏移量
func (p *Parser) ParseStruct(typeName string) (int, error) {
	stru, ok := p.reg.FindStruct(typeName)
	if !ok {
		p.visitor.NotifyError(p.buf, 0, "typename not found: "+typeName)
		p.visitor.Finished()
		return -1, fmt.Errorf("serializejson.Parser %s: %w", typeName, serialize.ErrUnknownType)
	}
	p.skipWhitespace()
	if p.peek() != '{' {
		return p.abort(p.fail("object expected"))
	}
	root := metadata.RootField(typeName)
	p.visitor.EnterStruct(root)
	if err := p.parseObject(stru); err != nil {
		return p.abort(err)
	}
	p.visitor.ExitStruct(root)
	p.visitor.Finished()
	return p.pos, nil
}

func (p *Parser) abort(err error) (int, error) {
	pos, msg := p.pos, err.Error()
	if se, ok := err.(*syntaxError); ok {
		pos, msg = se.pos, se.msg
	}
	p.visitor.NotifyError(p.buf, pos, msg)
	p.visitor.Finished()
	return -1, fmt.Errorf("serializejson.Parser: %w: %v", serialize.ErrSyntax, err)
}

func (p *Parser) peek() byte {
	if p.pos < len(p.buf) {
		return p.buf[p.pos]
	}
	return 0
}

func (p *Parser) skipWhitespace() {
	for p.pos < len(p.buf) {
		switch p.buf[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *Parser) expect(c byte) error {
	p.skipWhitespace()
	if p.peek() != c {
		return p.fail(fmt.Sprintf("'%c' expected", c))
	}
	p.pos++
	return nil
}

// parseObject 解析 '{' ... '}'，光标位于 '{'
//
// 先扫描一遍记录每个已知字段值的位置（重复的键以最后一个为准），
// 再按声明顺序逐个解析，事件顺序与输入中键的顺序无关。
func (p *Parser) parseObject(stru *metadata.StructDescriptor) error {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return p.fail("nesting too deep")
	}
	if err := p.expect('{'); err != nil {
		return err
	}
	offsets := make([]int, stru.NumFields())
	for i := range offsets {
		offsets[i] = -1
	}
	if err := p.scanMembers(stru, offsets); err != nil {
		return err
	}
	end := p.pos
	for i, fd := range stru.Fields {
		if offsets[i] < 0 {
			continue
		}
		p.pos = offsets[i]
		if err := p.parseValue(fd); err != nil {
			return err
		}
	}
	p.pos = end
	return nil
}

// scanMembers 跳过对象的全部成员直到 '}'，记录已知字段值的起始位置
func (p *Parser) scanMembers(stru *metadata.StructDescriptor, offsets []int) error {
	p.skipWhitespace()
	if p.peek() == '}' {
		p.pos++
		return nil
	}
	for {
		p.skipWhitespace()
		if p.peek() != '"' {
			return p.fail("key expected")
		}
		key, err := p.parseString(false)
		if err != nil {
			return err
		}
		if err := p.expect(':'); err != nil {
			return err
		}
		p.skipWhitespace()
		if fd, ok := stru.FieldByName(string(key)); ok {
			offsets[fd.Index] = p.pos
		}
		if err := p.skipValue(); err != nil {
			return err
		}
		p.skipWhitespace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return nil
		default:
			return p.fail("',' or '}' expected")
		}
	}
}

// parseValue 解析字段的值，形状与字段类型不符时跳过
func (p *Parser) parseValue(fd *metadata.FieldDescriptor) error {
	switch c := p.peek(); {
	case c == '{':
		if fd.Kind != metadata.TypeStruct {
			return p.skipValue()
		}
		sub, ok := p.reg.FindStruct(fd.TypeName)
		if !ok {
			return p.skipValue()
		}
		p.visitor.EnterStruct(fd)
		if err := p.parseObject(sub); err != nil {
			return err
		}
		p.visitor.ExitStruct(fd)
		return nil
	case c == '[':
		if !fd.Kind.IsArray() {
			return p.skipValue()
		}
		return p.parseArray(fd)
	case c == '"':
		bytesMode := fd.Kind == metadata.TypeBytes
		s, err := p.parseString(bytesMode)
		if err != nil {
			return err
		}
		if bytesMode {
			p.conv.EnterBytes(fd, s)
		} else {
			p.conv.EnterString(fd, string(s))
		}
		return nil
	case c == 't' || c == 'f':
		b, err := p.parseBool()
		if err != nil {
			return err
		}
		p.conv.EnterBool(fd, b)
		return nil
	case c == 'n':
		return p.parseLiteral("null")
	case c == '-' || (c >= '0' && c <= '9'):
		n, err := p.parseNumber()
		if err != nil {
			return err
		}
		switch {
		case n.float:
			p.conv.EnterFloat64(fd, n.f)
		case n.neg:
			p.conv.EnterInt64(fd, n.int64())
		default:
			p.conv.EnterUInt64(fd, n.mag)
		}
		return nil
	default:
		return p.fail("value expected")
	}
}

// element 数组中的一个标量元素
type element struct {
	kind byte // 'n' number, 's' string, 'b' bool
	num  number
	str  []byte
	b    bool
}

func (p *Parser) parseArray(fd *metadata.FieldDescriptor) error {
	if fd.Kind == metadata.TypeArrayStruct {
		return p.parseArrayStruct(fd)
	}
	p.pos++ // '['
	bytesMode := fd.Kind == metadata.TypeArrayBytes
	var elems []element
	p.skipWhitespace()
	if p.peek() == ']' {
		p.pos++
	} else {
		for {
			p.skipWhitespace()
			var e element
			switch c := p.peek(); {
			case c == '"':
				s, err := p.parseString(bytesMode)
				if err != nil {
					return err
				}
				e = element{kind: 's', str: s}
			case c == 't' || c == 'f':
				b, err := p.parseBool()
				if err != nil {
					return err
				}
				e = element{kind: 'b', b: b}
			case c == '-' || (c >= '0' && c <= '9'):
				n, err := p.parseNumber()
				if err != nil {
					return err
				}
				e = element{kind: 'n', num: n}
			default:
				// null 或嵌套值，跳过
				if err := p.skipValue(); err != nil {
					return err
				}
				e.kind = 0
			}
			if e.kind != 0 {
				elems = append(elems, e)
			}
			p.skipWhitespace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if p.peek() == ']' {
				p.pos++
				break
			}
			return p.fail("',' or ']' expected")
		}
	}
	p.emitArray(fd, elems)
	return nil
}

func (p *Parser) parseArrayStruct(fd *metadata.FieldDescriptor) error {
	sub, ok := p.reg.FindStruct(fd.TypeName)
	if !ok {
		return p.skipValue()
	}
	p.pos++ // '['
	elemField := fd.Element()
	p.visitor.EnterArrayStruct(fd)
	p.skipWhitespace()
	if p.peek() == ']' {
		p.pos++
		p.visitor.ExitArrayStruct(fd)
		return nil
	}
	for {
		p.skipWhitespace()
		if p.peek() == '{' {
			p.visitor.EnterStruct(elemField)
			if err := p.parseObject(sub); err != nil {
				return err
			}
			p.visitor.ExitStruct(elemField)
		} else if err := p.skipValue(); err != nil {
			return err
		}
		p.skipWhitespace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			p.visitor.ExitArrayStruct(fd)
			return nil
		default:
			return p.fail("',' or ']' expected")
		}
	}
}

func (p *Parser) emitArray(fd *metadata.FieldDescriptor, elems []element) {
	v := p.visitor
	switch fd.Kind {
	case metadata.TypeArrayBool:
		out := make([]bool, len(elems))
		for i, e := range elems {
			out[i] = e.bool()
		}
		v.EnterArrayBool(fd, out)
	case metadata.TypeArrayInt8:
		v.EnterArrayInt8(fd, signed[int8](elems))
	case metadata.TypeArrayInt16:
		v.EnterArrayInt16(fd, signed[int16](elems))
	case metadata.TypeArrayInt32:
		v.EnterArrayInt32(fd, signed[int32](elems))
	case metadata.TypeArrayInt64:
		v.EnterArrayInt64(fd, signed[int64](elems))
	case metadata.TypeArrayUInt8:
		v.EnterArrayUInt8(fd, unsigned[uint8](elems))
	case metadata.TypeArrayUInt16:
		v.EnterArrayUInt16(fd, unsigned[uint16](elems))
	case metadata.TypeArrayUInt32:
		v.EnterArrayUInt32(fd, unsigned[uint32](elems))
	case metadata.TypeArrayUInt64:
		v.EnterArrayUInt64(fd, unsigned[uint64](elems))
	case metadata.TypeArrayFloat32:
		out := make([]float32, len(elems))
		for i, e := range elems {
			out[i] = float32(e.float64())
		}
		v.EnterArrayFloat32(fd, out)
	case metadata.TypeArrayFloat64:
		out := make([]float64, len(elems))
		for i, e := range elems {
			out[i] = e.float64()
		}
		v.EnterArrayFloat64(fd, out)
	case metadata.TypeArrayString:
		out := make([]string, len(elems))
		for i, e := range elems {
			out[i] = e.string()
		}
		v.EnterArrayString(fd, out)
	case metadata.TypeArrayBytes:
		out := make([][]byte, len(elems))
		for i, e := range elems {
			out[i] = []byte(e.string())
		}
		v.EnterArrayBytes(fd, out)
	case metadata.TypeArrayEnum:
		p.emitArrayEnum(fd, elems)
	}
}

// emitArrayEnum 全部为数字时以数值转发，否则以枚举名转发
func (p *Parser) emitArrayEnum(fd *metadata.FieldDescriptor, elems []element) {
	numeric := true
	for _, e := range elems {
		if e.kind == 's' {
			numeric = false
			break
		}
	}
	if numeric {
		p.visitor.EnterArrayEnum(fd, signed[int32](elems))
		return
	}
	ed, _ := p.reg.FindEnum(fd.TypeName)
	out := make([]string, len(elems))
	for i, e := range elems {
		if e.kind != 's' && ed != nil {
			if name, ok := ed.NameOf(int32(e.int64())); ok {
				out[i] = name
				continue
			}
		}
		out[i] = e.string()
	}
	p.visitor.EnterArrayEnumString(fd, out)
}

func (e element) int64() int64 {
	switch e.kind {
	case 'n':
		return e.num.int64()
	case 'b':
		if e.b {
			return 1
		}
		return 0
	case 's':
		return parseIntString(string(e.str))
	}
	return 0
}

func (e element) uint64() uint64 {
	switch e.kind {
	case 'n':
		return e.num.uint64()
	case 's':
		if v, err := strconv.ParseUint(string(e.str), 10, 64); err == nil {
			return v
		}
	}
	return uint64(e.int64())
}

func (e element) float64() float64 {
	switch e.kind {
	case 'n':
		return e.num.float64()
	case 's':
		if v, err := strconv.ParseFloat(string(e.str), 64); err == nil {
			return v
		}
		return 0
	}
	return float64(e.int64())
}

func (e element) bool() bool {
	switch e.kind {
	case 'b':
		return e.b
	case 's':
		return string(e.str) == "true"
	}
	return e.float64() != 0
}

func (e element) string() string {
	switch e.kind {
	case 's':
		return string(e.str)
	case 'b':
		return strconv.FormatBool(e.b)
	case 'n':
		return e.num.text
	}
	return ""
}

func parseIntString(s string) int64 {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return int64(v)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(v)
	}
	return 0
}

func signed[T int8 | int16 | int32 | int64](elems []element) []T {
	out := make([]T, len(elems))
	for i, e := range elems {
		out[i] = T(e.int64())
	}
	return out
}

func unsigned[T uint8 | uint16 | uint32 | uint64](elems []element) []T {
	out := make([]T, len(elems))
	for i, e := range elems {
		out[i] = T(e.uint64())
	}
	return out
}

// number 数字字面量，整数按 64 位回绕累加
type number struct {
	float bool
	neg   bool
	mag   uint64
	f     float64
	text  string
}

// int64 浮点向零截断，超出范围时取边界值
func (n number) int64() int64 {
	if n.float {
		switch {
		case n.f <= math.MinInt64:
			return math.MinInt64
		case n.f >= math.MaxInt64:
			return math.MaxInt64
		}
		return int64(n.f)
	}
	if n.neg {
		return -int64(n.mag)
	}
	return int64(n.mag)
}

func (n number) uint64() uint64 {
	if n.float {
		switch {
		case n.f < 0:
			return uint64(n.int64())
		case n.f >= math.MaxUint64:
			return math.MaxUint64
		}
		return uint64(n.f)
	}
	return uint64(n.int64())
}

func (n number) float64() float64 {
	if n.float {
		return n.f
	}
	if n.neg {
		return -float64(n.mag)
	}
	return float64(n.mag)
}

func (p *Parser) parseNumber() (number, error) {
	start := p.pos
	var n number
	if p.peek() == '-' {
		n.neg = true
		p.pos++
	}
	digits := 0
	for p.pos < len(p.buf) && p.buf[p.pos] >= '0' && p.buf[p.pos] <= '9' {
		n.mag = n.mag*10 + uint64(p.buf[p.pos]-'0')
		p.pos++
		digits++
	}
	if digits == 0 {
		return n, p.fail("digit expected")
	}
	if p.peek() == '.' {
		n.float = true
		p.pos++
		for p.pos < len(p.buf) && p.buf[p.pos] >= '0' && p.buf[p.pos] <= '9' {
			p.pos++
		}
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		n.float = true
		p.pos++
		if c := p.peek(); c == '+' || c == '-' {
			p.pos++
		}
		for p.pos < len(p.buf) && p.buf[p.pos] >= '0' && p.buf[p.pos] <= '9' {
			p.pos++
		}
	}
	n.text = string(p.buf[start:p.pos])
	if n.float {
		f, err := strconv.ParseFloat(n.text, 64)
		if err != nil && !math.IsInf(f, 0) {
			return n, p.fail("invalid number " + n.text)
		}
		n.f = f
	}
	return n, nil
}

func (p *Parser) parseBool() (bool, error) {
	if p.peek() == 't' {
		return true, p.parseLiteral("true")
	}
	return false, p.parseLiteral("false")
}

func (p *Parser) parseLiteral(lit string) error {
	if len(p.buf)-p.pos < len(lit) || string(p.buf[p.pos:p.pos+len(lit)]) != lit {
		return p.fail(lit + " expected")
	}
	p.pos += len(lit)
	return nil
}

// parseString 解析字符串字面量，光标位于开头的引号
//
// bytesMode 时 \u00XX 解码为单个原始字节，否则解码为 Unicode 码点的 UTF-8 编码。
func (p *Parser) parseString(bytesMode bool) ([]byte, error) {
	p.pos++ // opening quote
	start := p.pos
	// 快速路径：无转义
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		if c == '"' {
			s := p.buf[start:p.pos]
			p.pos++
			return s, nil
		}
		if c == '\\' {
			break
		}
		p.pos++
	}
	out := append([]byte{}, p.buf[start:p.pos]...)
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		switch c {
		case '"':
			p.pos++
			return out, nil
		case '\\':
			p.pos++
			if p.pos >= len(p.buf) {
				return nil, p.fail("unterminated escape")
			}
			esc := p.buf[p.pos]
			p.pos++
			switch esc {
			case '"', '\\', '/':
				out = append(out, esc)
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'u':
				r, err := p.parseHex4()
				if err != nil {
					return nil, err
				}
				if bytesMode && r <= 0xFF {
					out = append(out, byte(r))
					continue
				}
				if utf16.IsSurrogate(r) {
					r = p.lowSurrogate(r)
				}
				out = utf8.AppendRune(out, r)
			default:
				return nil, p.fail("invalid escape")
			}
		default:
			out = append(out, c)
			p.pos++
		}
	}
	return nil, p.fail("unterminated string")
}

// lowSurrogate 与后续的 \uDCxx 组合成一个码点，失败时返回替换字符
func (p *Parser) lowSurrogate(high rune) rune {
	if len(p.buf)-p.pos >= 6 && p.buf[p.pos] == '\\' && p.buf[p.pos+1] == 'u' {
		save := p.pos
		p.pos += 2
		low, err := p.parseHex4()
		if err == nil {
			if r := utf16.DecodeRune(high, low); r != utf8.RuneError {
				return r
			}
		}
		p.pos = save
	}
	return utf8.RuneError
}

func (p *Parser) parseHex4() (rune, error) {
	if len(p.buf)-p.pos < 4 {
		return 0, p.fail("short unicode escape")
	}
	var r rune
	for i := 0; i < 4; i++ {
		c := p.buf[p.pos+i]
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return 0, p.fail("invalid unicode escape")
		}
		r = r<<4 | rune(d)
	}
	p.pos += 4
	return r, nil
}

// skipValue 按结构跳过任意 JSON 值
func (p *Parser) skipValue() error {
	p.skipWhitespace()
	switch c := p.peek(); {
	case c == '"':
		_, err := p.parseString(false)
		return err
	case c == '{' || c == '[':
		return p.skipContainer()
	case c == 't':
		return p.parseLiteral("true")
	case c == 'f':
		return p.parseLiteral("false")
	case c == 'n':
		return p.parseLiteral("null")
	case c == '-' || (c >= '0' && c <= '9'):
		_, err := p.parseNumber()
		return err
	default:
		return p.fail("value expected")
	}
}

func (p *Parser) skipContainer() error {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return p.fail("nesting too deep")
	}
	open := p.peek()
	closer := byte(']')
	if open == '{' {
		closer = '}'
	}
	p.pos++
	p.skipWhitespace()
	if p.peek() == closer {
		p.pos++
		return nil
	}
	for {
		p.skipWhitespace()
		if open == '{' {
			if p.peek() != '"' {
				return p.fail("key expected")
			}
			if _, err := p.parseString(false); err != nil {
				return err
			}
			if err := p.expect(':'); err != nil {
				return err
			}
		}
		if err := p.skipValue(); err != nil {
			return err
		}
		p.skipWhitespace()
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
			p.pos++
			return nil
		default:
			return p.fail("separator expected")
		}
	}
}
