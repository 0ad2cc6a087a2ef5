package serialize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/helmut-steiner/finalmq/internal/metadata"
)

// Converter 把与字段声明类型不一致的事件转换为声明类型后再转发
//
// 数值之间按目标宽度截断，数值与字符串互转，标量写入数组字段时变为单元素数组，
// 字符串写入枚举字段时作为枚举名转发。无法转换的事件被丢弃。
type Converter struct {
	next Visitor
}

var _ Visitor = (*Converter)(nil)

// NewConverter 包装下游访问者
func NewConverter(next Visitor) *Converter {
	return &Converter{next: next}
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func (c *Converter) NotifyError(buf []byte, pos int, message string) {
	c.next.NotifyError(buf, pos, message)
}

func (c *Converter) Finished() { c.next.Finished() }

func (c *Converter) EnterStruct(field *metadata.FieldDescriptor) {
	if field.Kind == metadata.TypeStruct {
		c.next.EnterStruct(field)
	}
}

func (c *Converter) ExitStruct(field *metadata.FieldDescriptor) {
	if field.Kind == metadata.TypeStruct {
		c.next.ExitStruct(field)
	}
}

func (c *Converter) EnterArrayStruct(field *metadata.FieldDescriptor) {
	if field.Kind == metadata.TypeArrayStruct {
		c.next.EnterArrayStruct(field)
	}
}

func (c *Converter) ExitArrayStruct(field *metadata.FieldDescriptor) {
	if field.Kind == metadata.TypeArrayStruct {
		c.next.ExitArrayStruct(field)
	}
}

func (c *Converter) EnterBool(field *metadata.FieldDescriptor, value bool) {
	switch field.Kind {
	case metadata.TypeBool:
		c.next.EnterBool(field, value)
	case metadata.TypeString:
		c.next.EnterString(field, strconv.FormatBool(value))
	case metadata.TypeArrayString:
		c.next.EnterArrayString(field, []string{strconv.FormatBool(value)})
	default:
		convertNumber(c.next, field, boolToInt(value))
	}
}

func (c *Converter) EnterInt8(field *metadata.FieldDescriptor, value int8) {
	if field.Kind == metadata.TypeInt8 {
		c.next.EnterInt8(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterUInt8(field *metadata.FieldDescriptor, value uint8) {
	if field.Kind == metadata.TypeUInt8 {
		c.next.EnterUInt8(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterInt16(field *metadata.FieldDescriptor, value int16) {
	if field.Kind == metadata.TypeInt16 {
		c.next.EnterInt16(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterUInt16(field *metadata.FieldDescriptor, value uint16) {
	if field.Kind == metadata.TypeUInt16 {
		c.next.EnterUInt16(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterInt32(field *metadata.FieldDescriptor, value int32) {
	if field.Kind == metadata.TypeInt32 {
		c.next.EnterInt32(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterUInt32(field *metadata.FieldDescriptor, value uint32) {
	if field.Kind == metadata.TypeUInt32 {
		c.next.EnterUInt32(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterInt64(field *metadata.FieldDescriptor, value int64) {
	if field.Kind == metadata.TypeInt64 {
		c.next.EnterInt64(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterUInt64(field *metadata.FieldDescriptor, value uint64) {
	if field.Kind == metadata.TypeUInt64 {
		c.next.EnterUInt64(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterFloat32(field *metadata.FieldDescriptor, value float32) {
	if field.Kind == metadata.TypeFloat32 {
		c.next.EnterFloat32(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterFloat64(field *metadata.FieldDescriptor, value float64) {
	if field.Kind == metadata.TypeFloat64 {
		c.next.EnterFloat64(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterString(field *metadata.FieldDescriptor, value string) {
	if field.Kind == metadata.TypeString {
		c.next.EnterString(field, value)
		return
	}
	convertString(c.next, field, value)
}

func (c *Converter) EnterBytes(field *metadata.FieldDescriptor, value []byte) {
	switch field.Kind {
	case metadata.TypeBytes:
		c.next.EnterBytes(field, value)
	case metadata.TypeArrayBytes:
		c.next.EnterArrayBytes(field, [][]byte{value})
	default:
		convertString(c.next, field, string(value))
	}
}

func (c *Converter) EnterEnum(field *metadata.FieldDescriptor, value int32) {
	if field.Kind == metadata.TypeEnum {
		c.next.EnterEnum(field, value)
		return
	}
	convertNumber(c.next, field, value)
}

func (c *Converter) EnterEnumString(field *metadata.FieldDescriptor, value string) {
	if field.Kind == metadata.TypeEnum {
		c.next.EnterEnumString(field, value)
		return
	}
	convertString(c.next, field, value)
}

func (c *Converter) EnterArrayBool(field *metadata.FieldDescriptor, value []bool) {
	switch field.Kind {
	case metadata.TypeArrayBool:
		c.next.EnterArrayBool(field, value)
	case metadata.TypeArrayString:
		out := make([]string, len(value))
		for i, v := range value {
			out[i] = strconv.FormatBool(v)
		}
		c.next.EnterArrayString(field, out)
	default:
		ints := make([]uint8, len(value))
		for i, v := range value {
			ints[i] = uint8(boolToInt(v))
		}
		convertNumberArray(c.next, field, ints)
	}
}

func (c *Converter) EnterArrayInt8(field *metadata.FieldDescriptor, value []int8) {
	if field.Kind == metadata.TypeArrayInt8 {
		c.next.EnterArrayInt8(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayUInt8(field *metadata.FieldDescriptor, value []uint8) {
	if field.Kind == metadata.TypeArrayUInt8 {
		c.next.EnterArrayUInt8(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayInt16(field *metadata.FieldDescriptor, value []int16) {
	if field.Kind == metadata.TypeArrayInt16 {
		c.next.EnterArrayInt16(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayUInt16(field *metadata.FieldDescriptor, value []uint16) {
	if field.Kind == metadata.TypeArrayUInt16 {
		c.next.EnterArrayUInt16(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayInt32(field *metadata.FieldDescriptor, value []int32) {
	if field.Kind == metadata.TypeArrayInt32 {
		c.next.EnterArrayInt32(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayUInt32(field *metadata.FieldDescriptor, value []uint32) {
	if field.Kind == metadata.TypeArrayUInt32 {
		c.next.EnterArrayUInt32(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayInt64(field *metadata.FieldDescriptor, value []int64) {
	if field.Kind == metadata.TypeArrayInt64 {
		c.next.EnterArrayInt64(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayUInt64(field *metadata.FieldDescriptor, value []uint64) {
	if field.Kind == metadata.TypeArrayUInt64 {
		c.next.EnterArrayUInt64(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayFloat32(field *metadata.FieldDescriptor, value []float32) {
	if field.Kind == metadata.TypeArrayFloat32 {
		c.next.EnterArrayFloat32(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayFloat64(field *metadata.FieldDescriptor, value []float64) {
	if field.Kind == metadata.TypeArrayFloat64 {
		c.next.EnterArrayFloat64(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayString(field *metadata.FieldDescriptor, value []string) {
	if field.Kind == metadata.TypeArrayString {
		c.next.EnterArrayString(field, value)
		return
	}
	convertStringArray(c.next, field, value)
}

func (c *Converter) EnterArrayBytes(field *metadata.FieldDescriptor, value [][]byte) {
	if field.Kind == metadata.TypeArrayBytes {
		c.next.EnterArrayBytes(field, value)
		return
	}
	out := make([]string, len(value))
	for i, v := range value {
		out[i] = string(v)
	}
	convertStringArray(c.next, field, out)
}

func (c *Converter) EnterArrayEnum(field *metadata.FieldDescriptor, value []int32) {
	if field.Kind == metadata.TypeArrayEnum {
		c.next.EnterArrayEnum(field, value)
		return
	}
	convertNumberArray(c.next, field, value)
}

func (c *Converter) EnterArrayEnumString(field *metadata.FieldDescriptor, value []string) {
	if field.Kind == metadata.TypeArrayEnum {
		c.next.EnterArrayEnumString(field, value)
		return
	}
	convertStringArray(c.next, field, value)
}

func convertNumber[T number](next Visitor, field *metadata.FieldDescriptor, v T) {
	switch field.Kind {
	case metadata.TypeBool:
		next.EnterBool(field, v != 0)
	case metadata.TypeInt8:
		next.EnterInt8(field, cast[int8](v))
	case metadata.TypeUInt8:
		next.EnterUInt8(field, cast[uint8](v))
	case metadata.TypeInt16:
		next.EnterInt16(field, cast[int16](v))
	case metadata.TypeUInt16:
		next.EnterUInt16(field, cast[uint16](v))
	case metadata.TypeInt32:
		next.EnterInt32(field, cast[int32](v))
	case metadata.TypeUInt32:
		next.EnterUInt32(field, cast[uint32](v))
	case metadata.TypeInt64:
		next.EnterInt64(field, cast[int64](v))
	case metadata.TypeUInt64:
		next.EnterUInt64(field, cast[uint64](v))
	case metadata.TypeFloat32:
		next.EnterFloat32(field, float32(v))
	case metadata.TypeFloat64:
		next.EnterFloat64(field, float64(v))
	case metadata.TypeString:
		next.EnterString(field, formatNumber(v))
	case metadata.TypeBytes:
		next.EnterBytes(field, []byte(formatNumber(v)))
	case metadata.TypeEnum:
		next.EnterEnum(field, cast[int32](v))
	case metadata.TypeArrayBool,
		metadata.TypeArrayInt8, metadata.TypeArrayUInt8,
		metadata.TypeArrayInt16, metadata.TypeArrayUInt16,
		metadata.TypeArrayInt32, metadata.TypeArrayUInt32,
		metadata.TypeArrayInt64, metadata.TypeArrayUInt64,
		metadata.TypeArrayFloat32, metadata.TypeArrayFloat64,
		metadata.TypeArrayString, metadata.TypeArrayBytes, metadata.TypeArrayEnum:
		convertNumberArray(next, field, []T{v})
	}
}

func convertNumberArray[T number](next Visitor, field *metadata.FieldDescriptor, vs []T) {
	switch field.Kind {
	case metadata.TypeArrayBool:
		out := make([]bool, len(vs))
		for i, v := range vs {
			out[i] = v != 0
		}
		next.EnterArrayBool(field, out)
	case metadata.TypeArrayInt8:
		next.EnterArrayInt8(field, castSlice[T, int8](vs))
	case metadata.TypeArrayUInt8:
		next.EnterArrayUInt8(field, castSlice[T, uint8](vs))
	case metadata.TypeArrayInt16:
		next.EnterArrayInt16(field, castSlice[T, int16](vs))
	case metadata.TypeArrayUInt16:
		next.EnterArrayUInt16(field, castSlice[T, uint16](vs))
	case metadata.TypeArrayInt32:
		next.EnterArrayInt32(field, castSlice[T, int32](vs))
	case metadata.TypeArrayUInt32:
		next.EnterArrayUInt32(field, castSlice[T, uint32](vs))
	case metadata.TypeArrayInt64:
		next.EnterArrayInt64(field, castSlice[T, int64](vs))
	case metadata.TypeArrayUInt64:
		next.EnterArrayUInt64(field, castSlice[T, uint64](vs))
	case metadata.TypeArrayFloat32:
		next.EnterArrayFloat32(field, castSlice[T, float32](vs))
	case metadata.TypeArrayFloat64:
		next.EnterArrayFloat64(field, castSlice[T, float64](vs))
	case metadata.TypeArrayEnum:
		next.EnterArrayEnum(field, castSlice[T, int32](vs))
	case metadata.TypeArrayString:
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = formatNumber(v)
		}
		next.EnterArrayString(field, out)
	case metadata.TypeArrayBytes:
		out := make([][]byte, len(vs))
		for i, v := range vs {
			out[i] = []byte(formatNumber(v))
		}
		next.EnterArrayBytes(field, out)
	}
}

func convertString(next Visitor, field *metadata.FieldDescriptor, s string) {
	switch field.Kind {
	case metadata.TypeString:
		next.EnterString(field, s)
	case metadata.TypeBytes:
		next.EnterBytes(field, []byte(s))
	case metadata.TypeEnum:
		next.EnterEnumString(field, s)
	case metadata.TypeArrayString:
		next.EnterArrayString(field, []string{s})
	case metadata.TypeArrayBytes:
		next.EnterArrayBytes(field, [][]byte{[]byte(s)})
	case metadata.TypeArrayEnum:
		next.EnterArrayEnumString(field, []string{s})
	case metadata.TypeBool:
		next.EnterBool(field, parseBool(s))
	case metadata.TypeArrayBool:
		next.EnterArrayBool(field, []bool{parseBool(s)})
	default:
		switch {
		case isFloatKind(field.Kind):
			convertNumber(next, field, parseFloat64(s))
		case isUnsignedKind(field.Kind):
			convertNumber(next, field, parseUint64(s))
		default:
			convertNumber(next, field, parseInt64(s))
		}
	}
}

func convertStringArray(next Visitor, field *metadata.FieldDescriptor, ss []string) {
	switch field.Kind {
	case metadata.TypeArrayString:
		next.EnterArrayString(field, ss)
	case metadata.TypeArrayBytes:
		out := make([][]byte, len(ss))
		for i, s := range ss {
			out[i] = []byte(s)
		}
		next.EnterArrayBytes(field, out)
	case metadata.TypeArrayEnum:
		next.EnterArrayEnumString(field, ss)
	case metadata.TypeArrayBool:
		out := make([]bool, len(ss))
		for i, s := range ss {
			out[i] = parseBool(s)
		}
		next.EnterArrayBool(field, out)
	default:
		if !field.Kind.IsArray() {
			return
		}
		switch {
		case isFloatKind(field.Kind):
			out := make([]float64, len(ss))
			for i, s := range ss {
				out[i] = parseFloat64(s)
			}
			convertNumberArray(next, field, out)
		case isUnsignedKind(field.Kind):
			out := make([]uint64, len(ss))
			for i, s := range ss {
				out[i] = parseUint64(s)
			}
			convertNumberArray(next, field, out)
		default:
			out := make([]int64, len(ss))
			for i, s := range ss {
				out[i] = parseInt64(s)
			}
			convertNumberArray(next, field, out)
		}
	}
}

func castSlice[From, To number](in []From) []To {
	out := make([]To, len(in))
	for i, v := range in {
		out[i] = cast[To](v)
	}
	return out
}

// cast 数值转换；浮点转整数时向零截断并饱和到目标范围，NaN 转为 0
func cast[To, From number](v From) To {
	var f float64
	switch x := any(v).(type) {
	case float32:
		f = float64(x)
	case float64:
		f = x
	default:
		return To(v)
	}
	var lo, hi float64
	switch any(To(0)).(type) {
	case int8:
		lo, hi = math.MinInt8, math.MaxInt8
	case uint8:
		hi = math.MaxUint8
	case int16:
		lo, hi = math.MinInt16, math.MaxInt16
	case uint16:
		hi = math.MaxUint16
	case int32:
		lo, hi = math.MinInt32, math.MaxInt32
	case uint32:
		hi = math.MaxUint32
	case int64:
		lo, hi = math.MinInt64, math.MaxInt64
	case uint64:
		hi = math.MaxUint64
	default:
		return To(v)
	}
	switch {
	case math.IsNaN(f):
		return 0
	case f <= lo:
		return To(lo)
	case f >= hi:
		// 有符号时为 -(min+1)，无符号时回绕为最大值
		return -(To(lo) + 1)
	}
	return To(f)
}

func formatNumber[T number](v T) string {
	switch x := any(v).(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func isFloatKind(k metadata.TypeID) bool {
	e := k.Elem()
	return e == metadata.TypeFloat32 || e == metadata.TypeFloat64
}

func isUnsignedKind(k metadata.TypeID) bool {
	switch k.Elem() {
	case metadata.TypeUInt8, metadata.TypeUInt16, metadata.TypeUInt32, metadata.TypeUInt64:
		return true
	}
	return false
}

func parseBool(s string) bool {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return parseFloat64(s) != 0
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
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

func parseUint64(s string) uint64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return uint64(v)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return uint64(int64(v))
	}
	return 0
}

func parseFloat64(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
