// Package serializetest 提供记录访问者事件的测试工具
package serializetest

import (
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/serialize"
)

// Event 一次访问者调用，Field 为字段名（根结构体为空）
type Event struct {
	Op    string
	Field string
	Value any
}

// E 构造 Event
func E(op, field string, value any) Event {
	return Event{Op: op, Field: field, Value: value}
}

// Recorder 按顺序记录收到的全部事件
type Recorder struct {
	Events []Event
	Errors int
}

var _ serialize.Visitor = (*Recorder)(nil)

func (r *Recorder) add(op string, f *metadata.FieldDescriptor, v any) {
	r.Events = append(r.Events, Event{Op: op, Field: f.Name, Value: v})
}

// Count 统计某种事件出现的次数
func (r *Recorder) Count(op string) int {
	n := 0
	for _, e := range r.Events {
		if e.Op == op {
			n++
		}
	}
	return n
}

// Values 返回事件中去掉根结构体包围后的部分
func (r *Recorder) Values() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Field == "" && (e.Op == "EnterStruct" || e.Op == "ExitStruct") {
			continue
		}
		if e.Op == "Finished" || e.Op == "NotifyError" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (r *Recorder) NotifyError(_ []byte, _ int, message string) {
	r.Errors++
	r.Events = append(r.Events, Event{Op: "NotifyError", Value: message})
}

func (r *Recorder) Finished() { r.Events = append(r.Events, Event{Op: "Finished"}) }

func (r *Recorder) EnterStruct(f *metadata.FieldDescriptor)      { r.add("EnterStruct", f, nil) }
func (r *Recorder) ExitStruct(f *metadata.FieldDescriptor)       { r.add("ExitStruct", f, nil) }
func (r *Recorder) EnterArrayStruct(f *metadata.FieldDescriptor) { r.add("EnterArrayStruct", f, nil) }
func (r *Recorder) ExitArrayStruct(f *metadata.FieldDescriptor)  { r.add("ExitArrayStruct", f, nil) }

func (r *Recorder) EnterBool(f *metadata.FieldDescriptor, v bool)       { r.add("EnterBool", f, v) }
func (r *Recorder) EnterInt8(f *metadata.FieldDescriptor, v int8)       { r.add("EnterInt8", f, v) }
func (r *Recorder) EnterUInt8(f *metadata.FieldDescriptor, v uint8)     { r.add("EnterUInt8", f, v) }
func (r *Recorder) EnterInt16(f *metadata.FieldDescriptor, v int16)     { r.add("EnterInt16", f, v) }
func (r *Recorder) EnterUInt16(f *metadata.FieldDescriptor, v uint16)   { r.add("EnterUInt16", f, v) }
func (r *Recorder) EnterInt32(f *metadata.FieldDescriptor, v int32)     { r.add("EnterInt32", f, v) }
func (r *Recorder) EnterUInt32(f *metadata.FieldDescriptor, v uint32)   { r.add("EnterUInt32", f, v) }
func (r *Recorder) EnterInt64(f *metadata.FieldDescriptor, v int64)     { r.add("EnterInt64", f, v) }
func (r *Recorder) EnterUInt64(f *metadata.FieldDescriptor, v uint64)   { r.add("EnterUInt64", f, v) }
func (r *Recorder) EnterFloat32(f *metadata.FieldDescriptor, v float32) { r.add("EnterFloat32", f, v) }
func (r *Recorder) EnterFloat64(f *metadata.FieldDescriptor, v float64) { r.add("EnterFloat64", f, v) }
func (r *Recorder) EnterString(f *metadata.FieldDescriptor, v string)   { r.add("EnterString", f, v) }
func (r *Recorder) EnterBytes(f *metadata.FieldDescriptor, v []byte) {
	r.add("EnterBytes", f, append([]byte{}, v...))
}
func (r *Recorder) EnterEnum(f *metadata.FieldDescriptor, v int32) { r.add("EnterEnum", f, v) }
func (r *Recorder) EnterEnumString(f *metadata.FieldDescriptor, v string) {
	r.add("EnterEnumString", f, v)
}

func (r *Recorder) EnterArrayBool(f *metadata.FieldDescriptor, v []bool) {
	r.add("EnterArrayBool", f, v)
}
func (r *Recorder) EnterArrayInt8(f *metadata.FieldDescriptor, v []int8) {
	r.add("EnterArrayInt8", f, v)
}
func (r *Recorder) EnterArrayUInt8(f *metadata.FieldDescriptor, v []uint8) {
	r.add("EnterArrayUInt8", f, v)
}
func (r *Recorder) EnterArrayInt16(f *metadata.FieldDescriptor, v []int16) {
	r.add("EnterArrayInt16", f, v)
}
func (r *Recorder) EnterArrayUInt16(f *metadata.FieldDescriptor, v []uint16) {
	r.add("EnterArrayUInt16", f, v)
}
func (r *Recorder) EnterArrayInt32(f *metadata.FieldDescriptor, v []int32) {
	r.add("EnterArrayInt32", f, v)
}
func (r *Recorder) EnterArrayUInt32(f *metadata.FieldDescriptor, v []uint32) {
	r.add("EnterArrayUInt32", f, v)
}
func (r *Recorder) EnterArrayInt64(f *metadata.FieldDescriptor, v []int64) {
	r.add("EnterArrayInt64", f, v)
}
func (r *Recorder) EnterArrayUInt64(f *metadata.FieldDescriptor, v []uint64) {
	r.add("EnterArrayUInt64", f, v)
}
func (r *Recorder) EnterArrayFloat32(f *metadata.FieldDescriptor, v []float32) {
	r.add("EnterArrayFloat32", f, v)
}
func (r *Recorder) EnterArrayFloat64(f *metadata.FieldDescriptor, v []float64) {
	r.add("EnterArrayFloat64", f, v)
}
func (r *Recorder) EnterArrayString(f *metadata.FieldDescriptor, v []string) {
	r.add("EnterArrayString", f, v)
}
func (r *Recorder) EnterArrayBytes(f *metadata.FieldDescriptor, v [][]byte) {
	r.add("EnterArrayBytes", f, v)
}
func (r *Recorder) EnterArrayEnum(f *metadata.FieldDescriptor, v []int32) {
	r.add("EnterArrayEnum", f, v)
}
func (r *Recorder) EnterArrayEnumString(f *metadata.FieldDescriptor, v []string) {
	r.add("EnterArrayEnumString", f, v)
}
