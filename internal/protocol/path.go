package protocol

import (
	"bytes"
	"strconv"
)

// parsePathHeader 解析 /dest/type#corrid{payload} 形式的请求头，返回负载部分
//
// dest 取第一个 '/' 与 '{' 之前最后一个 '/' 之间的内容，可含 '/'。
// 没有 '#' 时 corrid 保持不变。
func parsePathHeader(buf []byte, header *Header) []byte {
	end := bytes.IndexByte(buf, '{')
	if end < 0 {
		end = len(buf)
	}
	head := buf[:end]
	slash := bytes.LastIndexByte(head, '/')
	if slash > 1 {
		header.DestName = string(head[1:slash])
	}
	name := head[slash+1:]
	if hash := bytes.LastIndexByte(name, '#'); hash >= 0 {
		header.CorrID = leadingInt(name[hash+1:])
		name = name[:hash]
	}
	header.Type = string(name)
	header.Mode = MsgRequest
	return buf[end:]
}

// leadingInt 解析开头的十进制整数，非法或溢出时为 0
func leadingInt(b []byte) int64 {
	n := 0
	if n < len(b) && (b[n] == '-' || b[n] == '+') {
		n++
	}
	for n < len(b) && b[n] >= '0' && b[n] <= '9' {
		n++
	}
	v, err := strconv.ParseInt(string(b[:n]), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
