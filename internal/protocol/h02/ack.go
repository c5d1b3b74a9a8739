package h02

import (
	"strings"
	"time"
)

// Ack 生成文本帧的应答，二进制帧或字段不足时返回 nil。
// V1 回 *<前缀>,<id>,V1#，其余回 *<前缀>,<id>,R12,<HHMMSS>#
func Ack(frame []byte, now time.Time) []byte {
	if len(frame) == 0 || frame[0] != MarkerText {
		return nil
	}
	s := newSentence(string(frame), now)
	if len(s.fields) < 3 {
		return nil
	}
	prefix := strings.TrimPrefix(s.fields[0], string(MarkerText))
	id := s.fields[1]

	if s.field(2) == "V1" {
		return []byte("*" + prefix + "," + id + ",V1#")
	}
	return []byte("*" + prefix + "," + id + ",R12," + now.UTC().Format("150405") + "#")
}
